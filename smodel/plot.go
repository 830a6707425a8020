package smodel

import (
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"bitbucket.org/Davydov/sitednds/dist"
)

// profilePoints is the number of points of the rendered profile.
const profilePoints = 101

// writeProfile renders the likelihood profile deviance across the
// confidence interval as an SVG image, together with the chi-squared
// cutoff defining the interval.
func writeProfile(w io.Writer, m *NBModel, d *Dispersion) error {
	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = "dispersion profile"
	p.X.Label.Text = "theta"
	p.Y.Label.Text = "deviance"

	pts := make(plotter.XYs, profilePoints)
	for i := range pts {
		theta := d.Lo + (d.Hi-d.Lo)*float64(i)/float64(profilePoints-1)
		pts[i].X = theta
		pts[i].Y = -2 * (m.logLik(theta) - d.LnL)
	}

	if err := plotutil.AddLinePoints(p, "profile", pts); err != nil {
		return err
	}

	crit := dist.QuantileChi2(ciLevel, 1)
	cutoff := plotter.XYs{{X: d.Lo, Y: crit}, {X: d.Hi, Y: crit}}
	if err := plotutil.AddLines(p, "cutoff", cutoff); err != nil {
		return err
	}

	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, "svg")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
