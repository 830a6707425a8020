package optimize

// None is an optimizer which computes the initial likelihood and
// exits.
type None struct {
	BaseOptimizer
}

// NewNone creates an optimizer which computes the initial likelihood
// only.
func NewNone() *None {
	n := &None{}
	n.method = "none"
	return n
}

// Run computes the likelihood once.
func (n *None) Run(iterations int) {
	n.SaveStart()
	n.PrintHeader()
	n.PrintLine(n.parameters, n.l, 1)
	n.PrintFinal(n.parameters)
	n.SaveCheckpoint(true)
}
