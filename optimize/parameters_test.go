package optimize

import (
	"encoding/json"
	"math/rand"
	"testing"
)

const (
	json1 = "{\"a\":7.2,\"b\":1.17e-22,\"c\":0,\"d \\\"!\":0.999999}"
)

func TestMarshalParameters(tst *testing.T) {
	var pars FloatParameters
	a := 7.2
	b := 1.17e-22
	c := 0.0
	d := 0.999999
	pars.Append(NewBasicFloatParameter(&a, "a"))
	pars.Append(NewBasicFloatParameter(&b, "b"))
	pars.Append(NewBasicFloatParameter(&c, "c"))
	pars.Append(NewBasicFloatParameter(&d, "d \"!"))
	j, err := json.Marshal(pars)
	if err != nil {
		tst.Error("Error: ", err)
	}
	if string(j) != json1 {
		tst.Errorf("Incorrect encoded json value. Expected:\n'%v'\n got\n'%v'", json1, string(j))
	}
}

func TestUnmarshalParameters(tst *testing.T) {
	var pars FloatParameters
	a := 1.0
	b := 1.0
	c := 1.0
	d := 1.0
	pars.Append(NewBasicFloatParameter(&a, "a"))
	pars.Append(NewBasicFloatParameter(&b, "b"))
	pars.Append(NewBasicFloatParameter(&c, "c"))
	pars.Append(NewBasicFloatParameter(&d, "d \"!"))
	err := json.Unmarshal([]byte(json1), &pars)
	if err != nil {
		tst.Error("Error: ", err)
	}
	j, err := json.Marshal(pars)
	if err != nil {
		tst.Error("Error: ", err)
	}
	if string(j) != json1 {
		tst.Errorf("Incorrect encoded json value. Expected:\n'%v'\n got\n'%v'", json1, string(j))
	}
}

func TestSetFromMap(tst *testing.T) {
	var pars FloatParameters
	a := 1.0
	b := 2.0
	pars.Append(NewBasicFloatParameter(&a, "a"))
	pars.Append(NewBasicFloatParameter(&b, "b"))
	pars.SetFromMap(map[string]float64{"a": 3, "unknown": 17})
	if a != 3 {
		tst.Error("Expected a=3, got", a)
	}
	if b != 2 {
		tst.Error("Expected b to be unchanged, got", b)
	}
}

func TestParametersInRange(tst *testing.T) {
	var pars FloatParameters
	a := 1.0
	par := NewBasicFloatParameter(&a, "a")
	par.SetMin(0)
	par.SetMax(2)
	pars.Append(par)

	if !pars.InRange() {
		tst.Error("Expected parameters in range")
	}
	if pars.ValuesInRange([]float64{3}) {
		tst.Error("Expected value out of range")
	}
	a = -1
	if pars.InRange() {
		tst.Error("Expected parameters out of range")
	}
}

func TestRandomize(tst *testing.T) {
	rand.Seed(1)
	var pars FloatParameters
	a := 100.0
	b := 100.0
	parA := NewBasicFloatParameter(&a, "a")
	parA.SetMin(0)
	parA.SetMax(2)
	parB := NewBasicFloatParameter(&b, "b")
	pars.Append(parA)
	pars.Append(parB)
	for i := 0; i < 100; i++ {
		pars.Randomize()
		if a < 0 || a > 2 {
			tst.Error("Randomized value out of parameter bounds:", a)
		}
		if b < MIN || b > MAX {
			tst.Error("Randomized value out of default bounds:", b)
		}
	}
}

func TestProposeReflect(tst *testing.T) {
	rand.Seed(1)
	a := 0.5
	par := NewBasicFloatParameter(&a, "a")
	par.SetMin(0)
	par.SetMax(1)
	par.SetProposalFunc(NormalProposal(10))
	for i := 0; i < 100; i++ {
		par.Propose()
		if a < 0 || a > 1 {
			tst.Error("Proposed value out of bounds after reflection:", a)
		}
		par.Reject()
		if a != 0.5 {
			tst.Error("Expected original value after rejection, got", a)
		}
	}
}
