package autodiff

import (
	"github.com/born-ml/srgan/internal/tensor"
)

// Add returns v + o.
func (v *Variable) Add(o *Variable) *Variable {
	b := v.eng.backend
	return v.eng.record("add", b.Add(v.value, o.value), []*Variable{v, o}, func(g *Variable) []*Variable {
		return []*Variable{g, g}
	})
}

// Sub returns v - o.
func (v *Variable) Sub(o *Variable) *Variable {
	b := v.eng.backend
	return v.eng.record("sub", b.Sub(v.value, o.value), []*Variable{v, o}, func(g *Variable) []*Variable {
		return []*Variable{g, g.Neg()}
	})
}

// Mul returns the element-wise product v * o.
func (v *Variable) Mul(o *Variable) *Variable {
	b := v.eng.backend
	return v.eng.record("mul", b.Mul(v.value, o.value), []*Variable{v, o}, func(g *Variable) []*Variable {
		return []*Variable{g.Mul(o), g.Mul(v)}
	})
}

// Scale returns s * v.
func (v *Variable) Scale(s float32) *Variable {
	b := v.eng.backend
	return v.eng.record("scale", b.Scale(v.value, s), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.Scale(s)}
	})
}

// Neg returns -v.
func (v *Variable) Neg() *Variable {
	return v.Scale(-1)
}

// AddScalar returns v + s.
func (v *Variable) AddScalar(s float32) *Variable {
	b := v.eng.backend
	return v.eng.record("add_scalar", b.AddScalar(v.value, s), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g}
	})
}

// Square returns v * v.
func (v *Variable) Square() *Variable {
	return v.Mul(v)
}

// Sqrt returns the element-wise square root.
func (v *Variable) Sqrt() *Variable {
	b := v.eng.backend
	var out *Variable
	out = v.eng.record("sqrt", b.Sqrt(v.value), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.Mul(out.Reciprocal()).Scale(0.5)}
	})
	return out
}

// Reciprocal returns 1 / v.
func (v *Variable) Reciprocal() *Variable {
	b := v.eng.backend
	var out *Variable
	out = v.eng.record("reciprocal", b.Reciprocal(v.value), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.Mul(out.Square()).Neg()}
	})
	return out
}

// Sigmoid returns 1 / (1 + exp(-v)).
func (v *Variable) Sigmoid() *Variable {
	b := v.eng.backend
	var out *Variable
	out = v.eng.record("sigmoid", b.Sigmoid(v.value), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.Mul(out.Mul(out.Neg().AddScalar(1)))}
	})
	return out
}

// Softplus returns log(1 + exp(v)).
func (v *Variable) Softplus() *Variable {
	b := v.eng.backend
	return v.eng.record("softplus", b.Softplus(v.value), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.Mul(v.Sigmoid())}
	})
}

// LeakyReLU returns v where v > 0 and slope*v elsewhere.
func (v *Variable) LeakyReLU(slope float32) *Variable {
	return v.mulConst("leaky_relu", v.eng.backend.LeakyMask(v.value, slope))
}

// ReLU returns max(v, 0).
func (v *Variable) ReLU() *Variable {
	return v.mulConst("relu", v.eng.backend.LeakyMask(v.value, 0))
}

// Abs returns |v|. The gradient at zero is zero.
func (v *Variable) Abs() *Variable {
	return v.mulConst("abs", v.eng.backend.SignMask(v.value))
}

// mulConst multiplies by a tensor that is constant with respect to v.
func (v *Variable) mulConst(name string, mask *tensor.RawTensor) *Variable {
	b := v.eng.backend
	return v.eng.record(name, b.Mul(v.value, mask), []*Variable{v}, func(g *Variable) []*Variable {
		return []*Variable{g.mulConst(name, mask)}
	})
}
