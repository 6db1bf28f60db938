package nn

import (
	"strconv"

	"github.com/born-ml/srgan/internal/autodiff"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input. Children are named
// by position, so the first child's weight is "0.weight".
//
// Example:
//
//	body := nn.NewSequential(
//	    nn.NewConv2D(eng, 3, 64, 3, 1, 1, true, rng),
//	    nn.NewLeakyReLU(0.2),
//	)
//	out := body.Forward(x)
type Sequential struct {
	modules []Module
}

// NewSequential creates a Sequential and prefixes its children's names.
func NewSequential(modules ...Module) *Sequential {
	s := &Sequential{}
	for _, m := range modules {
		s.Add(m)
	}
	return s
}

// Add appends a module to the sequence.
func (s *Sequential) Add(m Module) {
	Prefix(strconv.Itoa(len(s.modules)), m)
	s.modules = append(s.modules, m)
}

// Forward applies all modules in sequence.
func (s *Sequential) Forward(x *autodiff.Variable) *autodiff.Variable {
	out := x
	for _, m := range s.modules {
		out = m.Forward(out)
	}
	return out
}

// Children returns the chained modules.
func (s *Sequential) Children() []Module {
	return s.modules
}

// Len returns the number of chained modules.
func (s *Sequential) Len() int {
	return len(s.modules)
}

func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, m := range s.modules {
		params = append(params, m.Parameters()...)
	}
	return params
}

func (s *Sequential) Buffers() []*Buffer {
	var bufs []*Buffer
	for _, m := range s.modules {
		bufs = append(bufs, m.Buffers()...)
	}
	return bufs
}

func (s *Sequential) SetTraining(training bool) {
	for _, m := range s.modules {
		m.SetTraining(training)
	}
}

func (s *Sequential) String() string {
	labels := make([]string, len(s.modules))
	for i := range labels {
		labels[i] = strconv.Itoa(i)
	}
	return describeChildren("Sequential", labels, s.modules)
}

// Shortcut adds its input to the output of a sub-module: x + sub(x).
// The sub-module's names are prefixed with "sub".
type Shortcut struct {
	sub Module
}

// NewShortcut wraps sub in an identity skip connection.
func NewShortcut(sub Module) *Shortcut {
	Prefix("sub", sub)
	return &Shortcut{sub: sub}
}

func (s *Shortcut) Forward(x *autodiff.Variable) *autodiff.Variable {
	return x.Add(s.sub.Forward(x))
}

func (s *Shortcut) Children() []Module        { return []Module{s.sub} }
func (s *Shortcut) Parameters() []*Parameter  { return s.sub.Parameters() }
func (s *Shortcut) Buffers() []*Buffer        { return s.sub.Buffers() }
func (s *Shortcut) SetTraining(training bool) { s.sub.SetTraining(training) }

func (s *Shortcut) String() string {
	return "Identity + \n|" + indent(s.sub.String())
}
