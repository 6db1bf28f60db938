package autodiff

import (
	"fmt"

	"github.com/born-ml/srgan/internal/tensor"
)

// Backward computes the gradient of the scalar v with respect to every leaf
// that requires gradients and accumulates it into the leaf's Grad.
//
// The backward pass itself is not recorded.
func (v *Variable) Backward() error {
	if v.value.NumElements() != 1 {
		return fmt.Errorf("backward: output must be a scalar, got shape %s", v.Shape())
	}
	if !v.requiresGrad {
		return fmt.Errorf("backward: output does not require grad (no recorded operations)")
	}
	ones := v.eng.Constant(tensor.Ones(v.Shape()))
	grads := v.eng.propagate([]*Variable{v}, []*Variable{ones}, false)
	for leaf, g := range grads {
		if !leaf.IsLeaf() || !leaf.requiresGrad {
			continue
		}
		if leaf.grad == nil {
			leaf.grad = g.value.Clone()
		} else {
			leaf.grad = v.eng.backend.Add(leaf.grad, g.value)
		}
	}
	return nil
}

// Grad returns d(Σ outputs[i]·gradOutputs[i]) / d inputs[j] for every input.
//
// With createGraph the gradient computation is recorded, so the returned
// variables can be part of a loss and differentiated again. Inputs the outputs
// do not depend on get a zero gradient. Leaf Grad fields are left untouched.
func (e *Engine) Grad(outputs, gradOutputs, inputs []*Variable, createGraph bool) ([]*Variable, error) {
	if len(outputs) != len(gradOutputs) {
		return nil, fmt.Errorf("grad: %d outputs but %d output gradients", len(outputs), len(gradOutputs))
	}
	for i, out := range outputs {
		if !out.Shape().Equal(gradOutputs[i].Shape()) {
			return nil, fmt.Errorf("grad: output %d has shape %s, gradient %s", i, out.Shape(), gradOutputs[i].Shape())
		}
	}
	for i, in := range inputs {
		if !in.requiresGrad {
			return nil, fmt.Errorf("grad: input %d does not require grad", i)
		}
	}

	grads := e.propagate(outputs, gradOutputs, createGraph)
	result := make([]*Variable, len(inputs))
	for i, in := range inputs {
		if g, ok := grads[in]; ok {
			result[i] = g
		} else {
			result[i] = e.Constant(tensor.ZerosLike(in.value))
		}
	}
	return result, nil
}

// propagate walks the graph behind outputs in reverse topological order and
// returns the gradient of every variable reached.
func (e *Engine) propagate(outputs, gradOutputs []*Variable, createGraph bool) map[*Variable]*Variable {
	order := topoSort(outputs)
	grads := make(map[*Variable]*Variable, len(order))

	run := func() {
		for i, out := range outputs {
			if out.requiresGrad {
				accumulate(grads, out, gradOutputs[i])
			}
		}
		for i := len(order) - 1; i >= 0; i-- {
			v := order[i]
			g, ok := grads[v]
			if !ok || v.creator == nil {
				continue
			}
			inputs := v.creator.Inputs()
			inputGrads := v.creator.Backward(g)
			for j, in := range inputs {
				if j >= len(inputGrads) || in == nil || !in.requiresGrad || inputGrads[j] == nil {
					continue
				}
				if !inputGrads[j].Shape().Equal(in.Shape()) {
					panic(fmt.Sprintf("autodiff: %s produced gradient %s for input %d of shape %s",
						v.creator.Name(), inputGrads[j].Shape(), j, in.Shape()))
				}
				accumulate(grads, in, inputGrads[j])
			}
		}
	}

	if createGraph {
		run()
	} else {
		e.NoGrad(run)
	}
	return grads
}

func accumulate(grads map[*Variable]*Variable, v, g *Variable) {
	if existing, ok := grads[v]; ok {
		grads[v] = existing.Add(g)
		return
	}
	grads[v] = g
}

// topoSort returns every variable reachable from outputs through inputs that
// require gradients, producers before consumers.
func topoSort(outputs []*Variable) []*Variable {
	var order []*Variable
	visited := make(map[*Variable]bool)

	// Iterative post-order DFS; networks are deep enough that recursion depth matters.
	type frame struct {
		v    *Variable
		next int
	}
	for _, root := range outputs {
		if root == nil || visited[root] || !root.requiresGrad {
			continue
		}
		visited[root] = true
		stack := []frame{{v: root}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			var inputs []*Variable
			if top.v.creator != nil {
				inputs = top.v.creator.Inputs()
			}
			if top.next < len(inputs) {
				in := inputs[top.next]
				top.next++
				if in != nil && in.requiresGrad && !visited[in] {
					visited[in] = true
					stack = append(stack, frame{v: in})
				}
				continue
			}
			order = append(order, top.v)
			stack = stack[:len(stack)-1]
		}
	}
	return order
}
