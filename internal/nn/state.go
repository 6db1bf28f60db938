package nn

import (
	"sort"
	"strings"

	errorsmod "cosmossdk.io/errors"

	"github.com/born-ml/srgan/internal/tensor"
	"github.com/born-ml/srgan/internal/types"
)

// StateDict maps fully qualified parameter and buffer names to tensors.
type StateDict map[string]*tensor.RawTensor

// Keys returns the names in sorted order.
func (sd StateDict) Keys() []string {
	keys := make([]string, 0, len(sd))
	for k := range sd {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// State returns host copies of every parameter and buffer of m.
// Later updates to m do not affect the returned tensors.
func State(m Module) StateDict {
	sd := make(StateDict)
	for _, p := range m.Parameters() {
		sd[p.Name()] = p.Value().Clone()
	}
	for _, b := range m.Buffers() {
		sd[b.Name()] = b.Value().Clone()
	}
	return sd
}

// LoadState copies sd into the parameters and buffers of m.
//
// A shape mismatch always fails. In strict mode every name of m must be in
// sd and every name of sd must belong to m; lenient loading skips both kinds
// of difference. Nothing is copied when loading fails.
func LoadState(m Module, sd StateDict, strict bool) error {
	targets := make(map[string]*tensor.RawTensor)
	for _, p := range m.Parameters() {
		targets[p.Name()] = p.Value()
	}
	for _, b := range m.Buffers() {
		targets[b.Name()] = b.Value()
	}

	var missing, unexpected []string
	for name, dst := range targets {
		src, ok := sd[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if !src.Shape().Equal(dst.Shape()) {
			return errorsmod.Wrapf(types.ErrShapeMismatch,
				"size mismatch for %s: copying a param with shape %s, the shape in current model is %s",
				name, src.Shape(), dst.Shape())
		}
	}
	for name := range sd {
		if _, ok := targets[name]; !ok {
			unexpected = append(unexpected, name)
		}
	}
	if strict {
		if len(missing) > 0 {
			sort.Strings(missing)
			return errorsmod.Wrapf(types.ErrMissingKey, "missing key(s) in state dict: %s", strings.Join(missing, ", "))
		}
		if len(unexpected) > 0 {
			sort.Strings(unexpected)
			return errorsmod.Wrapf(types.ErrUnexpectedKey, "unexpected key(s) in state dict: %s", strings.Join(unexpected, ", "))
		}
	}

	for name, dst := range targets {
		if src, ok := sd[name]; ok {
			if err := dst.CopyFrom(src); err != nil {
				return errorsmod.Wrapf(types.ErrShapeMismatch, "%s: %v", name, err)
			}
		}
	}
	return nil
}
