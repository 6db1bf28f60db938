package types

import (
	errorsmod "cosmossdk.io/errors"
)

// srgan sentinel errors
var (
	ErrNotImplemented    = errorsmod.Register(ModuleName, 1100, "not implemented")
	ErrStateMismatch     = errorsmod.Register(ModuleName, 1101, "training state does not match model")
	ErrMissingKey        = errorsmod.Register(ModuleName, 1102, "missing key in state dict")
	ErrUnexpectedKey     = errorsmod.Register(ModuleName, 1103, "unexpected key in state dict")
	ErrShapeMismatch     = errorsmod.Register(ModuleName, 1104, "tensor shape mismatch")
	ErrInvalidConfig     = errorsmod.Register(ModuleName, 1105, "invalid configuration")
	ErrDeviceUnavailable = errorsmod.Register(ModuleName, 1106, "device unavailable")
	ErrInvalidCheckpoint = errorsmod.Register(ModuleName, 1107, "invalid checkpoint file")
)
