package serialization

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"

	"github.com/born-ml/srgan/internal/types"
)

// Common errors. All of them match types.ErrInvalidCheckpoint.
var (
	ErrChecksumMismatch   = errorsmod.Wrap(types.ErrInvalidCheckpoint, "checksum mismatch: file may be corrupted")
	ErrInvalidMagic       = errorsmod.Wrap(types.ErrInvalidCheckpoint, "invalid magic bytes")
	ErrUnsupportedVersion = errorsmod.Wrap(types.ErrInvalidCheckpoint, "unsupported format version")
	ErrHeaderTooLarge     = errorsmod.Wrap(types.ErrInvalidCheckpoint, "header exceeds maximum size")
	ErrNoTrainingState    = errorsmod.Wrap(types.ErrInvalidCheckpoint, "file has no training state")
)

// ValidationError provides detailed information about validation failures.
type ValidationError struct {
	Type    string // Type of error (e.g., "offset_overlap", "out_of_bounds")
	Tensor  string // Primary tensor name involved
	Tensor2 string // Secondary tensor name (for overlap errors)
	Details string // Additional details
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Tensor2 != "" {
		return fmt.Sprintf("%s: tensors %q and %q: %s", e.Type, e.Tensor, e.Tensor2, e.Details)
	}
	if e.Tensor != "" {
		return fmt.Sprintf("%s: tensor %q: %s", e.Type, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}

// Unwrap makes every validation failure match types.ErrInvalidCheckpoint.
func (e *ValidationError) Unwrap() error {
	return types.ErrInvalidCheckpoint
}
