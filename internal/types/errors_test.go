package types_test

import (
	"errors"
	"testing"

	errorsmod "cosmossdk.io/errors"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/srgan/internal/types"
)

func TestWrappedErrorsMatchSentinel(t *testing.T) {
	err := errorsmod.Wrapf(types.ErrNotImplemented, "GAN type [%s] is not found", "hinge")
	require.True(t, errors.Is(err, types.ErrNotImplemented))
	require.False(t, errors.Is(err, types.ErrStateMismatch))
	require.Contains(t, err.Error(), "hinge")
	require.Contains(t, err.Error(), "not implemented")
}

func TestSentinelCodesAreDistinct(t *testing.T) {
	all := []*errorsmod.Error{
		types.ErrNotImplemented,
		types.ErrStateMismatch,
		types.ErrMissingKey,
		types.ErrUnexpectedKey,
		types.ErrShapeMismatch,
		types.ErrInvalidConfig,
		types.ErrDeviceUnavailable,
		types.ErrInvalidCheckpoint,
	}
	seen := map[uint32]bool{}
	for _, e := range all {
		require.Equal(t, types.ModuleName, e.Codespace())
		require.False(t, seen[e.ABCICode()], "duplicate code %d", e.ABCICode())
		seen[e.ABCICode()] = true
	}
}
