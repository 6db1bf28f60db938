package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/srgan/tensor"
)

func TestPublicAPI(t *testing.T) {
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, 6, x.NumElements())

	y, err := x.Reshape(tensor.Shape{3, 2})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 2}, y.Shape())

	assert.Equal(t, []float32{7, 7}, tensor.Full(tensor.Shape{2}, 7).Data())
	assert.Equal(t, []float32{1, 1}, tensor.Ones(tensor.Shape{2}).Data())

	_, err = tensor.New(tensor.Shape{2, -1})
	assert.Error(t, err)
}
