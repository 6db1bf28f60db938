package serialization

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/srgan/internal/tensor"
	"github.com/born-ml/srgan/internal/types"
)

func testTensors(t *testing.T) map[string]*tensor.RawTensor {
	t.Helper()
	w, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	require.NoError(t, err)
	b, err := tensor.FromSlice([]float32{-0.5, 0.25}, tensor.Shape{2})
	require.NoError(t, err)
	return map[string]*tensor.RawTensor{
		"model.0.weight": w,
		"model.0.bias":   b,
	}
}

type testState struct {
	Epoch int `json:"epoch"`
	Iter  int `json:"iter"`
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "100_G.pth")
	tensors := testTensors(t)

	err := WriteFile(path, tensors, WriteOptions{
		Kind:          KindTrainingState,
		ModelType:     "RRDBNet",
		Metadata:      map[string]string{"run_id": "abc"},
		TrainingState: testState{Epoch: 2, Iter: 100},
	})
	require.NoError(t, err)

	f, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, KindTrainingState, f.Header.Kind)
	assert.Equal(t, "RRDBNet", f.Header.ModelType)
	assert.Equal(t, "abc", f.Header.Metadata["run_id"])
	require.Len(t, f.Tensors, 2)
	for name, want := range tensors {
		assert.Equal(t, want.Shape(), f.Tensors[name].Shape(), name)
		assert.Equal(t, want.Data(), f.Tensors[name].Data(), name)
	}

	// Table is sorted by name.
	assert.Equal(t, "model.0.bias", f.Header.Tensors[0].Name)
	assert.Equal(t, int64(0), f.Header.Tensors[0].Offset)
	assert.Equal(t, int64(8), f.Header.Tensors[1].Offset)

	var st testState
	require.NoError(t, f.DecodeTrainingState(&st))
	assert.Equal(t, testState{Epoch: 2, Iter: 100}, st)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files left behind")
}

func TestLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testTensors(t), WriteOptions{}))
	b := buf.Bytes()

	assert.Equal(t, MagicBytes, string(b[0:4]))
	assert.Equal(t, uint32(FormatVersion), binary.LittleEndian.Uint32(b[4:8]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(b[8:12]))

	headerSize := int64(binary.LittleEndian.Uint64(b[16:24]))
	dataSize := int64(binary.LittleEndian.Uint64(b[24:32]))
	offset := dataOffset(headerSize)
	assert.Zero(t, offset%HeaderAlignment)
	assert.Equal(t, int64(len(b)), offset+dataSize)
	assert.Equal(t, int64(8*bytesPerFloat32), dataSize)

	f, err := Read(bytes.NewReader(b), int64(len(b)), ReaderOptions{})
	require.NoError(t, err)
	assert.Equal(t, KindNetwork, f.Header.Kind)
	assert.True(t, errors.Is(f.DecodeTrainingState(&testState{}), ErrNoTrainingState))
}

func TestReadEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil, WriteOptions{Kind: KindTrainingState, TrainingState: testState{Iter: 1}}))
	f, err := Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()), ReaderOptions{})
	require.NoError(t, err)
	assert.Empty(t, f.Tensors)
	assert.Equal(t, FlagHasTrainingState, binary.LittleEndian.Uint32(buf.Bytes()[8:12]))
}

func TestChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testTensors(t), WriteOptions{}))
	b := buf.Bytes()
	b[len(b)-1] ^= 0xFF

	_, err := Read(bytes.NewReader(b), int64(len(b)), ReaderOptions{})
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
	assert.True(t, errors.Is(err, types.ErrInvalidCheckpoint))

	f, err := Read(bytes.NewReader(b), int64(len(b)), ReaderOptions{SkipChecksumValidation: true})
	require.NoError(t, err)
	assert.Len(t, f.Tensors, 2)
}

func TestReadRejectsBadInput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testTensors(t), WriteOptions{}))
	good := buf.Bytes()

	badMagic := append([]byte(nil), good...)
	copy(badMagic, "BORN")
	_, err := Read(bytes.NewReader(badMagic), int64(len(badMagic)), ReaderOptions{})
	assert.True(t, errors.Is(err, ErrInvalidMagic))

	badVersion := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(badVersion[4:8], 9)
	_, err = Read(bytes.NewReader(badVersion), int64(len(badVersion)), ReaderOptions{})
	assert.True(t, errors.Is(err, ErrUnsupportedVersion))

	truncated := good[:len(good)-4]
	_, err = Read(bytes.NewReader(truncated), int64(len(truncated)), ReaderOptions{})
	assert.True(t, errors.Is(err, types.ErrInvalidCheckpoint))

	_, err = Read(bytes.NewReader(good[:10]), 10, ReaderOptions{})
	assert.True(t, errors.Is(err, types.ErrInvalidCheckpoint))

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.pth"))
	assert.Error(t, err)
}

func TestWriteRejectsInvalidNames(t *testing.T) {
	for _, name := range []string{"", "../weight", "a/b", "a\\b", "a\x00b"} {
		err := Write(&bytes.Buffer{}, map[string]*tensor.RawTensor{name: tensor.Zeros(tensor.Shape{1})}, WriteOptions{})
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr), "name %q", name)
	}
}

// TestValidateTensorOffsets covers overlaps, bounds and negative values.
func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		wantType string
	}{
		{
			name: "adjacent",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: 100},
				{Name: "b", Offset: 100, Size: 100},
			},
			dataSize: 200,
		},
		{
			name: "overlap by one byte",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: 100},
				{Name: "b", Offset: 99, Size: 100},
			},
			dataSize: 200,
			wantType: "offset_overlap",
		},
		{
			name:     "past the end",
			tensors:  []TensorMeta{{Name: "a", Offset: 150, Size: 100}},
			dataSize: 200,
			wantType: "out_of_bounds",
		},
		{
			name:     "negative",
			tensors:  []TensorMeta{{Name: "a", Offset: -4, Size: 4}},
			dataSize: 200,
			wantType: "negative_offset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.dataSize)
			if tt.wantType == "" {
				if err != nil {
					t.Errorf("ValidateTensorOffsets() error = %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T (%v)", err, err)
			}
			if verr.Type != tt.wantType {
				t.Errorf("got %s, want %s", verr.Type, tt.wantType)
			}
		})
	}
}

func TestValidateHeader(t *testing.T) {
	h := &Header{
		Kind:    KindNetwork,
		Tensors: []TensorMeta{{Name: "w", DType: DTypeFloat32, Shape: []int{2}, Offset: 0, Size: 8}},
	}
	require.NoError(t, ValidateHeader(h, 8, ValidationStrict))

	h.Tensors[0].Size = 12
	err := ValidateHeader(h, 16, ValidationNormal)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "size_mismatch", verr.Type)
	assert.NoError(t, ValidateHeader(h, 16, ValidationNone))

	h.Tensors[0] = TensorMeta{Name: "w", DType: "float16", Shape: []int{2}, Size: 4}
	require.True(t, errors.As(ValidateHeader(h, 8, ValidationNormal), &verr))
	assert.Equal(t, "unsupported_dtype", verr.Type)

	h.Tensors = nil
	h.Kind = "optimizer"
	require.True(t, errors.As(ValidateHeader(h, 0, ValidationStrict), &verr))
	assert.Equal(t, "invalid_kind", verr.Type)
}

func TestSafeTensorsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "G.safetensors")
	tensors := testTensors(t)
	require.NoError(t, WriteSafeTensors(path, tensors, map[string]string{"format": "pt"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	headerSize := binary.LittleEndian.Uint64(raw[0:8])
	assert.Equal(t, int64(len(raw)), int64(8+headerSize)+8*bytesPerFloat32)

	f, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pt", f.Header.Metadata["format"])
	for name, want := range tensors {
		assert.Equal(t, want.Data(), f.Tensors[name].Data(), name)
	}
}

func TestSafeTensorsRejectsOtherDTypes(t *testing.T) {
	header := []byte(`{"w":{"dtype":"F16","shape":[2],"data_offsets":[0,4]}}`)
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(header))))
	buf.Write(header)
	buf.Write(make([]byte, 4))

	_, err := ReadSafeTensors(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "unsupported_dtype", verr.Type)
}
