package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	errorsmod "cosmossdk.io/errors"

	"github.com/born-ml/srgan/internal/tensor"
	"github.com/born-ml/srgan/internal/types"
)

// File is a decoded checkpoint.
type File struct {
	Header  Header
	Tensors map[string]*tensor.RawTensor
}

// DecodeTrainingState unmarshals the training-state block into v.
func (f *File) DecodeTrainingState(v any) error {
	if len(f.Header.TrainingState) == 0 {
		return ErrNoTrainingState
	}
	if err := json.Unmarshal(f.Header.TrainingState, v); err != nil {
		return errorsmod.Wrapf(types.ErrInvalidCheckpoint, "training state: %v", err)
	}
	return nil
}

// ReaderOptions configures how files are checked while reading.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level
}

// ReadFile reads an SRGN checkpoint, or a SafeTensors file when path ends in
// ".safetensors", with strict validation.
func ReadFile(path string) (*File, error) {
	return ReadFileWithOptions(path, ReaderOptions{ValidationLevel: ValidationStrict})
}

// ReadFileWithOptions reads a checkpoint with custom options.
func ReadFileWithOptions(path string, opts ReaderOptions) (*File, error) {
	//nolint:gosec // G304: checkpoint paths come from the options file
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	var f *File
	if strings.EqualFold(filepath.Ext(path), ".safetensors") {
		f, err = ReadSafeTensors(file, stat.Size())
	} else {
		f, err = Read(file, stat.Size(), opts)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Read decodes an SRGN container of size bytes from r.
func Read(r io.ReaderAt, size int64, opts ReaderOptions) (*File, error) {
	fixed := make([]byte, FixedHeaderSize)
	if err := readFullAt(r, fixed, 0); err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidCheckpoint, "failed to read fixed header: %v", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, errorsmod.Wrapf(ErrInvalidMagic, "got %q, expected %q", fixed[0:4], MagicBytes)
	}
	if version := binary.LittleEndian.Uint32(fixed[4:8]); version != FormatVersion {
		return nil, errorsmod.Wrapf(ErrUnsupportedVersion, "got %d, expected %d", version, FormatVersion)
	}
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	var stored [32]byte
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	offset := dataOffset(int64(headerSize))
	if dataSize > uint64(size) || offset+int64(dataSize) > size {
		return nil, errorsmod.Wrapf(types.ErrInvalidCheckpoint,
			"file of %d bytes is too short for header %d and data %d", size, headerSize, dataSize)
	}

	headerBytes := make([]byte, headerSize)
	if err := readFullAt(r, headerBytes, FixedHeaderSize); err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidCheckpoint, "failed to read header JSON: %v", err)
	}
	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidCheckpoint, "failed to parse header JSON: %v", err)
	}
	if err := ValidateHeader(&header, int64(dataSize), opts.ValidationLevel); err != nil {
		return nil, err
	}

	data := make([]byte, dataSize)
	if err := readFullAt(r, data, offset); err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidCheckpoint, "failed to read tensor data: %v", err)
	}
	if !opts.SkipChecksumValidation {
		computed, err := ComputeChecksumReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		if err := ValidateChecksum(computed, stored); err != nil {
			return nil, err
		}
	}

	tensors, err := decodeTensors(header.Tensors, data)
	if err != nil {
		return nil, err
	}
	return &File{Header: header, Tensors: tensors}, nil
}

// readFullAt fills buf from off. A reader may report io.EOF together with a
// full read at the end of its input.
func readFullAt(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

func decodeTensors(metas []TensorMeta, data []byte) (map[string]*tensor.RawTensor, error) {
	tensors := make(map[string]*tensor.RawTensor, len(metas))
	for _, meta := range metas {
		if meta.Offset < 0 || meta.Size < 0 || meta.Offset+meta.Size > int64(len(data)) {
			return nil, &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  meta.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", meta.Offset, meta.Size, len(data)),
			}
		}
		raw, err := tensor.FromBytes(data[meta.Offset:meta.Offset+meta.Size], tensor.Shape(meta.Shape))
		if err != nil {
			return nil, errorsmod.Wrapf(types.ErrInvalidCheckpoint, "tensor %s: %v", meta.Name, err)
		}
		if _, dup := tensors[meta.Name]; dup {
			return nil, &ValidationError{Type: "duplicate_name", Tensor: meta.Name, Details: "listed twice"}
		}
		tensors[meta.Name] = raw
	}
	return tensors, nil
}
