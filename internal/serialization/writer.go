package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/born-ml/srgan/internal/tensor"
)

// WriteOptions configures the header of a written file.
type WriteOptions struct {
	Kind          string            // KindNetwork (default) or KindTrainingState
	ModelType     string            // Architecture class, informational
	Metadata      map[string]string // Custom metadata
	TrainingState any               // Marshalled to JSON into the header when non-nil
}

// Write encodes tensors into w as an SRGN container.
//
// Tensors are written in name order; each must be a float32 tensor with a
// valid name.
func Write(w io.Writer, tensors map[string]*tensor.RawTensor, opts WriteOptions) error {
	header := Header{
		FormatVersion: FormatVersion,
		Kind:          opts.Kind,
		ModelType:     opts.ModelType,
		CreatedAt:     time.Now().UTC(),
		Tensors:       make([]TensorMeta, 0, len(tensors)),
		Metadata:      opts.Metadata,
	}
	if header.Kind == "" {
		header.Kind = KindNetwork
	}

	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if opts.TrainingState != nil {
		raw, err := json.Marshal(opts.TrainingState)
		if err != nil {
			return fmt.Errorf("failed to marshal training state: %w", err)
		}
		header.TrainingState = raw
		flags |= FlagHasTrainingState
	}

	names := make([]string, 0, len(tensors))
	for name := range tensors {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	// Tensor table and data section, in name order.
	var data bytes.Buffer
	for _, name := range names {
		raw := tensors[name]
		b := raw.Bytes()
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  DTypeFloat32,
			Shape:  []int(raw.Shape().Clone()),
			Offset: int64(data.Len()),
			Size:   int64(len(b)),
		})
		data.Write(b)
	}
	checksum := ComputeChecksum(data.Bytes())

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	// 0x0C-0x0F: Reserved (0)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(data.Len()))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}
	headerSize := int64(len(headerJSON))
	if padding := dataOffset(headerSize) - FixedHeaderSize - headerSize; padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}
	if _, err := data.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// WriteFile writes tensors to path, creating its directory. The file is
// written under a temporary name and renamed, so a crash never leaves a
// truncated checkpoint behind.
func WriteFile(path string, tensors map[string]*tensor.RawTensor, opts WriteOptions) error {
	return writeAtomic(path, func(w io.Writer) error {
		return Write(w, tensors, opts)
	})
}

func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name()) // no-op after a successful rename
	}()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
