package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	errorsmod "cosmossdk.io/errors"

	"github.com/born-ml/srgan/internal/tensor"
	"github.com/born-ml/srgan/internal/types"
)

// SafeTensorHeader represents a tensor in the SafeTensors header.
type SafeTensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// WriteSafeTensors exports tensors as a SafeTensors file, the exchange format
// of the HuggingFace ecosystem.
//
// Format:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header]
// [tensor data: raw F32 bytes]
//
// Tensors are written in alphabetical order by name.
func WriteSafeTensors(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	return writeAtomic(path, func(w io.Writer) error {
		return writeSafeTensors(w, tensors, metadata)
	})
}

func writeSafeTensors(w io.Writer, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]interface{}, len(names)+1)
	if len(metadata) > 0 {
		header[safeTensorsMeta] = metadata
	}
	var offset int64
	for _, name := range names {
		raw := tensors[name]
		shape := make([]int64, len(raw.Shape()))
		for i, dim := range raw.Shape() {
			shape[i] = int64(dim)
		}
		size := int64(raw.NumElements()) * bytesPerFloat32
		header[name] = SafeTensorHeader{
			DType:       safeTensorsF32,
			Shape:       shape,
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, name := range names {
		if _, err := w.Write(tensors[name].Bytes()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}
	return nil
}

// ReadSafeTensors decodes a SafeTensors file of size bytes from r. Only F32
// tensors are supported. The result is reported as a network file.
func ReadSafeTensors(r io.ReaderAt, size int64) (*File, error) {
	var sizeBuf [8]byte
	if err := readFullAt(r, sizeBuf[:], 0); err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidCheckpoint, "failed to read safetensors header size: %v", err)
	}
	headerSize := binary.LittleEndian.Uint64(sizeBuf[:])
	if headerSize > safeTensorsLimit || int64(headerSize)+8 > size {
		return nil, ErrHeaderTooLarge
	}
	headerBytes := make([]byte, headerSize)
	if err := readFullAt(r, headerBytes, 8); err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidCheckpoint, "failed to read safetensors header: %v", err)
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &entries); err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidCheckpoint, "failed to parse safetensors header: %v", err)
	}

	header := Header{Kind: KindNetwork, ModelType: "safetensors"}
	if meta, ok := entries[safeTensorsMeta]; ok {
		if err := json.Unmarshal(meta, &header.Metadata); err != nil {
			return nil, errorsmod.Wrapf(types.ErrInvalidCheckpoint, "safetensors metadata: %v", err)
		}
		delete(entries, safeTensorsMeta)
	}
	for name, entry := range entries {
		var st SafeTensorHeader
		if err := json.Unmarshal(entry, &st); err != nil {
			return nil, errorsmod.Wrapf(types.ErrInvalidCheckpoint, "safetensors entry %s: %v", name, err)
		}
		if st.DType != safeTensorsF32 {
			return nil, &ValidationError{Type: "unsupported_dtype", Tensor: name, Details: st.DType}
		}
		shape := make([]int, len(st.Shape))
		for i, dim := range st.Shape {
			shape[i] = int(dim)
		}
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  DTypeFloat32,
			Shape:  shape,
			Offset: st.DataOffsets[0],
			Size:   st.DataOffsets[1] - st.DataOffsets[0],
		})
	}
	sort.Slice(header.Tensors, func(i, j int) bool { return header.Tensors[i].Name < header.Tensors[j].Name })

	dataSize := size - 8 - int64(headerSize)
	if err := ValidateHeader(&header, dataSize, ValidationStrict); err != nil {
		return nil, err
	}
	data := make([]byte, dataSize)
	if err := readFullAt(r, data, 8+int64(headerSize)); err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidCheckpoint, "failed to read safetensors data: %v", err)
	}
	tensors, err := decodeTensors(header.Tensors, data)
	if err != nil {
		return nil, err
	}
	return &File{Header: header, Tensors: tensors}, nil
}
