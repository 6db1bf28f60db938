package serialization

import (
	"encoding/json"
	"time"
)

// Format constants.
const (
	MagicBytes       = "SRGN"
	FormatVersion    = 1
	HeaderAlignment  = 64   // Tensor data starts on a 64-byte boundary
	FixedHeaderSize  = 64   // 0x40 bytes before the JSON header
	ChecksumSize     = 32   // SHA-256 checksum size
	ChecksumOffset   = 0x20 // Checksum offset in the fixed header
	DTypeFloat32     = "float32"
	bytesPerFloat32  = 4
	safeTensorsF32   = "F32"
	safeTensorsMeta  = "__metadata__"
	safeTensorsLimit = 100 * 1024 * 1024
)

// Flags of the SRGN container.
const (
	FlagHasMetadata      uint32 = 1 << 0 // custom metadata included
	FlagHasTrainingState uint32 = 1 << 1 // training-state block included
)

// File kinds.
const (
	KindNetwork       = "network"
	KindTrainingState = "training_state"
)

// Header is the JSON header of an SRGN file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	Kind          string            `json:"kind"`                     // KindNetwork or KindTrainingState
	ModelType     string            `json:"model_type,omitempty"`     // Architecture class, e.g. "RRDBNet"
	CreatedAt     time.Time         `json:"created_at"`               // When the file was written
	Tensors       []TensorMeta      `json:"tensors"`                  // Tensor table
	Metadata      map[string]string `json:"metadata,omitempty"`       // Custom metadata
	TrainingState json.RawMessage   `json:"training_state,omitempty"` // Epoch, iteration, optimizer and scheduler scalars
}

// TensorMeta describes a tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`   // e.g. "model.1.sub.0.RDB1.conv1.0.weight"
	DType  string `json:"dtype"`  // always float32
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Bytes from the start of the data section
	Size   int64  `json:"size"`   // Size in bytes
}

// dataOffset returns where the data section starts for a JSON header of
// headerSize bytes.
func dataOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-pos%HeaderAlignment)%HeaderAlignment
}
