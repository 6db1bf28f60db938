// Package serialization stores network weights and training states on disk.
//
// Checkpoints use the SRGN container:
//
//	Format Structure:
//	  [0x00: Magic "SRGN"]
//	  [0x04: Version (uint32 LE)]
//	  [0x08: Flags (uint32 LE)]
//	  [0x0C: Reserved]
//	  [0x10: Header Size (uint64 LE)]
//	  [0x18: Data Size (uint64 LE)]
//	  [0x20: SHA-256 of the data section]
//	  [0x40: Header: JSON tensor table, metadata, optional training state]
//	  [Tensor data: little-endian float32, sorted by name, 64-byte aligned]
//
// Network checkpoints are written as <iter>_<label>.pth and training states
// as <iter>.state; both use the same container. The reader also accepts
// SafeTensors files holding F32 tensors, so weights converted from other
// frameworks can be loaded directly.
//
// Example usage:
//
//	err := serialization.WriteFile(path, nn.State(netG), serialization.WriteOptions{
//	    Kind:      serialization.KindNetwork,
//	    ModelType: "RRDBNet",
//	})
//
//	f, err := serialization.ReadFile(path)
//	err = nn.LoadState(netG, f.Tensors, true)
package serialization
