// Package section defines the low-level binary structures of the h5col container format.
//
// A container packs one or more datasets. Each dataset is a run of fixed-stride
// records plus an optional heap holding the payloads of variable-length values.
// This package handles the fixed header and the dataset directory; the
// container package assembles and reads whole files.
//
// # File Structure
//
//	┌─────────────────────────────────────────────────────────┐
//	│ Header (32 bytes, fixed)                                │
//	├─────────────────────────────────────────────────────────┤
//	│ Payloads (variable, 8-byte aligned)                     │
//	│  - dataset 1 records, dataset 1 heap                    │
//	│  - dataset 2 records, ...                               │
//	├─────────────────────────────────────────────────────────┤
//	│ Directory (variable)                                    │
//	│  - one DatasetEntry per dataset, in insertion order     │
//	└─────────────────────────────────────────────────────────┘
//
// # Header Format
//
//	Bytes  | Field           | Type    | Description
//	-------|-----------------|---------|----------------------------------
//	0-3    | Magic           | [4]byte | "H5CF"
//	4      | Version         | uint8   | 1
//	5      | Flag            | uint8   | bit 0: 0=little-endian, 1=big-endian
//	6-7    | Reserved        |         | zero
//	8-11   | DatasetCount    | uint32  | number of directory entries
//	12-19  | DirectoryOffset | uint64  | byte offset of the directory
//	20-27  | DirectoryLength | uint64  | byte length of the directory
//	28-31  | Checksum        | uint32  | low 32 bits of xxHash64(bytes 0-27)
//
// # Byte Order (Endianness)
//
// All multi-byte header and directory fields, and every scalar inside the
// record and heap payloads, use the byte order selected by the flag. The
// decoder reads records through the matching endian engine:
//
//	engine := header.Flag.GetEndianEngine()
//
// # Thread Safety
//
// All types in this package are plain values and are safe for concurrent reads.
package section
