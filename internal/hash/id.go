// Package hash wraps xxHash64 for dataset-name ids and payload checksums.
package hash

import "github.com/cespare/xxhash/v2"

// ID computes the xxHash64 of a dataset name.
func ID(name string) uint64 {
	return xxhash.Sum64String(name)
}

// Checksum computes the xxHash64 over parts as if they were one contiguous slice.
func Checksum(parts ...[]byte) uint64 {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.Write(p)
	}

	return d.Sum64()
}

// Checksum32 returns the low 32 bits of the xxHash64 of data.
func Checksum32(data []byte) uint32 {
	return uint32(xxhash.Sum64(data)) //nolint:gosec
}
