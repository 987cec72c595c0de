// Package format defines the one-byte enumerations stored in h5col container files.
package format

import "strings"

type CompressionType uint8

const (
	CompressionNone    CompressionType = 0x1 // CompressionNone stores the payload as-is.
	CompressionZstd    CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2      CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4     CompressionType = 0x4 // CompressionLZ4 represents LZ4 block compression.
	CompressionDeflate CompressionType = 0x5 // CompressionDeflate represents zlib-wrapped deflate, the HDF5 gzip filter.
	CompressionSnappy  CompressionType = 0x6 // CompressionSnappy represents Snappy block compression.
	CompressionBrotli  CompressionType = 0x7 // CompressionBrotli represents Brotli compression.
)

// CompressionTypes lists every supported compression type in ascending order.
var CompressionTypes = []CompressionType{
	CompressionNone,
	CompressionZstd,
	CompressionS2,
	CompressionLZ4,
	CompressionDeflate,
	CompressionSnappy,
	CompressionBrotli,
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	case CompressionDeflate:
		return "Deflate"
	case CompressionSnappy:
		return "Snappy"
	case CompressionBrotli:
		return "Brotli"
	default:
		return "Unknown"
	}
}

// Valid reports whether c is a known compression type.
func (c CompressionType) Valid() bool {
	return c >= CompressionNone && c <= CompressionBrotli
}

// ParseCompressionType maps a case-insensitive name ("zstd", "lz4", ...) to its CompressionType.
func ParseCompressionType(name string) (CompressionType, bool) {
	for _, c := range CompressionTypes {
		if strings.EqualFold(c.String(), name) {
			return c, true
		}
	}

	return 0, false
}
