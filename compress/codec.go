package compress

import (
	"fmt"

	"github.com/arloliu/h5col/errs"
	"github.com/arloliu/h5col/format"
)

// Compressor compresses one dataset payload (the record region or the heap).
//
// Memory management:
//   - Returned slice is owned by the caller unless the implementation documents otherwise
//   - Input slice is not modified
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor restores a payload produced by the matching Compressor.
//
// Implementations must be safe for concurrent use: a container file shares one
// codec between every dataset that is opened from it, possibly from several goroutines.
type Decompressor interface {
	// Decompress returns the original bytes or an error if data is corrupted
	// or was produced by another algorithm.
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both compression and decompression capabilities.
type Codec interface {
	Compressor
	Decompressor
}

// CreateCodec creates a new Codec for compressionType.
//
// Parameters:
//   - compressionType: the payload filter
//   - target: description of the payload, used in error messages
//
// Returns:
//   - Codec: codec instance for the specified type
//   - error: ErrUnsupportedCompressor for unknown types
func CreateCodec(compressionType format.CompressionType, target string) (Codec, error) {
	switch compressionType {
	case format.CompressionNone:
		return NewNoOpCompressor(), nil
	case format.CompressionZstd:
		return NewZstdCompressor(), nil
	case format.CompressionS2:
		return NewS2Compressor(), nil
	case format.CompressionLZ4:
		return NewLZ4Compressor(), nil
	case format.CompressionDeflate:
		return NewDeflateCompressor(), nil
	case format.CompressionSnappy:
		return NewSnappyCompressor(), nil
	case format.CompressionBrotli:
		return NewBrotliCompressor(), nil
	default:
		return nil, fmt.Errorf("%w: invalid %s compression %s", errs.ErrUnsupportedCompressor, target, compressionType)
	}
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone:    NewNoOpCompressor(),
	format.CompressionZstd:    NewZstdCompressor(),
	format.CompressionS2:      NewS2Compressor(),
	format.CompressionLZ4:     NewLZ4Compressor(),
	format.CompressionDeflate: NewDeflateCompressor(),
	format.CompressionSnappy:  NewSnappyCompressor(),
	format.CompressionBrotli:  NewBrotliCompressor(),
}

// GetCodec retrieves the shared built-in Codec for compressionType.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("%w: %s (0x%02x)", errs.ErrUnsupportedCompressor, compressionType, uint8(compressionType))
}
