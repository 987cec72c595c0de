package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// BrotliCompressor provides Brotli compression. It is slow to compress and is
// meant for containers that are written once and archived.
type BrotliCompressor struct{}

var _ Codec = (*BrotliCompressor)(nil)

// NewBrotliCompressor creates a new Brotli compressor.
func NewBrotliCompressor() BrotliCompressor {
	return BrotliCompressor{}
}

// Compress compresses data at brotli.DefaultCompression.
func (c BrotliCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	bw := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := bw.Write(data); err != nil {
		return nil, fmt.Errorf("brotli compression failed: %w", err)
	}
	if err := bw.Close(); err != nil {
		return nil, fmt.Errorf("brotli compression failed: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress decodes a Brotli stream.
func (c BrotliCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("brotli decompression failed: %w", err)
	}

	return out, nil
}
