// Package compress provides the payload filters of h5col container files.
//
// Every dataset in a container stores two payloads, the fixed-stride record
// region and the variable-length heap, each passed through the dataset's
// filter. Filters are looked up by format.CompressionType:
//
//	codec, err := compress.GetCodec(format.CompressionZstd)
//	records, err := codec.Decompress(stored)
//
// Available filters:
//   - None: payload stored as-is (zero-copy on read)
//   - Zstd: klauspost/compress/zstd with pooled encoders and decoders, or the
//     cgo valyala/gozstd binding when built with -tags gozstd
//   - S2: klauspost/compress/s2 block format
//   - LZ4: pierrec/lz4 block format
//   - Deflate: zlib-wrapped deflate, matching the HDF5 gzip filter
//   - Snappy: golang/snappy block format
//   - Brotli: andybalholm/brotli stream
//
// All built-in codecs are stateless values and safe for concurrent use.
package compress
