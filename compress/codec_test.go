package compress

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"testing"

	"github.com/arloliu/h5col/errs"
	"github.com/arloliu/h5col/format"
	"github.com/stretchr/testify/require"
)

// recordPayload builds a record region like the ones stored in containers:
// a 12-byte stride with a uint32 id, a float32 and 4 padding bytes.
func recordPayload(rows int) []byte {
	buf := make([]byte, rows*12)
	for i := range rows {
		binary.LittleEndian.PutUint32(buf[i*12:], uint32(i))
		binary.LittleEndian.PutUint32(buf[i*12+4:], uint32(i%7)<<20)
	}

	return buf
}

func TestCreateCodec(t *testing.T) {
	for _, ct := range format.CompressionTypes {
		t.Run(ct.String(), func(t *testing.T) {
			codec, err := CreateCodec(ct, "records")
			require.NoError(t, err)
			require.NotNil(t, codec)
		})
	}

	t.Run("Invalid", func(t *testing.T) {
		codec, err := CreateCodec(format.CompressionType(0xFF), "records")
		require.Nil(t, codec)
		require.ErrorIs(t, err, errs.ErrUnsupportedCompressor)
		require.Contains(t, err.Error(), "records")
	})
}

func TestGetCodec(t *testing.T) {
	for _, ct := range format.CompressionTypes {
		codec, err := GetCodec(ct)
		require.NoError(t, err, ct.String())
		require.NotNil(t, codec)
	}

	_, err := GetCodec(format.CompressionType(0))
	require.ErrorIs(t, err, errs.ErrUnsupportedCompressor)
}

func TestAllCodecs_RoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"single byte": {0x42},
		"text":        []byte("hello hello hello hello hello"),
		"records":     recordPayload(1000),
		"random-ish":  bytes.Repeat([]byte{0x13, 0x37, 0xC0, 0xDE, 0x99}, 777),
	}

	for _, ct := range format.CompressionTypes {
		codec, err := GetCodec(ct)
		require.NoError(t, err)

		for name, data := range payloads {
			t.Run(fmt.Sprintf("%s/%s", ct, name), func(t *testing.T) {
				compressed, err := codec.Compress(data)
				require.NoError(t, err)

				restored, err := codec.Decompress(compressed)
				require.NoError(t, err)
				require.Equal(t, data, restored)
			})
		}
	}
}

func TestAllCodecs_EmptyData(t *testing.T) {
	for _, ct := range format.CompressionTypes {
		t.Run(ct.String(), func(t *testing.T) {
			codec, err := GetCodec(ct)
			require.NoError(t, err)

			compressed, err := codec.Compress(nil)
			require.NoError(t, err)
			require.Empty(t, compressed)

			restored, err := codec.Decompress(compressed)
			require.NoError(t, err)
			require.Empty(t, restored)
		})
	}
}

func TestAllCodecs_InvalidData(t *testing.T) {
	data := recordPayload(2048)

	for _, ct := range format.CompressionTypes {
		if ct == format.CompressionNone {
			continue
		}
		t.Run(ct.String(), func(t *testing.T) {
			codec, err := GetCodec(ct)
			require.NoError(t, err)

			compressed, err := codec.Compress(data)
			require.NoError(t, err)

			_, err = codec.Decompress(compressed[:len(compressed)/2])
			require.Error(t, err, "truncated payload must not decode")
		})
	}

	t.Run("BadHeaders", func(t *testing.T) {
		garbage := []byte("this is not compressed data")
		for _, ct := range []format.CompressionType{format.CompressionZstd, format.CompressionDeflate} {
			codec, err := GetCodec(ct)
			require.NoError(t, err)

			_, err = codec.Decompress(garbage)
			require.Error(t, err, ct.String())
		}
	})
}

func TestNoOpCompressor_SharesMemory(t *testing.T) {
	data := []byte("in place")
	c := NewNoOpCompressor()

	out, err := c.Decompress(data)
	require.NoError(t, err)
	require.Same(t, &data[0], &out[0])
}

func TestAllCodecs_ConcurrentUsage(t *testing.T) {
	data := recordPayload(512)

	for _, ct := range format.CompressionTypes {
		t.Run(ct.String(), func(t *testing.T) {
			codec, err := GetCodec(ct)
			require.NoError(t, err)

			compressed, err := codec.Compress(data)
			require.NoError(t, err)

			var wg sync.WaitGroup
			errCh := make(chan error, 16)
			for range 16 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					out, err := codec.Decompress(compressed)
					if err != nil {
						errCh <- err
						return
					}
					if !bytes.Equal(out, data) {
						errCh <- fmt.Errorf("%s: mismatched output", ct)
					}
				}()
			}
			wg.Wait()
			close(errCh)

			for err := range errCh {
				require.NoError(t, err)
			}
		})
	}
}

func BenchmarkDecompress(b *testing.B) {
	data := recordPayload(64 * 1024)

	for _, ct := range format.CompressionTypes {
		codec, err := GetCodec(ct)
		require.NoError(b, err)
		compressed, err := codec.Compress(data)
		require.NoError(b, err)

		b.Run(ct.String(), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			for b.Loop() {
				if _, err := codec.Decompress(compressed); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
