package hash

import (
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
)

func TestID(t *testing.T) {
	tests := []struct {
		name string
		data string
		id   uint64
	}{
		{"empty string", "", 0xef46db3751d8e999},
		{"short string", "test", 0x4fdcca5ddb678139},
		{"another string", "another test string", 0x212a22f593810bec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.id, ID(tt.data))
		})
	}
}

func TestChecksum(t *testing.T) {
	t.Run("parts equal contiguous", func(t *testing.T) {
		whole := []byte("records-and-heap")
		assert.Equal(t, xxhash.Sum64(whole), Checksum(whole[:7], whole[7:]))
	})

	t.Run("empty parts", func(t *testing.T) {
		assert.Equal(t, xxhash.Sum64(nil), Checksum())
		assert.Equal(t, xxhash.Sum64(nil), Checksum(nil, []byte{}))
	})

	t.Run("checksum32 is low bits", func(t *testing.T) {
		data := []byte("H5CF header")
		assert.Equal(t, uint32(xxhash.Sum64(data)), Checksum32(data))
	})
}

func BenchmarkChecksum(b *testing.B) {
	data := make([]byte, 64*1024)
	for i := range data {
		data[i] = byte(i)
	}
	b.SetBytes(int64(len(data)))
	for b.Loop() {
		Checksum(data)
	}
}
