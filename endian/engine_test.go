package endian

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestCheckEndianness(t *testing.T) {
	require := require.New(t)

	result := CheckEndianness()

	var testValue uint16 = 0x0102
	testBytes := (*[2]byte)(unsafe.Pointer(&testValue))

	switch testBytes[0] {
	case 0x01:
		require.Equal(binary.BigEndian, result, "CheckEndianness() should return BigEndian")
	case 0x02:
		require.Equal(binary.LittleEndian, result, "CheckEndianness() should return LittleEndian")
	default:
		require.Failf("Unexpected byte value", "got: %v", testBytes[0])
	}
}

func TestIsNativeEndiannessInverse(t *testing.T) {
	littleEndian := IsNativeLittleEndian()
	bigEndian := IsNativeBigEndian()

	require.NotEqual(t, littleEndian, bigEndian)
	require.True(t, littleEndian || bigEndian)
}

func TestGetNativeEngine(t *testing.T) {
	engine := GetNativeEngine()
	require.True(t, CompareNativeEndian(engine))

	var v uint32 = 0x01020304
	native := (*[4]byte)(unsafe.Pointer(&v))
	require.Equal(t, v, engine.Uint32(native[:]))
}

func TestForFlag(t *testing.T) {
	require.Equal(t, GetLittleEndianEngine(), ForFlag(false))
	require.Equal(t, GetBigEndianEngine(), ForFlag(true))
	require.Equal(t, "little", Name(ForFlag(false)))
	require.Equal(t, "big", Name(ForFlag(true)))
}

func TestUnalignedReads(t *testing.T) {
	// Values placed at odd offsets must be assembled byte by byte.
	buf := make([]byte, 19)
	for _, engine := range []EndianEngine{GetLittleEndianEngine(), GetBigEndianEngine()} {
		engine.PutUint16(buf[1:], 0xBEEF)
		engine.PutUint32(buf[3:], 0xDEADBEEF)
		engine.PutUint64(buf[7:], 0x0102030405060708)

		require.Equal(t, uint16(0xBEEF), engine.Uint16(buf[1:]))
		require.Equal(t, uint32(0xDEADBEEF), engine.Uint32(buf[3:]))
		require.Equal(t, uint64(0x0102030405060708), engine.Uint64(buf[7:]))
	}
}

func TestEngineAppend(t *testing.T) {
	little := GetLittleEndianEngine()
	big := GetBigEndianEngine()

	require.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, little.AppendUint32(nil, 0x01020304))
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, big.AppendUint32(nil, 0x01020304))
}
