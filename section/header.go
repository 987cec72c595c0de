package section

import (
	"fmt"

	"github.com/arloliu/h5col/endian"
	"github.com/arloliu/h5col/errs"
	"github.com/arloliu/h5col/internal/hash"
)

// Header represents the fixed-size header section at the start of a container file.
type Header struct {
	// Version is the layout version.
	Version uint8 // byte offset 4
	// Flag holds the byte order bit.
	Flag Flag // byte offset 5
	// DatasetCount is the number of directory entries.
	DatasetCount uint32 // byte offset 8-11
	// DirectoryOffset is the byte offset to the start of the dataset directory.
	// The directory follows the last payload.
	DirectoryOffset uint64 // byte offset 12-19
	// DirectoryLength is the byte length of the dataset directory.
	DirectoryLength uint64 // byte offset 20-27
	// Checksum is the low 32 bits of the xxHash64 of bytes 0-27. It is
	// computed by Bytes and checked by Parse.
	Checksum uint32 // byte offset 28-31
}

// NewHeader creates a Header for the byte order of engine.
// The dataset count and directory location are set when the writer finishes.
func NewHeader(engine endian.EndianEngine) *Header {
	h := &Header{Version: Version}
	h.Flag.WithEngine(engine)

	return h
}

// Engine returns the byte order engine selected by the header flag.
func (h *Header) Engine() endian.EndianEngine {
	return h.Flag.GetEndianEngine()
}

// Parse parses the header from a byte slice.
//
// Parameters:
//   - data: Byte slice containing header (must be exactly 32 bytes)
//
// Returns:
//   - error: ErrInvalidHeaderSize, ErrInvalidMagicNumber, ErrUnsupportedVersion,
//     ErrHeaderChecksum or a flag validation error
func (h *Header) Parse(data []byte) error {
	if len(data) != HeaderSize {
		return errs.ErrInvalidHeaderSize
	}

	if string(data[0:4]) != Magic {
		return fmt.Errorf("%w: %q", errs.ErrInvalidMagicNumber, data[0:4])
	}

	h.Version = data[4]
	if h.Version != Version {
		return fmt.Errorf("%w: %d", errs.ErrUnsupportedVersion, h.Version)
	}

	h.Flag = Flag(data[5])
	if err := h.Flag.Validate(); err != nil {
		return err
	}

	engine := h.Flag.GetEndianEngine()
	h.DatasetCount = engine.Uint32(data[8:12])
	h.DirectoryOffset = engine.Uint64(data[12:20])
	h.DirectoryLength = engine.Uint64(data[20:28])
	h.Checksum = engine.Uint32(data[28:32])

	if sum := hash.Checksum32(data[:headerChecksumOffset]); sum != h.Checksum {
		return fmt.Errorf("%w: stored 0x%08x, computed 0x%08x", errs.ErrHeaderChecksum, h.Checksum, sum)
	}

	return nil
}

// Bytes serializes the Header into a byte slice and updates Checksum.
func (h *Header) Bytes() []byte {
	b := make([]byte, HeaderSize)

	engine := h.Flag.GetEndianEngine()

	copy(b[0:4], Magic)
	b[4] = h.Version
	b[5] = byte(h.Flag)
	// bytes 6-7 reserved
	engine.PutUint32(b[8:12], h.DatasetCount)
	engine.PutUint64(b[12:20], h.DirectoryOffset)
	engine.PutUint64(b[20:28], h.DirectoryLength)

	h.Checksum = hash.Checksum32(b[:headerChecksumOffset])
	engine.PutUint32(b[28:32], h.Checksum)

	return b
}

// ParseHeader parses a Header from the front of a byte slice.
//
// Parameters:
//   - data: Byte slice containing header (must be at least 32 bytes)
//
// Returns:
//   - Header: Parsed header struct
//   - error: ErrInvalidHeaderSize or any error from Header.Parse
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, errs.ErrInvalidHeaderSize
	}

	h := Header{}
	if err := h.Parse(data[:HeaderSize]); err != nil {
		return Header{}, err
	}

	return h, nil
}
