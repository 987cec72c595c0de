package section

import (
	"fmt"

	"github.com/arloliu/h5col/endian"
	"github.com/arloliu/h5col/errs"
)

// Flag is the option byte of the container header.
// Bit 0 is the endianness flag, 0 means little-endian, 1 means big-endian.
// Bits 1-7 are reserved and must be 0.
type Flag uint8

// IsBigEndian returns whether the container is written big-endian.
func (f Flag) IsBigEndian() bool {
	return f&FlagBigEndian != 0
}

// IsLittleEndian returns whether the container is written little-endian.
func (f Flag) IsLittleEndian() bool {
	return !f.IsBigEndian()
}

// WithBigEndian sets big-endian byte order.
func (f *Flag) WithBigEndian() {
	*f |= FlagBigEndian
}

// WithLittleEndian sets little-endian byte order.
func (f *Flag) WithLittleEndian() {
	*f &^= FlagBigEndian
}

// WithEngine sets the byte order matching engine.
func (f *Flag) WithEngine(engine endian.EndianEngine) {
	if endian.Name(engine) == "big" {
		f.WithBigEndian()
	} else {
		f.WithLittleEndian()
	}
}

// GetEndianEngine returns the engine for the header, directory and record bytes.
func (f Flag) GetEndianEngine() endian.EndianEngine {
	return endian.ForFlag(f.IsBigEndian())
}

// Validate rejects flags with reserved bits set.
func (f Flag) Validate() error {
	if f&FlagReservedMask != 0 {
		return fmt.Errorf("%w: reserved flag bits 0x%02x", errs.ErrFormat, uint8(f&FlagReservedMask))
	}

	return nil
}
