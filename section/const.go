package section

const (
	// Magic identifies an h5col container. It occupies bytes 0-3.
	Magic = "H5CF"

	// Version is the container layout version written at byte 4.
	Version = 1

	// Flag bits (byte 5)
	FlagBigEndian    = 0x01 // 0=little, 1=big
	FlagReservedMask = 0xFE // must be zero
)

// offset and section sizes in the container file
const (
	HeaderSize           = 32         // fixed header size in bytes
	PayloadStart         = HeaderSize // first payload byte when the file holds at least one dataset
	PayloadAlignment     = 8          // payloads start on 8-byte boundaries
	PayloadTripleSize    = 24         // offset, stored length, raw length as uint64
	headerChecksumOffset = 28         // header checksum covers bytes [0, 28)
)
