package cursor

import (
	"encoding/binary"
	"fmt"
)

// ivfFileHeaderSize and ivfFrameHeaderSize are the fixed header sizes
// of the IVF container, as used to wrap VP8 elementary streams.
const (
	ivfFileHeaderSize  = 12
	ivfFrameHeaderSize = 12
)

var ivfMagic = [4]byte{'D', 'K', 'I', 'F'}

// IsIVF reports whether the stream begins with an IVF file header.
func (c *Cursor) IsIVF() bool {
	var magic [4]byte
	if !c.PeekAt(0, magic[:]) {
		return false
	}
	return magic == ivfMagic
}

// StripIVFHeader advances past the 12-byte IVF file header if present.
// It is a no-op on a bare elementary stream, so callers can invoke it
// unconditionally for the VP8 codec path.
func (c *Cursor) StripIVFHeader() error {
	if !c.IsIVF() {
		return nil
	}
	if len(c.data)-c.offs < ivfFileHeaderSize {
		return fmt.Errorf("cursor: truncated IVF file header")
	}
	c.Advance(ivfFileHeaderSize)
	return nil
}

// NextIVFFrameSize reads the 12-byte per-frame IVF header at the
// current offset and returns the frame payload size encoded in its
// first 4 bytes. Only that field is honored; the 8-byte PTS field is
// ignored, matching the minimal IVF support named in the external
// interfaces. It advances the cursor past the per-frame header.
func (c *Cursor) NextIVFFrameSize() (uint32, error) {
	var hdr [ivfFrameHeaderSize]byte
	if !c.PeekAt(0, hdr[:]) {
		return 0, fmt.Errorf("cursor: truncated IVF frame header")
	}
	c.Advance(ivfFrameHeaderSize)
	return binary.LittleEndian.Uint32(hdr[0:4]), nil
}
