// Package cursor provides a read-only, memory-mapped view over a
// compressed elementary stream file.
//
// The whole file is mapped once at Open and never copied; Cursor only
// tracks byte offsets into that mapping. SavePos/RestorePos support
// exactly one level of nesting. The stream parser does not call them:
// it scans ahead with reads relative to the current offset and advances
// the cursor only after copying a frame out, so a scan that overflows
// the caller's destination buffer leaves the cursor where it was.
package cursor

import (
	"fmt"

	"github.com/rs/zerolog/log"
	sys "golang.org/x/sys/unix"
)

// Cursor is a read-only byte cursor over a memory-mapped file.
type Cursor struct {
	fd   int
	data []byte

	offs      int
	savedOffs int
}

// Open maps the file at path read-only and returns a Cursor positioned
// at offset zero.
func Open(path string) (*Cursor, error) {
	fd, err := sys.Open(path, sys.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("cursor open: %s: %w", path, err)
	}

	var stat sys.Stat_t
	if err := sys.Fstat(fd, &stat); err != nil {
		_ = sys.Close(fd)
		return nil, fmt.Errorf("cursor open: stat %s: %w", path, err)
	}
	if stat.Size == 0 {
		_ = sys.Close(fd)
		return nil, fmt.Errorf("cursor open: %s: empty file", path)
	}

	data, err := sys.Mmap(fd, 0, int(stat.Size), sys.PROT_READ, sys.MAP_PRIVATE)
	if err != nil {
		_ = sys.Close(fd)
		return nil, fmt.Errorf("cursor open: mmap %s: %w", path, err)
	}

	log.Debug().Str("path", path).Int64("size", stat.Size).Msg("mapped input stream")

	return &Cursor{fd: fd, data: data}, nil
}

// Close unmaps the file and closes its descriptor.
func (c *Cursor) Close() error {
	if c.data != nil {
		if err := sys.Munmap(c.data); err != nil {
			return fmt.Errorf("cursor close: munmap: %w", err)
		}
		c.data = nil
	}
	return sys.Close(c.fd)
}

// Len returns the total size of the mapped stream in bytes.
func (c *Cursor) Len() int {
	return len(c.data)
}

// Pos returns the current offset.
func (c *Cursor) Pos() int {
	return c.offs
}

// EOF reports whether the current offset has reached the end of the
// mapped region.
func (c *Cursor) EOF() bool {
	return c.offs >= len(c.data)
}

// ReadByte returns the byte at the current offset, or 0 at eof. It does
// not advance the cursor.
func (c *Cursor) ReadByte() byte {
	if c.EOF() {
		return 0x0
	}
	return c.data[c.offs]
}

// PeekAt copies len(dst) bytes starting offsetFromCurrent bytes past the
// current position into dst. It reports false without touching dst if
// the requested range runs past the end of the stream.
func (c *Cursor) PeekAt(offsetFromCurrent int, dst []byte) bool {
	real := c.offs + offsetFromCurrent
	if real < 0 || real+len(dst) > len(c.data) {
		return false
	}
	copy(dst, c.data[real:real+len(dst)])
	return true
}

// ByteAt returns the byte offsetFromCurrent bytes past the current
// position without advancing, or 0 if that position is at or past eof.
func (c *Cursor) ByteAt(offsetFromCurrent int) byte {
	real := c.offs + offsetFromCurrent
	if real < 0 || real >= len(c.data) {
		return 0
	}
	return c.data[real]
}

// EOFAt reports whether offsetFromCurrent bytes past the current
// position lies at or beyond the end of the stream.
func (c *Cursor) EOFAt(offsetFromCurrent int) bool {
	return c.offs+offsetFromCurrent >= len(c.data)
}

// Advance moves the current offset forward by d bytes. Advance never
// clamps to end; callers rely on EOF to detect exhaustion.
func (c *Cursor) Advance(d int) {
	c.offs += d
}

// Rewind resets the current offset to the start of the stream.
func (c *Cursor) Rewind() {
	c.offs = 0
}

// SavePos remembers the current offset for one later RestorePos call.
func (c *Cursor) SavePos() {
	c.savedOffs = c.offs
}

// RestorePos resets the current offset to the last SavePos call.
func (c *Cursor) RestorePos() {
	c.offs = c.savedOffs
}
