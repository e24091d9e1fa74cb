// Package parser implements the byte-level start-code parsers that
// segment a raw compressed elementary stream into discrete frames.
//
// Each codec family shares the same state vector and the same
// frame-boundary rule: a frame begins at the first tag that moves the
// (headers, mains) counter pair off (0, 0), and ends at the next tag
// seen once the end-seeking flag is armed. What differs between
// families is only how a tag is classified as "header" or "main"
// from the bytes following a start code.
package parser

import (
	"errors"
	"fmt"

	"github.com/tobiasjakobi/mfcplay/cursor"
)

// Codec identifies the elementary stream format a Parser segments.
type Codec int

const (
	CodecH264 Codec = iota
	CodecMPEG4
	CodecH263
	CodecXviD
	CodecMPEG2
	CodecMPEG1
	CodecVP8
)

// ErrNoByteParser is returned by New for codecs that carry their own
// container framing (VP8/IVF) rather than an in-band start-code
// sequence.
var ErrNoByteParser = errors.New("parser: codec has no byte-level start-code parser")

// ErrOverflow is returned by Parse when the caller-supplied
// destination is too small to hold the next frame. The cursor is left
// unmodified.
var ErrOverflow = errors.New("parser: output buffer too small for frame")

// tag records which kind of start code was most recently recognized.
type tag int

const (
	tagHeader tag = iota
	tagMain
)

// flag is the parser's sticky bit-set, named after the source's own
// bits so the two stay easy to compare line-for-line.
type flag uint8

const (
	flagGotStart flag = 1 << iota
	flagGotEnd
	flagSeekEnd
	flagShortHeader // MPEG-4 only
)

// state is the shared state vector every concrete parser embeds.
// It holds no heap-allocated fields, so Reset never grows it.
type state struct {
	dfa     int
	lastTag tag

	headersCount int
	mainCount    int

	tmpCodeStart int
	codeStart    int
	codeEnd      int

	carry    [6]byte
	carryLen int

	flags flag
}

func (s *state) reset() {
	*s = state{}
}

// Parser segments a byte-addressable elementary stream into
// compressed frames.
type Parser interface {
	// Parse scans forward from the cursor and copies the next frame
	// (or, when wantHeader is true, the configuration header) into
	// dst. It returns the number of bytes written and whether both a
	// start and end delimiter were found.
	Parse(c *cursor.Cursor, dst []byte, wantHeader bool) (frameSize int, frameFinished bool, err error)

	// Finished reports whether the linked cursor has been exhausted.
	Finished(c *cursor.Cursor) bool

	// Reset rewinds the cursor and zeroes all parser state. Used by
	// codecs (H.263) whose initial header must be fed twice.
	Reset(c *cursor.Cursor)

	// Codec returns the codec this parser instance was built for.
	Codec() Codec
}

// New returns the Parser implementation for codec c, following the
// source's own codec-to-DFA mapping: h263 and xvid both reuse the
// MPEG-4 grammar, mpeg1 reuses the MPEG-2 grammar. VP8 has no
// byte-level parser of its own — it is framed by the IVF container
// instead — so New returns ErrNoByteParser for it.
func New(c Codec) (Parser, error) {
	switch c {
	case CodecH264:
		return &h264Parser{codec: c}, nil
	case CodecMPEG4, CodecH263, CodecXviD:
		return &mpeg4Parser{codec: c}, nil
	case CodecMPEG2, CodecMPEG1:
		return &mpeg2Parser{codec: c}, nil
	case CodecVP8:
		return nil, ErrNoByteParser
	default:
		return nil, fmt.Errorf("parser: unknown codec %d", c)
	}
}

func finished(c *cursor.Cursor) bool {
	return c.EOF()
}

// afterTag runs the frame-boundary bookkeeping shared by every codec's
// DFA, once per scanned byte, after the DFA's own state transition.
// It reports whether the scan loop should stop at this byte.
func (s *state) afterTag(wantHeader bool) bool {
	if wantHeader && s.headersCount >= 1 && s.mainCount == 1 {
		s.codeEnd = s.tmpCodeStart
		s.flags |= flagGotEnd
		return true
	}

	if s.flags&flagGotStart == 0 && s.headersCount == 1 && s.mainCount == 0 {
		s.codeStart = s.tmpCodeStart
		s.flags |= flagGotStart
	}

	if s.flags&flagGotStart == 0 && s.headersCount == 0 && s.mainCount == 1 {
		s.codeStart = s.tmpCodeStart
		s.flags |= flagGotStart | flagSeekEnd
		s.headersCount = 0
		s.mainCount = 0
	}

	if s.flags&flagSeekEnd == 0 && s.headersCount > 0 && s.mainCount == 1 {
		s.flags |= flagSeekEnd
		s.headersCount = 0
		s.mainCount = 0
	}

	if s.flags&flagSeekEnd != 0 && (s.headersCount > 0 || s.mainCount > 0) {
		s.codeEnd = s.tmpCodeStart
		s.flags |= flagGotEnd
		if s.headersCount == 0 {
			s.flags |= flagSeekEnd
		} else {
			s.flags &^= flagSeekEnd
		}
		return true
	}

	return false
}

// emit implements the tail shared by every concrete parser's Parse:
// given the scan results (consumed bytes and the got_start/got_end/
// code_start/code_end/last_tag state already updated by the DFA
// walk), it copies the frame bytes out, rolls the carry-over buffer,
// and advances the cursor.
func (s *state) emit(c *cursor.Cursor, dst []byte, consumed int) (int, bool, error) {
	frameLength := consumed
	if s.flags&flagGotEnd != 0 {
		frameLength = s.codeEnd
	}

	frameSize := 0
	offset := 0

	if s.codeStart >= 0 {
		frameLength -= s.codeStart
		offset = s.codeStart
	} else {
		n := -s.codeStart
		if n > len(dst) {
			return 0, false, ErrOverflow
		}
		copy(dst[:n], s.carry[:n])
		frameSize += n
		dst = dst[n:]
	}

	frameFinished := false

	if s.flags&flagGotStart != 0 {
		if frameLength > len(dst) {
			return 0, false, ErrOverflow
		}

		if !readAt(c, dst[:frameLength], offset) {
			return 0, false, fmt.Errorf("parser: short read while copying frame")
		}
		frameSize += frameLength

		if s.flags&flagGotEnd != 0 {
			s.codeStart = s.codeEnd - consumed
			s.flags |= flagGotStart
			s.flags &^= flagGotEnd
			frameFinished = true

			if s.lastTag == tagMain {
				s.flags |= flagSeekEnd
				s.mainCount = 0
				s.headersCount = 0
			} else {
				s.flags &^= flagSeekEnd
				s.mainCount = 0
				s.headersCount = 1
				s.flags &^= flagShortHeader
			}

			carryLen := consumed - s.codeEnd
			if carryLen > 0 {
				if carryLen > len(s.carry) {
					carryLen = len(s.carry)
				}
				readAt(c, s.carry[:carryLen], s.codeEnd)
			}
			s.carryLen = carryLen
		} else {
			s.codeStart = 0
			frameFinished = false
		}
	}

	s.tmpCodeStart -= consumed
	c.Advance(consumed)

	return frameSize, frameFinished, nil
}

// readAt copies len(dst) bytes starting offset bytes past the
// cursor's current position. It mirrors InputFile::read(dst, sz, o)
// exactly (pos = o + current position).
func readAt(c *cursor.Cursor, dst []byte, offset int) bool {
	return c.PeekAt(offset, dst)
}
