package parser

import "github.com/tobiasjakobi/mfcplay/cursor"

// mpeg4 DFA states.
const (
	mpeg4NoCode = iota
	mpeg4Code0x1
	mpeg4Code0x2
	mpeg4Code1x1
)

// mpeg4Parser recognizes MPEG-4 Part 2 VOP/header start codes and the
// short-header (H.263-derived) variant used by some encoders. It also
// serves H.263 and XviD, which share the same bitstream grammar.
type mpeg4Parser struct {
	state
	codec Codec
}

func (p *mpeg4Parser) Codec() Codec { return p.codec }

func (p *mpeg4Parser) Finished(c *cursor.Cursor) bool { return finished(c) }

func (p *mpeg4Parser) Reset(c *cursor.Cursor) {
	p.state.reset()
	c.Rewind()
}

func (p *mpeg4Parser) Parse(c *cursor.Cursor, dst []byte, wantHeader bool) (int, bool, error) {
	consumed := 0

	for !c.EOFAt(consumed) {
		in := c.ByteAt(consumed)

		switch p.dfa {
		case mpeg4NoCode:
			if in == 0x0 {
				p.dfa = mpeg4Code0x1
				p.tmpCodeStart = consumed
			}

		case mpeg4Code0x1:
			if in == 0x0 {
				p.dfa = mpeg4Code0x2
			} else {
				p.dfa = mpeg4NoCode
			}

		case mpeg4Code0x2:
			switch {
			case in == 0x1:
				p.dfa = mpeg4Code1x1

			case in&0xFC == 0x80:
				// Short header / VOP.
				p.dfa = mpeg4NoCode

				// While seeking a frame's end, ignore a short
				// header unless the current sequence began with one.
				if wantHeader && p.flags&flagShortHeader == 0 {
					p.lastTag = tagHeader
					p.headersCount++
					p.flags |= flagShortHeader
				} else if p.flags&flagSeekEnd == 0 ||
					(p.flags&flagSeekEnd != 0 && p.flags&flagShortHeader != 0) {
					p.lastTag = tagMain
					p.mainCount++
					p.flags |= flagShortHeader
				}

			case in == 0x0:
				p.tmpCodeStart++

			default:
				p.dfa = mpeg4NoCode
			}

		case mpeg4Code1x1:
			top := in & 0xF0
			switch {
			case top == 0x00 || top == 0x10 || top == 0x20 ||
				in == 0xB0 || in == 0xB2 || in == 0xB3 || in == 0xB5:
				p.dfa = mpeg4NoCode
				p.lastTag = tagHeader
				p.headersCount++

			case in == 0xB6:
				p.dfa = mpeg4NoCode
				p.lastTag = tagMain
				p.mainCount++

			default:
				p.dfa = mpeg4NoCode
			}
		}

		if p.afterTag(wantHeader) {
			break
		}

		consumed++
	}

	return p.emit(c, dst, consumed)
}
