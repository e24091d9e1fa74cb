package parser

import "github.com/tobiasjakobi/mfcplay/cursor"

// mpeg2 DFA states; the MPEG-2/1 grammar uses the same four states as
// the MPEG-4 DFA, without its short-header branch (MPEG-2 has no
// short-header variant).
const (
	mpeg2NoCode = iota
	mpeg2Code0x1
	mpeg2Code0x2
	mpeg2Code1x1
)

// mpeg2Parser recognizes MPEG-2 (and MPEG-1, which shares its start
// code grammar) sequence/GOP headers and picture start codes.
type mpeg2Parser struct {
	state
	codec Codec
}

func (p *mpeg2Parser) Codec() Codec { return p.codec }

func (p *mpeg2Parser) Finished(c *cursor.Cursor) bool { return finished(c) }

func (p *mpeg2Parser) Reset(c *cursor.Cursor) {
	p.state.reset()
	c.Rewind()
}

func (p *mpeg2Parser) Parse(c *cursor.Cursor, dst []byte, wantHeader bool) (int, bool, error) {
	consumed := 0

	for !c.EOFAt(consumed) {
		in := c.ByteAt(consumed)

		switch p.dfa {
		case mpeg2NoCode:
			if in == 0x0 {
				p.dfa = mpeg2Code0x1
				p.tmpCodeStart = consumed
			}

		case mpeg2Code0x1:
			if in == 0x0 {
				p.dfa = mpeg2Code0x2
			} else {
				p.dfa = mpeg2NoCode
			}

		case mpeg2Code0x2:
			switch {
			case in == 0x1:
				p.dfa = mpeg2Code1x1
			case in == 0x0:
				p.tmpCodeStart++
			default:
				p.dfa = mpeg2NoCode
			}

		case mpeg2Code1x1:
			switch {
			case in == 0xB3 || in == 0xB8:
				p.dfa = mpeg2NoCode
				p.lastTag = tagHeader
				p.headersCount++
			case in == 0x00:
				p.dfa = mpeg2NoCode
				p.lastTag = tagMain
				p.mainCount++
			default:
				p.dfa = mpeg2NoCode
			}
		}

		if p.afterTag(wantHeader) {
			break
		}

		consumed++
	}

	return p.emit(c, dst, consumed)
}
