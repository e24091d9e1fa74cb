package parser

import "github.com/tobiasjakobi/mfcplay/cursor"

// h264 DFA states, named after the source's own enum.
const (
	h264NoCode = iota
	h264Code0x1
	h264Code0x2
	h264Code0x3
	h264Code1x1
	h264CodeSlice
)

// h264Parser recognizes H.264 NAL unit start codes (00 00 01 or the
// four-byte 00 00 00 01 variant) and classifies each NAL by its header
// byte's 5-bit type field.
type h264Parser struct {
	state
	codec Codec
}

func (p *h264Parser) Codec() Codec { return p.codec }

func (p *h264Parser) Finished(c *cursor.Cursor) bool { return finished(c) }

func (p *h264Parser) Reset(c *cursor.Cursor) {
	p.state.reset()
	c.Rewind()
}

func (p *h264Parser) Parse(c *cursor.Cursor, dst []byte, wantHeader bool) (int, bool, error) {
	consumed := 0

	for !c.EOFAt(consumed) {
		in := c.ByteAt(consumed)

		switch p.dfa {
		case h264NoCode:
			if in == 0x0 {
				p.dfa = h264Code0x1
				p.tmpCodeStart = consumed
			}

		case h264Code0x1:
			if in == 0x0 {
				p.dfa = h264Code0x2
			} else {
				p.dfa = h264NoCode
			}

		case h264Code0x2:
			switch {
			case in == 0x1:
				p.dfa = h264Code1x1
			case in == 0x0:
				p.dfa = h264Code0x3
			default:
				p.dfa = h264NoCode
			}

		case h264Code0x3:
			switch {
			case in == 0x1:
				p.dfa = h264Code1x1
			case in == 0x0:
				p.tmpCodeStart++
			default:
				p.dfa = h264NoCode
			}

		case h264Code1x1:
			nalType := in & 0x1F
			switch {
			case nalType == 1 || nalType == 5:
				p.dfa = h264CodeSlice
			case nalType == 6 || nalType == 7 || nalType == 8:
				p.dfa = h264NoCode
				p.lastTag = tagHeader
				p.headersCount++
			default:
				p.dfa = h264NoCode
			}

		case h264CodeSlice:
			if in&0x80 == 0x80 {
				p.mainCount++
				p.lastTag = tagMain
			}
			p.dfa = h264NoCode
		}

		if p.afterTag(wantHeader) {
			break
		}

		consumed++
	}

	return p.emit(c, dst, consumed)
}
