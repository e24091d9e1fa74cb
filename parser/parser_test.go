package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tobiasjakobi/mfcplay/cursor"
)

func openStream(t *testing.T, data []byte) *cursor.Cursor {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stream.264")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	c, err := cursor.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// h264Stream builds a minimal 3-NAL smoke-test stream: SPS, PPS, then
// one confirmed IDR slice, matching the S1 scenario's byte layout.
func h264Stream() (stream []byte, header []byte) {
	sps := []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0xAA}
	pps := []byte{0x00, 0x00, 0x00, 0x01, 0x68, 0xBB}
	slice := []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0x88, 0xCC, 0xDD}

	stream = append(append(append([]byte{}, sps...), pps...), slice...)
	header = append(append([]byte{}, sps...), pps...)
	return stream, header
}

func TestH264HeaderExtraction(t *testing.T) {
	stream, header := h264Stream()
	c := openStream(t, stream)

	p, err := New(CodecH264)
	require.NoError(t, err)

	dst := make([]byte, 64)
	n, finished, err := p.Parse(c, dst, true)
	require.NoError(t, err)
	require.True(t, finished)
	require.Equal(t, len(header), n)
	require.Equal(t, header, dst[:n])
}

func TestH264FullFrameSequence(t *testing.T) {
	stream, header := h264Stream()
	c := openStream(t, stream)

	p, err := New(CodecH264)
	require.NoError(t, err)

	dst := make([]byte, 64)

	n, finished, err := p.Parse(c, dst, true)
	require.NoError(t, err)
	require.True(t, finished)
	require.Equal(t, header, dst[:n])

	// Next call resumes scanning from the slice NAL onward and flushes
	// the trailing (incomplete) frame at eof.
	n, finished, err = p.Parse(c, dst, false)
	require.NoError(t, err)
	require.False(t, finished)
	require.True(t, p.Finished(c))

	slice := []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0x88, 0xCC, 0xDD}
	require.Equal(t, slice, dst[:n])
}

func TestOverflowLeavesCursorUnchanged(t *testing.T) {
	stream, _ := h264Stream()
	c := openStream(t, stream)

	p, err := New(CodecH264)
	require.NoError(t, err)

	before := c.Pos()
	dst := make([]byte, 2)
	_, _, err = p.Parse(c, dst, true)
	require.ErrorIs(t, err, ErrOverflow)
	require.Equal(t, before, c.Pos())
}

func TestResetReproducesSameOutput(t *testing.T) {
	stream, header := h264Stream()
	c := openStream(t, stream)

	p, err := New(CodecH264)
	require.NoError(t, err)

	dst1 := make([]byte, 64)
	n1, _, err := p.Parse(c, dst1, true)
	require.NoError(t, err)

	p.Reset(c)
	require.Equal(t, 0, c.Pos())

	dst2 := make([]byte, 64)
	n2, _, err := p.Parse(c, dst2, true)
	require.NoError(t, err)

	require.Equal(t, dst1[:n1], dst2[:n2])
	require.Equal(t, header, dst2[:n2])
}

func TestVP8HasNoByteParser(t *testing.T) {
	_, err := New(CodecVP8)
	require.ErrorIs(t, err, ErrNoByteParser)
}

func TestMPEG4ShortHeader(t *testing.T) {
	// 00 00 00 80: a short-header VOP, no long-form header precedes it.
	stream := []byte{0x00, 0x00, 0x00, 0x80, 0x11, 0x22}
	c := openStream(t, stream)

	p, err := New(CodecMPEG4)
	require.NoError(t, err)

	dst := make([]byte, 64)
	_, finished, err := p.Parse(c, dst, true)
	require.NoError(t, err)
	// The stream holds a single start code, so no end delimiter follows
	// it and the call stops at end of stream with the frame unfinished.
	require.False(t, finished)

	mp := p.(*mpeg4Parser)
	require.NotZero(t, mp.flags&flagShortHeader)
	require.Equal(t, tagHeader, mp.lastTag)
}

func TestMPEG2HeaderAndPicture(t *testing.T) {
	// sequence header (B3) then picture start (00).
	seq := []byte{0x00, 0x00, 0x01, 0xB3, 0xAA, 0xBB}
	pic := []byte{0x00, 0x00, 0x01, 0x00, 0xCC}
	stream := append(append([]byte{}, seq...), pic...)

	c := openStream(t, stream)
	p, err := New(CodecMPEG2)
	require.NoError(t, err)

	dst := make([]byte, 64)
	n, finished, err := p.Parse(c, dst, true)
	require.NoError(t, err)
	require.True(t, finished)
	require.Equal(t, seq, dst[:n])
}
