// Package decoder drives the stateful multi-planar M2M video decoder:
// it finds the decoder device node by card identifier, negotiates the
// compressed source format and the decoded destination format, and runs
// the single-step queue/dequeue loop that feeds compressed frames in and
// hands decoded pictures to the display driver.
//
// The original decoder tracked construction order with a bit-flag word
// (opened | parser_set | source_set | initialized). This package makes
// that same linear contract explicit as a State enum so that calling a
// method out of order is a checked error instead of a silently-ignored
// flag test.
package decoder

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	sys "golang.org/x/sys/unix"

	"github.com/tobiasjakobi/mfcplay/cursor"
	"github.com/tobiasjakobi/mfcplay/parser"
	"github.com/tobiasjakobi/mfcplay/v4l2"
	"github.com/tobiasjakobi/mfcplay/v4l2mplane"
)

func closeFD(fd uintptr) error {
	return sys.Close(int(fd))
}

// Fixed parameters from the hardware's buffer and plane limits.
const (
	MaxSourceBuffers = 16
	MaxDestBuffers   = 32

	SourcePlaneCount = 1
	DestPlaneCount   = 2

	// DestExtraBufferCount covers one buffer held as the current scan-out
	// page and one ready to become the next scan-out, on top of whatever
	// minimum the hardware itself requires.
	DestExtraBufferCount = 2
)

// State is the decoder's construction/lifecycle state. Methods are only
// valid from the state their lifecycle position requires; calling one
// out of order returns ErrWrongState rather than corrupting decoder
// state.
type State int

const (
	StateClosed State = iota
	StateOpened
	StateParserSet
	StateSourceSet
	StateInitialized
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpened:
		return "opened"
	case StateParserSet:
		return "parser-set"
	case StateSourceSet:
		return "source-set"
	case StateInitialized:
		return "initialized"
	default:
		return "unknown"
	}
}

// ErrWrongState is returned when a method is called outside the state
// its lifecycle position requires.
var ErrWrongState = fmt.Errorf("decoder: wrong lifecycle state")

// RunState is the result of a single Run tick.
type RunState int

const (
	// RunActive means at least one source buffer was queued or dequeued
	// this tick.
	RunActive RunState = iota
	// RunFinished means the parser has consumed every frame in the
	// stream; the caller should keep draining queued buffers but stop
	// feeding new ones.
	RunFinished
	// RunNop means nothing happened this tick; the caller should try
	// again on the next scheduling opportunity.
	RunNop
)

func (s RunState) String() string {
	switch s {
	case RunActive:
		return "active"
	case RunFinished:
		return "finished"
	case RunNop:
		return "nop"
	default:
		return "unknown"
	}
}

// BufferHandle is the subset of a pool-allocated DMA buffer the decoder
// needs for its source (compressed) buffers: a mapped view to write
// parsed frame bytes into and an export fd to queue against the OUTPUT
// queue.
type BufferHandle interface {
	Map() []byte
	ExportFD() int32
	Size() uint32
}

// DestPage is the display driver's page handle, as far as the decoder
// engine needs to know it: something with a DMA-exportable fd that backs
// both the Y and interleaved-chroma planes of one decoded picture.
type DestPage interface {
	PrimeFD() int32
}

// VideoInfo is the negotiated destination geometry and format, stable
// once Init returns.
type VideoInfo struct {
	Width, Height         uint32
	CropWidth, CropHeight uint32
	CropLeft, CropTop     int32
	PixelFormat           uint32
	PlaneSize             [2]uint32
}

type sourceBuffer struct {
	addr  []byte
	index uint32
	fd    int32
	busy  bool
}

// Decoder drives one multi-planar M2M decoder device node.
type Decoder struct {
	fd    uintptr
	state State

	parser parser.Parser
	cursor *cursor.Cursor

	sourceBuffers    []sourceBuffer
	sourceBufferSize uint32

	destBuffers     []DestPage
	destBufferCount uint32
	destPlaneSize   [2]uint32
	destQueueMin    uint32
	destNumQueued   uint32
	destStreaming   bool

	log zerolog.Logger
}

// Open probes /dev/videoN device nodes in order and opens the first one
// whose card identifier matches cardName and which reports both
// multi-planar M2M and streaming support. This mirrors MFCDecoder::open,
// which rejects mismatched cards and devices missing critical caps
// rather than simply taking /dev/video0.
func Open(cardName string) (*Decoder, error) {
	for i := 0; ; i++ {
		path := fmt.Sprintf("/dev/video%d", i)

		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("decoder: open: no device matching card %q found", cardName)
		}

		cap, err := v4l2.GetCapability(uintptr(f.Fd()))
		if err != nil {
			f.Close()
			continue
		}

		if cap.Card != cardName {
			f.Close()
			continue
		}

		caps := cap.GetCapabilities()
		if caps&v4l2.CapVideoMem2MemMPlane == 0 || caps&v4l2.CapStreaming == 0 {
			f.Close()
			return nil, fmt.Errorf("decoder: open: device %s (card %q) is missing required capabilities", path, cardName)
		}

		log.Debug().Str("path", path).Str("card", cap.Card).Str("driver", cap.Driver).Msg("decoder device found")

		return &Decoder{
			fd:    uintptr(f.Fd()),
			state: StateOpened,
			log:   log.With().Str("component", "decoder").Logger(),
		}, nil
	}
}

// Close releases the device fd. It is a no-op if the decoder is already
// closed.
func (d *Decoder) Close() error {
	if d.state == StateClosed {
		return nil
	}
	err := closeFD(d.fd)
	d.state = StateClosed
	return err
}

// SetParser binds a parser already linked to an input cursor. The
// cursor is retained so Run and SetSource can drive Parse calls without
// the caller threading it through every call.
func (d *Decoder) SetParser(p parser.Parser, c *cursor.Cursor) error {
	if d.state != StateOpened {
		return fmt.Errorf("%w: set parser requires state %s, have %s", ErrWrongState, StateOpened, d.state)
	}
	d.parser = p
	d.cursor = c
	d.state = StateParserSet
	return nil
}

// SetSource registers the source (compressed, OUTPUT queue) buffers,
// negotiates the source format against the parser's codec fourcc,
// requests DMA-backed buffers from the device, extracts the
// configuration header from the first buffer, queues it as buffer 0,
// and starts source streaming.
//
// For H.263 the parser is reset after header extraction so that the
// header bytes are re-fed as part of the first full frame, matching the
// quirk of the original decoder.
func (d *Decoder) SetSource(buffers []BufferHandle) error {
	if d.state != StateParserSet {
		return fmt.Errorf("%w: set source requires state %s, have %s", ErrWrongState, StateParserSet, d.state)
	}
	if len(buffers) == 0 {
		return fmt.Errorf("decoder: set source: buffers slice is empty")
	}

	d.sourceBufferSize = 0
	d.sourceBuffers = d.sourceBuffers[:0]

	for i, b := range buffers {
		if d.sourceBufferSize != 0 {
			if d.sourceBufferSize != b.Size() {
				return fmt.Errorf("decoder: set source: buffer %d size mismatch", i)
			}
		} else {
			d.sourceBufferSize = b.Size()
		}

		d.sourceBuffers = append(d.sourceBuffers, sourceBuffer{
			addr:  b.Map(),
			index: uint32(i),
			fd:    b.ExportFD(),
		})
	}

	if err := d.setSourceV4L2(); err != nil {
		return err
	}

	frameSize, _, err := d.parser.Parse(d.cursor, d.sourceBuffers[0].addr, true)
	if err != nil {
		return fmt.Errorf("decoder: set source: failed to extract header from stream: %w", err)
	}
	d.log.Info().Int("size", frameSize).Msg("extracted configuration header")

	if d.parser.Codec() == parser.CodecH263 {
		d.parser.Reset(d.cursor)
	}

	if err := d.qsrc(0, uint32(frameSize)); err != nil {
		return fmt.Errorf("decoder: set source: failed to queue initial source buffer: %w", err)
	}
	d.sourceBuffers[0].busy = true

	if err := v4l2mplane.StreamOn(d.fd, v4l2mplane.BufTypeVideoOutputMPlane); err != nil {
		return fmt.Errorf("decoder: set source: failed to enable source streaming: %w", err)
	}

	d.state = StateSourceSet
	return nil
}

// Init negotiates the destination (decoded, CAPTURE queue) format: the
// kernel chooses dimensions and plane sizes from the parsed header, and
// reports the minimum number of CAPTURE buffers it needs in flight. Init
// requests that minimum plus DestExtraBufferCount (for the current and
// next scan-out pages) and returns the count the kernel granted.
func (d *Decoder) Init() (numPages uint32, vi VideoInfo, err error) {
	if d.state != StateSourceSet {
		return 0, VideoInfo{}, fmt.Errorf("%w: init requires state %s, have %s", ErrWrongState, StateSourceSet, d.state)
	}

	vi, err = d.setDestV4L2()
	if err != nil {
		return 0, VideoInfo{}, err
	}

	d.log.Info().
		Uint32("width", vi.Width).Uint32("height", vi.Height).
		Uint32("crop_w", vi.CropWidth).Uint32("crop_h", vi.CropHeight).
		Int32("crop_left", vi.CropLeft).Int32("crop_top", vi.CropTop).
		Msg("negotiated destination format")

	d.state = StateInitialized
	return d.destBufferCount, vi, nil
}

// Ready reports whether enough destination pages have been queued for
// the hardware to start producing decoded pictures.
func (d *Decoder) Ready() bool {
	if d.state != StateInitialized {
		return false
	}
	return d.destNumQueued >= d.destQueueMin
}

// Run performs one queue/dequeue tick. It fails with an underrun error
// while fewer than the hardware's minimum destination pages are queued;
// otherwise it enables destination streaming on its first tick, feeds
// every non-busy source buffer the next frame from the parser, and, if
// any source buffer is busy, dequeues one completed source buffer. That
// dequeue is a plain VIDIOC_DQBUF on the decoder fd, which Open leaves
// in blocking mode, so it waits until the hardware releases a buffer;
// an ErrWouldBlock result ends the tick without an error.
func (d *Decoder) Run() (RunState, error) {
	if d.state != StateInitialized {
		return RunNop, fmt.Errorf("%w: run requires state %s, have %s", ErrWrongState, StateInitialized, d.state)
	}

	if d.destNumQueued < d.destQueueMin {
		return RunNop, fmt.Errorf("decoder: run: destination queue underrun (%d < %d)", d.destNumQueued, d.destQueueMin)
	}

	if !d.destStreaming {
		if err := v4l2mplane.StreamOn(d.fd, v4l2mplane.BufTypeVideoCaptureMPlane); err != nil {
			return RunNop, fmt.Errorf("decoder: run: failed to enable destination streaming: %w", err)
		}
		d.destStreaming = true
	}

	ret := RunNop

	for i := range d.sourceBuffers {
		sb := &d.sourceBuffers[i]
		if sb.busy {
			continue
		}

		size, frameFinished, err := d.parser.Parse(d.cursor, sb.addr, false)
		if err != nil {
			return RunNop, fmt.Errorf("decoder: run: parse failed: %w", err)
		}
		d.log.Debug().Int("size", size).Msg("parser extracted frame")

		if frameFinished && d.parser.Finished(d.cursor) {
			d.log.Info().Msg("parser has extracted all frames")
			ret = RunFinished
			break
		}

		if err := d.qsrc(sb.index, uint32(size)); err != nil {
			return RunNop, err
		}
		sb.busy = true
		ret = RunActive
	}

	if d.isSrcBusy() {
		index, err := d.dqsrc()
		if errors.Is(err, v4l2mplane.ErrWouldBlock) {
			return ret, nil
		}
		if err != nil {
			return RunNop, err
		}
		d.sourceBuffers[index].busy = false

		if ret != RunFinished {
			ret = RunActive
		}
	}

	return ret, nil
}

// QueueDest assigns page the next free destination-buffer index
// (growing the index table on demand up to the negotiated buffer
// count), queues it with the page's exported DMA fd on both planes —
// the chroma plane at an offset equal to the luma plane's size — and
// increments the queued count.
func (d *Decoder) QueueDest(page DestPage) error {
	index := -1
	for i, p := range d.destBuffers {
		if p == page {
			index = i
			break
		}
	}
	if index < 0 {
		index = len(d.destBuffers)
		d.log.Debug().Int("index", index).Msg("adding new destination buffer")
		d.destBuffers = append(d.destBuffers, page)
	}

	if uint32(index) >= d.destBufferCount {
		return fmt.Errorf("decoder: queue dest: index %d out of bounds (count=%d)", index, d.destBufferCount)
	}

	if err := d.qdst(uint32(index), page.PrimeFD()); err != nil {
		return err
	}
	d.destNumQueued++
	return nil
}

// DequeueDest blocks (within the kernel's own completion semantics)
// until a destination buffer completes, then returns the page that was
// queued at the dequeued index. A bytesused of zero on the first (luma)
// plane means the stream is drained; this is reported as drained==true
// with a nil error rather than as an error, since the hardware does not
// distinguish end-of-stream from an internal flush boundary.
func (d *Decoder) DequeueDest() (page DestPage, drained bool, err error) {
	index, drained, err := d.dqdst()
	if err != nil {
		return nil, false, err
	}

	if int(index) >= len(d.destBuffers) {
		return nil, false, fmt.Errorf("decoder: dequeue dest: unknown buffer index %d dequeued", index)
	}

	d.destNumQueued--
	return d.destBuffers[index], drained, nil
}

// Stop issues a clean decoder-stop command (VIDIOC_DECODER_CMD /
// V4L2_DEC_CMD_STOP), requesting the hardware drain its internal
// pipeline instead of an abrupt stream-off.
func (d *Decoder) Stop() error {
	return v4l2mplane.StopDecoding(d.fd)
}

func (d *Decoder) isSrcBusy() bool {
	for _, sb := range d.sourceBuffers {
		if sb.busy {
			return true
		}
	}
	return false
}

func (d *Decoder) qsrc(index uint32, frameSize uint32) error {
	if int(index) >= len(d.sourceBuffers) {
		return fmt.Errorf("decoder: qsrc: index %d out of bounds", index)
	}
	fds := []int32{d.sourceBuffers[index].fd}
	bytesUsed := []uint32{frameSize}
	dataOffset := []uint32{0}

	if err := v4l2mplane.QueuePlanes(d.fd, v4l2mplane.BufTypeVideoOutputMPlane, index, fds, bytesUsed, dataOffset); err != nil {
		return fmt.Errorf("decoder: qsrc: failed to queue source %d: %w", index, err)
	}
	return nil
}

func (d *Decoder) qdst(index uint32, dmaFD int32) error {
	fds := []int32{dmaFD, dmaFD}
	bytesUsed := []uint32{0, 0}
	dataOffset := []uint32{0, d.destPlaneSize[0]}

	if err := v4l2mplane.QueuePlanes(d.fd, v4l2mplane.BufTypeVideoCaptureMPlane, index, fds, bytesUsed, dataOffset); err != nil {
		return fmt.Errorf("decoder: qdst: failed to queue destination %d: %w", index, err)
	}
	return nil
}

func (d *Decoder) dqsrc() (uint32, error) {
	result, err := v4l2mplane.DequeuePlanes(d.fd, v4l2mplane.BufTypeVideoOutputMPlane, SourcePlaneCount)
	if err != nil {
		return 0, fmt.Errorf("decoder: dqsrc: %w", err)
	}
	return result.Index, nil
}

func (d *Decoder) dqdst() (index uint32, drained bool, err error) {
	result, err := v4l2mplane.DequeuePlanes(d.fd, v4l2mplane.BufTypeVideoCaptureMPlane, DestPlaneCount)
	if err != nil {
		return 0, false, fmt.Errorf("decoder: dqdst: %w", err)
	}
	return result.Index, result.BytesUsed[0] == 0, nil
}

