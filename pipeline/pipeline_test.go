package pipeline

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobiasjakobi/mfcplay/decoder"
	"github.com/tobiasjakobi/mfcplay/display"
)

// fakeDecoder and fakeDisplay stand in for the hardware-facing types so
// the orchestration logic (when to stop, how pages flow between the
// two loops) can be exercised without a real device. output models
// pictures the hardware has already decoded and is waiting to hand
// back via DequeueDest; queued records pages the presentation loop has
// recycled back via QueueDest, separately from output, since a stopped
// decoder does not turn a recycled buffer back into new output.
type fakeDecoder struct {
	mu       sync.Mutex
	runs     []decoder.RunState
	runIdx   int
	output   []decoder.DestPage
	queued   []decoder.DestPage
	stopped  bool
	queueErr error
}

func (f *fakeDecoder) Run() (decoder.RunState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runIdx >= len(f.runs) {
		// Idles rather than re-declaring RunFinished, so a test driving
		// the presentation side to an error has time to raise it before
		// the decoder side decides the stream is done.
		return decoder.RunNop, nil
	}
	s := f.runs[f.runIdx]
	f.runIdx++
	return s, nil
}

func (f *fakeDecoder) QueueDest(page decoder.DestPage) error {
	if f.queueErr != nil {
		return f.queueErr
	}
	f.mu.Lock()
	f.queued = append(f.queued, page)
	f.mu.Unlock()
	return nil
}

func (f *fakeDecoder) DequeueDest() (decoder.DestPage, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.output) == 0 {
		return nil, true, nil
	}
	p := f.output[0]
	f.output = f.output[1:]
	return p, false, nil
}

func (f *fakeDecoder) Stop() error {
	f.stopped = true
	return nil
}

type fakeDisplay struct {
	mu   sync.Mutex
	free []*display.Page
}

func (f *fakeDisplay) GetPage() *display.Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.free) == 0 {
		return nil
	}
	p := f.free[0]
	f.free = f.free[1:]
	return p
}

func (f *fakeDisplay) WaitForFlip() error {
	return nil
}

func (f *fakeDisplay) IssueFlip(p *display.Page) error {
	f.mu.Lock()
	f.free = append(f.free, p)
	f.mu.Unlock()
	return nil
}

func TestPipelineStopsOnDecoderFinished(t *testing.T) {
	dec := &fakeDecoder{runs: []decoder.RunState{decoder.RunActive, decoder.RunFinished}}
	drm := &fakeDisplay{}

	p := New(dec, drm)
	err := p.Run()

	require.NoError(t, err)
	assert.True(t, dec.stopped)
}

func TestPipelineStopsOnDecoderError(t *testing.T) {
	boom := errors.New("boom")
	page := &display.Page{}
	dec := &fakeDecoder{
		output:   []decoder.DestPage{page},
		queueErr: boom,
	}
	drm := &fakeDisplay{}

	p := New(dec, drm)
	err := p.Run()

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestPipelinePresentationDrainsCleanly(t *testing.T) {
	dec := &fakeDecoder{runs: []decoder.RunState{decoder.RunFinished}}
	drm := &fakeDisplay{}

	p := New(dec, drm)
	err := p.Run()

	require.NoError(t, err)
	assert.True(t, p.stopped())
}

// TestPipelineDrainsQueuedPagesAfterDecoderFinished covers the case
// where the decoder side declares the input stream exhausted while
// pictures it already decoded are still sitting in the destination
// queue: the presentation loop must keep dequeuing, flipping, and
// recycling those pages rather than stopping the instant flagFinished
// is raised.
func TestPipelineDrainsQueuedPagesAfterDecoderFinished(t *testing.T) {
	pages := []decoder.DestPage{&display.Page{}, &display.Page{}, &display.Page{}}
	dec := &fakeDecoder{
		runs:   []decoder.RunState{decoder.RunFinished},
		output: append([]decoder.DestPage(nil), pages...),
	}
	drm := &fakeDisplay{}

	p := New(dec, drm)
	err := p.Run()

	require.NoError(t, err)
	assert.True(t, dec.stopped)
	assert.ElementsMatch(t, pages, dec.queued)
}
