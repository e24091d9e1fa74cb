// Package pipeline runs the two concurrent loops that drive a decode
// session to completion: a decoder thread that ticks the stateful M2M
// decoder's queue/dequeue step, and a presentation thread that hands
// each decoded picture to the display driver and recycles the page it
// gets back. Both loops stop through a shared atomic flag word rather
// than a channel close, since "finished" and "error" are independent
// conditions either loop can raise and both must observe promptly.
// finished alone never cuts the presentation thread short: it keeps
// dequeuing and flipping whatever pictures are still sitting in the
// destination queue until that queue itself reports drained, so every
// decoded picture reaches the display exactly once. Only error stops
// both loops immediately.
package pipeline

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tobiasjakobi/mfcplay/decoder"
	"github.com/tobiasjakobi/mfcplay/display"
)

const (
	flagFinished uint32 = 1 << 0
	flagError    uint32 = 1 << 1
)

// Display is the subset of *display.Display the pipeline drives.
type Display interface {
	GetPage() *display.Page
	WaitForFlip() error
	IssueFlip(p *display.Page) error
}

// Decoder is the subset of *decoder.Decoder the pipeline drives.
type Decoder interface {
	Run() (decoder.RunState, error)
	QueueDest(page decoder.DestPage) error
	DequeueDest() (page decoder.DestPage, drained bool, err error)
	Stop() error
}

// Pipeline owns the shared stop state between the decoder and
// presentation loops.
type Pipeline struct {
	dec Decoder
	drm Display

	state atomic.Uint32

	log zerolog.Logger
}

// New returns a Pipeline ready to Run. Both the decoder and display
// driver must already be through their respective Init/AllocPages
// steps, and the decoder's minimum destination buffers already queued,
// matching the construction order §4.D/§4.E/§5 require.
func New(dec Decoder, drm Display) *Pipeline {
	return &Pipeline{
		dec: dec,
		drm: drm,
		log: log.With().Str("component", "pipeline").Logger(),
	}
}

// Run drives the decoder loop on the calling goroutine and the
// presentation loop on a second goroutine, returning once both have
// stopped. It returns the first error either loop raised, or nil on a
// clean end-of-stream.
func (p *Pipeline) Run() error {
	done := make(chan error, 1)
	go func() {
		done <- p.presentationLoop()
	}()

	decErr := p.decoderLoop()

	presErr := <-done

	if decErr != nil {
		return decErr
	}
	return presErr
}

func (p *Pipeline) stopped() bool {
	return p.state.Load()&(flagFinished|flagError) != 0
}

func (p *Pipeline) raise(flag uint32) {
	p.state.Or(flag)
}

// decoderLoop ticks the decoder until the parser has consumed every
// frame or an error occurs, matching main()'s top-level switch over
// MFCDecoder::run()'s result.
func (p *Pipeline) decoderLoop() error {
	for !p.stopped() {
		state, err := p.dec.Run()
		if err != nil {
			p.raise(flagError)
			return fmt.Errorf("pipeline: decoder loop: %w", err)
		}

		switch state {
		case decoder.RunFinished:
			p.raise(flagFinished)
		case decoder.RunActive, decoder.RunNop:
			// Keep ticking; RunNop just means nothing completed this
			// pass and the caller should retry on the next scheduling
			// opportunity.
		}
	}

	if p.state.Load()&flagFinished != 0 {
		if err := p.dec.Stop(); err != nil {
			p.log.Error().Err(err).Msg("decoder stop command failed")
		}
	}

	return nil
}

// presentationLoop dequeues each decoded picture, flips it onto the
// display, waits for a page to become free (issuing or waiting on a
// flip as needed), and re-queues that freed page to the decoder,
// matching presentation_thread's dequeue/flip/get_page/queue_dest
// cycle. It only stops short of draining the destination queue on
// flagError: flagFinished alone (the decoder side exhausting its
// input) still leaves pictures sitting in the CAPTURE queue, and
// those must reach the display before this loop exits.
func (p *Pipeline) presentationLoop() error {
	for {
		if p.state.Load()&flagError != 0 {
			return nil
		}

		page, drained, err := p.dec.DequeueDest()
		if err != nil {
			p.raise(flagError)
			return fmt.Errorf("pipeline: presentation loop: dequeue: %w", err)
		}
		if drained {
			p.raise(flagFinished)
			return nil
		}

		dp, ok := page.(*display.Page)
		if !ok {
			p.raise(flagError)
			return fmt.Errorf("pipeline: presentation loop: unexpected page type %T", page)
		}

		if err := p.drm.IssueFlip(dp); err != nil {
			p.raise(flagError)
			return fmt.Errorf("pipeline: presentation loop: issue flip: %w", err)
		}

		var free *display.Page
		for free == nil {
			free = p.drm.GetPage()
			if free == nil {
				if err := p.drm.WaitForFlip(); err != nil {
					p.raise(flagError)
					return fmt.Errorf("pipeline: presentation loop: wait for flip: %w", err)
				}
			}
		}

		if err := p.dec.QueueDest(free); err != nil {
			p.raise(flagError)
			return fmt.Errorf("pipeline: presentation loop: queue dest: %w", err)
		}
	}
}
