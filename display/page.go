package display

import (
	"fmt"

	"github.com/tobiasjakobi/mfcplay/drm"
)

// Overlay plane geometry constants. The overlay plane's region is
// still modeset (centered, pixel-doubled) even though actually drawing
// into it is out of scope (§1 Non-goals: text-overlay rendering).
const (
	overlayWidth  = 128
	overlayHeight = 64
)

// pageState is the construction-order state enum the spec's DESIGN
// NOTES call for in place of the original's allocated|added|
// req_created bit-flag word: a method is valid only from the state its
// lifecycle position requires.
type pageState int

const (
	pageUnallocated pageState = iota
	pageAllocated
	pageFramed
	pageRequested
)

// fbInfo describes the destination framebuffer geometry and format a
// page's video plane is added with.
type fbInfo struct {
	W, H        uint32
	PixelFormat uint32
	Tiling      bool
}

// Page is one overlay+video buffer-object pair, its framebuffer ids,
// and a pre-populated atomic request for presenting it. Pages are
// allocated once by Display and never reallocated; they hold back to
// their owning Display only through the fd they were created against,
// not a raw pointer — the display driver strictly outlives its pages,
// matching the spec's DESIGN NOTES on back-references.
type Page struct {
	fd    uintptr
	props *propertyTable

	state pageState

	// token is this page's atomic-commit user-data value: a stable
	// small integer (its index within Display.pages), never a pointer,
	// so the kernel event round-trip carries nothing Go's GC cares
	// about.
	token uint64

	overlayHandle uint32
	videoHandle   uint32
	overlayFBID   uint32
	videoFBID     uint32

	videoPrimeFD int32

	req *drm.AtomicRequest

	// used is true from the moment GetPage hands this page out until a
	// later page's flip completes and replaces it as the current page;
	// current is true for exactly the page most
	// recently made visible by a completed flip.
	used    bool
	current bool
}

func newPage(fd uintptr, props *propertyTable) *Page {
	return &Page{fd: fd, props: props, videoPrimeFD: -1}
}

// alloc creates the overlay and video GEM buffer objects. size is the
// total byte size of the video buffer's luma and chroma planes together.
func (p *Page) alloc(size uint32) error {
	if p.state != pageUnallocated {
		return fmt.Errorf("%w: page alloc requires unallocated state", ErrWrongState)
	}

	handle, _, _, err := drm.CreateDumbBuffer(p.fd, overlayWidth, overlayHeight, 32)
	if err != nil {
		return fmt.Errorf("%w: overlay buffer: %v", ErrAllocation, err)
	}
	p.overlayHandle = handle

	videoHandle, _, _, err := drm.CreateDumbBuffer(p.fd, size, 1, 8)
	if err != nil {
		_ = drm.DestroyDumbBuffer(p.fd, p.overlayHandle)
		return fmt.Errorf("%w: video buffer: %v", ErrAllocation, err)
	}
	p.videoHandle = videoHandle

	p.state = pageAllocated
	return nil
}

// add registers both buffer objects as framebuffers: the overlay as
// plain ARGB8888, the video plane as NV12/NV21 with the Samsung tiling
// modifier passed through verbatim when fbi.Tiling is set.
func (p *Page) add(fbi fbInfo) error {
	if p.state != pageAllocated {
		return fmt.Errorf("%w: page add requires allocated state", ErrWrongState)
	}

	overlayPitch := uint32(overlayWidth * 4)
	overlayFBID, err := drm.AddFB2(p.fd, overlayWidth, overlayHeight, drm.FormatARGB8888,
		[4]uint32{p.overlayHandle}, [4]uint32{overlayPitch}, [4]uint32{}, [4]uint64{}, false)
	if err != nil {
		return fmt.Errorf("%w: add overlay fb: %v", ErrAllocation, err)
	}
	p.overlayFBID = overlayFBID

	pitch := fbi.W
	modifiers := [4]uint64{}
	if fbi.Tiling {
		modifiers[0] = drm.ModSamsung64x32Tile
		modifiers[1] = drm.ModSamsung64x32Tile
	}

	videoFBID, err := drm.AddFB2(p.fd, fbi.W, fbi.H, fbi.PixelFormat,
		[4]uint32{p.videoHandle, p.videoHandle},
		[4]uint32{pitch, pitch},
		[4]uint32{0, pitch * fbi.H},
		modifiers, fbi.Tiling)
	if err != nil {
		_ = drm.RemoveFB(p.fd, p.overlayFBID)
		return fmt.Errorf("%w: add video fb: %v", ErrAllocation, err)
	}
	p.videoFBID = videoFBID

	p.state = pageFramed
	return nil
}

// createRequest prepares this page's persistent atomic request with
// the overlay and video planes' FB_ID properties pre-populated. Only
// FB_ID is set here; plane geometry lives in the shared modeset
// request built once at Display init.
func (p *Page) createRequest(overlayPlaneID, videoPlaneID uint32) error {
	if p.state != pageFramed {
		return fmt.Errorf("%w: page create request requires framed state", ErrWrongState)
	}

	req := drm.NewAtomicRequest()
	req.AddProperty(overlayPlaneID, p.props.overlay.FbID, uint64(p.overlayFBID))
	req.AddProperty(videoPlaneID, p.props.video.FbID, uint64(p.videoFBID))
	p.req = req

	p.state = pageRequested
	return nil
}

// PrimeFD exports (and caches) the video plane's DMA-BUF fd, which the
// decoder engine queues against its CAPTURE queue.
func (p *Page) PrimeFD() int32 {
	if p.videoPrimeFD >= 0 {
		return p.videoPrimeFD
	}
	fd, err := drm.PrimeHandleToFD(p.fd, p.videoHandle)
	if err != nil {
		return -1
	}
	p.videoPrimeFD = fd
	return fd
}

// free tears down a page in the reverse of alloc->add->createRequest:
// a page whose request was never created has nothing to destroy there,
// a page never added as a framebuffer has no FB to remove, matching
// the spec's "any state flag preventing forward transition also
// prevents the corresponding teardown" invariant.
func (p *Page) free() error {
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if p.state >= pageFramed {
		note(drm.RemoveFB(p.fd, p.videoFBID))
		note(drm.RemoveFB(p.fd, p.overlayFBID))
	}
	if p.state >= pageAllocated {
		note(drm.DestroyDumbBuffer(p.fd, p.videoHandle))
		note(drm.DestroyDumbBuffer(p.fd, p.overlayHandle))
	}
	p.state = pageUnallocated
	return firstErr
}
