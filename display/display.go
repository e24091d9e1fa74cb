// Package display owns the connector/CRTC/plane property graph and
// drives the atomic modeset + page-flip loop that presents decoded
// pictures: it resolves the connector and CRTC property ids once at
// Open and the plane property ids once at AllocPages, builds a
// persistent restore request and a persistent modeset
// request, and hands out overlay+video buffer-object pages whose own
// atomic requests are merged onto the modeset request for the first
// flip and used bare thereafter.
package display

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	sys "golang.org/x/sys/unix"

	"github.com/tobiasjakobi/mfcplay/drm"
)

// driverState is the construction-order state enum covering the
// original's opened|initialized|buffers_alloced|pages_alloced bit
// flags (buffers_alloced has no counterpart here: source buffers are
// now a bufferpool.Pool concern, not this driver's).
type driverState int

const (
	stateClosed driverState = iota
	stateOpened
	stateInitialized
	statePagesAllocated
)

// VideoInfo is the subset of the decoder's negotiated destination
// geometry the display driver needs to allocate and letterbox pages.
type VideoInfo struct {
	Width, Height         uint32
	CropWidth, CropHeight uint32
	CropLeft, CropTop     int32
	PixelFormat           uint32
	PlaneSize             [2]uint32
}

func (vi VideoInfo) validate() error {
	if vi.Width == 0 || vi.Height == 0 {
		return fmt.Errorf("%w: zero-sized video info", ErrAllocation)
	}
	if vi.CropWidth == 0 || vi.CropHeight == 0 {
		return fmt.Errorf("%w: zero-sized crop rectangle", ErrAllocation)
	}
	if uint32(vi.CropLeft)+vi.CropWidth > vi.Width || uint32(vi.CropTop)+vi.CropHeight > vi.Height {
		return fmt.Errorf("%w: crop rectangle exceeds frame bounds", ErrAllocation)
	}
	return nil
}

// Display drives one DRM/KMS device.
type Display struct {
	fd    uintptr
	state driverState

	props propertyTable

	connectorID, crtcID, crtcIndex uint32
	videoPlaneID, overlayPlaneID   uint32
	modeBlobID                     uint32

	width, height uint32

	restoreReq *drm.AtomicRequest
	modesetReq *drm.AtomicRequest

	pages       []*Page
	curPage     *Page
	flipPending bool

	log zerolog.Logger
}

// Open probes /dev/dri/cardN device nodes in order and keeps the first
// one on which it can enable atomic client capability, enumerate
// resources, and resolve the connector/CRTC/encoder the driver will
// use. When no card qualifies, the returned ErrDeviceUnavailable error
// names the step that failed on the last card probed.
func Open(connType ConnectorType) (*Display, error) {
	var lastErr error
	for i := 0; ; i++ {
		path := fmt.Sprintf("/dev/dri/card%d", i)

		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("%w: no compatible DRM device found (last failure: %v)", ErrDeviceUnavailable, lastErr)
			}
			return nil, fmt.Errorf("%w: no compatible DRM device found", ErrDeviceUnavailable)
		}

		fd := uintptr(f.Fd())

		if err := drm.SetClientCapAtomic(fd); err != nil {
			f.Close()
			lastErr = fmt.Errorf("%s: enable atomic client capability: %w", path, err)
			continue
		}

		res, err := drm.GetResources(fd)
		if err != nil {
			f.Close()
			lastErr = fmt.Errorf("%s: get resources: %w", path, err)
			continue
		}

		sel, conn, err := selectObjects(fd, res, connType)
		if err != nil {
			f.Close()
			lastErr = fmt.Errorf("%s: select objects: %w", path, err)
			continue
		}

		connProps, err := resolveConnectorProps(fd, sel.connectorID)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: resolve connector properties: %v", ErrDeviceUnavailable, err)
		}
		crtcProps, err := resolveCRTCProps(fd, sel.crtcID)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: resolve crtc properties: %v", ErrDeviceUnavailable, err)
		}

		d := &Display{
			fd:          fd,
			state:       stateOpened,
			connectorID: sel.connectorID,
			crtcID:      sel.crtcID,
			crtcIndex:   sel.crtcIndex,
			log:         log.With().Str("component", "display").Logger(),
		}
		d.props.connector = connProps
		d.props.crtc = crtcProps
		_ = conn

		d.log.Info().Str("path", path).Uint32("connector", sel.connectorID).Uint32("crtc", sel.crtcID).Msg("display device opened")
		return d, nil
	}
}

// FD returns the driver's DRM device fd, which bufferpool.New uses to
// allocate the decoder's source buffers against the same device.
func (d *Display) FD() uintptr {
	return d.fd
}

// Close releases the DRM device fd. Matching the original's close(),
// it is a no-op once the driver has been initialized: teardown then
// proceeds through Deinit/FreePages first.
func (d *Display) Close() error {
	if d.state != stateOpened {
		return nil
	}
	err := sys.Close(int(d.fd))
	d.state = stateClosed
	return err
}

// Init selects the display mode (the requested w x h, or the native
// mode when either is zero), blobs it under MODE_ID, and records the
// chosen resolution for later page letterboxing.
func (d *Display) Init(w, h uint32) error {
	if d.state != stateOpened {
		return fmt.Errorf("%w: init requires opened state", ErrWrongState)
	}

	conn, err := drm.GetConnector(d.fd, d.connectorID)
	if err != nil {
		return fmt.Errorf("%w: get connector: %v", ErrDeviceUnavailable, err)
	}

	mode, err := selectMode(conn.Modes, w, h)
	if err != nil {
		return err
	}

	blobID, err := drm.CreatePropertyBlob(d.fd, modeInfoBytes(mode))
	if err != nil {
		return fmt.Errorf("%w: blob mode info: %v", ErrAllocation, err)
	}
	d.modeBlobID = blobID

	d.width = uint32(mode.HDisplay)
	d.height = uint32(mode.VDisplay)

	d.log.Info().Uint32("width", d.width).Uint32("height", d.height).Msg("display mode selected")

	d.state = stateInitialized
	return nil
}

// Deinit releases the mode blob. A no-op once pages have been
// allocated, mirroring the original's deinit() guard.
func (d *Display) Deinit() error {
	if d.state != stateInitialized {
		return nil
	}
	err := drm.DestroyPropertyBlob(d.fd, d.modeBlobID)
	d.state = stateOpened
	return err
}

// AllocPages selects the video and overlay planes, builds the restore
// and modeset atomic requests, allocates numPages pages sized for vi,
// and issues the initial (synchronous) modeset onto the first page.
func (d *Display) AllocPages(numPages uint32, vi VideoInfo) error {
	if d.state != stateInitialized {
		return fmt.Errorf("%w: alloc pages requires initialized state", ErrWrongState)
	}
	if err := vi.validate(); err != nil {
		return err
	}

	drmFourCC, tiling, err := drmFormatFor(vi.PixelFormat)
	if err != nil {
		return err
	}

	videoPlaneID, overlayPlaneID, err := selectPlanes(d.fd, d.crtcIndex, drmFourCC)
	if err != nil {
		return err
	}
	d.videoPlaneID = videoPlaneID
	d.overlayPlaneID = overlayPlaneID

	overlayProps, err := resolvePlaneProps(d.fd, overlayPlaneID)
	if err != nil {
		return fmt.Errorf("%w: resolve overlay plane properties: %v", ErrDeviceUnavailable, err)
	}
	videoProps, err := resolvePlaneProps(d.fd, videoPlaneID)
	if err != nil {
		return fmt.Errorf("%w: resolve video plane properties: %v", ErrDeviceUnavailable, err)
	}
	d.props.overlay = overlayProps
	d.props.video = videoProps

	if err := d.createRestoreRequest(); err != nil {
		return err
	}
	if err := d.createModesetRequest(vi); err != nil {
		return err
	}

	fbSize := vi.PlaneSize[0] + vi.PlaneSize[1]
	fbi := fbInfo{W: vi.Width, H: vi.Height, PixelFormat: drmFourCC, Tiling: tiling}

	d.pages = make([]*Page, 0, numPages)
	for i := uint32(0); i < numPages; i++ {
		p := newPage(d.fd, &d.props)
		p.token = uint64(i)
		if err := p.alloc(fbSize); err != nil {
			d.rollbackPages()
			return err
		}
		if err := p.add(fbi); err != nil {
			d.rollbackPages()
			return err
		}
		if err := p.createRequest(overlayPlaneID, videoPlaneID); err != nil {
			d.rollbackPages()
			return err
		}
		d.pages = append(d.pages, p)
	}

	first := d.GetPage()
	if first == nil {
		d.rollbackPages()
		return fmt.Errorf("%w: no page available for initial modeset", ErrAllocation)
	}

	full := d.modesetReq.Clone()
	full.Merge(first.req)
	if err := full.Commit(d.fd, drm.ModeAtomicAllowModeset, pageToken(first)); err != nil {
		d.rollbackPages()
		return fmt.Errorf("%w: initial atomic modeset failed: %v", ErrAllocation, err)
	}
	d.curPage = first
	first.current = true

	d.state = statePagesAllocated
	d.log.Info().Int("pages", len(d.pages)).Msg("display pages allocated")
	return nil
}

func (d *Display) rollbackPages() {
	for _, p := range d.pages {
		_ = p.free()
	}
	d.pages = nil
}

// FreePages restores the display to its pre-open state via the
// restore request, then frees every page.
func (d *Display) FreePages() error {
	if d.state != statePagesAllocated {
		return nil
	}

	if err := d.restoreReq.Commit(d.fd, drm.ModeAtomicAllowModeset, 0); err != nil {
		d.log.Error().Err(err).Msg("failed to restore display state")
	}

	for _, p := range d.pages {
		_ = p.free()
	}
	d.pages = nil
	d.curPage = nil

	d.state = stateInitialized
	return nil
}

// GetPage returns a free (not currently used) page, marking it used,
// or nil if every page is currently held by the decoder or display.
func (d *Display) GetPage() *Page {
	for _, p := range d.pages {
		if !p.used {
			p.used = true
			return p
		}
	}
	return nil
}

// WaitForFlip blocks until the currently pending flip's event arrives
// and applies its effect: the previously current page's used flag is
// cleared, and the flipped-to page becomes current.
func (d *Display) WaitForFlip() error {
	ev, err := drm.WaitForEvent(d.fd)
	if err != nil {
		return fmt.Errorf("display: wait for flip: %w", err)
	}

	next := d.pageFromToken(ev.UserData)
	if next == nil {
		return fmt.Errorf("display: flip event for unknown page token %d", ev.UserData)
	}

	if d.curPage != nil && d.curPage != next {
		d.curPage.current = false
		d.curPage.used = false
	}
	next.current = true
	d.curPage = next
	d.flipPending = false

	return nil
}

// IssueFlip commits p's atomic request with the page-flip-event flag.
// If a flip is already pending it waits for that one first, so exactly
// one flip is ever in flight. The very first flip after a modeset is
// additionally waited for synchronously inside AllocPages, so by the
// time IssueFlip is called in steady state there is always a previous
// page to release.
func (d *Display) IssueFlip(p *Page) error {
	if p == nil {
		return fmt.Errorf("display: issue flip: nil page")
	}

	if d.flipPending {
		if err := d.WaitForFlip(); err != nil {
			return err
		}
	}

	if err := p.req.Commit(d.fd, drm.ModePageFlipEvent, pageToken(p)); err != nil {
		return fmt.Errorf("display: issue flip: %w", err)
	}
	d.flipPending = true

	return nil
}

// pageToken and pageFromToken map a Page to a small opaque integer
// used as the atomic commit's user-data, and back, so the kernel event
// round-trip never carries a raw Go pointer — only the page's index in
// d.pages, which is stable for the page's whole life.
func pageToken(p *Page) uint64 {
	return p.token
}

func (d *Display) pageFromToken(token uint64) *Page {
	for _, p := range d.pages {
		if p.token == token {
			return p
		}
	}
	return nil
}

// modeInfoBytes copies m's raw bytes for upload as a property blob.
// ModeInfo's field layout mirrors struct drm_mode_modeinfo exactly (the
// same layout already relied on when the ioctl functions pass a
// **ModeInfo pointer directly to the kernel), so a flat byte copy is
// sufficient; no field-by-field marshaling is needed.
func modeInfoBytes(m drm.ModeInfo) []byte {
	const size = unsafe.Sizeof(drm.ModeInfo{})
	b := (*[size]byte)(unsafe.Pointer(&m))
	return append([]byte(nil), b[:]...)
}
