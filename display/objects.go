package display

import (
	"fmt"

	"github.com/tobiasjakobi/mfcplay/drm"
)

// ConnectorType selects which physical output the driver should drive.
type ConnectorType int

const (
	ConnectorAny ConnectorType = iota
	ConnectorHDMI
	ConnectorVGA
)

func (t ConnectorType) matches(drmType uint32) bool {
	switch t {
	case ConnectorHDMI:
		return drmType == drm.ConnectorHDMIA || drmType == drm.ConnectorHDMIB
	case ConnectorVGA:
		return drmType == drm.ConnectorVGA
	default:
		return true
	}
}

// selectedObjects is the result of the one-time object-selection step
// at Open: the connector/CRTC/encoder graph the driver will drive, plus
// the CRTC's index (needed to test plane.PossibleCRTCs bitmasks).
type selectedObjects struct {
	connectorID uint32
	crtcID      uint32
	crtcIndex   uint32
}

// selectObjects finds the first connector of the requested type that
// is connected and advertises at least one mode, then the first
// encoder on that connector whose possible_crtcs mask names a CRTC
// from res. Failure names which step failed, per the device-unavailable
// error class (§7.2).
func selectObjects(fd uintptr, res drm.Resources, want ConnectorType) (selectedObjects, drm.Connector, error) {
	var chosen drm.Connector
	found := false

	for _, id := range res.ConnectorIDs {
		c, err := drm.GetConnector(fd, id)
		if err != nil {
			continue
		}
		if want.matches(c.Type) && c.Connection == drm.ModeConnected && len(c.Modes) > 0 {
			chosen = c
			found = true
			break
		}
	}
	if !found {
		return selectedObjects{}, drm.Connector{}, fmt.Errorf("%w: no currently active connector found", ErrDeviceUnavailable)
	}

	for _, encID := range chosen.EncoderIDs {
		enc, err := drm.GetEncoder(fd, encID)
		if err != nil {
			continue
		}
		for j, crtcID := range res.CRTCIDs {
			if enc.PossibleCRTCs&(1<<uint(j)) == 0 {
				continue
			}
			return selectedObjects{
				connectorID: chosen.ID,
				crtcID:      crtcID,
				crtcIndex:   uint32(j),
			}, chosen, nil
		}
	}

	return selectedObjects{}, drm.Connector{}, fmt.Errorf("%w: no compatible encoder found", ErrDeviceUnavailable)
}

// selectMode picks the first connector mode matching w x h, or mode 0
// (the native mode, by KMS convention always first) when w or h is
// zero.
func selectMode(modes []drm.ModeInfo, w, h uint32) (drm.ModeInfo, error) {
	if len(modes) == 0 {
		return drm.ModeInfo{}, fmt.Errorf("%w: connector has no modes", ErrDeviceUnavailable)
	}

	if w == 0 || h == 0 {
		return modes[0], nil
	}

	for _, m := range modes {
		if uint32(m.HDisplay) == w && uint32(m.VDisplay) == h {
			return m, nil
		}
	}
	return drm.ModeInfo{}, fmt.Errorf("%w: requested resolution %dx%d not available", ErrDeviceUnavailable, w, h)
}

// selectPlanes finds the video plane (supporting videoFourCC, with
// Samsung tiling honored only as metadata the caller already decided
// on) and the overlay plane (supporting ARGB8888), restricted to
// planes usable by crtcIndex.
func selectPlanes(fd uintptr, crtcIndex uint32, videoFourCC uint32) (videoPlaneID, overlayPlaneID uint32, err error) {
	ids, err := drm.GetPlaneResources(fd)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	for _, id := range ids {
		p, err := drm.GetPlane(fd, id)
		if err != nil {
			continue
		}
		if p.PossibleCRTCs&(1<<crtcIndex) == 0 {
			continue
		}
		for _, f := range p.Formats {
			if f == videoFourCC && videoPlaneID == 0 {
				videoPlaneID = p.ID
			}
			if f == drm.FormatARGB8888 && overlayPlaneID == 0 {
				overlayPlaneID = p.ID
			}
		}
	}

	if overlayPlaneID == 0 {
		return 0, 0, fmt.Errorf("%w: no primary plane with ARGB8888 support found", ErrDeviceUnavailable)
	}
	if videoPlaneID == 0 {
		return 0, 0, fmt.Errorf("%w: no video plane found", ErrDeviceUnavailable)
	}
	return videoPlaneID, overlayPlaneID, nil
}

// letterbox fits a crop_w x crop_h source into a w x h mode, preserving
// aspect ratio, matching add_video_props's aspect-ratio comparison.
func letterbox(w, h, cropW, cropH uint32) (outW, outH, x, y uint32) {
	modeAspect := float64(w) / float64(h)
	videoAspect := float64(cropW) / float64(cropH)

	const epsilon = 0.0001

	switch {
	case abs(modeAspect-videoAspect) < epsilon:
		outW, outH = w, h
	case modeAspect > videoAspect:
		outW = uint32(float64(w) * videoAspect / modeAspect)
		outH = h
	default:
		outW = w
		outH = uint32(float64(h) * modeAspect / videoAspect)
	}

	x = (w - outW) / 2
	y = (h - outH) / 2
	return
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// overlayGeometry centers a pixel-doubled overlayWidth x overlayHeight
// block within w x h, matching add_overlay_props.
func overlayGeometry(w, h, overlayWidth, overlayHeight uint32) (x, y uint32) {
	doubled := overlayWidth * 2
	doubledH := overlayHeight * 2

	if w <= doubled {
		x = 0
	} else {
		x = (w - doubled) / 2
	}
	if h <= doubledH {
		y = 0
	} else {
		y = (h - doubledH) / 2
	}
	return
}
