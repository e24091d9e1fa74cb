package display

import (
	"fmt"

	"github.com/tobiasjakobi/mfcplay/drm"
)

// createRestoreRequest snapshots the connector's CRTC_ID and the CRTC's
// ACTIVE and MODE_ID values, so FreePages can hand the connector and
// CRTC back to the state it found them in (typically the console's own
// mode), matching ExynosDRM::restore_saved_crtc. Plane properties are
// not snapshotted, so the planes' state is not restored.
func (d *Display) createRestoreRequest() error {
	crtcIDVal, err := drm.GetPropertyValue(d.fd, d.connectorID, drm.ObjectConnector, d.props.connector.CrtcID)
	if err != nil {
		return fmt.Errorf("%w: snapshot connector crtc id: %v", ErrDeviceUnavailable, err)
	}
	activeVal, err := drm.GetPropertyValue(d.fd, d.crtcID, drm.ObjectCRTC, d.props.crtc.Active)
	if err != nil {
		return fmt.Errorf("%w: snapshot crtc active: %v", ErrDeviceUnavailable, err)
	}
	modeIDVal, err := drm.GetPropertyValue(d.fd, d.crtcID, drm.ObjectCRTC, d.props.crtc.ModeID)
	if err != nil {
		return fmt.Errorf("%w: snapshot crtc mode id: %v", ErrDeviceUnavailable, err)
	}

	req := drm.NewAtomicRequest()
	req.AddProperty(d.connectorID, d.props.connector.CrtcID, crtcIDVal)
	req.AddProperty(d.crtcID, d.props.crtc.Active, activeVal)
	req.AddProperty(d.crtcID, d.props.crtc.ModeID, modeIDVal)
	d.restoreReq = req
	return nil
}

// createModesetRequest builds the persistent request that routes the
// connector to the CRTC, activates the CRTC with the selected mode,
// and positions the video and overlay planes. It never touches FB_ID
// (each page's own request supplies that), so it can be cloned and
// merged with any page's request to form one atomic commit.
func (d *Display) createModesetRequest(vi VideoInfo) error {
	req := drm.NewAtomicRequest()

	req.AddProperty(d.connectorID, d.props.connector.CrtcID, uint64(d.crtcID))
	req.AddProperty(d.crtcID, d.props.crtc.Active, 1)
	req.AddProperty(d.crtcID, d.props.crtc.ModeID, uint64(d.modeBlobID))

	videoW, videoH, videoX, videoY := letterbox(d.width, d.height, vi.CropWidth, vi.CropHeight)
	req.AddProperty(d.videoPlaneID, d.props.video.CrtcID, uint64(d.crtcID))
	req.AddProperty(d.videoPlaneID, d.props.video.CrtcX, uint64(videoX))
	req.AddProperty(d.videoPlaneID, d.props.video.CrtcY, uint64(videoY))
	req.AddProperty(d.videoPlaneID, d.props.video.CrtcW, uint64(videoW))
	req.AddProperty(d.videoPlaneID, d.props.video.CrtcH, uint64(videoH))
	req.AddProperty(d.videoPlaneID, d.props.video.SrcX, uint64(vi.CropLeft)<<16)
	req.AddProperty(d.videoPlaneID, d.props.video.SrcY, uint64(vi.CropTop)<<16)
	req.AddProperty(d.videoPlaneID, d.props.video.SrcW, uint64(vi.CropWidth)<<16)
	req.AddProperty(d.videoPlaneID, d.props.video.SrcH, uint64(vi.CropHeight)<<16)
	req.AddProperty(d.videoPlaneID, d.props.video.Zpos, 0)

	ovX, ovY := overlayGeometry(d.width, d.height, overlayWidth, overlayHeight)
	req.AddProperty(d.overlayPlaneID, d.props.overlay.CrtcID, uint64(d.crtcID))
	req.AddProperty(d.overlayPlaneID, d.props.overlay.CrtcX, uint64(ovX))
	req.AddProperty(d.overlayPlaneID, d.props.overlay.CrtcY, uint64(ovY))
	req.AddProperty(d.overlayPlaneID, d.props.overlay.CrtcW, uint64(overlayWidth*2))
	req.AddProperty(d.overlayPlaneID, d.props.overlay.CrtcH, uint64(overlayHeight*2))
	req.AddProperty(d.overlayPlaneID, d.props.overlay.SrcX, 0)
	req.AddProperty(d.overlayPlaneID, d.props.overlay.SrcY, 0)
	req.AddProperty(d.overlayPlaneID, d.props.overlay.SrcW, uint64(overlayWidth)<<16)
	req.AddProperty(d.overlayPlaneID, d.props.overlay.SrcH, uint64(overlayHeight)<<16)
	req.AddProperty(d.overlayPlaneID, d.props.overlay.Zpos, 1)

	d.modesetReq = req
	return nil
}
