package display

import "github.com/tobiasjakobi/mfcplay/drm"

// connectorProps, crtcProps and planeProps are the compile-time,
// named-field property tables the spec's DESIGN NOTES call for in
// place of the original's generic (object_id, property-enum) map:
// every property id this driver will ever write is resolved once (the
// connector and CRTC ids at Open, the plane ids at AllocPages) and
// stored under its own field, so a typo in a property name
// fails at startup instead of silently missing a map entry.
type connectorProps struct {
	CrtcID uint32
}

type crtcProps struct {
	Active uint32
	ModeID uint32
}

type planeProps struct {
	FbID   uint32
	CrtcID uint32
	CrtcX  uint32
	CrtcY  uint32
	CrtcW  uint32
	CrtcH  uint32
	SrcX   uint32
	SrcY   uint32
	SrcW   uint32
	SrcH   uint32
	Zpos   uint32
}

// propertyTable holds the resolved property ids for every object this
// driver touches: the one connector, the one CRTC, and the two planes
// (overlay/primary and video).
type propertyTable struct {
	connector connectorProps
	crtc      crtcProps
	overlay   planeProps
	video     planeProps
}

func resolveConnectorProps(fd uintptr, id uint32) (connectorProps, error) {
	crtcID, err := drm.GetPropertyIDByName(fd, id, drm.ObjectConnector, "CRTC_ID")
	if err != nil {
		return connectorProps{}, err
	}
	return connectorProps{CrtcID: crtcID}, nil
}

func resolveCRTCProps(fd uintptr, id uint32) (crtcProps, error) {
	active, err := drm.GetPropertyIDByName(fd, id, drm.ObjectCRTC, "ACTIVE")
	if err != nil {
		return crtcProps{}, err
	}
	modeID, err := drm.GetPropertyIDByName(fd, id, drm.ObjectCRTC, "MODE_ID")
	if err != nil {
		return crtcProps{}, err
	}
	return crtcProps{Active: active, ModeID: modeID}, nil
}

func resolvePlaneProps(fd uintptr, id uint32) (planeProps, error) {
	names := map[string]*uint32{}
	var p planeProps
	names["FB_ID"] = &p.FbID
	names["CRTC_ID"] = &p.CrtcID
	names["CRTC_X"] = &p.CrtcX
	names["CRTC_Y"] = &p.CrtcY
	names["CRTC_W"] = &p.CrtcW
	names["CRTC_H"] = &p.CrtcH
	names["SRC_X"] = &p.SrcX
	names["SRC_Y"] = &p.SrcY
	names["SRC_W"] = &p.SrcW
	names["SRC_H"] = &p.SrcH
	names["zpos"] = &p.Zpos

	for name, dst := range names {
		id32, err := drm.GetPropertyIDByName(fd, id, drm.ObjectPlane, name)
		if err != nil {
			return planeProps{}, err
		}
		*dst = id32
	}
	return p, nil
}
