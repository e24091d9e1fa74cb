package drm

// Object type tags, as used in drm_mode_obj_get_properties.obj_type and
// throughout the mode-setting API. These are fixed magic values in the
// kernel UAPI, not enumerated sequentially.
const (
	ObjectConnector uint32 = 0xc0c0c0c0
	ObjectCRTC      uint32 = 0xcccccccc
	ObjectPlane     uint32 = 0xeeeeeeee
)

// Connector type codes (the subset this driver's object-selection step
// recognizes).
const (
	ConnectorHDMIA uint32 = 11
	ConnectorHDMIB uint32 = 12
	ConnectorVGA   uint32 = 1
)

// ConnectionStatus values.
const (
	ModeConnected uint32 = 1
)

// Client capabilities (DRM_CLIENT_CAP_*).
const (
	ClientCapAtomic uint64 = 3
)

// Atomic commit flags.
const (
	ModeAtomicAllowModeset uint32 = 0x0400
	ModePageFlipEvent      uint32 = 0x01
)

// Framebuffer flags.
const (
	ModeFBModifiers uint32 = 1 << 1
)

// DRM_EVENT_FLIP_COMPLETE as delivered in struct drm_event.type by the
// kernel when an atomic commit's page-flip-event flag is satisfied.
const eventFlipComplete uint32 = 0x02

// fourcc builds a DRM_FORMAT_* code from its four ASCII characters, the
// same packing drm_fourcc.h uses.
func fourcc(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

// Pixel formats this pipeline ever requests.
var (
	FormatARGB8888 = fourcc('A', 'R', '2', '4')
	FormatNV12     = fourcc('N', 'V', '1', '2')
	FormatNV21     = fourcc('N', 'V', '2', '1')
)

// fourccMod builds a vendor-namespaced format modifier the way
// fourcc_mod_code() does in drm_fourcc.h: vendor byte in the top 8
// bits, a 56-bit vendor-defined value in the rest.
func fourccMod(vendor uint8, value uint64) uint64 {
	return uint64(vendor)<<56 | (value & 0x00ffffffffffffff)
}

// vendorSamsung is DRM_FORMAT_MOD_VENDOR_SAMSUNG.
const vendorSamsung uint8 = 0x04

// ModSamsung64x32Tile is the 64x32 macroblock tiling modifier the MFC's
// decoded NV12 output uses when the hardware reports a tiled pixel
// format.
var ModSamsung64x32Tile = fourccMod(vendorSamsung, 1)

const (
	displayModeLen = 32
	propNameLen    = 32
)

// ModeInfo mirrors struct drm_mode_modeinfo.
type ModeInfo struct {
	Clock                                        uint32
	HDisplay, HSyncStart, HSyncEnd, HTotal, HSkew uint16
	VDisplay, VSyncStart, VSyncEnd, VTotal, VScan uint16
	VRefresh                                      uint32
	Flags                                         uint32
	Type                                          uint32
	Name                                          [displayModeLen]byte
}

// cardRes mirrors struct drm_mode_card_res.
type cardRes struct {
	FbIDPtr        uint64
	CrtcIDPtr      uint64
	ConnectorIDPtr uint64
	EncoderIDPtr   uint64
	CountFBs       uint32
	CountCRTCs     uint32
	CountConns     uint32
	CountEncoders  uint32
	MinWidth       uint32
	MaxWidth       uint32
	MinHeight      uint32
	MaxHeight      uint32
}

// Resources is the decoded result of GetResources.
type Resources struct {
	FBIDs        []uint32
	CRTCIDs      []uint32
	ConnectorIDs []uint32
	EncoderIDs   []uint32
}

// getConnector mirrors struct drm_mode_get_connector.
type getConnector struct {
	EncodersPtr    uint64
	ModesPtr       uint64
	PropsPtr       uint64
	PropValuesPtr  uint64
	CountModes     uint32
	CountProps     uint32
	CountEncoders  uint32
	EncoderID      uint32
	ConnectorID    uint32
	ConnectorType  uint32
	ConnTypeID     uint32
	Connection     uint32
	MMWidth        uint32
	MMHeight       uint32
	Subpixel       uint32
	Pad            uint32
}

// Connector is the decoded result of GetConnector.
type Connector struct {
	ID            uint32
	Type          uint32
	Connection    uint32
	EncoderIDs    []uint32
	CurrentEncID  uint32
	Modes         []ModeInfo
}

// getEncoder mirrors struct drm_mode_get_encoder.
type getEncoder struct {
	EncoderID      uint32
	EncoderType    uint32
	CrtcID         uint32
	PossibleCRTCs  uint32
	PossibleClones uint32
}

// Encoder is the decoded result of GetEncoder.
type Encoder struct {
	ID            uint32
	PossibleCRTCs uint32
}

// getPlaneRes mirrors struct drm_mode_get_plane_res.
type getPlaneRes struct {
	PlaneIDPtr   uint64
	CountPlanes  uint32
	pad          uint32
}

// getPlane mirrors struct drm_mode_get_plane.
type getPlane struct {
	PlaneID         uint32
	CrtcID          uint32
	FbID            uint32
	PossibleCRTCs   uint32
	GammaSize       uint32
	CountFormats    uint32
	FormatTypePtr   uint64
}

// Plane is the decoded result of GetPlane.
type Plane struct {
	ID            uint32
	PossibleCRTCs uint32
	Formats       []uint32
}

// objGetProperties mirrors struct drm_mode_obj_get_properties.
type objGetProperties struct {
	PropsPtr      uint64
	PropValuesPtr uint64
	CountProps    uint32
	ObjID         uint32
	ObjType       uint32
}

// getProperty mirrors struct drm_mode_get_property.
type getProperty struct {
	ValuesPtr     uint64
	EnumBlobPtr   uint64
	PropID        uint32
	Flags         uint32
	Name          [propNameLen]byte
	CountValues   uint32
	CountEnumBlob uint32
}

// createDumb mirrors struct drm_mode_create_dumb.
type createDumb struct {
	Height uint32
	Width  uint32
	Bpp    uint32
	Flags  uint32
	Handle uint32
	Pitch  uint32
	Size   uint64
}

// mapDumb mirrors struct drm_mode_map_dumb.
type mapDumb struct {
	Handle uint32
	pad    uint32
	Offset uint64
}

// destroyDumb mirrors struct drm_mode_destroy_dumb.
type destroyDumb struct {
	Handle uint32
}

// primeHandle mirrors struct drm_prime_handle.
type primeHandle struct {
	Handle uint32
	Flags  uint32
	FD     int32
}

// fbCmd2 mirrors struct drm_mode_fb_cmd2.
type fbCmd2 struct {
	FbID        uint32
	Width       uint32
	Height      uint32
	PixelFormat uint32
	Flags       uint32
	Handles     [4]uint32
	Pitches     [4]uint32
	Offsets     [4]uint32
	Modifier    [4]uint64
}

// setClientCap mirrors struct drm_set_client_cap.
type setClientCap struct {
	Capability uint64
	Value      uint64
}

// objSetProperty mirrors struct drm_mode_obj_set_property.
type objSetProperty struct {
	Value   uint64
	PropID  uint32
	ObjID   uint32
	ObjType uint32
}

// createBlob mirrors struct drm_mode_create_blob.
type createBlob struct {
	Data   uint64
	Length uint32
	BlobID uint32
}

// destroyBlob mirrors struct drm_mode_destroy_blob.
type destroyBlob struct {
	BlobID uint32
}

// atomicReq mirrors struct drm_mode_atomic.
type atomicReq struct {
	Flags         uint32
	CountObjs     uint32
	ObjsPtr       uint64
	CountPropsPtr uint64
	PropsPtr      uint64
	PropValuesPtr uint64
	Reserved      uint64
	UserData      uint64
}

// eventHeader mirrors struct drm_event: the common prefix of every
// event the kernel writes to the DRM fd.
type eventHeader struct {
	Type   uint32
	Length uint32
}

// eventVblank mirrors struct drm_event_vblank, the payload following
// eventHeader for DRM_EVENT_FLIP_COMPLETE.
type eventVblank struct {
	UserData uint64
	TVSec    uint32
	TVUsec   uint32
	Sequence uint32
	CrtcID   uint32
}
