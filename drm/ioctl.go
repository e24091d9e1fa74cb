package drm

import (
	"fmt"
	"unsafe"

	sys "golang.org/x/sys/unix"
)

// ioctl direction/shift constants, matching <asm-generic/ioctl.h>.
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNrShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	ioctlBase     = 0x64 // 'd'
	commandBase   = 0x40
)

func iocEncode(dir, nr, size uintptr) uintptr {
	return dir<<iocDirShift | ioctlBase<<iocTypeShift | nr<<iocNrShift | size<<iocSizeShift
}

func iowr(nr uintptr, size uintptr) uintptr {
	return iocEncode(iocRead|iocWrite, nr, size)
}

func iow(nr uintptr, size uintptr) uintptr {
	return iocEncode(iocWrite, nr, size)
}

// ioctl numbers, each computed from the Go mirror struct's size rather
// than hardcoded, so a struct-layout mistake surfaces as a wrong-size
// ioctl failure instead of a silent field misalignment.
var (
	ioctlSetClientCap   = iow(0x0d, unsafe.Sizeof(setClientCap{}))
	ioctlGetResources   = iowr(0xa0, unsafe.Sizeof(cardRes{}))
	ioctlGetConnector   = iowr(0xa7, unsafe.Sizeof(getConnector{}))
	ioctlGetEncoder     = iowr(0xa6, unsafe.Sizeof(getEncoder{}))
	ioctlGetPlaneRes    = iowr(0xb5, unsafe.Sizeof(getPlaneRes{}))
	ioctlGetPlane       = iowr(0xb6, unsafe.Sizeof(getPlane{}))
	ioctlObjGetProps    = iowr(0xb9, unsafe.Sizeof(objGetProperties{}))
	ioctlObjSetProp     = iowr(0xba, unsafe.Sizeof(objSetProperty{}))
	ioctlGetProperty    = iowr(0xaa, unsafe.Sizeof(getProperty{}))
	ioctlCreateDumb     = iowr(0xb2, unsafe.Sizeof(createDumb{}))
	ioctlMapDumb        = iowr(0xb3, unsafe.Sizeof(mapDumb{}))
	ioctlDestroyDumb    = iowr(0xb4, unsafe.Sizeof(destroyDumb{}))
	ioctlAddFB2         = iowr(0xb8, unsafe.Sizeof(fbCmd2{}))
	ioctlRmFB           = iowr(0xaf, unsafe.Sizeof(uint32(0)))
	ioctlCreatePropBlob = iowr(0xbd, unsafe.Sizeof(createBlob{}))
	ioctlDestroyPropBlob = iowr(0xbe, unsafe.Sizeof(destroyBlob{}))
	ioctlAtomic         = iowr(0xbc, unsafe.Sizeof(atomicReq{}))
	ioctlPrimeHandleToFD = iowr(commandBase+0x2d, unsafe.Sizeof(primeHandle{}))
)

func call(fd uintptr, req uintptr, arg uintptr) error {
	if _, _, errno := sys.Syscall(sys.SYS_IOCTL, fd, req, arg); errno != 0 {
		return errno
	}
	return nil
}

// SetClientCapAtomic enables atomic modesetting (and, as a side effect
// in the kernel, universal-plane reporting) on fd.
func SetClientCapAtomic(fd uintptr) error {
	cap := setClientCap{Capability: ClientCapAtomic, Value: 1}
	if err := call(fd, ioctlSetClientCap, uintptr(unsafe.Pointer(&cap))); err != nil {
		return fmt.Errorf("drm: set client cap atomic: %w", err)
	}
	return nil
}

// GetResources issues DRM_IOCTL_MODE_GETRESOURCES twice: once to learn
// the object counts, once (with caller-sized buffers) to fetch the IDs.
func GetResources(fd uintptr) (Resources, error) {
	var res cardRes
	if err := call(fd, ioctlGetResources, uintptr(unsafe.Pointer(&res))); err != nil {
		return Resources{}, fmt.Errorf("drm: get resources: %w", err)
	}

	fbs := make([]uint32, res.CountFBs)
	crtcs := make([]uint32, res.CountCRTCs)
	conns := make([]uint32, res.CountConns)
	encs := make([]uint32, res.CountEncoders)

	if len(fbs) > 0 {
		res.FbIDPtr = uint64(uintptr(unsafe.Pointer(&fbs[0])))
	}
	if len(crtcs) > 0 {
		res.CrtcIDPtr = uint64(uintptr(unsafe.Pointer(&crtcs[0])))
	}
	if len(conns) > 0 {
		res.ConnectorIDPtr = uint64(uintptr(unsafe.Pointer(&conns[0])))
	}
	if len(encs) > 0 {
		res.EncoderIDPtr = uint64(uintptr(unsafe.Pointer(&encs[0])))
	}

	if err := call(fd, ioctlGetResources, uintptr(unsafe.Pointer(&res))); err != nil {
		return Resources{}, fmt.Errorf("drm: get resources: %w", err)
	}

	return Resources{FBIDs: fbs, CRTCIDs: crtcs, ConnectorIDs: conns, EncoderIDs: encs}, nil
}

// GetConnector issues DRM_IOCTL_MODE_GETCONNECTOR twice, the same
// count-then-fetch pattern as GetResources, for a single connector ID.
func GetConnector(fd uintptr, id uint32) (Connector, error) {
	gc := getConnector{ConnectorID: id}
	if err := call(fd, ioctlGetConnector, uintptr(unsafe.Pointer(&gc))); err != nil {
		return Connector{}, fmt.Errorf("drm: get connector %d: %w", id, err)
	}

	encs := make([]uint32, gc.CountEncoders)
	modes := make([]ModeInfo, gc.CountModes)

	if len(encs) > 0 {
		gc.EncodersPtr = uint64(uintptr(unsafe.Pointer(&encs[0])))
	}
	if len(modes) > 0 {
		gc.ModesPtr = uint64(uintptr(unsafe.Pointer(&modes[0])))
	}
	gc.ConnectorID = id

	if err := call(fd, ioctlGetConnector, uintptr(unsafe.Pointer(&gc))); err != nil {
		return Connector{}, fmt.Errorf("drm: get connector %d: %w", id, err)
	}

	return Connector{
		ID:           gc.ConnectorID,
		Type:         gc.ConnectorType,
		Connection:   gc.Connection,
		EncoderIDs:   encs,
		CurrentEncID: gc.EncoderID,
		Modes:        modes,
	}, nil
}

// GetEncoder issues DRM_IOCTL_MODE_GETENCODER.
func GetEncoder(fd uintptr, id uint32) (Encoder, error) {
	ge := getEncoder{EncoderID: id}
	if err := call(fd, ioctlGetEncoder, uintptr(unsafe.Pointer(&ge))); err != nil {
		return Encoder{}, fmt.Errorf("drm: get encoder %d: %w", id, err)
	}
	return Encoder{ID: ge.EncoderID, PossibleCRTCs: ge.PossibleCRTCs}, nil
}

// GetPlaneResources issues DRM_IOCTL_MODE_GETPLANERESOURCES twice.
func GetPlaneResources(fd uintptr) ([]uint32, error) {
	var pr getPlaneRes
	if err := call(fd, ioctlGetPlaneRes, uintptr(unsafe.Pointer(&pr))); err != nil {
		return nil, fmt.Errorf("drm: get plane resources: %w", err)
	}

	ids := make([]uint32, pr.CountPlanes)
	if len(ids) > 0 {
		pr.PlaneIDPtr = uint64(uintptr(unsafe.Pointer(&ids[0])))
	}

	if err := call(fd, ioctlGetPlaneRes, uintptr(unsafe.Pointer(&pr))); err != nil {
		return nil, fmt.Errorf("drm: get plane resources: %w", err)
	}
	return ids, nil
}

// GetPlane issues DRM_IOCTL_MODE_GETPLANE twice.
func GetPlane(fd uintptr, id uint32) (Plane, error) {
	gp := getPlane{PlaneID: id}
	if err := call(fd, ioctlGetPlane, uintptr(unsafe.Pointer(&gp))); err != nil {
		return Plane{}, fmt.Errorf("drm: get plane %d: %w", id, err)
	}

	formats := make([]uint32, gp.CountFormats)
	if len(formats) > 0 {
		gp.FormatTypePtr = uint64(uintptr(unsafe.Pointer(&formats[0])))
	}
	gp.PlaneID = id

	if err := call(fd, ioctlGetPlane, uintptr(unsafe.Pointer(&gp))); err != nil {
		return Plane{}, fmt.Errorf("drm: get plane %d: %w", id, err)
	}

	return Plane{ID: gp.PlaneID, PossibleCRTCs: gp.PossibleCRTCs, Formats: formats}, nil
}

// GetPropertyIDByName resolves the property-id for (objID, objType)
// whose name matches propName. This is the per-(object,property) probe
// the display package's property-id table is built from once at Open.
func GetPropertyIDByName(fd uintptr, objID, objType uint32, propName string) (uint32, error) {
	gop := objGetProperties{ObjID: objID, ObjType: objType}
	if err := call(fd, ioctlObjGetProps, uintptr(unsafe.Pointer(&gop))); err != nil {
		return 0, fmt.Errorf("drm: object get properties %d: %w", objID, err)
	}

	ids := make([]uint32, gop.CountProps)
	values := make([]uint64, gop.CountProps)
	if len(ids) > 0 {
		gop.PropsPtr = uint64(uintptr(unsafe.Pointer(&ids[0])))
		gop.PropValuesPtr = uint64(uintptr(unsafe.Pointer(&values[0])))
	}

	if err := call(fd, ioctlObjGetProps, uintptr(unsafe.Pointer(&gop))); err != nil {
		return 0, fmt.Errorf("drm: object get properties %d: %w", objID, err)
	}

	for _, id := range ids {
		gp := getProperty{PropID: id}
		if err := call(fd, ioctlGetProperty, uintptr(unsafe.Pointer(&gp))); err != nil {
			continue
		}
		if cString(gp.Name[:]) == propName {
			return id, nil
		}
	}

	return 0, fmt.Errorf("drm: object %d has no property named %q", objID, propName)
}

// GetPropertyValue returns (object, propID)'s current value, used to
// populate the restore request's value snapshot.
func GetPropertyValue(fd uintptr, objID, objType, propID uint32) (uint64, error) {
	gop := objGetProperties{ObjID: objID, ObjType: objType}
	if err := call(fd, ioctlObjGetProps, uintptr(unsafe.Pointer(&gop))); err != nil {
		return 0, fmt.Errorf("drm: object get properties %d: %w", objID, err)
	}

	ids := make([]uint32, gop.CountProps)
	values := make([]uint64, gop.CountProps)
	if len(ids) > 0 {
		gop.PropsPtr = uint64(uintptr(unsafe.Pointer(&ids[0])))
		gop.PropValuesPtr = uint64(uintptr(unsafe.Pointer(&values[0])))
	}

	if err := call(fd, ioctlObjGetProps, uintptr(unsafe.Pointer(&gop))); err != nil {
		return 0, fmt.Errorf("drm: object get properties %d: %w", objID, err)
	}

	for i, id := range ids {
		if id == propID {
			return values[i], nil
		}
	}
	return 0, fmt.Errorf("drm: object %d has no property id %d", objID, propID)
}

// CreatePropertyBlob uploads data (a ModeInfo, in this driver) as a
// DRM property blob and returns its blob id, used as a MODE_ID value.
func CreatePropertyBlob(fd uintptr, data []byte) (uint32, error) {
	cb := createBlob{Data: uint64(uintptr(unsafe.Pointer(&data[0]))), Length: uint32(len(data))}
	if err := call(fd, ioctlCreatePropBlob, uintptr(unsafe.Pointer(&cb))); err != nil {
		return 0, fmt.Errorf("drm: create property blob: %w", err)
	}
	return cb.BlobID, nil
}

// DestroyPropertyBlob frees a blob created by CreatePropertyBlob.
func DestroyPropertyBlob(fd uintptr, id uint32) error {
	db := destroyBlob{BlobID: id}
	if err := call(fd, ioctlDestroyPropBlob, uintptr(unsafe.Pointer(&db))); err != nil {
		return fmt.Errorf("drm: destroy property blob %d: %w", id, err)
	}
	return nil
}

// CreateDumbBuffer allocates a linear dumb GEM buffer of width x height
// pixels at the caller's bpp. This driver uses 32 bpp for ARGB8888
// overlay pixels, and 8 bpp with width=size in bytes and height=1 for
// raw byte-addressed backing stores (NV12 video pages, source buffers).
func CreateDumbBuffer(fd uintptr, width, height, bpp uint32) (handle uint32, pitch uint32, size uint64, err error) {
	cd := createDumb{Width: width, Height: height, Bpp: bpp}
	if err := call(fd, ioctlCreateDumb, uintptr(unsafe.Pointer(&cd))); err != nil {
		return 0, 0, 0, fmt.Errorf("drm: create dumb buffer: %w", err)
	}
	return cd.Handle, cd.Pitch, cd.Size, nil
}

// MapDumbBuffer resolves the fake mmap offset for a dumb-buffer handle,
// which the caller then passes to unix.Mmap against the DRM fd.
func MapDumbBuffer(fd uintptr, handle uint32) (uint64, error) {
	md := mapDumb{Handle: handle}
	if err := call(fd, ioctlMapDumb, uintptr(unsafe.Pointer(&md))); err != nil {
		return 0, fmt.Errorf("drm: map dumb buffer: %w", err)
	}
	return md.Offset, nil
}

// DestroyDumbBuffer frees a dumb GEM buffer's kernel handle.
func DestroyDumbBuffer(fd uintptr, handle uint32) error {
	dd := destroyDumb{Handle: handle}
	if err := call(fd, ioctlDestroyDumb, uintptr(unsafe.Pointer(&dd))); err != nil {
		return fmt.Errorf("drm: destroy dumb buffer: %w", err)
	}
	return nil
}

// PrimeHandleToFD exports a GEM handle as a shareable DMA-BUF file
// descriptor, independent of the handle's own lifetime.
func PrimeHandleToFD(fd uintptr, handle uint32) (int32, error) {
	const cloExec = 0x1 // DRM_CLOEXEC / O_CLOEXEC
	ph := primeHandle{Handle: handle, Flags: cloExec}
	if err := call(fd, ioctlPrimeHandleToFD, uintptr(unsafe.Pointer(&ph))); err != nil {
		return -1, fmt.Errorf("drm: prime handle to fd: %w", err)
	}
	return ph.FD, nil
}

// AddFB2 registers a (possibly tiled, possibly multi-planar) GEM
// buffer as a framebuffer object and returns its FB id.
func AddFB2(fd uintptr, width, height, pixelFormat uint32, handles, pitches, offsets [4]uint32, modifiers [4]uint64, tiling bool) (uint32, error) {
	fb := fbCmd2{
		Width: width, Height: height, PixelFormat: pixelFormat,
		Handles: handles, Pitches: pitches, Offsets: offsets,
	}
	if tiling {
		fb.Flags = ModeFBModifiers
		fb.Modifier = modifiers
	}

	if err := call(fd, ioctlAddFB2, uintptr(unsafe.Pointer(&fb))); err != nil {
		return 0, fmt.Errorf("drm: add fb2: %w", err)
	}
	return fb.FbID, nil
}

// RemoveFB releases a framebuffer object previously created by AddFB2.
func RemoveFB(fd uintptr, id uint32) error {
	v := id
	if err := call(fd, ioctlRmFB, uintptr(unsafe.Pointer(&v))); err != nil {
		return fmt.Errorf("drm: rm fb %d: %w", id, err)
	}
	return nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
