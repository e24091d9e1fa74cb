package v4l2mplane

/*
#include <linux/videodev2.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// PlaneFormat describes one plane of a multi-planar pixel format, as
// reported or requested via VIDIOC_G_FMT/VIDIOC_S_FMT.
type PlaneFormat struct {
	SizeImage   uint32
	BytesPerLine uint32
}

// Format is the subset of struct v4l2_pix_format_mplane this pipeline
// negotiates: dimensions, fourcc, field order, and per-plane sizes.
type Format struct {
	Width       uint32
	Height      uint32
	PixelFormat uint32
	Field       uint32
	NumPlanes   uint32
	Planes      [MaxPlanes]PlaneFormat
}

// SetFormat issues VIDIOC_S_FMT for a multi-planar queue, negotiating
// width/height/fourcc. The kernel may adjust the requested dimensions
// and plane sizes; the returned Format reflects what was accepted.
func SetFormat(fd uintptr, bufType BufType, width, height, pixelFormat uint32) (Format, error) {
	var f C.struct_v4l2_format
	f._type = C.uint(bufType)

	mp := (*C.struct_v4l2_pix_format_mplane)(unsafe.Pointer(&f.fmt[0]))
	mp.width = C.uint(width)
	mp.height = C.uint(height)
	mp.pixelformat = C.uint(pixelFormat)
	mp.field = C.V4L2_FIELD_NONE

	if err := ioctl(fd, C.VIDIOC_S_FMT, uintptr(unsafe.Pointer(&f))); err != nil {
		return Format{}, fmt.Errorf("mplane: set format: %w", err)
	}
	return goFormat(mp), nil
}

// SetSourceFormat issues VIDIOC_S_FMT for the OUTPUT queue carrying the
// compressed elementary stream: a single plane whose sizeimage is the
// caller's source buffer size, rather than negotiated dimensions (the
// decoder derives width/height/crop from the stream itself once
// decoding starts).
func SetSourceFormat(fd uintptr, pixelFormat uint32, sizeImage uint32) error {
	var f C.struct_v4l2_format
	f._type = C.uint(BufTypeVideoOutputMPlane)

	mp := (*C.struct_v4l2_pix_format_mplane)(unsafe.Pointer(&f.fmt[0]))
	mp.pixelformat = C.uint(pixelFormat)
	mp.num_planes = 1
	mp.plane_fmt[0].sizeimage = C.uint(sizeImage)

	if err := ioctl(fd, C.VIDIOC_S_FMT, uintptr(unsafe.Pointer(&f))); err != nil {
		return fmt.Errorf("mplane: set source format: %w", err)
	}
	return nil
}

// GetFormat issues VIDIOC_G_FMT for a multi-planar queue.
func GetFormat(fd uintptr, bufType BufType) (Format, error) {
	var f C.struct_v4l2_format
	f._type = C.uint(bufType)

	if err := ioctl(fd, C.VIDIOC_G_FMT, uintptr(unsafe.Pointer(&f))); err != nil {
		return Format{}, fmt.Errorf("mplane: get format: %w", err)
	}

	mp := (*C.struct_v4l2_pix_format_mplane)(unsafe.Pointer(&f.fmt[0]))
	return goFormat(mp), nil
}

func goFormat(mp *C.struct_v4l2_pix_format_mplane) Format {
	out := Format{
		Width:       uint32(mp.width),
		Height:      uint32(mp.height),
		PixelFormat: uint32(mp.pixelformat),
		Field:       uint32(mp.field),
		NumPlanes:   uint32(mp.num_planes),
	}
	for i := 0; i < int(mp.num_planes) && i < MaxPlanes; i++ {
		out.Planes[i] = PlaneFormat{
			SizeImage:    uint32(mp.plane_fmt[i].sizeimage),
			BytesPerLine: uint32(mp.plane_fmt[i].bytesperline),
		}
	}
	return out
}

// Rect is a crop/compose rectangle in pixels.
type Rect struct {
	Left, Top       int32
	Width, Height   uint32
}

// GetCrop issues VIDIOC_G_CROP against the capture queue and returns
// the hardware-reported crop rectangle — the region of the decoded
// picture that holds actual video content versus macroblock padding.
func GetCrop(fd uintptr) (Rect, error) {
	var crop C.struct_v4l2_crop
	crop._type = C.uint(BufTypeVideoCaptureMPlane)

	if err := ioctl(fd, C.VIDIOC_G_CROP, uintptr(unsafe.Pointer(&crop))); err != nil {
		return Rect{}, fmt.Errorf("mplane: get crop: %w", err)
	}

	return Rect{
		Left:   int32(crop.c.left),
		Top:    int32(crop.c.top),
		Width:  uint32(crop.c.width),
		Height: uint32(crop.c.height),
	}, nil
}
