package display

import (
	"fmt"

	"github.com/tobiasjakobi/mfcplay/drm"
)

// v4l2 destination pixel formats this driver recognizes, mirrored
// locally (rather than importing the cgo-based v4l2mplane package)
// since display deliberately stays a pure-ioctl package with no cgo
// dependency. The fourcc encodings are the kernel's public V4L2 UAPI
// constants.
const (
	v4l2FourCCNV12   uint32 = 'N' | 'V'<<8 | '1'<<16 | '2'<<24
	v4l2FourCCNV21   uint32 = 'N' | 'V'<<8 | '2'<<16 | '1'<<24
	v4l2FourCCNV12MT uint32 = 'N' | 'M'<<8 | '1'<<16 | '2'<<24
)

// drmFormatFor maps a decoder-negotiated V4L2 destination pixel format
// to the DRM fourcc and tiling flag a page's video plane is created
// with, matching ExynosDRM::alloc_pages's switch.
func drmFormatFor(v4l2Format uint32) (fourcc uint32, tiling bool, err error) {
	switch v4l2Format {
	case v4l2FourCCNV12:
		return drm.FormatNV12, false, nil
	case v4l2FourCCNV21:
		return drm.FormatNV21, false, nil
	case v4l2FourCCNV12MT:
		return drm.FormatNV12, true, nil
	default:
		return 0, false, fmt.Errorf("%w: unknown V4L2 pixel format %#x", ErrDeviceUnavailable, v4l2Format)
	}
}
