// Package v4l2mplane extends the vladimirvivien/go4vl-style V4L2
// bindings with the multi-planar memory-to-memory surface the stateful
// hardware decoder needs: VIDEO_OUTPUT_MPLANE / VIDEO_CAPTURE_MPLANE
// buffer types, per-plane v4l2_plane arrays, DMABUF export and queueing,
// and the decoder-stop command. It follows the same cgo-struct-copy
// idiom as the sibling v4l2 package rather than duplicating it, since
// the upstream package only ever speaks the single-planar capture API.
package v4l2mplane

/*
#cgo linux CFLAGS: -I/usr/include

#include <linux/videodev2.h>
*/
import "C"

import (
	"fmt"
	"unsafe"

	sys "golang.org/x/sys/unix"
)

// BufType identifies a multi-planar buffer queue direction.
type BufType = uint32

const (
	BufTypeVideoOutputMPlane  BufType = C.V4L2_BUF_TYPE_VIDEO_OUTPUT_MPLANE
	BufTypeVideoCaptureMPlane BufType = C.V4L2_BUF_TYPE_VIDEO_CAPTURE_MPLANE
)

// MaxPlanes mirrors VIDEO_MAX_PLANES, the kernel's per-buffer plane cap.
const MaxPlanes = C.VIDEO_MAX_PLANES

// Plane mirrors struct v4l2_plane for the DMABUF memory model: only the
// fd variant of the m union is used, since every buffer in this pipeline
// is DMA-exported rather than mmap'd by the decoder.
type Plane struct {
	BytesUsed  uint32
	Length     uint32
	FD         int32
	DataOffset uint32
}

const memoryDMABuf = C.V4L2_MEMORY_DMABUF

// ErrWouldBlock is returned by DequeuePlanes when a non-blocking
// dequeue has nothing ready yet (EAGAIN) or was interrupted (EINTR).
// It is the transient-I/O error class: callers retry on the next run
// loop tick rather than treating it as fatal.
var ErrWouldBlock = fmt.Errorf("mplane: dequeue would block")

// RequestBuffers issues VIDIOC_REQBUFS for a multi-planar, DMABUF-backed
// queue and returns the number of buffers the kernel actually granted.
func RequestBuffers(fd uintptr, bufType BufType, count uint32) (uint32, error) {
	var req C.struct_v4l2_requestbuffers
	req.count = C.uint(count)
	req._type = C.uint(bufType)
	req.memory = C.uint(memoryDMABuf)

	if err := ioctl(fd, C.VIDIOC_REQBUFS, uintptr(unsafe.Pointer(&req))); err != nil {
		return 0, fmt.Errorf("mplane: request buffers: %w", err)
	}
	return uint32(req.count), nil
}

// cPlanesFromFDs builds the struct v4l2_plane array for the m.planes
// pointer of struct v4l2_buffer from per-plane DMA-BUF fds, bytesused
// values and data offsets.
func cPlanesFromFDs(fds []int32, bytesUsed []uint32, dataOffset []uint32) []C.struct_v4l2_plane {
	out := make([]C.struct_v4l2_plane, len(fds))
	for i := range fds {
		out[i].length = C.uint(0)
		out[i].bytesused = C.uint(bytesUsed[i])
		out[i].data_offset = C.uint(dataOffset[i])
		*(*int32)(unsafe.Pointer(&out[i].m[0])) = fds[i]
	}
	return out
}

// QueuePlanes queues a multi-planar buffer backed by the given
// DMA-BUF file descriptors, one per plane, with a matching
// bytesUsed/dataOffset per plane. This is the only queue shape the
// decoder engine and display pages need: source buffers carry one
// plane, destination pages carry two (Y, then interleaved chroma at
// an offset equal to the Y plane's size).
func QueuePlanes(fd uintptr, bufType BufType, index uint32, fds []int32, bytesUsed, dataOffset []uint32) error {
	planes := cPlanesFromFDs(fds, bytesUsed, dataOffset)

	var buf C.struct_v4l2_buffer
	buf.index = C.uint(index)
	buf._type = C.uint(bufType)
	buf.memory = C.uint(memoryDMABuf)
	buf.length = C.uint(len(planes))
	*(**C.struct_v4l2_plane)(unsafe.Pointer(&buf.m[0])) = &planes[0]

	if err := ioctl(fd, C.VIDIOC_QBUF, uintptr(unsafe.Pointer(&buf))); err != nil {
		return fmt.Errorf("mplane: queue buffer: %w", err)
	}
	return nil
}

// DequeueResult is the information recovered from a successful
// VIDIOC_DQBUF on a multi-planar queue.
type DequeueResult struct {
	Index     uint32
	BytesUsed []uint32 // per plane
}

// DequeuePlanes performs VIDIOC_DQBUF on the given queue; it waits for
// a completed buffer unless the fd is in non-blocking mode. numPlanes
// must match the plane count the queue was set up with. A would-block/interrupted result is surfaced as the sentinel
// ErrWouldBlock so callers can treat it as a no-op tick rather than a
// fatal error, per the transient-I/O error class.
func DequeuePlanes(fd uintptr, bufType BufType, numPlanes int) (DequeueResult, error) {
	planes := make([]C.struct_v4l2_plane, numPlanes)

	var buf C.struct_v4l2_buffer
	buf._type = C.uint(bufType)
	buf.memory = C.uint(memoryDMABuf)
	buf.length = C.uint(numPlanes)
	*(**C.struct_v4l2_plane)(unsafe.Pointer(&buf.m[0])) = &planes[0]

	if err := ioctl(fd, C.VIDIOC_DQBUF, uintptr(unsafe.Pointer(&buf))); err != nil {
		if errno, ok := err.(sys.Errno); ok && (errno == sys.EAGAIN || errno == sys.EINTR) {
			return DequeueResult{}, ErrWouldBlock
		}
		return DequeueResult{}, fmt.Errorf("mplane: dequeue buffer: %w", err)
	}

	result := DequeueResult{Index: uint32(buf.index), BytesUsed: make([]uint32, numPlanes)}
	for i := range planes {
		result.BytesUsed[i] = uint32(planes[i].bytesused)
	}
	return result, nil
}

// StreamOn and StreamOff toggle streaming on a multi-planar queue.
func StreamOn(fd uintptr, bufType BufType) error {
	t := bufType
	if err := ioctl(fd, C.VIDIOC_STREAMON, uintptr(unsafe.Pointer(&t))); err != nil {
		return fmt.Errorf("mplane: stream on: %w", err)
	}
	return nil
}

func StreamOff(fd uintptr, bufType BufType) error {
	t := bufType
	if err := ioctl(fd, C.VIDIOC_STREAMOFF, uintptr(unsafe.Pointer(&t))); err != nil {
		return fmt.Errorf("mplane: stream off: %w", err)
	}
	return nil
}

// ioctl is a thin Syscall(SYS_IOCTL) wrapper; it is reimplemented here
// because the sibling package does not export its own. Unlike
// v4l2.ioctl it does not retry on EINTR, so DequeuePlanes can report
// an interrupted call as ErrWouldBlock.
func ioctl(fd, req, arg uintptr) error {
	if _, _, errno := sys.Syscall(sys.SYS_IOCTL, fd, req, arg); errno != 0 {
		return errno
	}
	return nil
}
