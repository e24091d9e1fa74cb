package drm

import (
	"fmt"
	"unsafe"
)

// AtomicRequest accumulates (object, property, value) triples for a
// single atomic commit. Building one is pure bookkeeping; nothing is
// sent to the kernel until Commit.
type AtomicRequest struct {
	objs   []uint32
	counts []uint32
	props  []uint32
	values []uint64
}

// NewAtomicRequest returns an empty request.
func NewAtomicRequest() *AtomicRequest {
	return &AtomicRequest{}
}

// AddProperty appends one (object, property, value) triple, matching
// drmModeAtomicAddProperty's grouping-by-object-in-order contract: the
// kernel expects each object's properties to be contiguous with a
// matching count entry.
func (r *AtomicRequest) AddProperty(objID, propID uint32, value uint64) {
	if n := len(r.objs); n > 0 && r.objs[n-1] == objID {
		r.counts[n-1]++
	} else {
		r.objs = append(r.objs, objID)
		r.counts = append(r.counts, 1)
	}
	r.props = append(r.props, propID)
	r.values = append(r.values, value)
}

// Clone returns a deep copy, used when a per-page request is merged
// onto a fresh copy of the persistent modeset request for the first
// flip after a modeset.
func (r *AtomicRequest) Clone() *AtomicRequest {
	c := &AtomicRequest{
		objs:   append([]uint32(nil), r.objs...),
		counts: append([]uint32(nil), r.counts...),
		props:  append([]uint32(nil), r.props...),
		values: append([]uint64(nil), r.values...),
	}
	return c
}

// Merge appends other's properties onto r in place.
func (r *AtomicRequest) Merge(other *AtomicRequest) {
	for i, objID := range other.objs {
		start := 0
		for j := 0; j < i; j++ {
			start += int(other.counts[j])
		}
		for k := 0; k < int(other.counts[i]); k++ {
			r.AddProperty(objID, other.props[start+k], other.values[start+k])
		}
	}
}

// Commit issues DRM_IOCTL_MODE_ATOMIC with flags and, for a page-flip
// commit, userData set to an opaque token identifying the page so the event
// reader can recover which page completed.
func (r *AtomicRequest) Commit(fd uintptr, flags uint32, userData uint64) error {
	if len(r.objs) == 0 {
		return fmt.Errorf("drm: atomic commit: empty request")
	}

	req := atomicReq{
		Flags:         flags,
		CountObjs:     uint32(len(r.objs)),
		ObjsPtr:       uint64(uintptr(unsafe.Pointer(&r.objs[0]))),
		CountPropsPtr: uint64(uintptr(unsafe.Pointer(&r.counts[0]))),
		PropsPtr:      uint64(uintptr(unsafe.Pointer(&r.props[0]))),
		PropValuesPtr: uint64(uintptr(unsafe.Pointer(&r.values[0]))),
		UserData:      userData,
	}

	if err := call(fd, ioctlAtomic, uintptr(unsafe.Pointer(&req))); err != nil {
		return fmt.Errorf("drm: atomic commit: %w", err)
	}
	return nil
}
