package drm

import (
	"fmt"
	"unsafe"

	sys "golang.org/x/sys/unix"
)

// FlipEvent is the decoded result of a DRM_EVENT_FLIP_COMPLETE record.
// UserData is whatever opaque token the caller passed as Commit's
// userData argument — this driver uses a page index rather than a raw
// pointer, since a token survives being round-tripped through the
// kernel in a way a Go pointer value should not be asked to.
type FlipEvent struct {
	UserData uint64
	Sequence uint32
	CrtcID   uint32
}

// WaitForEvent blocks (via poll, indefinitely) until the DRM fd is
// readable, then decodes exactly one event record. Non-flip event
// types are skipped; WaitForEvent itself polls and reads again until a
// flip event arrives, and returns that one. This mirrors FlipHandler::wait's
// poll+drmHandleEvent pair, without linking libdrm's event dispatcher.
func WaitForEvent(fd uintptr) (FlipEvent, error) {
	for {
		fds := []sys.PollFd{{Fd: int32(fd), Events: sys.POLLIN}}

		n, err := sys.Poll(fds, -1)
		if err != nil {
			if err == sys.EINTR {
				continue
			}
			return FlipEvent{}, fmt.Errorf("drm: poll: %w", err)
		}
		if n == 0 {
			continue
		}
		if fds[0].Revents&(sys.POLLHUP|sys.POLLERR) != 0 {
			return FlipEvent{}, fmt.Errorf("drm: event fd closed or errored")
		}
		if fds[0].Revents&sys.POLLIN == 0 {
			continue
		}

		ev, ok, err := readOneEvent(fd)
		if err != nil {
			return FlipEvent{}, err
		}
		if ok {
			return ev, nil
		}
		// A non-flip event (e.g. vblank-only) was consumed; poll again.
	}
}

// readOneEvent reads and decodes a single event record off fd. It
// returns ok=false for event types this driver doesn't care about, so
// the caller's poll loop can simply retry.
func readOneEvent(fd uintptr) (FlipEvent, bool, error) {
	var buf [4096]byte

	n, err := sys.Read(int(fd), buf[:])
	if err != nil {
		return FlipEvent{}, false, fmt.Errorf("drm: read event: %w", err)
	}

	headerSize := int(unsafe.Sizeof(eventHeader{}))
	if n < headerSize {
		return FlipEvent{}, false, fmt.Errorf("drm: short event read (%d bytes)", n)
	}

	hdr := (*eventHeader)(unsafe.Pointer(&buf[0]))
	if hdr.Type != eventFlipComplete {
		return FlipEvent{}, false, nil
	}

	vbSize := int(unsafe.Sizeof(eventVblank{}))
	if n < headerSize+vbSize {
		return FlipEvent{}, false, fmt.Errorf("drm: truncated flip-complete event")
	}

	vb := (*eventVblank)(unsafe.Pointer(&buf[headerSize]))
	return FlipEvent{UserData: vb.UserData, Sequence: vb.Sequence, CrtcID: vb.CrtcID}, true, nil
}
