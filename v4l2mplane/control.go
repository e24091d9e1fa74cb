package v4l2mplane

/*
#include <linux/videodev2.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// MinBuffersForCapture reads V4L2_CID_MIN_BUFFERS_FOR_CAPTURE, the
// control every stateful M2M decoder exposes once the destination
// format is known: the minimum number of CAPTURE buffers the hardware
// needs in flight to keep decoding without stalling.
func MinBuffersForCapture(fd uintptr) (uint32, error) {
	var ctrl C.struct_v4l2_control
	ctrl.id = C.V4L2_CID_MIN_BUFFERS_FOR_CAPTURE

	if err := ioctl(fd, C.VIDIOC_G_CTRL, uintptr(unsafe.Pointer(&ctrl))); err != nil {
		return 0, fmt.Errorf("mplane: get min buffers for capture: %w", err)
	}
	return uint32(ctrl.value), nil
}

// StopDecoding issues VIDIOC_DECODER_CMD with V4L2_DEC_CMD_STOP,
// requesting a clean drain of the decoder's internal pipeline instead
// of an abrupt stream-off.
func StopDecoding(fd uintptr) error {
	var cmd C.struct_v4l2_decoder_cmd
	cmd.cmd = C.V4L2_DEC_CMD_STOP

	if err := ioctl(fd, C.VIDIOC_DECODER_CMD, uintptr(unsafe.Pointer(&cmd))); err != nil {
		return fmt.Errorf("mplane: decoder stop command: %w", err)
	}
	return nil
}
