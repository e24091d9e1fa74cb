// Package v4l2 provides the V4L2 capability probe mfcplay uses to find
// its decoder device: VIDIOC_QUERYCAP decoding and the multi-planar
// M2M/streaming capability flags.
//
// The stateful multi-planar decode path itself (formats, buffers,
// streaming control) lives in the sibling v4l2mplane package, which
// speaks the OUTPUT/CAPTURE queue ioctls this package never needed.
package v4l2
