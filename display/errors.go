package display

import "errors"

// Error classes, matching the sentinel-plus-wrap style the v4l2
// package uses (§7's taxonomy, display-facing subset): device
// unavailable at init, allocation failure, and wrong-state misuse.
var (
	// ErrDeviceUnavailable covers every "no compatible X found" object-
	// selection failure: connector, encoder, plane, mode.
	ErrDeviceUnavailable = errors.New("display: device unavailable")

	// ErrAllocation covers page/buffer/framebuffer allocation failures.
	ErrAllocation = errors.New("display: allocation failed")

	// ErrWrongState is returned when a method is called outside the
	// construction order alloc -> add -> create_request enforces.
	ErrWrongState = errors.New("display: wrong lifecycle state")
)
