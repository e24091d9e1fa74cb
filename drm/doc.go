// Package drm provides the raw DRM/KMS ioctl surface this pipeline's
// display driver and buffer pool need: resource/connector/encoder/plane
// enumeration, object property resolution, dumb-buffer allocation and
// PRIME export, framebuffer creation with tiling modifiers, and atomic
// modeset/page-flip commits.
//
// No cgo binding to libdrm exists anywhere in the retrieval pack this
// module was built from; this package instead issues the ioctls
// directly over golang.org/x/sys/unix, the same way the teacher talks
// to V4L2 and the way the pack's own DRM page-flip example
// (a hand-rolled dumb-buffer flipper) talks to KMS. Struct layouts
// mirror the kernel UAPI in <drm/drm.h> and <drm/drm_mode.h> field for
// field; ioctl numbers are computed from those struct sizes rather than
// hardcoded, so a layout mistake fails loudly instead of silently
// mis-encoding the request.
package drm
