package v4l2mplane

/*
#include <linux/videodev2.h>
*/
import "C"

// Compressed elementary-stream fourccs for the OUTPUT queue. The
// teacher's v4l2 package only names the two most common of these
// (H264, MPEG4); this fills in the rest of the codec family the parser
// package recognizes.
const (
	FourCCH264  uint32 = C.V4L2_PIX_FMT_H264
	FourCCMPEG4 uint32 = C.V4L2_PIX_FMT_MPEG4
	FourCCH263  uint32 = C.V4L2_PIX_FMT_H263
	FourCCXviD  uint32 = C.V4L2_PIX_FMT_XVID
	FourCCMPEG2 uint32 = C.V4L2_PIX_FMT_MPEG2
	FourCCMPEG1 uint32 = C.V4L2_PIX_FMT_MPEG1
	FourCCVP8   uint32 = C.V4L2_PIX_FMT_VP8
)
