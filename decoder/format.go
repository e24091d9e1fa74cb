package decoder

import (
	"fmt"

	"github.com/tobiasjakobi/mfcplay/parser"
	"github.com/tobiasjakobi/mfcplay/v4l2mplane"
)

// codecFourCC maps a parser codec to the V4L2 OUTPUT-queue fourcc the
// decoder negotiates against. VP8 maps to its fourcc here, but the
// command never reaches this point for VP8: parser.New returns
// ErrNoByteParser for it, and no IVF-driven source path exists.
func codecFourCC(c parser.Codec) (uint32, error) {
	switch c {
	case parser.CodecH264:
		return v4l2mplane.FourCCH264, nil
	case parser.CodecMPEG4:
		return v4l2mplane.FourCCMPEG4, nil
	case parser.CodecH263:
		return v4l2mplane.FourCCH263, nil
	case parser.CodecXviD:
		return v4l2mplane.FourCCXviD, nil
	case parser.CodecMPEG2:
		return v4l2mplane.FourCCMPEG2, nil
	case parser.CodecMPEG1:
		return v4l2mplane.FourCCMPEG1, nil
	case parser.CodecVP8:
		return v4l2mplane.FourCCVP8, nil
	default:
		return 0, fmt.Errorf("decoder: unknown codec %d", c)
	}
}

// setSourceV4L2 negotiates the OUTPUT queue format (codec fourcc, single
// plane sized to the source buffer) and requests DMA-backed buffers,
// resizing the in-memory buffer bookkeeping to whatever count the
// kernel actually granted.
func (d *Decoder) setSourceV4L2() error {
	fourcc, err := codecFourCC(d.parser.Codec())
	if err != nil {
		return err
	}

	if err := v4l2mplane.SetSourceFormat(d.fd, fourcc, d.sourceBufferSize); err != nil {
		return fmt.Errorf("decoder: set source format: %w", err)
	}

	granted, err := v4l2mplane.RequestBuffers(d.fd, v4l2mplane.BufTypeVideoOutputMPlane, uint32(len(d.sourceBuffers)))
	if err != nil {
		return fmt.Errorf("decoder: set source: request buffers: %w", err)
	}

	d.log.Info().Uint32("granted", granted).Int("requested", len(d.sourceBuffers)).Msg("source buffers negotiated")
	d.sourceBuffers = d.sourceBuffers[:granted]

	return nil
}

// setDestV4L2 queries the CAPTURE queue format the hardware derived
// from the source stream, the minimum buffer count it needs, and the
// crop rectangle, then requests DMA-backed destination buffers sized to
// dest_queue_min + DestExtraBufferCount.
func (d *Decoder) setDestV4L2() (VideoInfo, error) {
	// SetSource has already queued the header buffer and started OUTPUT
	// streaming, so the hardware derives the CAPTURE format from that
	// header before it is read here.
	format, err := v4l2mplane.GetFormat(d.fd, v4l2mplane.BufTypeVideoCaptureMPlane)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("decoder: set dest: get format: %w", err)
	}

	vi := VideoInfo{
		Width:        format.Width,
		Height:       format.Height,
		PixelFormat:  format.PixelFormat,
	}

	d.destPlaneSize[0] = format.Planes[0].SizeImage
	d.destPlaneSize[1] = format.Planes[1].SizeImage
	vi.PlaneSize = d.destPlaneSize

	minBuffers, err := v4l2mplane.MinBuffersForCapture(d.fd)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("decoder: set dest: min buffers for capture: %w", err)
	}

	d.destBufferCount = minBuffers + DestExtraBufferCount
	d.destQueueMin = minBuffers
	d.destNumQueued = 0

	crop, err := v4l2mplane.GetCrop(d.fd)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("decoder: set dest: get crop: %w", err)
	}
	vi.CropWidth = crop.Width
	vi.CropHeight = crop.Height
	vi.CropLeft = crop.Left
	vi.CropTop = crop.Top

	granted, err := v4l2mplane.RequestBuffers(d.fd, v4l2mplane.BufTypeVideoCaptureMPlane, d.destBufferCount)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("decoder: set dest: request buffers: %w", err)
	}
	d.log.Info().Uint32("granted", granted).Uint32("requested", d.destBufferCount).
		Uint32("extra", DestExtraBufferCount).Msg("destination buffers negotiated")
	d.destBufferCount = granted

	return vi, nil
}
