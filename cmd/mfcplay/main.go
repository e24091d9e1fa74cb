// Command mfcplay decodes a compressed elementary stream on the MFC
// hardware decoder and presents it on a DRM/KMS display, start to
// finish, with no seeking, transcoding, or audio path.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tobiasjakobi/mfcplay/bufferpool"
	"github.com/tobiasjakobi/mfcplay/cursor"
	"github.com/tobiasjakobi/mfcplay/decoder"
	"github.com/tobiasjakobi/mfcplay/display"
	"github.com/tobiasjakobi/mfcplay/parser"
	"github.com/tobiasjakobi/mfcplay/pipeline"
)

const inputBufferSize = 1024 * 1024
const inputBufferCount = 2

var codecNames = map[string]parser.Codec{
	"h264":  parser.CodecH264,
	"mpeg4": parser.CodecMPEG4,
	"h263":  parser.CodecH263,
	"xvid":  parser.CodecXviD,
	"mpeg2": parser.CodecMPEG2,
	"mpeg1": parser.CodecMPEG1,
	"vp8":   parser.CodecVP8,
}

var connectorNames = map[string]display.ConnectorType{
	"any":  display.ConnectorAny,
	"hdmi": display.ConnectorHDMI,
	"vga":  display.ConnectorVGA,
}

type options struct {
	inputPath   string
	cardName    string
	codec       string
	connector   string
	width       uint32
	height      uint32
	verbose     bool
}

func main() {
	opts := &options{}

	root := &cobra.Command{
		Use:   "mfcplay <input>",
		Short: "Decode a compressed video stream on MFC and present it over DRM/KMS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.inputPath = args[0]
			return run(opts)
		},
	}

	flags := root.Flags()
	flags.StringVar(&opts.cardName, "device", "s5p-mfc-dec", "V4L2 card identifier of the decoder device")
	flags.StringVar(&opts.codec, "codec", "h264", fmt.Sprintf("input codec (%s)", strings.Join(codecList(), ", ")))
	flags.StringVar(&opts.connector, "connector", "any", "display connector type (any, hdmi, vga)")
	flags.Uint32Var(&opts.width, "width", 0, "requested display mode width (0 selects the native mode)")
	flags.Uint32Var(&opts.height, "height", 0, "requested display mode height (0 selects the native mode)")
	flags.BoolVar(&opts.verbose, "verbose", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func codecList() []string {
	names := make([]string, 0, len(codecNames))
	for name := range codecNames {
		names = append(names, name)
	}
	return names
}

func run(opts *options) (err error) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if opts.verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	codec, ok := codecNames[opts.codec]
	if !ok {
		return fmt.Errorf("mfcplay: unknown codec %q", opts.codec)
	}
	connType, ok := connectorNames[opts.connector]
	if !ok {
		return fmt.Errorf("mfcplay: unknown connector type %q", opts.connector)
	}

	cur, err := cursor.Open(opts.inputPath)
	if err != nil {
		return err
	}
	defer cur.Close()

	if codec == parser.CodecVP8 {
		if err := cur.StripIVFHeader(); err != nil {
			return err
		}
	}

	p, perr := parser.New(codec)
	if perr != nil {
		return fmt.Errorf("mfcplay: %w", perr)
	}

	drv, err := display.Open(connType)
	if err != nil {
		return fmt.Errorf("mfcplay: %w", err)
	}
	defer drv.Close()

	if err := drv.Init(opts.width, opts.height); err != nil {
		return fmt.Errorf("mfcplay: %w", err)
	}
	defer drv.Deinit()

	pool := bufferpool.New(drv.FD())
	defer pool.Close()

	buffers := make([]decoder.BufferHandle, 0, inputBufferCount)
	for i := 0; i < inputBufferCount; i++ {
		b, err := pool.Alloc(inputBufferSize)
		if err != nil {
			return fmt.Errorf("mfcplay: %w", err)
		}
		buffers = append(buffers, b)
	}

	dec, err := decoder.Open(opts.cardName)
	if err != nil {
		return fmt.Errorf("mfcplay: %w", err)
	}
	defer dec.Close()

	if err := dec.SetParser(p, cur); err != nil {
		return fmt.Errorf("mfcplay: %w", err)
	}
	if err := dec.SetSource(buffers); err != nil {
		return fmt.Errorf("mfcplay: %w", err)
	}

	numPages, vi, err := dec.Init()
	if err != nil {
		return fmt.Errorf("mfcplay: %w", err)
	}

	if err := drv.AllocPages(numPages, toDisplayVideoInfo(vi)); err != nil {
		return fmt.Errorf("mfcplay: %w", err)
	}
	defer drv.FreePages()

	for !dec.Ready() {
		page := drv.GetPage()
		if page == nil {
			return fmt.Errorf("mfcplay: no display page available while priming decoder")
		}
		if err := dec.QueueDest(page); err != nil {
			return fmt.Errorf("mfcplay: %w", err)
		}
	}

	// One page beyond the decoder's minimum, queued after the priming pages.
	first := drv.GetPage()
	if first == nil {
		return fmt.Errorf("mfcplay: no display page available for first queue")
	}
	if err := dec.QueueDest(first); err != nil {
		return fmt.Errorf("mfcplay: %w", err)
	}

	pl := pipeline.New(dec, drv)
	return pl.Run()
}

func toDisplayVideoInfo(vi decoder.VideoInfo) display.VideoInfo {
	return display.VideoInfo{
		Width:       vi.Width,
		Height:      vi.Height,
		CropWidth:   vi.CropWidth,
		CropHeight:  vi.CropHeight,
		CropLeft:    vi.CropLeft,
		CropTop:     vi.CropTop,
		PixelFormat: vi.PixelFormat,
		PlaneSize:   vi.PlaneSize,
	}
}
