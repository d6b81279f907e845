package main

import (
	"os"

	"github.com/urfave/cli/v2"
	"github.com/wb-go/wbf/zlog"
)

const (
	ConfigFlag     = "config"
	OutputFlag     = "output"
	PresetFlag     = "preset"
	FormatFlag     = "format"
	ResizeFlag     = "resize"
	NoAdjustFlag   = "no-adjust"
	QualityFlag    = "quality"
	WidthFlag      = "width"
	HeightFlag     = "height"
	KindFlag       = "kind"
	MainThreadFlag = "main-thread"
)

func main() {
	zlog.Init()

	if err := newApp().Run(os.Args); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("imgopt failed")
	}
}

func newApp() *cli.App {
	outputFlag := &cli.StringFlag{
		Name:    OutputFlag,
		Aliases: []string{"o"},
		Value:   ".",
		Usage:   "Directory the results are written to",
	}

	return &cli.App{
		Name:  "imgopt",
		Usage: "Optimize and convert images locally",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    ConfigFlag,
				Aliases: []string{"c"},
				Usage:   "Path to a config.yml; defaults are used when empty",
				EnvVars: []string{"IMGOPT_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "compress",
				Usage:     "Compress images, retrying at a lower quality when the result is not smaller",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					outputFlag,
					&cli.StringFlag{
						Name:  PresetFlag,
						Value: "balanced",
						Usage: "Compression preset: balanced, enhanced or maximum",
					},
					&cli.StringFlag{
						Name:  FormatFlag,
						Usage: "Output format, \"auto\" keeps the source format",
					},
					&cli.StringFlag{
						Name:  ResizeFlag,
						Usage: "Resize mode: none, conservative, moderate or aggressive",
					},
					&cli.BoolFlag{
						Name:  NoAdjustFlag,
						Usage: "Disable the automatic retry",
					},
				},
				Action: compress,
			},
			{
				Name:      "convert",
				Usage:     "Convert images to another format",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					outputFlag,
					&cli.StringFlag{
						Name:     FormatFlag,
						Aliases:  []string{"f"},
						Required: true,
						Usage:    "Target format: png, jpeg, webp, bmp, avif or ico",
					},
					&cli.Float64Flag{
						Name:    QualityFlag,
						Aliases: []string{"q"},
						Value:   -1,
						Usage:   "Quality in [0,1], the format default when omitted",
					},
					&cli.IntFlag{Name: WidthFlag, Usage: "Output width, the original when omitted"},
					&cli.IntFlag{Name: HeightFlag, Usage: "Output height, the original when omitted"},
				},
				Action: convert,
			},
			{
				Name:      "process",
				Usage:     "Process images on the background worker",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					outputFlag,
					&cli.StringFlag{
						Name:  KindFlag,
						Value: "compress",
						Usage: "Operation: convert or compress",
					},
					&cli.StringFlag{Name: FormatFlag, Usage: "Output format"},
					&cli.Float64Flag{Name: QualityFlag, Usage: "Quality in [0,1], 0 uses the format default"},
					&cli.IntFlag{Name: WidthFlag, Usage: "Bounding width"},
					&cli.IntFlag{Name: HeightFlag, Usage: "Bounding height"},
					&cli.BoolFlag{
						Name:  MainThreadFlag,
						Usage: "Skip the background worker",
					},
				},
				Action: process,
			},
			{
				Name:   "formats",
				Usage:  "List the known formats",
				Action: formats,
			},
		},
	}
}
