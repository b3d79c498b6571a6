// Your Virtual Hair Salon: live hair recoloring from a camera feed.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"virtual-hair-salon/internal/config"
)

const (
	AppName    = "Your Virtual Hair Salon"
	AppID      = "com.virtual-hair-salon.app"
	AppVersion = "1.0.0"
)

const (
	flagConfig   = "config"
	flagDebug    = "debug"
	flagDevice   = "device"
	flagModel    = "model"
	flagColor    = "color"
	flagOpacity  = "opacity"
	flagHeadless = "headless"
	flagFrames   = "frames"
	flagOutput   = "output"
)

// runOptions is everything an invocation resolved from flags and the config file.
type runOptions struct {
	cfg      *config.Config
	debug    bool
	headless bool
	frames   int
	output   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(run).RunContext(ctx, os.Args); err != nil {
		logrus.WithError(err).Error("Application failed")
		os.Exit(1)
	}
}

func newApp(action func(ctx context.Context, opts runOptions) error) *cli.App {
	return &cli.App{
		Name:            "hair-salon",
		Usage:           "try on a new hair color with your camera",
		Version:         AppVersion,
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
				EnvVars: []string{"HAIR_SALON_CONFIG"},
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagDevice,
				Usage: "camera index, video file or stream `URL`",
			},
			&cli.StringFlag{
				Name:  flagModel,
				Usage: "hair segmentation model `PATH`",
			},
			&cli.StringFlag{
				Name:  flagColor,
				Usage: "initial tint as `#RRGGBB`",
			},
			&cli.Float64Flag{
				Name:  flagOpacity,
				Usage: "initial overlay opacity in [0,1]",
			},
			&cli.BoolFlag{
				Name:  flagHeadless,
				Usage: "run without a window and save a photo after --frames frames",
			},
			&cli.IntFlag{
				Name:  flagFrames,
				Value: 30,
				Usage: "frames to render before the headless photo",
			},
			&cli.StringFlag{
				Name:    flagOutput,
				Aliases: []string{"o"},
				Usage:   "headless photo `FILE`",
			},
		},
		Action: func(c *cli.Context) error {
			opts, err := resolveOptions(c)
			if err != nil {
				return err
			}
			return action(c.Context, opts)
		},
	}
}

// resolveOptions loads the config file and applies flag overrides on top of it.
func resolveOptions(c *cli.Context) (runOptions, error) {
	cfg, err := config.Load(c.String(flagConfig))
	if err != nil {
		return runOptions{}, err
	}

	if c.IsSet(flagDevice) {
		cfg.Camera.Device = c.String(flagDevice)
	}
	if c.IsSet(flagModel) {
		cfg.Segmenter.ModelPath = c.String(flagModel)
	}
	if c.IsSet(flagColor) {
		cfg.Overlay.Color = c.String(flagColor)
	}
	if c.IsSet(flagOpacity) {
		cfg.Overlay.Opacity = c.Float64(flagOpacity)
	}
	if c.Bool(flagDebug) {
		cfg.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return runOptions{}, errors.Wrap(err, "invalid flags")
	}

	opts := runOptions{
		cfg:      cfg,
		debug:    c.Bool(flagDebug),
		headless: c.Bool(flagHeadless),
		frames:   c.Int(flagFrames),
		output:   c.String(flagOutput),
	}
	if opts.headless && opts.frames <= 0 {
		return runOptions{}, errors.Errorf("--%s must be positive, got %d", flagFrames, opts.frames)
	}
	if opts.output == "" {
		opts.output = cfg.Snapshot.FileName
	}
	return opts, nil
}

func run(ctx context.Context, opts runOptions) error {
	logger := initLogger(opts.cfg.Logging)
	logger.WithFields(logrus.Fields{
		"version":  AppVersion,
		"debug":    opts.debug,
		"headless": opts.headless,
		"device":   opts.cfg.Camera.Device,
		"model":    opts.cfg.Segmenter.ModelPath,
	}).Info("Starting Your Virtual Hair Salon")

	var err error
	if opts.headless {
		err = runHeadless(ctx, opts, logger)
	} else {
		err = runGUI(ctx, opts, logger)
	}
	logger.Info("Application shutting down gracefully")
	return err
}

// initLogger builds the process logger from the logging config. Text output gets full
// timestamps; JSON output uses a compact timestamp.
func initLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	logger.Debug("Debug logging enabled")
	return logger
}
