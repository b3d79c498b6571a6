package main

import (
	"context"

	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/theme"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"virtual-hair-salon/internal/config"
	"virtual-hair-salon/internal/core"
	"virtual-hair-salon/internal/gui"
	"virtual-hair-salon/internal/io"
	"virtual-hair-salon/internal/layers"
	"virtual-hair-salon/internal/segmentation"
)

// segmenterOptions translates the segmenter config section.
func segmenterOptions(cfg config.SegmenterConfig) (segmentation.Options, error) {
	opts := segmentation.DefaultOptions()
	opts.ModelPath = cfg.ModelPath
	opts.ConfigPath = cfg.ConfigPath
	opts.Backend = cfg.Backend
	opts.Target = cfg.Target
	opts.InputWidth = cfg.InputWidth
	opts.InputHeight = cfg.InputHeight
	opts.Scale = cfg.Scale
	opts.SwapRB = cfg.SwapRB
	opts.Refine = cfg.Refine
	opts.RefineKernel = cfg.RefineKernel
	if len(cfg.Mean) == 3 {
		copy(opts.Mean[:], cfg.Mean)
	}

	var err error
	if opts.Layout, err = segmentation.ParseLayout(cfg.Layout); err != nil {
		return opts, err
	}
	if opts.RunningMode, err = segmentation.ParseRunningMode(cfg.RunningMode); err != nil {
		return opts, err
	}
	return opts, nil
}

// sessionOptions builds everything a session needs from cfg except the presenter.
func sessionOptions(cfg *config.Config, logger logrus.FieldLogger) (core.SessionOptions, error) {
	segOpts, err := segmenterOptions(cfg.Segmenter)
	if err != nil {
		return core.SessionOptions{}, errors.Wrap(err, "segmenter options")
	}
	tint, err := cfg.TintColor()
	if err != nil {
		return core.SessionOptions{}, err
	}
	scaling, err := layers.ParseScaling(cfg.Render.Scaling)
	if err != nil {
		return core.SessionOptions{}, err
	}

	return core.SessionOptions{
		Segmenters: segmentation.NewFactory(segOpts, logger),
		Capture: io.NewCameraFactory(io.CameraOptions{
			Device: cfg.Camera.Device,
			Width:  cfg.Camera.Width,
			Height: cfg.Camera.Height,
			FPS:    cfg.Camera.FPS,
		}, logger),
		Params:                 core.NewOverlayParameters(tint, cfg.Overlay.Opacity),
		Logger:                 logger,
		Width:                  cfg.Render.Width,
		Height:                 cfg.Render.Height,
		FrameInterval:          cfg.FrameInterval(),
		Scaling:                scaling,
		RestartOnOpacityChange: cfg.Overlay.RestartOnOpacityChange,
	}, nil
}

func runGUI(ctx context.Context, opts runOptions, logger *logrus.Logger) error {
	sessionOpts, err := sessionOptions(opts.cfg, logger)
	if err != nil {
		return err
	}

	fyneApp := app.NewWithID(AppID)
	fyneApp.SetIcon(theme.ColorPaletteIcon())
	fyneApp.Settings().SetTheme(theme.DefaultTheme())

	ui := gui.NewApplication(fyneApp, io.NewSnapshotExporter(opts.cfg.Snapshot.Dir, logger), logger)
	sessionOpts.Presenter = ui.Present
	session := core.NewSession(sessionOpts)
	logger.WithField("session_id", session.ID()).Debug("Session created")

	ui.Bind(session)
	ui.ShowAndRun(ctx)
	return nil
}
