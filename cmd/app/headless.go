package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"virtual-hair-salon/internal/core"
	"virtual-hair-salon/internal/io"
)

// frameCounter is a presenter that closes done once target frames were presented.
type frameCounter struct {
	target   uint64
	count    atomic.Uint64
	done     chan struct{}
	doneOnce atomic.Bool
}

func newFrameCounter(target int) *frameCounter {
	return &frameCounter{target: uint64(target), done: make(chan struct{})}
}

func (f *frameCounter) present(_ *core.Surface, _ uint64) {
	if f.count.Inc() >= f.target && f.doneOnce.CompareAndSwap(false, true) {
		close(f.done)
	}
}

// runHeadless renders opts.frames frames without a window, saves one photo and stops.
func runHeadless(ctx context.Context, opts runOptions, logger *logrus.Logger) (err error) {
	sessionOpts, err := sessionOptions(opts.cfg, logger)
	if err != nil {
		return err
	}
	counter := newFrameCounter(opts.frames)
	sessionOpts.Presenter = counter.present
	session := core.NewSession(sessionOpts)

	if err := session.Start(ctx); err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, session.Stop())
	}()

	select {
	case <-counter.done:
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "interrupted before the photo was taken")
	}

	path, err := io.NewSnapshotExporter(opts.cfg.Snapshot.Dir, logger).Export(session.Surface(), opts.output)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"path":   path,
		"frames": counter.count.Load(),
		"stats":  session.Stats().String(),
	}).Info("Headless photo taken")
	return nil
}
