// Main window of the hair salon preview
package gui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"virtual-hair-salon/internal/core"
	"virtual-hair-salon/internal/io"
	"virtual-hair-salon/internal/metrics"
)

// WindowTitle is the main window title.
const WindowTitle = "Your Virtual Hair Salon"

// statusInterval is how often the status card is refreshed.
const statusInterval = 500 * time.Millisecond

// Controller is the part of a session the window drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
	Restart(ctx context.Context) error
	SetColor(c core.RGB)
	SetOpacity(ctx context.Context, v float64) error
	Params() *core.OverlayParameters
	Surface() *core.Surface
	Stats() metrics.RenderStats
	State() core.State
}

// Application is the main window: the composed output, the tint controls and a
// status line.
type Application struct {
	app      fyne.App
	window   fyne.Window
	logger   logrus.FieldLogger
	exporter *io.SnapshotExporter

	session Controller
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	output      *OutputCanvas
	controls    *ControlPanel
	status      *StatusPanel
	menuHandler *MenuHandler

	// framePending coalesces presents while the UI thread is busy.
	framePending atomic.Bool
}

func NewApplication(app fyne.App, exporter *io.SnapshotExporter, logger logrus.FieldLogger) *Application {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	window := app.NewWindow(WindowTitle)
	window.Resize(fyne.NewSize(900, 720))
	window.CenterOnScreen()

	a := &Application{
		app:      app,
		window:   window,
		logger:   logger.WithField("component", "gui"),
		exporter: exporter,
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.output = NewOutputCanvas(core.DefaultWidth, core.DefaultHeight)
	a.status = NewStatusPanel()
	return a
}

// Present is the session's presenter. It runs on the render loop goroutine and only
// schedules the repaint.
func (a *Application) Present(surface *core.Surface, version uint64) {
	if !a.framePending.CompareAndSwap(false, true) {
		return
	}
	fyne.Do(func() {
		a.framePending.Store(false)
		img, v := surface.Snapshot()
		a.output.Update(img, v)
	})
}

// Bind attaches the session the window controls and builds the layout around it.
func (a *Application) Bind(session Controller) {
	a.session = session
	a.controls = NewControlPanel(a.window, session.Params(), a.logger)
	a.menuHandler = NewMenuHandler(a.window, a.logger)

	a.controls.SetCallbacks(
		// onColorChanged
		func(c core.RGB) {
			a.session.SetColor(c)
			a.updateStatusMessage(fmt.Sprintf("🎨 Color %s", c.Hex()))
		},
		// onOpacityChanged
		func(v float64) {
			a.runAsync("opacity change", func(ctx context.Context) error {
				return a.session.SetOpacity(ctx, v)
			})
			a.updateStatusMessage(fmt.Sprintf("🔆 Opacity %s", formatPercent(v)))
		},
		// onSnapshot
		a.saveSnapshot,
	)
	a.menuHandler.SetCallbacks(
		a.saveSnapshot,
		func() {
			a.updateStatusMessage("🔄 Restarting camera")
			a.runAsync("restart", a.session.Restart)
		},
	)

	content := container.NewBorder(
		nil,
		container.NewVBox(widget.NewSeparator(), a.controls.GetContainer(), a.status.GetContainer()),
		nil,
		nil,
		container.NewPadded(a.output.GetContainer()),
	)
	a.window.SetMainMenu(a.menuHandler.GetMainMenu())
	a.window.SetContent(content)
}

// ShowAndRun starts the session, shows the window and blocks until it is closed. The
// session is stopped before returning.
func (a *Application) ShowAndRun(ctx context.Context) {
	a.cancel()
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.logger.Info("Showing main window")

	a.window.SetCloseIntercept(func() {
		a.cleanup()
		a.app.Quit()
	})

	a.runAsync("start", a.session.Start)
	a.wg.Add(1)
	go a.watchStats()

	a.window.ShowAndRun()
}

func (a *Application) watchStats() {
	defer a.wg.Done()
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			stats, state := a.session.Stats(), a.session.State()
			fyne.Do(func() {
				a.status.Update(state, stats)
			})
		}
	}
}

// runAsync runs a blocking session call off the UI thread and reports its failure.
func (a *Application) runAsync(what string, fn func(ctx context.Context) error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := fn(a.ctx); err != nil {
			if a.ctx.Err() != nil {
				return
			}
			fyne.Do(func() {
				a.showError(fmt.Sprintf("Camera %s failed", what), err)
			})
		}
	}()
}

func (a *Application) saveSnapshot() {
	a.menuHandler.ShowSaveDialog(func(w fyne.URIWriteCloser) error {
		format, name := snapshotFormat(w.URI().Name())
		if err := a.exporter.Encode(w, a.session.Surface(), format); err != nil {
			return err
		}
		a.logger.WithField("file", name).Info("Photo saved")
		a.updateStatusMessage(fmt.Sprintf("💾 Saved %s", name))
		return nil
	}, a.showError)
}

func (a *Application) cleanup() {
	a.logger.Info("Closing window, stopping session")
	a.cancel()
	if err := a.session.Stop(); err != nil {
		a.logger.WithError(err).Warn("Errors while stopping session")
	}
	a.wg.Wait()
}

func (a *Application) updateStatusMessage(message string) {
	a.status.SetMessage(message)
}

func (a *Application) showError(title string, err error) {
	a.logger.WithError(err).Error(title)
	dialog.ShowError(err, a.window)
	a.updateStatusMessage(fmt.Sprintf("❌ %s: %v", title, err))
}
