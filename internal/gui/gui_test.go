package gui

import (
	"context"
	"image"
	"testing"

	"fyne.io/fyne/v2/test"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtual-hair-salon/internal/core"
	"virtual-hair-salon/internal/metrics"
)

func newTestPanel(t *testing.T) (*ControlPanel, *core.OverlayParameters) {
	t.Helper()
	test.NewTempApp(t)
	window := test.NewTempWindow(t, nil)
	logger, _ := logtest.NewNullLogger()
	params := core.NewOverlayParameters(core.RGB{R: 0x3b, G: 0xb3, B: 0xff}, 0.2)
	return NewControlPanel(window, params, logger), params
}

func TestControlPanelShowsInitialTint(t *testing.T) {
	panel, _ := newTestPanel(t)
	assert.Equal(t, "#3bb3ff", panel.colorLabel.Text)
	assert.Equal(t, "20%", panel.opacityLabel.Text)
	assert.InDelta(t, 0.2, panel.opacity.Value, 1e-9)
	assert.Equal(t, opacityStep, panel.opacity.Step)
}

func TestControlPanelSetColor(t *testing.T) {
	panel, _ := newTestPanel(t)
	var got []core.RGB
	panel.SetCallbacks(func(c core.RGB) { got = append(got, c) }, nil, nil)

	pink := core.RGB{R: 0xff, B: 0xaa}
	panel.SetColor(pink)

	assert.Equal(t, []core.RGB{pink}, got)
	assert.Equal(t, "#ff00aa", panel.colorLabel.Text)
	assert.Equal(t, pink.RGBA(), panel.swatch.FillColor)
}

func TestControlPanelOpacityReportsOnRelease(t *testing.T) {
	panel, _ := newTestPanel(t)
	var released []float64
	panel.SetCallbacks(nil, func(v float64) { released = append(released, v) }, nil)

	panel.opacity.SetValue(0.55)
	assert.Equal(t, "55%", panel.opacityLabel.Text)
	assert.Empty(t, released)

	panel.opacity.OnChangeEnded(0.55)
	assert.Equal(t, []float64{0.55}, released)
}

func TestSmileButtonTriggersSnapshot(t *testing.T) {
	panel, _ := newTestPanel(t)
	taps := 0
	panel.SetCallbacks(nil, nil, func() { taps++ })

	test.Tap(panel.smileButton)
	assert.Equal(t, 1, taps)
	assert.Equal(t, "smile 📸", panel.smileButton.Text)
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "0%", formatPercent(0))
	assert.Equal(t, "20%", formatPercent(0.2))
	assert.Equal(t, "100%", formatPercent(1))
	assert.Equal(t, "57%", formatPercent(0.567))
}

func TestSnapshotFormat(t *testing.T) {
	format, name := snapshotFormat("")
	assert.Equal(t, imaging.PNG, format)
	assert.Equal(t, "hair-color-photo.png", name)

	format, name = snapshotFormat("me.JPG")
	assert.Equal(t, imaging.JPEG, format)
	assert.Equal(t, "me.JPG", name)

	format, name = snapshotFormat("me")
	assert.Equal(t, imaging.PNG, format)
	assert.Equal(t, "me.png", name)
}

func TestOutputCanvasIgnoresStaleComposites(t *testing.T) {
	test.NewTempApp(t)
	oc := NewOutputCanvas(8, 6)
	first := image.NewRGBA(image.Rect(0, 0, 8, 6))
	second := image.NewRGBA(image.Rect(0, 0, 8, 6))

	assert.False(t, oc.Update(first, 0))
	assert.True(t, oc.Update(first, 2))
	assert.False(t, oc.Update(second, 1))
	assert.False(t, oc.Update(nil, 5))
	assert.True(t, oc.Update(second, 3))

	assert.Equal(t, uint64(3), oc.Version())
	assert.Same(t, second, oc.image.Image)
}

func TestStatusPanel(t *testing.T) {
	test.NewTempApp(t)
	sp := NewStatusPanel()

	sp.Update(core.StateCapturing, metrics.RenderStats{})
	assert.Equal(t, "🟢 Live", sp.state.Text)
	assert.Equal(t, "No frames yet", sp.stats.Text)

	stats := metrics.RenderStats{Presented: 12, Tinted: 10, MasksMissing: 2, FPS: 29.5}
	sp.Update(core.StateCapturing, stats)
	assert.Equal(t, stats.String(), sp.stats.Text)

	sp.SetMessage("💾 Saved")
	assert.Equal(t, "💾 Saved", sp.message.Text)
}

func TestApplicationBindsSession(t *testing.T) {
	app := test.NewTempApp(t)
	logger, _ := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	ui := NewApplication(app, nil, logger)
	ctrl := &stubController{params: core.NewOverlayParameters(core.RGB{G: 200}, 0.5)}
	ui.Bind(ctrl)

	require.NotNil(t, ui.window.MainMenu())
	assert.Equal(t, WindowTitle, ui.window.Title())
	assert.Equal(t, "50%", ui.controls.opacityLabel.Text)

	ui.controls.SetColor(core.RGB{R: 10})
	assert.Equal(t, core.RGB{R: 10}, ctrl.color)
	assert.Contains(t, ui.status.message.Text, "#0a0000")
}

type stubController struct {
	params *core.OverlayParameters
	color  core.RGB
}

func (s *stubController) Start(ctx context.Context) error   { return nil }
func (s *stubController) Stop() error                       { return nil }
func (s *stubController) Restart(ctx context.Context) error { return nil }
func (s *stubController) SetColor(c core.RGB)               { s.color = c }
func (s *stubController) SetOpacity(ctx context.Context, v float64) error {
	s.params.SetOpacity(v)
	return nil
}
func (s *stubController) Params() *core.OverlayParameters { return s.params }
func (s *stubController) Surface() *core.Surface          { return core.NewSurface(8, 6) }
func (s *stubController) Stats() metrics.RenderStats      { return metrics.RenderStats{} }
func (s *stubController) State() core.State               { return core.StateIdle }
