// Tint controls: color, opacity and the photo button
package gui

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"virtual-hair-salon/internal/core"
	"virtual-hair-salon/internal/io"
)

const opacityStep = 0.01

type ControlPanel struct {
	window fyne.Window
	params *core.OverlayParameters
	logger logrus.FieldLogger

	container *fyne.Container

	swatch       *canvas.Rectangle
	colorLabel   *widget.Label
	colorButton  *widget.Button
	opacity      *widget.Slider
	opacityLabel *widget.Label
	smileButton  *widget.Button

	// Callbacks
	onColorChanged   func(core.RGB)
	onOpacityChanged func(float64)
	onSnapshot       func()
}

func NewControlPanel(window fyne.Window, params *core.OverlayParameters, logger logrus.FieldLogger) *ControlPanel {
	panel := &ControlPanel{
		window: window,
		params: params,
		logger: logger,
	}

	panel.initializeUI()
	return panel
}

func (cp *ControlPanel) initializeUI() {
	tint := cp.params.Color()

	cp.swatch = canvas.NewRectangle(tint.RGBA())
	cp.swatch.SetMinSize(fyne.NewSize(32, 32))
	cp.swatch.CornerRadius = 4
	cp.colorLabel = widget.NewLabel(tint.Hex())
	cp.colorButton = widget.NewButtonWithIcon("Hair Color", theme.ColorPaletteIcon(), cp.showColorPicker)

	cp.opacityLabel = widget.NewLabel(formatPercent(cp.params.Opacity()))
	cp.opacity = widget.NewSlider(0, 1)
	cp.opacity.Step = opacityStep
	cp.opacity.SetValue(cp.params.Opacity())
	cp.opacity.OnChanged = func(v float64) {
		cp.opacityLabel.SetText(formatPercent(v))
	}
	cp.opacity.OnChangeEnded = func(v float64) {
		cp.logger.WithField("opacity", v).Debug("Opacity slider released")
		if cp.onOpacityChanged != nil {
			cp.onOpacityChanged(v)
		}
	}

	cp.smileButton = widget.NewButton("smile 📸", func() {
		if cp.onSnapshot != nil {
			cp.onSnapshot()
		}
	})
	cp.smileButton.Importance = widget.HighImportance

	colorRow := container.NewHBox(cp.colorButton, cp.swatch, cp.colorLabel)
	opacityRow := container.NewBorder(nil, nil, widget.NewLabel("Opacity"), cp.opacityLabel, cp.opacity)

	cp.container = container.NewVBox(
		widget.NewCard("🎨 Tint", "", container.NewVBox(colorRow, opacityRow)),
		cp.smileButton,
	)
}

func (cp *ControlPanel) showColorPicker() {
	picker := dialog.NewColorPicker("Hair Color", "Choose the tint for your hair", func(c color.Color) {
		cp.SetColor(core.RGBFromColor(c))
	}, cp.window)
	picker.Advanced = true
	picker.SetColor(cp.params.Color().RGBA())
	picker.Show()
}

// SetColor updates the swatch and reports the new tint.
func (cp *ControlPanel) SetColor(c core.RGB) {
	cp.swatch.FillColor = c.RGBA()
	cp.swatch.Refresh()
	cp.colorLabel.SetText(c.Hex())
	cp.logger.WithField("color", c.Hex()).Debug("Color picked")
	if cp.onColorChanged != nil {
		cp.onColorChanged(c)
	}
}

func (cp *ControlPanel) GetContainer() fyne.CanvasObject {
	return cp.container
}

func (cp *ControlPanel) SetCallbacks(onColorChanged func(core.RGB), onOpacityChanged func(float64), onSnapshot func()) {
	cp.onColorChanged = onColorChanged
	cp.onOpacityChanged = onOpacityChanged
	cp.onSnapshot = onSnapshot
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(v*100)))
}

// snapshotFormat picks the encoding for a chosen file name, falling back to PNG.
func snapshotFormat(name string) (imaging.Format, string) {
	name = io.SnapshotFileName(name)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return imaging.JPEG, name
	default:
		return imaging.PNG, name
	}
}
