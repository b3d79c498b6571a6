// Output canvas showing the composed preview
package gui

import (
	"image"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

var placeholderColor = color.RGBA{R: 240, G: 240, B: 240, A: 255}

// OutputCanvas displays the latest composite. It must only be touched on the UI
// thread.
type OutputCanvas struct {
	card    *widget.Card
	image   *canvas.Image
	version uint64
}

func NewOutputCanvas(width, height int) *OutputCanvas {
	oc := &OutputCanvas{}

	placeholder := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(placeholder.Pix); i += 4 {
		placeholder.Pix[i] = placeholderColor.R
		placeholder.Pix[i+1] = placeholderColor.G
		placeholder.Pix[i+2] = placeholderColor.B
		placeholder.Pix[i+3] = placeholderColor.A
	}

	oc.image = canvas.NewImageFromImage(placeholder)
	oc.image.FillMode = canvas.ImageFillContain
	oc.image.ScaleMode = canvas.ImageScaleSmooth
	oc.image.SetMinSize(fyne.NewSize(float32(width)/2, float32(height)/2))

	oc.card = widget.NewCard("💇 Preview", "Waiting for the camera…", oc.image)
	return oc
}

func (oc *OutputCanvas) GetContainer() fyne.CanvasObject {
	return oc.card
}

// Update shows img if it is newer than what is on screen. Older or empty composites
// are ignored.
func (oc *OutputCanvas) Update(img *image.RGBA, version uint64) bool {
	if img == nil || version == 0 || version <= oc.version {
		return false
	}
	if oc.version == 0 {
		oc.card.SetSubTitle("")
	}
	oc.version = version
	oc.image.Image = img
	oc.image.Refresh()
	return true
}

// Version is the composite version currently displayed.
func (oc *OutputCanvas) Version() uint64 {
	return oc.version
}
