// Menu handler for application actions
package gui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"virtual-hair-salon/internal/io"
)

var snapshotExtensions = []string{".png", ".jpg", ".jpeg"}

// MenuHandler handles menu actions
type MenuHandler struct {
	window fyne.Window
	logger logrus.FieldLogger

	onSavePhoto func()
	onRestart   func()
}

func NewMenuHandler(window fyne.Window, logger logrus.FieldLogger) *MenuHandler {
	return &MenuHandler{
		window: window,
		logger: logger,
	}
}

func (mh *MenuHandler) GetMainMenu() *fyne.MainMenu {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Save Photo...", func() {
			if mh.onSavePhoto != nil {
				mh.onSavePhoto()
			}
		}),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Exit", func() {
			mh.window.Close()
		}),
	)

	cameraMenu := fyne.NewMenu("Camera",
		fyne.NewMenuItem("Restart Camera", func() {
			if mh.onRestart != nil {
				mh.onRestart()
			}
		}),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mh.showAbout),
	)

	return fyne.NewMainMenu(fileMenu, cameraMenu, helpMenu)
}

// ShowSaveDialog asks for a destination and hands the opened writer to write. The
// writer is closed afterwards.
func (mh *MenuHandler) ShowSaveDialog(write func(fyne.URIWriteCloser) error, onError func(string, error)) {
	mh.logger.Info("Opening file dialog for photo saving")

	fileDialog := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			onError("File Dialog Error", err)
			return
		}
		if writer == nil {
			return
		}
		defer writer.Close()

		if err := write(writer); err != nil {
			onError("Failed to Save Photo", err)
		}
	}, mh.window)

	fileDialog.SetFileName(io.DefaultSnapshotName)
	fileDialog.SetFilter(storage.NewExtensionFileFilter(snapshotExtensions))
	fileDialog.Show()
}

func (mh *MenuHandler) showAbout() {
	content := container.NewVBox(
		widget.NewLabel(WindowTitle),
		widget.NewSeparator(),
		widget.NewLabel("Live hair recoloring from your camera."),
		widget.NewLabel("Pick a color, set the strength, then smile."),
		widget.NewSeparator(),
		widget.NewLabel("Built with Go, Fyne v2.6, and OpenCV 4.11"),
	)

	aboutDialog := dialog.NewCustom("About", "Close", content, mh.window)
	aboutDialog.Resize(fyne.NewSize(360, 220))
	aboutDialog.Show()
}

func (mh *MenuHandler) SetCallbacks(onSavePhoto, onRestart func()) {
	mh.onSavePhoto = onSavePhoto
	mh.onRestart = onRestart
}
