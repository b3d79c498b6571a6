// Snapshot export of the composed output
package io

import (
	goio "io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"virtual-hair-salon/internal/core"
)

// DefaultSnapshotName is the file name offered for exported photos.
const DefaultSnapshotName = "hair-color-photo.png"

// ErrSnapshotEmpty is returned when nothing has been composited yet.
var ErrSnapshotEmpty = errors.New("nothing has been composited yet")

// SnapshotExporter writes the visible composite as an image file. Exporting does not
// disturb the render loop.
type SnapshotExporter struct {
	dir    string
	logger logrus.FieldLogger
}

// NewSnapshotExporter returns an exporter that resolves relative names against dir.
func NewSnapshotExporter(dir string, logger logrus.FieldLogger) *SnapshotExporter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SnapshotExporter{dir: dir, logger: logger.WithField("component", "snapshot")}
}

// Encode writes the current composite to w in the given format.
func (e *SnapshotExporter) Encode(w goio.Writer, surface *core.Surface, format imaging.Format) error {
	img, version := surface.Snapshot()
	if version == 0 {
		return ErrSnapshotEmpty
	}
	if err := imaging.Encode(w, img, format); err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	e.logger.WithFields(logrus.Fields{
		"format":  format.String(),
		"version": version,
	}).Debug("Snapshot encoded")
	return nil
}

// Export saves the current composite to name, or to DefaultSnapshotName when name is
// empty. The format follows the file extension. It returns the written path.
func (e *SnapshotExporter) Export(surface *core.Surface, name string) (string, error) {
	if name == "" {
		name = DefaultSnapshotName
	}
	format, err := imaging.FormatFromFilename(name)
	if err != nil || !isSupportedFormat(format) {
		return "", errors.Errorf("unsupported snapshot format: %s", name)
	}

	path := name
	if !filepath.IsAbs(path) && e.dir != "" {
		path = filepath.Join(e.dir, name)
	}

	img, version := surface.Snapshot()
	if version == 0 {
		return "", ErrSnapshotEmpty
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrapf(err, "create %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", path)
	}
	if err := imaging.Encode(f, img, format); err != nil {
		f.Close()
		return "", errors.Wrapf(err, "encode %s", path)
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "close %s", path)
	}

	e.logger.WithFields(logrus.Fields{
		"path":    path,
		"width":   img.Bounds().Dx(),
		"height":  img.Bounds().Dy(),
		"version": version,
	}).Info("Snapshot saved successfully")
	return path, nil
}

func isSupportedFormat(format imaging.Format) bool {
	switch format {
	case imaging.PNG, imaging.JPEG:
		return true
	default:
		return false
	}
}

// SnapshotFileName returns name with a supported extension, defaulting to PNG.
func SnapshotFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultSnapshotName
	}
	if format, err := imaging.FormatFromFilename(name); err == nil && isSupportedFormat(format) {
		return name
	}
	return name + ".png"
}
