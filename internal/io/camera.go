// Camera capture on OpenCV VideoCapture
package io

import (
	"context"
	"image"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"gocv.io/x/gocv"

	"virtual-hair-salon/internal/core"
)

// readRetryDelay is how long the reader waits after a failed grab.
const readRetryDelay = 10 * time.Millisecond

// CameraOptions selects and sizes the capture device.
type CameraOptions struct {
	// Device is a camera index ("0") or a file path or stream URL.
	Device string
	Width  int
	Height int
	FPS    float64
}

// CameraFactory opens cameras. It is the second setup stage of a session.
type CameraFactory struct {
	opts   CameraOptions
	logger logrus.FieldLogger
}

func NewCameraFactory(opts CameraOptions, logger logrus.FieldLogger) *CameraFactory {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CameraFactory{opts: opts, logger: logger.WithField("component", "camera")}
}

// AcquireCapture opens the device and starts reading frames from it.
func (f *CameraFactory) AcquireCapture(ctx context.Context) (core.CaptureSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	capture, err := gocv.OpenVideoCapture(parseDevice(f.opts.Device))
	if err != nil {
		return nil, errors.Wrapf(err, "open camera %q", f.opts.Device)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Errorf("camera %q is not available", f.opts.Device)
	}
	if err := ctx.Err(); err != nil {
		capture.Close()
		return nil, err
	}

	if f.opts.Width > 0 && f.opts.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(f.opts.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(f.opts.Height))
	}
	if f.opts.FPS > 0 {
		capture.Set(gocv.VideoCaptureFPS, f.opts.FPS)
	}

	cam := newCamera(capture, f.logger)
	f.logger.WithFields(logrus.Fields{
		"device":   f.opts.Device,
		"track_id": cam.track.ID(),
		"width":    capture.Get(gocv.VideoCaptureFrameWidth),
		"height":   capture.Get(gocv.VideoCaptureFrameHeight),
	}).Info("Camera opened")
	return cam, nil
}

func parseDevice(device string) interface{} {
	if id, err := strconv.Atoi(strings.TrimSpace(device)); err == nil {
		return id
	}
	return device
}

// Camera keeps the most recent decoded frame of a VideoCapture. A reader goroutine
// grabs frames as fast as the device delivers them; Frame hands out copies.
type Camera struct {
	capture *gocv.VideoCapture
	logger  logrus.FieldLogger
	track   *videoTrack

	ready atomic.Bool
	seq   atomic.Uint64

	mu         sync.RWMutex
	latest     *image.RGBA
	capturedAt time.Time

	stop chan struct{}
	done chan struct{}
}

func newCamera(capture *gocv.VideoCapture, logger logrus.FieldLogger) *Camera {
	c := &Camera{
		capture: capture,
		logger:  logger,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.track = newVideoTrack(c.release)
	go c.read()
	return c
}

func (c *Camera) read() {
	defer close(c.done)

	bgr := gocv.NewMat()
	defer bgr.Close()
	rgba := gocv.NewMat()
	defer rgba.Close()

	var misses int
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		if ok := c.capture.Read(&bgr); !ok || bgr.Empty() {
			misses++
			if misses == 1 || misses%100 == 0 {
				c.logger.WithField("misses", misses).Debug("Camera returned no frame")
			}
			select {
			case <-c.stop:
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}
		misses = 0

		gocv.CvtColor(bgr, &rgba, gocv.ColorBGRToRGBA)
		c.publish(rgba)
	}
}

func (c *Camera) publish(rgba gocv.Mat) {
	w, h := rgba.Cols(), rgba.Rows()
	data := rgba.ToBytes()
	if len(data) != w*h*4 {
		return
	}

	c.mu.Lock()
	if c.latest == nil || c.latest.Bounds().Dx() != w || c.latest.Bounds().Dy() != h {
		c.latest = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	copy(c.latest.Pix, data)
	c.capturedAt = time.Now()
	c.mu.Unlock()

	c.seq.Inc()
	c.ready.Store(true)
}

// Ready reports whether a frame has been decoded.
func (c *Camera) Ready() bool {
	return c.ready.Load()
}

// Frame returns a copy of the latest frame.
func (c *Camera) Frame() (*core.VideoFrame, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.latest == nil {
		return nil, core.ErrFrameNotReady
	}
	img := image.NewRGBA(c.latest.Bounds())
	copy(img.Pix, c.latest.Pix)
	return &core.VideoFrame{Image: img, Seq: c.seq.Load(), CapturedAt: c.capturedAt}, nil
}

// Tracks returns the single video track.
func (c *Camera) Tracks() []core.Track {
	return []core.Track{c.track}
}

func (c *Camera) release() error {
	close(c.stop)
	<-c.done
	c.ready.Store(false)
	return c.capture.Close()
}

// videoTrack is the camera's only track. Stopping it ends the reader and closes the
// device.
type videoTrack struct {
	id      string
	release func() error

	once sync.Once
}

func newVideoTrack(release func() error) *videoTrack {
	return &videoTrack{id: uuid.NewString(), release: release}
}

func (t *videoTrack) ID() string   { return t.id }
func (t *videoTrack) Kind() string { return "video" }

// Stop releases the device. Only the first call does anything.
func (t *videoTrack) Stop() error {
	var err error
	t.once.Do(func() {
		err = t.release()
	})
	return err
}
