// Package capture provides camera capture with digital zoom and
// front/back facing switching, built on GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480

	// MinZoom and MaxZoom bound the digital zoom factor.
	MinZoom = 1.0
	MaxZoom = 5.0
)

// ErrCameraNotOpen is returned when reading from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// Facing identifies which physical camera is selected.
type Facing string

const (
	FacingBack  Facing = "back"
	FacingFront Facing = "front"
)

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame reads a single frame, with the current zoom applied.
	// The caller owns the returned Mat and must close it.
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
	// SetFacing switches between the front and back device. An open camera
	// is reopened on the new device.
	SetFacing(f Facing) error
	Facing() Facing
	// SetZoom sets the digital zoom factor, clamped to [MinZoom, MaxZoom].
	SetZoom(zoom float64)
	Zoom() float64
}

// cameraImpl captures from one of two camera devices using GoCV.
type cameraImpl struct {
	devices map[Facing]int
	facing  Facing
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	fps     int
	zoom    float64
}

// NewCamera creates a Camera over the given back and front device IDs.
// A negative frontID means no front camera is available.
func NewCamera(backID, frontID int) Camera {
	devices := map[Facing]int{FacingBack: backID}
	if frontID >= 0 {
		devices[FacingFront] = frontID
	}
	return &cameraImpl{
		devices: devices,
		facing:  FacingBack,
		fps:     DefaultFPS,
		zoom:    MinZoom,
	}
}

// Open opens the currently selected camera device at 640x480.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openLocked()
}

func (c *cameraImpl) openLocked() error {
	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.devices[c.facing])
	if err != nil {
		return fmt.Errorf("open %s camera: %w", c.facing, err)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true
	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *cameraImpl) closeLocked() error {
	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	c.running = false
	return err
}

// ReadFrame reads a single frame and applies the digital zoom crop.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from camera")
	}
	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	if c.zoom <= MinZoom {
		return &mat, nil
	}

	zoomed := applyZoom(&mat, c.zoom)
	mat.Close()
	return zoomed, nil
}

// applyZoom crops the centered 1/zoom region and scales it back up to the
// source resolution.
func applyZoom(mat *gocv.Mat, zoom float64) *gocv.Mat {
	width := mat.Cols()
	height := mat.Rows()

	crop := zoomRect(width, height, zoom)
	region := mat.Region(crop)
	defer region.Close()

	zoomed := gocv.NewMat()
	gocv.Resize(region, &zoomed, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
	return &zoomed
}

// zoomRect returns the centered crop rectangle for the given zoom factor.
func zoomRect(width, height int, zoom float64) image.Rectangle {
	if zoom < MinZoom {
		zoom = MinZoom
	}
	cropW := int(float64(width) / zoom)
	cropH := int(float64(height) / zoom)
	if cropW < 1 {
		cropW = 1
	}
	if cropH < 1 {
		cropH = 1
	}
	x := (width - cropW) / 2
	y := (height - cropH) / 2
	return image.Rect(x, y, x+cropW, y+cropH)
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps
	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

// IsOpen returns true if the camera is currently open.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// SetFacing switches the active camera device.
func (c *cameraImpl) SetFacing(f Facing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.devices[f]; !ok {
		return fmt.Errorf("no %s camera configured", f)
	}
	if f == c.facing {
		return nil
	}

	wasRunning := c.running
	if wasRunning {
		if err := c.closeLocked(); err != nil {
			return err
		}
	}

	c.facing = f
	if wasRunning {
		return c.openLocked()
	}
	return nil
}

// Facing returns the currently selected camera device.
func (c *cameraImpl) Facing() Facing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.facing
}

// SetZoom sets the digital zoom factor, clamped to [MinZoom, MaxZoom].
func (c *cameraImpl) SetZoom(zoom float64) {
	if zoom < MinZoom {
		zoom = MinZoom
	}
	if zoom > MaxZoom {
		zoom = MaxZoom
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.zoom = zoom
}

// Zoom returns the current digital zoom factor.
func (c *cameraImpl) Zoom() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoom
}
