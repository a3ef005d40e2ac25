package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockCamera is a test implementation of the Camera interface. It returns
// synthetic frames and records facing/zoom changes.
type MockCamera struct {
	mu      sync.Mutex
	open    bool
	fps     int
	facing  Facing
	zoom    float64
	frames  int
	readErr error
}

// NewMockCamera creates a new MockCamera instance.
func NewMockCamera() *MockCamera {
	return &MockCamera{
		fps:    DefaultFPS,
		facing: FacingBack,
		zoom:   MinZoom,
	}
}

// SetReadError makes subsequent ReadFrame calls return err.
func (m *MockCamera) SetReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// Open marks the camera open.
func (m *MockCamera) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	return nil
}

// Close marks the camera closed.
func (m *MockCamera) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

// ReadFrame returns a blank synthetic frame.
func (m *MockCamera) ReadFrame() (*gocv.Mat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return nil, ErrCameraNotOpen
	}
	if m.readErr != nil {
		return nil, m.readErr
	}

	m.frames++
	mat := gocv.NewMatWithSize(DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
	return &mat, nil
}

// SetFPS records the frame rate.
func (m *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fps = fps
}

// FPS returns the recorded frame rate.
func (m *MockCamera) FPS() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fps
}

// IsOpen reports whether Open was called.
func (m *MockCamera) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// SetFacing records the facing.
func (m *MockCamera) SetFacing(f Facing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facing = f
	return nil
}

// Facing returns the recorded facing.
func (m *MockCamera) Facing() Facing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.facing
}

// SetZoom records the zoom factor, clamped like the real camera.
func (m *MockCamera) SetZoom(zoom float64) {
	if zoom < MinZoom {
		zoom = MinZoom
	}
	if zoom > MaxZoom {
		zoom = MaxZoom
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zoom = zoom
}

// Zoom returns the recorded zoom factor.
func (m *MockCamera) Zoom() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.zoom
}

// FrameCount returns how many frames were read.
func (m *MockCamera) FrameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}
