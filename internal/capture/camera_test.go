package capture

import (
	"image"
	"testing"
)

func TestZoomRect(t *testing.T) {
	cases := []struct {
		name string
		zoom float64
		want image.Rectangle
	}{
		{"no zoom", 1.0, image.Rect(0, 0, 640, 480)},
		{"2x centered", 2.0, image.Rect(160, 120, 480, 360)},
		{"4x centered", 4.0, image.Rect(240, 180, 400, 300)},
		{"below minimum clamps", 0.5, image.Rect(0, 0, 640, 480)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := zoomRect(640, 480, tc.zoom)
			if got != tc.want {
				t.Errorf("zoomRect(640, 480, %v) = %v, want %v", tc.zoom, got, tc.want)
			}
		})
	}
}

func TestZoomRect_TinyFrame(t *testing.T) {
	// Extreme zoom on a tiny frame must still yield a valid region.
	got := zoomRect(3, 3, MaxZoom)
	if got.Dx() < 1 || got.Dy() < 1 {
		t.Errorf("zoomRect(3, 3, %v) = %v, want at least 1x1", MaxZoom, got)
	}
	if !got.In(image.Rect(0, 0, 3, 3)) {
		t.Errorf("zoomRect(3, 3, %v) = %v, not within frame", MaxZoom, got)
	}
}

func TestCamera_ReadBeforeOpen(t *testing.T) {
	cam := NewCamera(0, -1)
	if _, err := cam.ReadFrame(); err != ErrCameraNotOpen {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
}

func TestCamera_FacingUnconfigured(t *testing.T) {
	cam := NewCamera(0, -1)
	if err := cam.SetFacing(FacingFront); err == nil {
		t.Error("SetFacing(front) error = nil, want error without a front device")
	}
	if got := cam.Facing(); got != FacingBack {
		t.Errorf("Facing() = %v, want back after failed switch", got)
	}
}

func TestCamera_ZoomClamped(t *testing.T) {
	cam := NewCamera(0, 1)

	cam.SetZoom(10)
	if got := cam.Zoom(); got != MaxZoom {
		t.Errorf("Zoom() = %v, want %v", got, MaxZoom)
	}

	cam.SetZoom(0)
	if got := cam.Zoom(); got != MinZoom {
		t.Errorf("Zoom() = %v, want %v", got, MinZoom)
	}
}

func TestCamera_FPSIgnoresInvalid(t *testing.T) {
	cam := NewCamera(0, -1)
	cam.SetFPS(0)
	cam.SetFPS(-3)
	if got := cam.FPS(); got != DefaultFPS {
		t.Errorf("FPS() = %d, want %d", got, DefaultFPS)
	}
}

func TestMockCamera_Lifecycle(t *testing.T) {
	cam := NewMockCamera()

	if _, err := cam.ReadFrame(); err != ErrCameraNotOpen {
		t.Errorf("ReadFrame() before open error = %v, want ErrCameraNotOpen", err)
	}

	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	frame, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	defer frame.Close()

	if frame.Cols() != DefaultWidth || frame.Rows() != DefaultHeight {
		t.Errorf("frame size = %dx%d, want %dx%d", frame.Cols(), frame.Rows(), DefaultWidth, DefaultHeight)
	}
	if cam.FrameCount() != 1 {
		t.Errorf("FrameCount() = %d, want 1", cam.FrameCount())
	}
}
