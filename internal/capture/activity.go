package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Activity gate constants
const (
	// gateWidth/gateHeight is the downscaled size frames are compared at.
	// Comparing small frames keeps the gate cheap relative to inference.
	gateWidth  = 160
	gateHeight = 120
	// pixelDelta is the per-pixel intensity change that counts as changed.
	pixelDelta = 25
)

// ActivityGate decides whether the scene is changing between consecutive
// frames. The pipeline uses it to drop to an idle frame rate when nothing
// moves in front of the camera.
type ActivityGate struct {
	threshold float64
	prev      gocv.Mat
	primed    bool
	mu        sync.Mutex
}

// NewActivityGate creates a gate with the given threshold: the percentage
// of pixels that must change for the scene to count as active. A threshold
// of 1.0 means 1% of pixels.
func NewActivityGate(threshold float64) *ActivityGate {
	return &ActivityGate{
		threshold: threshold,
		prev:      gocv.NewMat(),
	}
}

// Sample compares the frame against the previous one and reports whether
// the scene is active, along with the percentage of pixels that changed.
// The first frame primes the gate and reports inactive.
func (g *ActivityGate) Sample(frame *gocv.Mat) (bool, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(*frame, &small, image.Pt(gateWidth, gateHeight), 0, 0, gocv.InterpolationArea)

	gray := gocv.NewMat()
	defer gray.Close()
	if small.Channels() > 1 {
		gocv.CvtColor(small, &gray, gocv.ColorBGRToGray)
	} else {
		small.CopyTo(&gray)
	}

	if !g.primed {
		gray.CopyTo(&g.prev)
		g.primed = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, g.prev, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, pixelDelta, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(mask)) / float64(gateWidth*gateHeight) * 100.0
	gray.CopyTo(&g.prev)

	return changed > g.threshold, changed
}

// SetThreshold updates the activity threshold. Values <= 0 are ignored.
func (g *ActivityGate) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.threshold = threshold
}

// Reset clears the baseline so the next frame primes the gate again.
func (g *ActivityGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetLocked()
}

// Close releases the gate's resources.
func (g *ActivityGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetLocked()
}

func (g *ActivityGate) resetLocked() {
	if !g.prev.Empty() {
		g.prev.Close()
		g.prev = gocv.NewMat()
	}
	g.primed = false
}
