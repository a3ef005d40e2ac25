// Package session maintains the live state of a camera inference session:
// detection counts, frame rate, thresholds, the selected model and its load
// progress. Plugin callbacks mutate the state; observers are notified only
// when a displayed value actually changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/devika/posecam/internal/capture"
	"github.com/devika/posecam/internal/engine"
	"github.com/devika/posecam/internal/model"
	"github.com/devika/posecam/internal/pose"
)

// ErrClosed is returned by operations on a session that was torn down.
var ErrClosed = errors.New("session is closed")

// Notification epsilons. Changes smaller than these are not worth a UI
// refresh.
const (
	fpsEpsilon   = 0.05
	angleEpsilon = 0.5
	frac05       = 0.005
)

// Snapshot is an immutable view of the session state handed to observers.
// Angle fields are NaN when the angle is undefined for the current frame.
type Snapshot struct {
	Model         string
	Task          engine.Task
	Detections    int
	FPS           float64
	InferenceMs   float64
	LeftElbow     float64
	RightElbow    float64
	KeypointCount int
	Thresholds    engine.Thresholds
	Facing        capture.Facing
	Zoom          float64
	Loading       bool
	Progress      float64
	Status        string
	Err           string
}

// Observer receives state snapshots. Observers are invoked synchronously
// on the callback's goroutine and must not block.
type Observer func(Snapshot)

// loadOp is one in-flight model load. Concurrent load requests attach to
// it and share its outcome.
type loadOp struct {
	model string
	done  chan struct{}
	err   error
}

// Session owns the mutable state of one camera inference screen. It is
// created when the screen appears and closed on teardown; callbacks that
// arrive after Close are dropped silently.
type Session struct {
	engine   engine.Engine
	resolver model.Resolver
	now      func() time.Time

	mu          sync.Mutex
	closed      bool
	state       Snapshot
	last        Snapshot
	notified    bool
	frames      int
	windowStart time.Time
	observers   []Observer
	inflight    *loadOp
}

// New creates a Session over the given engine and model resolver.
func New(eng engine.Engine, resolver model.Resolver) *Session {
	return &Session{
		engine:   eng,
		resolver: resolver,
		now:      time.Now,
		state: Snapshot{
			Task:       engine.TaskDetect,
			Thresholds: engine.DefaultThresholds(),
			Facing:     capture.FacingBack,
			Zoom:       capture.MinZoom,
			LeftElbow:  math.NaN(),
			RightElbow: math.NaN(),
		},
	}
}

// Subscribe registers an observer. The observer immediately receives the
// current state.
func (s *Session) Subscribe(obs Observer) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.observers = append(s.observers, obs)
	snap := s.state
	s.mu.Unlock()

	obs(snap)
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HandleDetections is the per-frame result callback. It updates the
// detection count, derives elbow angles when the active model is a pose
// model, and folds the frame into the 1-second FPS window.
func (s *Session) HandleDetections(dets []engine.Detection) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	s.state.Detections = len(dets)

	left, right := math.NaN(), math.NaN()
	count := 0
	if s.state.Task == engine.TaskPose {
		for i := range dets {
			kpts, ok := pose.Keypoints(dets[i].Keypoints)
			if !ok {
				continue
			}
			left, right = pose.ElbowAngles(kpts)
			count = pose.Count(kpts)
			break
		}
	}
	s.state.LeftElbow = left
	s.state.RightElbow = right
	s.state.KeypointCount = count

	// FPS over a sliding 1-second window: accumulate frames, emit the
	// rate once per second, then restart the window.
	now := s.now()
	if s.windowStart.IsZero() {
		s.windowStart = now
	}
	s.frames++
	if elapsed := now.Sub(s.windowStart); elapsed >= time.Second {
		s.state.FPS = float64(s.frames) * 1000.0 / float64(elapsed.Milliseconds())
		s.frames = 0
		s.windowStart = now
	}

	s.publish()
}

// HandleMetrics is the per-frame performance callback.
func (s *Session) HandleMetrics(m engine.Metrics) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state.InferenceMs = m.InferenceMs
	s.publish()
}

// HandleZoom is the zoom event callback.
func (s *Session) HandleZoom(zoom float64) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state.Zoom = zoom
	s.publish()
}

// SetFacing records a camera facing switch.
func (s *Session) SetFacing(f capture.Facing) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state.Facing = f
	s.publish()
}

// SetThresholds forwards threshold updates to the engine immediately and
// records them in the state.
func (s *Session) SetThresholds(t engine.Thresholds) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	eng := s.engine
	s.mu.Unlock()

	if err := eng.Configure(t); err != nil {
		return fmt.Errorf("configure engine: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.state.Thresholds = t
	s.publish()
	return nil
}

// LoadModel resolves the model artifact and points the engine at it. At
// most one load runs per session: callers arriving while a load is
// outstanding attach to it and share its outcome, whatever model it is
// loading. There is no cancellation of an in-flight load; closing the
// session only suppresses its state updates.
func (s *Session) LoadModel(ctx context.Context, id string, task engine.Task) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	if op := s.inflight; op != nil {
		s.mu.Unlock()
		select {
		case <-op.done:
			return op.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	op := &loadOp{model: id, done: make(chan struct{})}
	s.inflight = op
	s.state.Loading = true
	s.state.Progress = 0
	s.state.Status = "resolving " + id
	s.state.Err = ""
	s.publish()

	err := s.performLoad(ctx, id, task)

	s.mu.Lock()
	op.err = err
	s.inflight = nil
	close(op.done)

	if s.closed {
		s.mu.Unlock()
		return err
	}

	s.state.Loading = false
	s.state.Progress = 0
	s.state.Status = ""
	if err != nil {
		s.state.Err = err.Error()
	} else {
		s.state.Model = id
		s.state.Task = task
		s.state.Err = ""
	}
	s.publish()
	return err
}

// performLoad runs the resolution and engine handoff outside the lock.
func (s *Session) performLoad(ctx context.Context, id string, task engine.Task) error {
	path, err := s.resolver.Resolve(ctx, id, s.handleProgress)
	if err == nil && path == "" {
		err = errors.New("resolver returned no artifact path")
	}
	if err == nil {
		err = s.engine.SetModel(path, task)
	}
	if err != nil {
		return fmt.Errorf("load model %s (%s): %w", id, task, err)
	}
	return nil
}

// handleProgress is the download progress callback for in-flight loads.
func (s *Session) handleProgress(frac float64, status string) {
	s.mu.Lock()
	if s.closed || !s.state.Loading {
		s.mu.Unlock()
		return
	}
	s.state.Progress = frac
	s.state.Status = status
	s.publish()
}

// Close tears the session down. Callbacks arriving afterwards are dropped;
// an in-flight model load still completes and reports its error to waiting
// callers, but no longer mutates state.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.observers = nil
}

// publish notifies observers when the visible state changed since the last
// notification. Must be called with the mutex held; it releases the mutex.
func (s *Session) publish() {
	if s.notified && !visiblyDifferent(s.last, s.state) {
		s.mu.Unlock()
		return
	}

	snap := s.state
	obs := make([]Observer, len(s.observers))
	copy(obs, s.observers)
	s.last = snap
	s.notified = true
	s.mu.Unlock()

	for _, o := range obs {
		o(snap)
	}
}

// visiblyDifferent reports whether two snapshots differ by more than the
// display epsilons. NaN angles compare equal to NaN.
func visiblyDifferent(a, b Snapshot) bool {
	switch {
	case a.Model != b.Model,
		a.Task != b.Task,
		a.Detections != b.Detections,
		a.KeypointCount != b.KeypointCount,
		a.Thresholds != b.Thresholds,
		a.Facing != b.Facing,
		a.Loading != b.Loading,
		a.Status != b.Status,
		a.Err != b.Err:
		return true
	}
	if math.Abs(a.FPS-b.FPS) > fpsEpsilon {
		return true
	}
	if math.Abs(a.InferenceMs-b.InferenceMs) > fpsEpsilon {
		return true
	}
	if math.Abs(a.Zoom-b.Zoom) > frac05 {
		return true
	}
	if math.Abs(a.Progress-b.Progress) > frac05 {
		return true
	}
	if angleDiffers(a.LeftElbow, b.LeftElbow) || angleDiffers(a.RightElbow, b.RightElbow) {
		return true
	}
	return false
}

func angleDiffers(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return false
	}
	if math.IsNaN(a) != math.IsNaN(b) {
		return true
	}
	return math.Abs(a-b) > angleEpsilon
}
