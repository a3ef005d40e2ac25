// Package app provides the main application logic for the PoseCam detection
// system.
package app

import (
	"log"
	"sync"
	"time"

	"github.com/devika/posecam/internal/capture"
	"github.com/devika/posecam/internal/engine"
	"github.com/devika/posecam/internal/model"
	"github.com/devika/posecam/internal/session"
)

// Pipeline timing constants.
const (
	// IdleFPS is the frame rate when the scene is still.
	IdleFPS = 5
	// ActiveFPS is the frame rate while activity is detected.
	ActiveFPS = 15
	// IdleTimeoutMs is the time in milliseconds of stillness before
	// switching back to idle mode.
	IdleTimeoutMs = 2000
)

// Config holds configuration options for the application.
type Config struct {
	Engine   engine.Engine
	Resolver model.Resolver
	BackID   int
	FrontID  int
	// ActivityThresh is the percentage of changed pixels that counts as
	// activity. Zero selects the default.
	ActivityThresh float64
	// DisableGating runs every frame through the engine regardless of
	// scene activity.
	DisableGating bool
}

// App orchestrates the camera, the activity gate, the inference engine and
// the session state.
type App struct {
	config  Config
	camera  capture.Camera
	gate    *capture.ActivityGate
	engine  engine.Engine
	session *session.Session
	enabled bool
	mu      sync.RWMutex
	stopCh  chan struct{}
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	threshold := config.ActivityThresh
	if threshold <= 0 {
		threshold = 1.0 // Default threshold: 1% pixel change
	}

	return &App{
		config:  config,
		camera:  capture.NewCamera(config.BackID, config.FrontID),
		gate:    capture.NewActivityGate(threshold),
		engine:  config.Engine,
		session: session.New(config.Engine, config.Resolver),
		enabled: true,
	}
}

// SetEnabled pauses or resumes inference. The camera keeps running so the
// preview stream stays live.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether inference is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetCamera replaces the camera implementation. Intended for tests.
func (a *App) SetCamera(c capture.Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.camera = c
}

// Start opens the camera and begins the detection pipeline.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}

	a.camera.SetFPS(IdleFPS)

	a.stopCh = make(chan struct{})
	go a.runPipeline(a.stopCh)

	log.Println("Detection pipeline started")
	return nil
}

// Stop halts the detection pipeline and releases resources. The session is
// closed first so late frame callbacks are dropped rather than applied.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		close(a.stopCh)
		a.stopCh = nil
	}

	a.session.Close()

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}

	a.gate.Close()

	if a.engine != nil {
		if err := a.engine.Close(); err != nil {
			log.Printf("Error closing engine: %v", err)
		}
	}

	log.Println("Detection pipeline stopped")
}

// Session returns the session state.
func (a *App) Session() *session.Session {
	return a.session
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.camera
}

// ActivityGate returns the activity gate instance.
func (a *App) ActivityGate() *capture.ActivityGate {
	return a.gate
}

// idleTimeout returns the stillness duration before dropping to idle FPS.
func idleTimeout() time.Duration {
	return time.Duration(IdleTimeoutMs) * time.Millisecond
}
