package app

import (
	"log"
	"time"
)

// runPipeline is the main loop that feeds camera frames through the
// inference engine and into the session.
//
// Pipeline logic:
// 1. Start in idle mode (IdleFPS=5)
// 2. On scene activity, switch to active mode (ActiveFPS=15)
// 3. Run detection on the frame
// 4. Push detections and metrics into the session
// 5. After 2s of stillness, switch back to idle mode
func (a *App) runPipeline(stopCh chan struct{}) {
	activeMode := false
	lastActivity := time.Now()

	frameInterval := time.Second / time.Duration(IdleFPS)
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			camera := a.Camera()
			frame, err := camera.ReadFrame()
			if err != nil {
				log.Printf("Error reading frame: %v", err)
				continue
			}

			active := a.config.DisableGating
			if !active {
				active, _ = a.gate.Sample(frame)
			}

			if active {
				lastActivity = time.Now()
				if !activeMode {
					activeMode = true
					camera.SetFPS(ActiveFPS)
					frameInterval = time.Second / time.Duration(ActiveFPS)
					ticker.Reset(frameInterval)
					log.Println("Switched to active mode")
				}
			} else if activeMode && time.Since(lastActivity) > idleTimeout() {
				activeMode = false
				camera.SetFPS(IdleFPS)
				frameInterval = time.Second / time.Duration(IdleFPS)
				ticker.Reset(frameInterval)
				log.Println("Switched to idle mode")
			}

			if !activeMode && !a.config.DisableGating {
				frame.Close()
				continue
			}

			if a.engine == nil {
				frame.Close()
				continue
			}

			dets, metrics, err := a.engine.Detect(frame)
			frame.Close()
			if err != nil {
				log.Printf("Error running detection: %v", err)
				continue
			}

			a.session.HandleDetections(dets)
			a.session.HandleMetrics(metrics)
		}
	}
}
