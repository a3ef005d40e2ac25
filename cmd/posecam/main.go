package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/devika/posecam/internal/app"
	"github.com/devika/posecam/internal/capture"
	"github.com/devika/posecam/internal/engine"
	"github.com/devika/posecam/internal/model"
	"github.com/devika/posecam/internal/server"
	"github.com/devika/posecam/internal/store"
	"github.com/devika/posecam/internal/tray"
)

func main() {
	addr := flag.String("listen", ":8080", "HTTP listen address")
	dataDir := flag.String("data", "", "data directory (default ~/.posecam)")
	backID := flag.Int("camera", 0, "back camera device ID")
	frontID := flag.Int("front-camera", -1, "front camera device ID (-1 for none)")
	pluginPath := flag.String("plugin", "", "detector plugin executable")
	modelID := flag.String("model", "", "model to load on startup")
	modelURL := flag.String("model-url", "", "base URL for model downloads")
	noTray := flag.Bool("no-tray", false, "run without the system tray")
	flag.Parse()

	fmt.Println("PoseCam - Camera Object Detection")

	dir := *dataDir
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}
		dir = filepath.Join(homeDir, ".posecam")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.New(filepath.Join(dir, "posecam.db"))
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	models, err := model.NewManager(model.Config{
		CacheDir: filepath.Join(dir, "models"),
		BaseURL:  *modelURL,
		Store:    st,
	})
	if err != nil {
		log.Fatalf("Failed to initialize model manager: %v", err)
	}
	if discovered, err := models.Discover(); err != nil {
		log.Printf("Model cache scan failed: %v", err)
	} else if len(discovered) > 0 {
		log.Printf("Found %d cached models", len(discovered))
	}

	eng := newEngine(*pluginPath)

	a := app.New(app.Config{
		Engine:   eng,
		Resolver: models,
		BackID:   *backID,
		FrontID:  *frontID,
	})

	restoreSettings(st, a)

	if err := a.Start(); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}

	if id := startupModel(st, *modelID); id != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		if err := a.Session().LoadModel(ctx, id, taskFor(st, id)); err != nil {
			log.Printf("Failed to load model %s: %v", id, err)
		}
		cancel()
	}

	webDir := findWebDir(dir)
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		Session:   a.Session(),
		Camera:    a.Camera(),
		Models:    models,
	})

	go func() {
		fmt.Printf("Starting server on %s\n", *addr)
		if err := srv.ListenAndServe(*addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	if *noTray {
		select {}
	}

	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnDashboard(func() { openBrowser(dashboardURL(*addr)) })
	t.OnQuit(a.Stop)
	a.Session().Subscribe(t.Update)

	// systray must run on the main thread.
	t.Run()
}

// newEngine builds the plugin engine, falling back to the mock when no
// working plugin is available.
func newEngine(pluginPath string) engine.Engine {
	if pluginPath != "" {
		if pe, err := engine.NewPluginEngine(pluginPath); err == nil {
			log.Printf("Using detector plugin %s", pluginPath)
			return pe
		} else {
			log.Printf("Detector plugin not available (%v), using mock engine", err)
		}
	} else {
		log.Println("No detector plugin configured, using mock engine")
	}
	return engine.NewMockEngine()
}

// restoreSettings applies persisted thresholds and camera facing.
func restoreSettings(st *store.Store, a *app.App) {
	settings := st.Settings()

	t := engine.DefaultThresholds()
	if v, err := settings.Get(store.SettingConfidence); err == nil {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			t.Confidence = f
		}
	}
	if v, err := settings.Get(store.SettingIoU); err == nil {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			t.IoU = f
		}
	}
	if v, err := settings.Get(store.SettingMaxDetections); err == nil {
		if n, err := strconv.Atoi(v); err == nil {
			t.MaxDetections = n
		}
	}
	if err := a.Session().SetThresholds(t); err != nil {
		log.Printf("Failed to restore thresholds: %v", err)
	}

	if v, err := settings.Get(store.SettingFacing); err == nil {
		facing := capture.Facing(v)
		if err := a.Camera().SetFacing(facing); err == nil {
			a.Session().SetFacing(facing)
		}
	}
}

// startupModel picks the model to load on launch: the -model flag wins,
// otherwise the persisted selection.
func startupModel(st *store.Store, flagID string) string {
	if flagID != "" {
		return flagID
	}
	if id, err := st.Settings().Get(store.SettingSelectedModel); err == nil {
		return id
	}
	return ""
}

// taskFor looks the task up in the registry, defaulting to detect.
func taskFor(st *store.Store, id string) engine.Task {
	if m, err := st.Models().Get(id); err == nil {
		return engine.Task(m.Task)
	}
	return engine.TaskDetect
}

// dashboardURL turns a listen address into a browsable URL.
func dashboardURL(addr string) string {
	if addr == "" || addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

// openBrowser opens the URL in the default browser.
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}

// findWebDir searches for the web directory in common locations.
// It checks "web", "../web", "../../web" and <dataDir>/web. Returns the
// first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}
