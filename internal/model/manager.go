package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devika/posecam/internal/store"
)

// ErrNoSource is returned when a model is not cached and no download base
// URL is configured.
var ErrNoSource = errors.New("model not cached and no download source configured")

// artifactExtensions are the file extensions recognized as model artifacts
// during cache discovery.
var artifactExtensions = map[string]bool{
	".onnx":    true,
	".tflite":  true,
	".rknn":    true,
	".mlmodel": true,
}

// Manager resolves model identifiers against a local cache directory,
// downloading missing artifacts over HTTP. Registry rows and download
// history are recorded in the store when one is attached.
type Manager struct {
	cacheDir string
	baseURL  string
	client   *http.Client
	store    *store.Store
	mu       sync.Mutex
}

// Config holds configuration options for the Manager.
type Config struct {
	// CacheDir is where model artifacts live. Created if missing.
	CacheDir string
	// BaseURL is the HTTP endpoint models are fetched from, as
	// BaseURL/<id>. Empty disables downloads (cache-only resolution).
	BaseURL string
	// Store records registry rows and download history. Optional.
	Store *store.Store
	// Client is the HTTP client used for downloads. Defaults to a client
	// with a 5 minute timeout.
	Client *http.Client
}

// NewManager creates a Manager with the given configuration.
func NewManager(cfg Config) (*Manager, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create model cache dir: %w", err)
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}

	return &Manager{
		cacheDir: cfg.CacheDir,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		client:   client,
		store:    cfg.Store,
	}, nil
}

// Discover scans the cache directory for model artifacts and registers
// them in the store. Returns the identifiers found.
func (m *Manager) Discover() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.cacheDir)
	if err != nil {
		return nil, fmt.Errorf("scan model cache: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !artifactExtensions[filepath.Ext(entry.Name())] {
			continue
		}
		id := entry.Name()
		ids = append(ids, id)
		m.register(id, filepath.Join(m.cacheDir, id))
	}
	return ids, nil
}

// Resolve returns the local path of the artifact for id, downloading it
// when it is not cached. The id doubles as the artifact file name.
func (m *Manager) Resolve(ctx context.Context, id string, progress Progress) (string, error) {
	if id == "" {
		return "", errors.New("empty model id")
	}
	// The id names a file inside the cache; refuse anything that could
	// escape it.
	if filepath.Base(id) != id {
		return "", fmt.Errorf("invalid model id %q", id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	path := filepath.Join(m.cacheDir, id)
	if _, err := os.Stat(path); err == nil {
		report(progress, 1.0, "cached")
		m.touch(id)
		return path, nil
	}

	if m.baseURL == "" {
		return "", fmt.Errorf("model %s: %w", id, ErrNoSource)
	}

	if err := m.download(ctx, id, path, progress); err != nil {
		m.recordDownload(id, "failed", err.Error())
		return "", err
	}

	m.register(id, path)
	m.recordDownload(id, "ok", "")
	report(progress, 1.0, "ready")
	return path, nil
}

// download fetches the artifact into a temporary file and renames it into
// the cache once complete, so partial downloads never look cached.
func (m *Manager) download(ctx context.Context, id, dest string, progress Progress) error {
	report(progress, 0.0, "downloading "+id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("download model %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download model %s: unexpected status %s", id, resp.Status)
	}

	tmp, err := os.CreateTemp(m.cacheDir, "dl-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	counter := &progressWriter{
		total:    resp.ContentLength,
		progress: progress,
		status:   "downloading " + id,
	}
	if _, err := io.Copy(tmp, io.TeeReader(resp.Body, counter)); err != nil {
		tmp.Close()
		return fmt.Errorf("download model %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("flush temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("install model %s: %w", id, err)
	}
	return nil
}

// register upserts a registry row for a cached artifact.
func (m *Manager) register(id, path string) {
	if m.store == nil {
		return
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	err := m.store.Models().Upsert(&store.Model{
		ID:        id,
		Name:      displayName(id),
		Task:      taskFor(id),
		Path:      path,
		SizeBytes: size,
	})
	if err != nil {
		log.Printf("Failed to register model %s: %v", id, err)
	}
}

func (m *Manager) touch(id string) {
	if m.store == nil {
		return
	}
	if err := m.store.Models().Touch(id); err != nil {
		log.Printf("Failed to update last-used time for %s: %v", id, err)
	}
}

func (m *Manager) recordDownload(id, status, message string) {
	if m.store == nil {
		return
	}
	err := m.store.Downloads().Record(&store.Download{
		ID:      uuid.NewString(),
		ModelID: id,
		Status:  status,
		Message: message,
	})
	if err != nil {
		log.Printf("Failed to record download of %s: %v", id, err)
	}
}

// taskFor infers the model task from its identifier. Pose model names
// carry a "-pose" marker by YOLO convention.
func taskFor(id string) string {
	base := strings.TrimSuffix(id, filepath.Ext(id))
	if strings.HasSuffix(base, "-pose") || strings.Contains(base, "pose") {
		return "pose"
	}
	return "detect"
}

// displayName strips the artifact extension for UI listings.
func displayName(id string) string {
	return strings.TrimSuffix(id, filepath.Ext(id))
}

func report(progress Progress, frac float64, status string) {
	if progress != nil {
		progress(frac, status)
	}
}

// progressWriter converts byte counts into progress fractions.
type progressWriter struct {
	total    int64
	read     int64
	progress Progress
	status   string
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.read += int64(len(p))
	if w.progress != nil && w.total > 0 {
		frac := float64(w.read) / float64(w.total)
		if frac > 1 {
			frac = 1
		}
		w.progress(frac, w.status)
	}
	return len(p), nil
}
