package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devika/posecam/internal/engine"
	"github.com/devika/posecam/internal/model"
	"github.com/devika/posecam/internal/server"
	"github.com/devika/posecam/internal/session"
	"github.com/devika/posecam/internal/store"
)

func TestE2E_ModelSelectionWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()

	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	// Seed the cache with a model artifact so the manager discovers it.
	cacheDir := filepath.Join(tmpDir, "models")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cacheDir, "yolov8n-pose.onnx"), []byte("weights"), 0o644); err != nil {
		t.Fatal(err)
	}

	models, err := model.NewManager(model.Config{CacheDir: cacheDir, Store: s})
	if err != nil {
		t.Fatalf("model.NewManager() error = %v", err)
	}
	if _, err := models.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	eng := engine.NewMockEngine()
	sess := session.New(eng, models)
	defer sess.Close()

	srv := server.New(server.Config{
		Store:   s,
		Session: sess,
		Models:  models,
	})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	t.Run("ListModels", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/models")
		if err != nil {
			t.Fatalf("list models error = %v", err)
		}
		defer resp.Body.Close()

		var listResp struct {
			Models []struct {
				ID   string `json:"id"`
				Task string `json:"task"`
			} `json:"models"`
		}
		json.NewDecoder(resp.Body).Decode(&listResp)

		if len(listResp.Models) != 1 {
			t.Fatalf("expected 1 discovered model, got %d", len(listResp.Models))
		}
		if listResp.Models[0].ID != "yolov8n-pose.onnx" {
			t.Errorf("model id = %q", listResp.Models[0].ID)
		}
		if listResp.Models[0].Task != "pose" {
			t.Errorf("task = %q, want pose (inferred from name)", listResp.Models[0].Task)
		}
	})

	t.Run("SelectModel", func(t *testing.T) {
		resp, err := client.Post(
			ts.URL+"/api/models",
			"application/json",
			strings.NewReader(`{"id": "yolov8n-pose.onnx"}`),
		)
		if err != nil {
			t.Fatalf("select model error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		if eng.ModelPath() == "" {
			t.Error("engine never received the model artifact")
		}
		if eng.Task() != engine.TaskPose {
			t.Errorf("engine task = %q, want pose", eng.Task())
		}
	})

	t.Run("StateReflectsDetections", func(t *testing.T) {
		sess.HandleDetections([]engine.Detection{engine.PersonWithPoseRecords()})
		sess.HandleMetrics(engine.Metrics{InferenceMs: 7.3})

		resp, err := client.Get(ts.URL + "/api/state")
		if err != nil {
			t.Fatalf("get state error = %v", err)
		}
		defer resp.Body.Close()

		var state struct {
			Model      string `json:"model"`
			Detections int    `json:"detections"`
			LeftElbow  string `json:"left_elbow"`
			RightElbow string `json:"right_elbow"`
			Keypoints  int    `json:"keypoints"`
		}
		json.NewDecoder(resp.Body).Decode(&state)

		if state.Model != "yolov8n-pose.onnx" {
			t.Errorf("model = %q", state.Model)
		}
		if state.Detections != 1 {
			t.Errorf("detections = %d, want 1", state.Detections)
		}
		if state.LeftElbow != "90°" || state.RightElbow != "180°" {
			t.Errorf("elbows = %q, %q", state.LeftElbow, state.RightElbow)
		}
		if state.Keypoints != 17 {
			t.Errorf("keypoints = %d, want 17", state.Keypoints)
		}
	})

	t.Run("AdjustThresholds", func(t *testing.T) {
		resp, err := client.Post(
			ts.URL+"/api/controls/thresholds",
			"application/json",
			strings.NewReader(`{"confidence": 0.4}`),
		)
		if err != nil {
			t.Fatalf("set thresholds error = %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		if eng.Thresholds().Confidence != 0.4 {
			t.Errorf("engine confidence = %v, want 0.4", eng.Thresholds().Confidence)
		}
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		resp, _ := client.Get(ts.URL + "/api/health")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health check failed after workflow")
		}
		resp.Body.Close()
	})
}

func TestE2E_MissingModelSurfacesError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	// No base URL and an empty cache: resolution has nowhere to go.
	models, err := model.NewManager(model.Config{CacheDir: filepath.Join(tmpDir, "models"), Store: s})
	if err != nil {
		t.Fatalf("model.NewManager() error = %v", err)
	}

	sess := session.New(engine.NewMockEngine(), models)
	defer sess.Close()

	srv := server.New(server.Config{Store: s, Session: sess})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Post(
		ts.URL+"/api/models",
		"application/json",
		strings.NewReader(`{"id": "absent.onnx", "task": "detect"}`),
	)
	if err != nil {
		t.Fatalf("select model error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadGateway)
	}

	var errResp struct {
		Error string `json:"error"`
	}
	json.NewDecoder(resp.Body).Decode(&errResp)
	if !strings.Contains(errResp.Error, "absent.onnx") {
		t.Errorf("error should name the model: %q", errResp.Error)
	}

	// The failure is also visible in the session state.
	state, err := ts.Client().Get(ts.URL + "/api/state")
	if err != nil {
		t.Fatalf("get state error = %v", err)
	}
	defer state.Body.Close()

	var stateResp struct {
		Model string `json:"model"`
		Error string `json:"error"`
	}
	json.NewDecoder(state.Body).Decode(&stateResp)
	if stateResp.Error == "" {
		t.Error("state error field empty after failed load")
	}
	if stateResp.Model != "" {
		t.Errorf("model = %q, want unchanged empty", stateResp.Model)
	}
}
