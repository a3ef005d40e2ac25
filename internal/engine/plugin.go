package engine

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Wire protocol message tags. Every stdin message is a tag byte followed by
// a 4-byte big-endian payload length and the payload itself. Frame payloads
// are JPEG bytes; control payloads are JSON. The plugin answers each frame
// with one JSON line on stdout and acknowledges control messages silently.
const (
	msgFrame   = 'F'
	msgControl = 'C'
)

// pluginIdleTimeout is how long the subprocess is kept alive with no
// frames before it is shut down.
const pluginIdleTimeout = 30 * time.Second

// PluginEngine runs an external detector plugin as a subprocess and speaks
// its length-prefixed frame protocol. The process is started lazily on the
// first detection and shut down after an idle period.
type PluginEngine struct {
	execPath   string
	modelPath  string
	task       Task
	thresholds Thresholds

	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewPluginEngine creates an engine backed by the plugin executable at
// execPath. The executable must exist; the process itself is not started
// until the first frame.
func NewPluginEngine(execPath string) (*PluginEngine, error) {
	if _, err := os.Stat(execPath); err != nil {
		return nil, fmt.Errorf("detector plugin %s: %w", execPath, err)
	}
	return &PluginEngine{
		execPath:   execPath,
		task:       TaskDetect,
		thresholds: DefaultThresholds(),
	}, nil
}

// SetModel points the plugin at a model artifact. A running plugin is
// restarted so it picks the model up from its command line.
func (e *PluginEngine) SetModel(path string, task Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("model artifact %s: %w", path, err)
	}

	e.modelPath = path
	e.task = task

	if e.started {
		if err := e.shutdown(); err != nil {
			return fmt.Errorf("restart plugin: %w", err)
		}
		return e.ensureStarted()
	}
	return nil
}

// Configure forwards thresholds to a running plugin as a control message.
// A stopped plugin receives them on its next start.
func (e *PluginEngine) Configure(t Thresholds) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.thresholds = t
	if !e.started {
		return nil
	}
	return e.sendControl()
}

// Detect encodes the frame as JPEG, ships it to the plugin and decodes the
// JSON detection line it answers with.
func (e *PluginEngine) Detect(frame *gocv.Mat) ([]Detection, Metrics, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureStarted(); err != nil {
		return nil, Metrics{}, err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, Metrics{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	if err := writeMessage(e.stdin, msgFrame, buf.GetBytes()); err != nil {
		return nil, Metrics{}, fmt.Errorf("send frame: %w", err)
	}

	line, err := e.stdout.ReadString('\n')
	if err != nil {
		return nil, Metrics{}, fmt.Errorf("read plugin response: %w", err)
	}

	dets, metrics, err := parseResponse([]byte(line))
	if err != nil {
		return nil, Metrics{}, err
	}

	e.resetIdleTimer()
	return dets, metrics, nil
}

// Close shuts the plugin process down.
func (e *PluginEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdown()
}

func (e *PluginEngine) ensureStarted() error {
	if e.started {
		return nil
	}

	args := []string{"--task", string(e.task)}
	if e.modelPath != "" {
		args = append(args, "--model", e.modelPath)
	}

	e.cmd = exec.Command(e.execPath, args...)

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := e.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	e.cmd.Stderr = os.Stderr

	if err := e.cmd.Start(); err != nil {
		return fmt.Errorf("start detector plugin: %w", err)
	}

	e.stdin = stdin
	e.stdout = bufio.NewReader(stdout)
	e.started = true

	return e.sendControl()
}

func (e *PluginEngine) shutdown() error {
	if !e.started {
		return nil
	}

	if e.idleTimer != nil {
		e.idleTimer.Stop()
		e.idleTimer = nil
	}

	if e.stdin != nil {
		e.stdin.Close()
	}

	err := e.cmd.Wait()
	e.started = false
	e.cmd = nil
	e.stdin = nil
	e.stdout = nil

	return err
}

func (e *PluginEngine) resetIdleTimer() {
	if e.idleTimer != nil {
		e.idleTimer.Stop()
	}
	e.idleTimer = time.AfterFunc(pluginIdleTimeout, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.shutdown()
	})
}

// sendControl pushes the current thresholds to the running plugin.
func (e *PluginEngine) sendControl() error {
	payload, err := json.Marshal(controlMessage{Thresholds: e.thresholds})
	if err != nil {
		return fmt.Errorf("marshal control message: %w", err)
	}
	if err := writeMessage(e.stdin, msgControl, payload); err != nil {
		return fmt.Errorf("send control message: %w", err)
	}
	return nil
}

// writeMessage frames a payload as tag + length + bytes.
func writeMessage(w io.Writer, tag byte, payload []byte) error {
	header := make([]byte, 5)
	header[0] = tag
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// controlMessage is the JSON control payload sent to the plugin.
type controlMessage struct {
	Thresholds Thresholds `json:"thresholds"`
}

// frameResponse is the JSON line the plugin answers a frame with. The
// keypoints field of each detection is left untyped on purpose: its shape
// is not contractually fixed across plugin versions.
type frameResponse struct {
	Detections  []Detection `json:"detections"`
	InferenceMs float64     `json:"inference_ms"`
	Error       string      `json:"error,omitempty"`
}

// parseResponse decodes one plugin response line.
func parseResponse(line []byte) ([]Detection, Metrics, error) {
	var resp frameResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, Metrics{}, fmt.Errorf("parse plugin response: %w", err)
	}
	if resp.Error != "" {
		return nil, Metrics{}, fmt.Errorf("detector plugin: %s", resp.Error)
	}
	return resp.Detections, Metrics{InferenceMs: resp.InferenceMs}, nil
}
