// Package main provides a mock detector plugin for development without
// inference hardware. It speaks the engine's length-prefixed stdin protocol
// and answers every frame with synthetic detections, cycling through the
// keypoint encodings real plugin builds have been seen to emit.
package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
)

// Message tags of the stdin protocol: a tag byte, a 4-byte big-endian
// payload length, then the payload. 'F' carries a JPEG frame, 'C' a JSON
// control message.
const (
	msgFrame   = 'F'
	msgControl = 'C'
)

// Thresholds mirrors the engine's control payload.
type Thresholds struct {
	Confidence    float64 `json:"confidence"`
	IoU           float64 `json:"iou"`
	MaxDetections int     `json:"max_detections"`
}

// Control is the JSON control message sent by the host.
type Control struct {
	Thresholds Thresholds `json:"thresholds"`
}

// Box is an axis-aligned bounding box in pixel coordinates.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Detection is one synthetic detection result.
type Detection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Keypoints  any     `json:"keypoints,omitempty"`
}

// Response is the JSON line written for each frame.
type Response struct {
	Detections  []Detection `json:"detections"`
	InferenceMs float64     `json:"inference_ms"`
	Error       string      `json:"error,omitempty"`
}

// pose is a fixed standing figure in 640x480 pixel space, 17 COCO joints.
// The left elbow is bent at a right angle, the right arm hangs straight.
var pose = []float64{
	320, 80, // nose
	310, 70, 330, 70, // eyes
	300, 75, 340, 75, // ears
	280, 140, 360, 140, // shoulders
	280, 220, 360, 220, // elbows
	350, 220, 360, 300, // wrists
	290, 300, 350, 300, // hips
	290, 380, 350, 380, // knees
	290, 460, 350, 460, // ankles
}

func main() {
	task := flag.String("task", "detect", "inference task: detect or pose")
	model := flag.String("model", "", "model artifact path (ignored)")
	flag.Parse()
	_ = model

	in := bufio.NewReader(os.Stdin)
	out := bufio.NewWriter(os.Stdout)
	enc := json.NewEncoder(out)

	thresholds := Thresholds{Confidence: 0.25, IoU: 0.45, MaxDetections: 300}
	frames := 0

	for {
		tag, payload, err := readMessage(in)
		if err == io.EOF {
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "mockyolo: %v\n", err)
			return
		}

		switch tag {
		case msgControl:
			var ctrl Control
			if err := json.Unmarshal(payload, &ctrl); err == nil {
				thresholds = ctrl.Thresholds
			}
		case msgFrame:
			resp := respond(*task, thresholds, frames)
			frames++
			if err := enc.Encode(resp); err != nil {
				return
			}
			out.Flush()
		}
	}
}

// readMessage reads one tag + length + payload message from the host.
func readMessage(r *bufio.Reader) (byte, []byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.ErrUnexpectedEOF {
			return 0, nil, io.EOF
		}
		return 0, nil, err
	}

	length := binary.BigEndian.Uint32(header[1:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("read payload: %w", err)
	}
	return header[0], payload, nil
}

// respond builds the synthetic detections for one frame.
func respond(task string, t Thresholds, frame int) Response {
	det := Detection{
		Class:      "person",
		Confidence: 0.91,
		Box:        Box{X: 250, Y: 60, W: 140, H: 410},
	}
	if det.Confidence < t.Confidence {
		return Response{Detections: []Detection{}, InferenceMs: 4.2}
	}

	if task == "pose" {
		det.Keypoints = encodeKeypoints(frame)
	}

	return Response{Detections: []Detection{det}, InferenceMs: 4.2}
}

// encodeKeypoints cycles through the keypoint shapes seen in the wild so the
// host's defensive parsing stays exercised: a flat array, xy pairs, and a
// list of point records.
func encodeKeypoints(frame int) any {
	switch frame % 3 {
	case 0:
		return pose
	case 1:
		pairs := make([][]float64, 0, len(pose)/2)
		for i := 0; i < len(pose); i += 2 {
			pairs = append(pairs, []float64{pose[i], pose[i+1]})
		}
		return map[string]any{"xy": pairs}
	default:
		records := make([]map[string]float64, 0, len(pose)/2)
		for i := 0; i < len(pose); i += 2 {
			records = append(records, map[string]float64{
				"x":     pose[i],
				"y":     pose[i+1],
				"score": 0.9,
			})
		}
		return records
	}
}
