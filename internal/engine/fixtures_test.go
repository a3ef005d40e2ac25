package engine

import (
	"math"
	"testing"

	"github.com/devika/posecam/internal/pose"
	"github.com/devika/posecam/testdata"
)

// TestParseResponse_CapturedFixtures runs captured plugin response lines
// through the decoder, so protocol drift against real plugin output shows
// up here first.
func TestParseResponse_CapturedFixtures(t *testing.T) {
	t.Run("detect", func(t *testing.T) {
		line, err := testdata.LoadResponse("detect.json")
		if err != nil {
			t.Fatal(err)
		}

		dets, metrics, err := parseResponse(line)
		if err != nil {
			t.Fatalf("parseResponse() error = %v", err)
		}
		if len(dets) != 2 {
			t.Fatalf("len(dets) = %d, want 2", len(dets))
		}
		if dets[0].Class != "person" || dets[1].Class != "chair" {
			t.Errorf("classes = %q, %q", dets[0].Class, dets[1].Class)
		}
		if metrics.InferenceMs != 6.8 {
			t.Errorf("inference ms = %v, want 6.8", metrics.InferenceMs)
		}
	})

	for _, name := range []string{"pose_flat.json", "pose_records.json"} {
		t.Run(name, func(t *testing.T) {
			line, err := testdata.LoadResponse(name)
			if err != nil {
				t.Fatal(err)
			}

			dets, _, err := parseResponse(line)
			if err != nil {
				t.Fatalf("parseResponse() error = %v", err)
			}
			if len(dets) != 1 {
				t.Fatalf("len(dets) = %d, want 1", len(dets))
			}

			kpts, ok := pose.Keypoints(dets[0].Keypoints)
			if !ok {
				t.Fatal("pose.Keypoints() missed on captured response")
			}
			if n := pose.Count(kpts); n != pose.NumJoints {
				t.Errorf("keypoint count = %d, want %d", n, pose.NumJoints)
			}
			left, right := pose.ElbowAngles(kpts)
			if math.Abs(left-90) > 1 {
				t.Errorf("left elbow = %v, want ~90", left)
			}
			if math.Abs(right-180) > 1 {
				t.Errorf("right elbow = %v, want ~180", right)
			}
		})
	}

	t.Run("error", func(t *testing.T) {
		line, err := testdata.LoadResponse("error.json")
		if err != nil {
			t.Fatal(err)
		}
		if _, _, err := parseResponse(line); err == nil {
			t.Fatal("parseResponse() error = nil, want plugin error surfaced")
		}
	})
}
