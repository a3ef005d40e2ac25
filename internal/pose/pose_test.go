package pose

import (
	"encoding/json"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

const angleTolerance = 1e-9

func TestAngle_RightAngle(t *testing.T) {
	got := Angle(r2.Vec{X: 1, Y: 0}, r2.Vec{X: 0, Y: 0}, r2.Vec{X: 0, Y: 1})
	if math.Abs(got-90) > angleTolerance {
		t.Errorf("Angle() = %v, want 90", got)
	}
}

func TestAngle_Colinear(t *testing.T) {
	// B between A and C on a straight line gives a fully extended joint.
	got := Angle(r2.Vec{X: -1, Y: 0}, r2.Vec{X: 0, Y: 0}, r2.Vec{X: 1, Y: 0})
	if math.Abs(got-180) > angleTolerance {
		t.Errorf("Angle() = %v, want 180", got)
	}
}

func TestAngle_ZeroLengthVector(t *testing.T) {
	b := r2.Vec{X: 0.5, Y: 0.5}

	// A coincident with B
	if got := Angle(b, b, r2.Vec{X: 1, Y: 1}); !math.IsNaN(got) {
		t.Errorf("Angle() with A==B = %v, want NaN", got)
	}

	// C coincident with B
	if got := Angle(r2.Vec{X: 1, Y: 1}, b, b); !math.IsNaN(got) {
		t.Errorf("Angle() with C==B = %v, want NaN", got)
	}
}

func TestAngle_NearParallelClamped(t *testing.T) {
	// Nearly identical directions must not push Acos out of domain.
	a := r2.Vec{X: 1, Y: 1e-12}
	c := r2.Vec{X: 1, Y: -1e-12}
	got := Angle(a, r2.Vec{}, c)
	if math.IsNaN(got) {
		t.Fatal("Angle() = NaN for near-parallel vectors, want a number")
	}
	if got < 0 || got > 180 {
		t.Errorf("Angle() = %v, want within [0, 180]", got)
	}
}

// flatFixture builds a 17x2 flat keypoint array with distinctive arm joint
// positions: left arm at a right angle, right arm fully extended.
func flatFixture() []float64 {
	vals := make([]float64, NumJoints*2)
	set := func(joint int, x, y float64) {
		vals[joint*2] = x
		vals[joint*2+1] = y
	}
	set(LeftShoulder, 100, 100)
	set(LeftElbow, 100, 200)
	set(LeftWrist, 200, 200)
	set(RightShoulder, 300, 100)
	set(RightElbow, 300, 200)
	set(RightWrist, 300, 300)
	return vals
}

// pairFixture is the same pose as flatFixture as a list of [x, y] pairs.
func pairFixture() []any {
	vals := flatFixture()
	pairs := make([]any, NumJoints)
	for i := 0; i < NumJoints; i++ {
		pairs[i] = []any{vals[i*2], vals[i*2+1]}
	}
	return pairs
}

func TestElbowAngles_FlatArray(t *testing.T) {
	left, right := ElbowAngles(flatFixture())

	if math.Abs(left-90) > angleTolerance {
		t.Errorf("left elbow = %v, want 90", left)
	}
	if math.Abs(right-180) > angleTolerance {
		t.Errorf("right elbow = %v, want 180", right)
	}
}

func TestElbowAngles_ShapeInvariance(t *testing.T) {
	flatLeft, flatRight := ElbowAngles(flatFixture())
	pairLeft, pairRight := ElbowAngles(pairFixture())

	if math.Abs(flatLeft-pairLeft) > angleTolerance {
		t.Errorf("left elbow differs by shape: flat=%v pairs=%v", flatLeft, pairLeft)
	}
	if math.Abs(flatRight-pairRight) > angleTolerance {
		t.Errorf("right elbow differs by shape: flat=%v pairs=%v", flatRight, pairRight)
	}
}

func TestElbowAngles_RecordList(t *testing.T) {
	vals := flatFixture()
	records := make([]any, NumJoints)
	for i := 0; i < NumJoints; i++ {
		records[i] = map[string]any{"x": vals[i*2], "y": vals[i*2+1]}
	}

	left, right := ElbowAngles(records)
	if math.Abs(left-90) > angleTolerance {
		t.Errorf("left elbow = %v, want 90", left)
	}
	if math.Abs(right-180) > angleTolerance {
		t.Errorf("right elbow = %v, want 180", right)
	}
}

func TestElbowAngles_NestedPointRecords(t *testing.T) {
	vals := flatFixture()
	records := make([]any, NumJoints)
	for i := 0; i < NumJoints; i++ {
		records[i] = map[string]any{
			"pt": map[string]any{"x": vals[i*2], "y": vals[i*2+1]},
		}
	}

	left, _ := ElbowAngles(records)
	if math.Abs(left-90) > angleTolerance {
		t.Errorf("left elbow = %v, want 90", left)
	}
}

func TestElbowAngles_Undefined(t *testing.T) {
	cases := []struct {
		name string
		kpts any
	}{
		{"nil", nil},
		{"empty slice", []any{}},
		{"too few pairs", []any{[]any{1.0, 2.0}, []any{3.0, 4.0}}},
		{"flat array wrong length", make([]float64, 33)},
		{"flat array stride one", make([]float64, NumJoints)},
		{"unrecognized", "keypoints"},
		{"records missing y", []any{map[string]any{"x": 1.0}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			left, right := ElbowAngles(tc.kpts)
			if !math.IsNaN(left) || !math.IsNaN(right) {
				t.Errorf("ElbowAngles(%v) = %v, %v, want NaN, NaN", tc.kpts, left, right)
			}
		})
	}
}

func TestJointAt_OutOfRange(t *testing.T) {
	kpts := pairFixture()

	if _, ok := JointAt(kpts, -1); ok {
		t.Error("JointAt(-1) resolved, want miss")
	}
	if _, ok := JointAt(kpts, NumJoints); ok {
		t.Errorf("JointAt(%d) resolved, want miss", NumJoints)
	}
}

func TestJointAt_FlatStride3(t *testing.T) {
	// Flat array with per-joint confidence: stride 3.
	vals := make([]float64, NumJoints*3)
	vals[LeftElbow*3] = 42
	vals[LeftElbow*3+1] = 24
	vals[LeftElbow*3+2] = 0.9

	p, ok := JointAt(vals, LeftElbow)
	if !ok {
		t.Fatal("JointAt() missed on stride-3 flat array")
	}
	if p.X != 42 || p.Y != 24 {
		t.Errorf("JointAt() = %v, want {42 24}", p)
	}
}

func TestKeypoints_FieldCascade(t *testing.T) {
	flat := anySlice(flatFixture())

	cases := []struct {
		name string
		det  any
	}{
		{"direct field", map[string]any{"keypoints": flat}},
		{"kpts field", map[string]any{"kpts": flat}},
		{"pose field", map[string]any{"pose": flat}},
		{"nested container", map[string]any{"keypoints": map[string]any{"xy": flat}}},
		{"doubly nested", map[string]any{"pose": map[string]any{"data": map[string]any{"points": flat}}}},
		{"normalized key", map[string]any{"kpts": map[string]any{"normalizedKeypoints": flat}}},
		{"bare collection", flat},
		{"bare container", map[string]any{"points": flat}},
		{"bare nested container", map[string]any{"data": map[string]any{"xy": flat}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kpts, ok := Keypoints(tc.det)
			if !ok {
				t.Fatal("Keypoints() missed")
			}
			left, _ := ElbowAngles(kpts)
			if math.Abs(left-90) > angleTolerance {
				t.Errorf("left elbow = %v, want 90", left)
			}
		})
	}
}

func TestKeypoints_Misses(t *testing.T) {
	cases := []struct {
		name string
		det  any
	}{
		{"nil", nil},
		{"no keypoint field", map[string]any{"class": "person", "confidence": 0.9}},
		{"empty collection", map[string]any{"keypoints": []any{}}},
		{"container without known key", map[string]any{"keypoints": map[string]any{"other": []any{1.0}}}},
		{"scalar", 17},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := Keypoints(tc.det); ok {
				t.Errorf("Keypoints(%v) resolved, want miss", tc.det)
			}
		})
	}
}

// TestKeypoints_DecodedJSON runs the cascade against output that went
// through encoding/json, the path plugin results actually take.
func TestKeypoints_DecodedJSON(t *testing.T) {
	raw := `{"class":"person","confidence":0.87,"keypoints":{"xy":[
		[0,0],[0,0],[0,0],[0,0],[0,0],
		[100,100],[300,100],[100,200],[300,200],[200,200],[300,300],
		[0,0],[0,0],[0,0],[0,0],[0,0],[0,0]]}}`

	var det any
	if err := json.Unmarshal([]byte(raw), &det); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}

	kpts, ok := Keypoints(det)
	if !ok {
		t.Fatal("Keypoints() missed on decoded JSON")
	}
	if got := Count(kpts); got != NumJoints {
		t.Errorf("Count() = %d, want %d", got, NumJoints)
	}

	left, right := ElbowAngles(kpts)
	if math.Abs(left-90) > angleTolerance {
		t.Errorf("left elbow = %v, want 90", left)
	}
	if math.Abs(right-180) > angleTolerance {
		t.Errorf("right elbow = %v, want 180", right)
	}
}

func TestCount(t *testing.T) {
	cases := []struct {
		name string
		kpts any
		want int
	}{
		{"flat stride 2", make([]float64, NumJoints*2), NumJoints},
		{"flat stride 3", make([]float64, NumJoints*3), NumJoints},
		{"flat invalid", make([]float64, 33), 0},
		{"pairs", pairFixture(), NumJoints},
		{"points", []Point{{X: 1, Y: 2}}, 1},
		{"unrecognized", "nope", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Count(tc.kpts); got != tc.want {
				t.Errorf("Count() = %d, want %d", got, tc.want)
			}
		})
	}
}

// anySlice widens a []float64 into the []any form produced by JSON decoding.
func anySlice(vals []float64) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}
