// Package pose resolves body keypoints from detection results and derives
// joint angles from them.
package pose

// COCO body keypoint indices, as produced by YOLO pose models.
const (
	Nose          = 0
	LeftEye       = 1
	RightEye      = 2
	LeftEar       = 3
	RightEar      = 4
	LeftShoulder  = 5
	RightShoulder = 6
	LeftElbow     = 7
	RightElbow    = 8
	LeftWrist     = 9
	RightWrist    = 10
	LeftHip       = 11
	RightHip      = 12
	LeftKnee      = 13
	RightKnee     = 14
	LeftAnkle     = 15
	RightAnkle    = 16
	NumJoints     = 17
)

// Point is a single keypoint in image or normalized coordinates.
// Score is the per-joint confidence when the model reports one.
type Point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score,omitempty"`
}
