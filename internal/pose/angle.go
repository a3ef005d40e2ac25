package pose

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Angle returns the interior angle at b, in degrees, formed by the segments
// b->a and b->c. The result is in [0, 180]. When either segment has zero
// length the angle is undefined and NaN is returned.
func Angle(a, b, c r2.Vec) float64 {
	ba := r2.Sub(a, b)
	bc := r2.Sub(c, b)

	magBA := r2.Norm(ba)
	magBC := r2.Norm(bc)
	if magBA == 0 || magBC == 0 {
		return math.NaN()
	}

	cos := r2.Dot(ba, bc) / (magBA * magBC)

	// Clamp against floating point drift at near-parallel vectors, which
	// otherwise pushes Acos out of its domain.
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}

	return math.Acos(cos) * 180 / math.Pi
}

// ElbowAngles computes the left and right elbow angles, in degrees, from a
// resolved keypoint collection. An angle is NaN when any of its three
// joints (shoulder, elbow, wrist) is missing or the configuration is
// degenerate.
func ElbowAngles(kpts any) (left, right float64) {
	left = jointAngle(kpts, LeftShoulder, LeftElbow, LeftWrist)
	right = jointAngle(kpts, RightShoulder, RightElbow, RightWrist)
	return left, right
}

// jointAngle computes the angle at mid formed by first-mid-last, NaN when
// any joint fails to resolve.
func jointAngle(kpts any, first, mid, last int) float64 {
	a, ok := JointAt(kpts, first)
	if !ok {
		return math.NaN()
	}
	b, ok := JointAt(kpts, mid)
	if !ok {
		return math.NaN()
	}
	c, ok := JointAt(kpts, last)
	if !ok {
		return math.NaN()
	}
	return Angle(a, b, c)
}
