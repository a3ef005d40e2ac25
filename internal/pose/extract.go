package pose

import (
	"encoding/json"

	"gonum.org/v1/gonum/spatial/r2"
)

// Field names probed, in order, when resolving a keypoint collection from a
// detection record. The plugin protocol does not pin the pose output shape
// across versions, so resolution is a cascade of probes rather than a single
// schema.
var (
	keypointFields = []string{"keypoints", "kpts", "pose"}
	containerKeys  = []string{"points", "xy", "data", "keypoints", "kpts", "joints", "normalizedKeypoints"}
	pointKeys      = []string{"point", "pt", "xy"}
)

// Keypoints resolves a keypoint collection from an opaque detection record.
// The record may be a decoded JSON object carrying the collection under one
// of several field names, a container object nesting it under a known key,
// or the collection itself. Returns the first non-empty match, or false when
// nothing resolves.
func Keypoints(det any) (any, bool) {
	m, ok := det.(map[string]any)
	if !ok {
		return fromContainer(det)
	}
	for _, field := range keypointFields {
		raw, ok := m[field]
		if !ok || raw == nil {
			continue
		}
		if kpts, ok := fromContainer(raw); ok {
			return kpts, true
		}
	}
	// No keypoint field: the record may itself be a container, e.g.
	// {"points": [...]}.
	return fromContainer(det)
}

// fromContainer unwraps a value that is either the keypoint collection
// itself or an object holding it under one of the known container keys.
// Containers may nest one inside another, e.g. {"data": {"xy": [...]}}.
func fromContainer(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	if m, ok := v.(map[string]any); ok {
		for _, key := range containerKeys {
			inner, ok := m[key]
			if !ok || inner == nil {
				continue
			}
			if kpts, ok := fromContainer(inner); ok {
				return kpts, true
			}
		}
		return nil, false
	}
	if !nonEmpty(v) {
		return nil, false
	}
	return v, true
}

// nonEmpty reports whether v looks like a usable keypoint collection.
func nonEmpty(v any) bool {
	switch c := v.(type) {
	case []any:
		return len(c) > 0
	case []float64:
		return len(c) > 0
	case []float32:
		return len(c) > 0
	case []Point:
		return len(c) > 0
	}
	return false
}

// JointAt returns the 2-D position of the joint at index within a resolved
// keypoint collection. Four collection shapes are understood:
//
//  1. a flat numeric sequence covering all NumJoints joints, with the
//     per-joint stride inferred from its length (stride >= 2 required);
//  2. a sequence of 2/3-element numeric pairs indexed directly;
//  3. a sequence of records with x/y keys, optionally nesting the
//     coordinates under a point/pt/xy key;
//  4. a typed []Point slice.
//
// Out-of-range indexes, missing coordinates and unrecognized shapes all
// return ok=false; JointAt never panics.
func JointAt(kpts any, index int) (r2.Vec, bool) {
	if index < 0 {
		return r2.Vec{}, false
	}

	switch c := kpts.(type) {
	case []Point:
		if index >= len(c) {
			return r2.Vec{}, false
		}
		return r2.Vec{X: c[index].X, Y: c[index].Y}, true

	case []float64:
		return flatJoint(c, index)

	case []float32:
		vals := make([]float64, len(c))
		for i, f := range c {
			vals[i] = float64(f)
		}
		return flatJoint(vals, index)

	case []any:
		if vals, ok := asNumericSlice(c); ok {
			return flatJoint(vals, index)
		}
		if index >= len(c) {
			return r2.Vec{}, false
		}
		return pointFrom(c[index])
	}

	return r2.Vec{}, false
}

// flatJoint indexes a flat numeric sequence laid out joint-major. The
// stride is whatever the total length divides into across NumJoints.
func flatJoint(vals []float64, index int) (r2.Vec, bool) {
	if len(vals) == 0 || len(vals)%NumJoints != 0 {
		return r2.Vec{}, false
	}
	stride := len(vals) / NumJoints
	if stride < 2 || index >= NumJoints {
		return r2.Vec{}, false
	}
	off := index * stride
	return r2.Vec{X: vals[off], Y: vals[off+1]}, true
}

// pointFrom reads a single per-joint entry.
func pointFrom(v any) (r2.Vec, bool) {
	switch p := v.(type) {
	case Point:
		return r2.Vec{X: p.X, Y: p.Y}, true

	case []float64:
		if len(p) < 2 {
			return r2.Vec{}, false
		}
		return r2.Vec{X: p[0], Y: p[1]}, true

	case []any:
		if len(p) < 2 {
			return r2.Vec{}, false
		}
		x, okx := numeric(p[0])
		y, oky := numeric(p[1])
		if !okx || !oky {
			return r2.Vec{}, false
		}
		return r2.Vec{X: x, Y: y}, true

	case map[string]any:
		x, okx := numeric(p["x"])
		y, oky := numeric(p["y"])
		if okx && oky {
			return r2.Vec{X: x, Y: y}, true
		}
		for _, key := range pointKeys {
			if inner, ok := p[key]; ok && inner != nil {
				return pointFrom(inner)
			}
		}
	}

	return r2.Vec{}, false
}

// Count returns the number of joints in a resolved keypoint collection,
// or 0 when the shape is unrecognized. Used by the debug readout.
func Count(kpts any) int {
	switch c := kpts.(type) {
	case []Point:
		return len(c)
	case []float64:
		return flatCount(len(c))
	case []float32:
		return flatCount(len(c))
	case []any:
		if _, ok := asNumericSlice(c); ok {
			return flatCount(len(c))
		}
		return len(c)
	}
	return 0
}

func flatCount(n int) int {
	if n == 0 || n%NumJoints != 0 || n/NumJoints < 2 {
		return 0
	}
	return NumJoints
}

// asNumericSlice converts a []any holding only numbers into []float64.
func asNumericSlice(vals []any) ([]float64, bool) {
	if len(vals) == 0 {
		return nil, false
	}
	out := make([]float64, len(vals))
	for i, v := range vals {
		f, ok := numeric(v)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// numeric converts the number representations that show up in decoded
// plugin output.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
