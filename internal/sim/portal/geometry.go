package portal

import (
	"github.com/df-mc/dragonfly/server/block/cube"
)

// cornerSearchDirs maps the clicked face to the two directions scanned for
// the first corner, in order.
var cornerSearchDirs = map[cube.Face][2]cube.Face{
	cube.FaceDown:  {cube.FaceSouth, cube.FaceEast},
	cube.FaceUp:    {cube.FaceSouth, cube.FaceEast},
	cube.FaceNorth: {cube.FaceDown, cube.FaceEast},
	cube.FaceSouth: {cube.FaceDown, cube.FaceEast},
	cube.FaceWest:  {cube.FaceDown, cube.FaceSouth},
	cube.FaceEast:  {cube.FaceDown, cube.FaceSouth},
}

// dispenserAxes is the axis probe order used for dispenser activation.
var dispenserAxes = [...]cube.Axis{cube.X, cube.Y, cube.Z}

func faceFor(axis cube.Axis, positive bool) cube.Face {
	switch axis {
	case cube.X:
		if positive {
			return cube.FaceEast
		}
		return cube.FaceWest
	case cube.Y:
		if positive {
			return cube.FaceUp
		}
		return cube.FaceDown
	default:
		if positive {
			return cube.FaceSouth
		}
		return cube.FaceNorth
	}
}

func axisValue(p cube.Pos, axis cube.Axis) int {
	switch axis {
	case cube.X:
		return p.X()
	case cube.Y:
		return p.Y()
	default:
		return p.Z()
	}
}

// orthogonalTo returns the other horizontal axis. Y has no horizontal
// counterpart and maps to itself.
func orthogonalTo(axis cube.Axis) cube.Axis {
	switch axis {
	case cube.X:
		return cube.Z
	case cube.Z:
		return cube.X
	default:
		return cube.Y
	}
}

// relativeFace returns the face pointing from one position to another that
// lies on a common axis line.
func relativeFace(from, to cube.Pos) (cube.Face, bool) {
	d := to.Sub(from)
	switch {
	case d.X() != 0 && d.Y() == 0 && d.Z() == 0:
		return faceFor(cube.X, d.X() > 0), true
	case d.Y() != 0 && d.X() == 0 && d.Z() == 0:
		return faceFor(cube.Y, d.Y() > 0), true
	case d.Z() != 0 && d.X() == 0 && d.Y() == 0:
		return faceFor(cube.Z, d.Z() > 0), true
	}
	return 0, false
}

// offset moves p n steps along f.
func offset(p cube.Pos, f cube.Face, n int) cube.Pos {
	d := cube.Pos{}.Side(f)
	return cube.Pos{p[0] + d[0]*n, p[1] + d[1]*n, p[2] + d[2]*n}
}

// betweenClosed lists every position in the box spanned by a and b, x
// varying fastest, then y, then z.
func betweenClosed(a, b cube.Pos) []cube.Pos {
	lo := cube.Pos{min(a[0], b[0]), min(a[1], b[1]), min(a[2], b[2])}
	hi := cube.Pos{max(a[0], b[0]), max(a[1], b[1]), max(a[2], b[2])}
	out := make([]cube.Pos, 0, (hi[0]-lo[0]+1)*(hi[1]-lo[1]+1)*(hi[2]-lo[2]+1))
	for z := lo[2]; z <= hi[2]; z++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for x := lo[0]; x <= hi[0]; x++ {
				out = append(out, cube.Pos{x, y, z})
			}
		}
	}
	return out
}

// sideLength measures the frame edge between two corners on one axis line,
// corners included.
func sideLength(a, b cube.Pos) int {
	d := a[0] - b[0] + a[1] - b[1] + a[2] - b[2]
	if d < 0 {
		d = -d
	}
	return d + 1
}

// AxisName is the serialized form of an axis.
func AxisName(a cube.Axis) string {
	switch a {
	case cube.X:
		return "x"
	case cube.Y:
		return "y"
	default:
		return "z"
	}
}

func ParseAxis(s string) (cube.Axis, bool) {
	switch s {
	case "x":
		return cube.X, true
	case "y":
		return cube.Y, true
	case "z":
		return cube.Z, true
	}
	return 0, false
}

var faceNames = map[cube.Face]string{
	cube.FaceDown:  "down",
	cube.FaceUp:    "up",
	cube.FaceNorth: "north",
	cube.FaceSouth: "south",
	cube.FaceWest:  "west",
	cube.FaceEast:  "east",
}

// FaceName is the serialized form of a face.
func FaceName(f cube.Face) string { return faceNames[f] }

func ParseFace(s string) (cube.Face, bool) {
	for f, n := range faceNames {
		if n == s {
			return f, true
		}
	}
	return 0, false
}

// Yaw converts a horizontal facing into a look direction in degrees.
func Yaw(f cube.Face) float64 {
	switch f {
	case cube.FaceEast:
		return 270
	case cube.FaceWest:
		return 90
	case cube.FaceNorth:
		return 180
	default:
		return 0
	}
}
