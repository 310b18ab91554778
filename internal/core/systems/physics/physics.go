package physics

import (
	"math"
	"math/rand"
	"strconv"
)

// Vec2 is an immutable planar point or displacement.
// Every operation returns a new value.
type Vec2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// V2 creates a new Vec2.
func V2(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (v Vec2) Add(o Vec2) Vec2           { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2           { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(s float64) Vec2      { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) Neg() Vec2                 { return Vec2{-v.X, -v.Y} }
func (v Vec2) Dot(o Vec2) float64        { return v.X*o.X + v.Y*o.Y }
func (v Vec2) Cross(o Vec2) float64      { return v.X*o.Y - v.Y*o.X }
func (v Vec2) LenSq() float64            { return v.Dot(v) }
func (v Vec2) Len() float64              { return math.Sqrt(v.LenSq()) }
func (v Vec2) IsZero() bool              { return v.X == 0 && v.Y == 0 }
func (v Vec2) DistanceSq(o Vec2) float64 { return o.Sub(v).LenSq() }
func (v Vec2) Distance(o Vec2) float64   { return o.Sub(v).Len() }

// Unit returns the unit vector in the direction of v.
// The zero vector maps to the zero vector.
func (v Vec2) Unit() Vec2 {
	l := v.Len()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// Rotate rotates v about the origin by angle radians (counter-clockwise positive).
func (v Vec2) Rotate(angle float64) Vec2 {
	sin, cos := math.Sincos(angle)
	return Vec2{
		X: v.X*cos - v.Y*sin,
		Y: v.X*sin + v.Y*cos,
	}
}

// RotateAround rotates v about pivot by angle radians.
func (v Vec2) RotateAround(angle float64, pivot Vec2) Vec2 {
	return v.Sub(pivot).Rotate(angle).Add(pivot)
}

// SignedAngle returns the angle from v to o in (-π, π].
// It is 0 when either vector has zero length.
func (v Vec2) SignedAngle(o Vec2) float64 {
	m := v.LenSq() * o.LenSq()
	if m == 0 {
		return 0
	}
	m = math.Sqrt(m)
	a := math.Atan2(v.Cross(o)/m, v.Dot(o)/m)
	if a == -math.Pi {
		return math.Pi
	}
	return a
}

// IsParallelTo reports exact (anti)parallelism.
func (v Vec2) IsParallelTo(o Vec2) bool {
	return v.Cross(o) == 0
}

// IsPerpendicularTo reports exact orthogonality.
func (v Vec2) IsPerpendicularTo(o Vec2) bool {
	return v.Dot(o) == 0
}

// Ints truncates both components toward zero.
func (v Vec2) Ints() (x, y int) { return int(v.X), int(v.Y) }

func (v Vec2) String() string {
	x, y := v.Ints()
	return strconv.Itoa(x) + "," + strconv.Itoa(y)
}

// Random returns an integer-valued offset with both components uniform in [-disperse, disperse].
// A non-positive disperse yields the zero vector.
func Random(rng *rand.Rand, disperse int) Vec2 {
	if disperse <= 0 || rng == nil {
		return Vec2{}
	}
	n := 2*disperse + 1
	return Vec2{
		X: float64(rng.Intn(n) - disperse),
		Y: float64(rng.Intn(n) - disperse),
	}
}

// Distance computes Euclidean distance between two points.
func Distance(a, b Vec2) float64 { return a.Distance(b) }

// Lerp interpolates linearly between a and b.
func Lerp(a, b Vec2, t float64) Vec2 { return a.Add(b.Sub(a).Scale(t)) }
