package physics

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func TestVec2Algebra(t *testing.T) {
	a := V2(3, 4)
	b := V2(-1, 2)

	assert.Equal(t, V2(2, 6), a.Add(b))
	assert.Equal(t, V2(4, 2), a.Sub(b))
	assert.Equal(t, V2(6, 8), a.Scale(2))
	assert.Equal(t, V2(-3, -4), a.Neg())
	assert.Equal(t, 5.0, a.Dot(b))
	assert.Equal(t, 10.0, a.Cross(b))
	assert.Equal(t, 25.0, a.LenSq())
	assert.Equal(t, 5.0, a.Len())
	assert.Equal(t, 20.0, a.DistanceSq(b))
	assert.InDelta(t, math.Sqrt(20), Distance(a, b), eps)
}

func TestVec2Unit(t *testing.T) {
	u := V2(3, 4).Unit()
	assert.InDelta(t, 0.6, u.X, eps)
	assert.InDelta(t, 0.8, u.Y, eps)

	z := Vec2{}.Unit()
	assert.True(t, z.IsZero())
	assert.False(t, math.IsNaN(z.X) || math.IsNaN(z.Y))
}

func TestVec2Rotate(t *testing.T) {
	r := V2(1, 0).Rotate(math.Pi / 2)
	assert.InDelta(t, 0, r.X, eps)
	assert.InDelta(t, 1, r.Y, eps)

	r = V2(1, 0).Rotate(-math.Pi / 2)
	assert.InDelta(t, 0, r.X, eps)
	assert.InDelta(t, -1, r.Y, eps)

	// quarter turn of (0,0) about (0,100) lands on (100,100)
	p := V2(0, 0).RotateAround(math.Pi/2, V2(0, 100))
	assert.InDelta(t, 100, p.X, eps)
	assert.InDelta(t, 100, p.Y, eps)

	// rotation preserves distance to the pivot
	pivot := V2(7, -3)
	q := V2(12, 9)
	for _, ang := range []float64{0.1, 1, 2.5, -3} {
		assert.InDelta(t, q.Distance(pivot), q.RotateAround(ang, pivot).Distance(pivot), eps)
	}
}

func TestVec2SignedAngle(t *testing.T) {
	tests := []struct {
		name string
		a, b Vec2
		want float64
	}{
		{"same direction", V2(1, 0), V2(5, 0), 0},
		{"left quarter", V2(1, 0), V2(0, 3), math.Pi / 2},
		{"right quarter", V2(1, 0), V2(0, -3), -math.Pi / 2},
		{"opposite", V2(1, 0), V2(-2, 0), math.Pi},
		{"opposite negative zero", V2(1, 0), V2(-2, math.Copysign(0, -1)), math.Pi},
		{"diagonal", V2(0, 1), V2(1, 1), -math.Pi / 4},
		{"zero receiver", Vec2{}, V2(1, 1), 0},
		{"zero argument", V2(1, 1), Vec2{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.SignedAngle(tt.b)
			assert.InDelta(t, tt.want, got, eps)
			assert.Greater(t, got, -math.Pi)
			assert.LessOrEqual(t, got, math.Pi)
		})
	}
}

func TestVec2ParallelPerpendicular(t *testing.T) {
	assert.True(t, V2(1, 2).IsParallelTo(V2(-2, -4)))
	assert.False(t, V2(1, 2).IsParallelTo(V2(2, 1)))
	assert.True(t, V2(1, 2).IsPerpendicularTo(V2(-2, 1)))
	assert.False(t, V2(1, 2).IsPerpendicularTo(V2(1, 1)))
}

func TestVec2String(t *testing.T) {
	assert.Equal(t, "12,-3", V2(12.9, -3.7).String())
}

func TestRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		v := Random(rng, 5)
		require.GreaterOrEqual(t, v.X, -5.0)
		require.LessOrEqual(t, v.X, 5.0)
		require.GreaterOrEqual(t, v.Y, -5.0)
		require.LessOrEqual(t, v.Y, 5.0)
		require.Equal(t, math.Trunc(v.X), v.X)
	}

	// same seed, same sequence
	a := Random(rand.New(rand.NewSource(7)), 100)
	b := Random(rand.New(rand.NewSource(7)), 100)
	assert.Equal(t, a, b)

	assert.True(t, Random(rng, 0).IsZero())
	assert.True(t, Random(nil, 10).IsZero())
}

func TestLerp(t *testing.T) {
	assert.Equal(t, V2(5, 10), Lerp(V2(0, 0), V2(10, 20), 0.5))
}
