package movement

import (
	"math"

	"github.com/zeusync/helmsman/internal/core/systems/physics"
)

const (
	// MinAngle is the angular tolerance below which the heading counts as aligned.
	MinAngle = 0.001
	// DefaultTimeUnit is how many milliseconds make one kinematic time unit.
	DefaultTimeUnit int64 = 200

	// arrivalThresholdSq is the squared distance under which a command snaps straight to idle.
	arrivalThresholdSq = 1.0
	// headingEps is the shortest arc-end-to-destination gap still trusted for a heading.
	headingEps = 1e-6
	// tangentEps is the relative gap under which a destination counts as lying on the arc circle.
	tangentEps = 1e-9
)

// kinematics is a snapshot of a capability's limits as floats.
type kinematics struct {
	speed float64
	accel float64
}

func kinematicsOf(c Capability) kinematics {
	return kinematics{speed: float64(c.Speed()), accel: float64(c.TurnAccel())}
}

// MinTurnRadius is speed²/accel, or +Inf when the entity cannot turn.
func MinTurnRadius(speed, accel int) float64 {
	return kinematics{speed: float64(speed), accel: float64(accel)}.minRadius()
}

func (k kinematics) minRadius() float64 {
	if k.accel <= 0 {
		return math.Inf(1)
	}
	return k.speed * k.speed / k.accel
}

func (k kinematics) canTurn() bool { return k.speed > 0 && k.accel > 0 }

// tight reports whether radius is below the physical minimum.
// Such arcs are flown at reduced speed so lateral acceleration stays at accel.
func (k kinematics) tight(radius float64) bool { return radius < k.minRadius() }

// angularTravel is the rotation in radians after dt time units on an arc of radius.
func (k kinematics) angularTravel(radius, dt float64) float64 {
	if radius <= 0 {
		return 0
	}
	if k.tight(radius) {
		return math.Sqrt(k.accel/radius) * dt
	}
	return k.speed * dt / radius
}

// arcDuration is the inverse of angularTravel.
func (k kinematics) arcDuration(radius, angle float64) float64 {
	if k.tight(radius) {
		return math.Sqrt(radius/k.accel) * angle
	}
	if k.speed <= 0 {
		return math.Inf(1)
	}
	return angle * radius / k.speed
}

// lineAt is the position dt time units along the segment from start to destination,
// and whether the destination has been reached.
func (k kinematics) lineAt(start, destination physics.Vec2, dt float64) (physics.Vec2, bool) {
	if dt < 0 {
		dt = 0
	}
	path := destination.Sub(start)
	dist := path.LenSq()
	step := k.speed * dt
	if step*step < dist {
		return start.Add(path.Scale(step / math.Sqrt(dist))), false
	}
	return destination, true
}
