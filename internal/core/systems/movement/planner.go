package movement

import (
	"math"

	"github.com/zeusync/helmsman/internal/core/systems/physics"
)

// planMove builds the plan that takes an entity at start, facing heading, to destination.
func planMove(start, destination, heading physics.Vec2, now int64, k kinematics) Plan {
	path := destination.Sub(start)
	if path.LenSq() < arrivalThresholdSq {
		return idlePlan(destination, heading, now)
	}

	p := Plan{
		Phase:       PhaseStraight,
		Start:       start,
		Destination: destination,
		Direction:   heading,
		Heading:     heading,
		StartTime:   now,
	}

	approach := heading.SignedAngle(path)
	sign := 0
	if approach > MinAngle {
		sign = 1
	}
	if approach < -MinAngle {
		sign = -1
	}
	if sign == 0 {
		return p
	}

	if !k.canTurn() {
		// no lateral budget: face the destination and run straight at it
		p.Direction = path.Unit()
		p.Heading = p.Direction
		return p
	}

	radius := k.minRadius()
	if inBlindZone(start, destination, heading, radius) {
		radius = path.Len() / (2 * math.Sin(math.Abs(approach)))
	}

	offset := physics.V2(-heading.Y, heading.X).Scale(float64(sign) * radius)
	p.Phase = PhaseTurning
	p.Arc = Arc{
		Sign:   sign,
		Radius: offset.Len(),
		Center: start.Add(offset),
	}
	p.Arc.Angle = turnAngle(heading, destination, p.Arc)
	return p
}

// inBlindZone reports whether destination lies inside either minimum-radius circle
// tangent to heading at start. Such points cannot be reached by a min-radius arc
// followed by a straight run.
func inBlindZone(start, destination, heading physics.Vec2, radius float64) bool {
	normal := physics.V2(-heading.Y, heading.X).Scale(radius)
	rr := radius * radius
	if destination.DistanceSq(start.Add(normal)) <= rr {
		return true
	}
	return destination.DistanceSq(start.Sub(normal)) <= rr
}

// turnAngle is the signed rotation that brings heading onto the tangent from the arc
// to destination, unwrapped so its sign matches arc.Sign.
func turnAngle(heading, destination physics.Vec2, arc Arc) float64 {
	rel := destination.Sub(arc.Center)
	hyp := rel.Len()

	// destination on the circle itself: the tangent point is the destination
	tangent := math.Pi / 2
	if arc.Radius < hyp*(1-tangentEps) {
		tangent = math.Asin(arc.Radius / hyp)
	}

	exit := rel.Rotate(tangent * float64(arc.Sign))
	angle := heading.SignedAngle(exit)

	if arc.Sign > 0 {
		for angle < 0 {
			angle += 2 * math.Pi
		}
	} else {
		for angle > 0 {
			angle -= 2 * math.Pi
		}
	}
	return angle
}
