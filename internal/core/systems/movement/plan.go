package movement

import (
	"math"

	"github.com/zeusync/helmsman/internal/core/systems/physics"
)

// Phase is the stage a plan is in. It replaces the inMotion/turnSign flag pair.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseTurning
	PhaseStraight
)

func (p Phase) String() string {
	switch p {
	case PhaseTurning:
		return "turning"
	case PhaseStraight:
		return "straight"
	default:
		return "idle"
	}
}

// Arc is the circular lead-in of a turning plan.
type Arc struct {
	// Sign is +1 for counter-clockwise, -1 for clockwise.
	Sign   int          `json:"sign"`
	Radius float64      `json:"radius"`
	Center physics.Vec2 `json:"center"`
	// Angle is the total signed rotation. Its sign always matches Sign.
	Angle float64 `json:"angle"`
}

// Plan is the committed path from the last command to its destination.
// Arc is only meaningful while Phase is PhaseTurning.
type Plan struct {
	Phase       Phase        `json:"phase"`
	Start       physics.Vec2 `json:"start"`
	Destination physics.Vec2 `json:"destination"`
	// Direction is the heading at StartTime.
	Direction physics.Vec2 `json:"direction"`
	// Heading is the heading at the most recent advance.
	Heading   physics.Vec2 `json:"heading"`
	StartTime int64        `json:"start_time"`
	Arc       Arc          `json:"arc"`
}

// TurnSign is -1, +1 while turning and 0 otherwise.
func (p Plan) TurnSign() int {
	if p.Phase != PhaseTurning {
		return 0
	}
	return p.Arc.Sign
}

func (p Plan) InMotion() bool { return p.Phase != PhaseIdle }

func idlePlan(at physics.Vec2, heading physics.Vec2, startTime int64) Plan {
	return Plan{
		Phase:       PhaseIdle,
		Start:       at,
		Destination: at,
		Direction:   heading,
		Heading:     heading,
		StartTime:   startTime,
	}
}

// arcEnd is where the arc hands over to the straight segment, and the time units it takes.
func (p Plan) arcEnd(k kinematics) (physics.Vec2, float64) {
	angle := math.Abs(p.Arc.Angle)
	end := p.Start.RotateAround(float64(p.Arc.Sign)*angle, p.Arc.Center)
	return end, k.arcDuration(p.Arc.Radius, angle)
}

// onArc returns the position and heading after travel radians along the arc.
func (p Plan) onArc(travel float64) (physics.Vec2, physics.Vec2) {
	rot := float64(p.Arc.Sign) * travel
	return p.Start.RotateAround(rot, p.Arc.Center), p.Direction.Rotate(rot)
}
