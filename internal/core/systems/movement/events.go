package movement

import (
	"fmt"

	"github.com/zeusync/helmsman/internal/core/events/bus"
	"github.com/zeusync/helmsman/internal/core/observability/log"
	"github.com/zeusync/helmsman/internal/core/systems/physics"
)

// Event types published by a Controller with an attached bus.
const (
	EventIdle        = "movement.idle"
	EventCommand     = "movement.command"
	EventArcComplete = "movement.arc_complete"
	EventArrived     = "movement.arrived"
)

// Event is the payload carried by every movement bus event.
type Event struct {
	Kind        string       `json:"kind"`
	At          int64        `json:"at"`
	Position    physics.Vec2 `json:"position"`
	Destination physics.Vec2 `json:"destination"`
	Heading     physics.Vec2 `json:"heading"`
	Phase       Phase        `json:"phase"`
	TurnSign    int          `json:"turn_sign"`
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*p = PhaseIdle
	case "turning":
		*p = PhaseTurning
	case "straight":
		*p = PhaseStraight
	default:
		return fmt.Errorf("unknown phase %q", text)
	}
	return nil
}

func (c *Controller) publish(kind string, at int64) {
	c.logger.Debug(kind,
		log.Int64("at", at),
		log.Stringer("position", c.position),
		log.Stringer("destination", c.plan.Destination),
		log.Stringer("phase", c.plan.Phase),
		log.Int("turn_sign", c.plan.TurnSign()),
	)
	if c.events == nil {
		return
	}
	ev := Event{
		Kind:        kind,
		At:          at,
		Position:    c.position,
		Destination: c.plan.Destination,
		Heading:     c.plan.Heading,
		Phase:       c.plan.Phase,
		TurnSign:    c.plan.TurnSign(),
	}
	if err := c.events.Publish(bus.NewEvent(kind, c.source, ev)); err != nil {
		c.logger.Warn("movement event handler failed", log.String("kind", kind), log.Error(err))
	}
}
