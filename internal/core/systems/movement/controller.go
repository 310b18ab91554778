package movement

import (
	"math"

	"github.com/zeusync/helmsman/internal/core/events/bus"
	"github.com/zeusync/helmsman/internal/core/observability/log"
	"github.com/zeusync/helmsman/internal/core/systems/physics"
)

// Controller owns the single active movement plan of one entity and answers
// "where is it at time T" in closed form.
//
// A Controller has no internal locking. SetIdle, IssueMove and Advance mutate the
// plan and must be serialized by the caller. Predict only reads; it is safe to run
// concurrently with other Predict calls but not with a mutation of the same entity.
type Controller struct {
	capability Capability
	plan       Plan
	position   physics.Vec2
	unit       int64

	logger log.Log
	events bus.EventBus
	source string
}

type Option func(*Controller)

// WithTimeUnit sets the milliseconds per kinematic time unit. Non-positive values are ignored.
func WithTimeUnit(ms int64) Option {
	return func(c *Controller) {
		if ms > 0 {
			c.unit = ms
		}
	}
}

func WithLogger(l log.Log) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEvents publishes lifecycle events to b with source as Event.Source().
func WithEvents(b bus.EventBus, source string) Option {
	return func(c *Controller) {
		c.events = b
		c.source = source
	}
}

// WithHeading sets the initial heading. The zero vector is ignored.
func WithHeading(h physics.Vec2) Option {
	return func(c *Controller) {
		if u := h.Unit(); !u.IsZero() {
			c.plan.Direction = u
			c.plan.Heading = u
		}
	}
}

func NewController(capability Capability, opts ...Option) *Controller {
	c := &Controller{
		capability: capability,
		plan:       idlePlan(physics.Vec2{}, physics.V2(1, 0), 0),
		unit:       DefaultTimeUnit,
		logger:     log.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetIdle places the entity at rest at pos. The heading carries over from the previous plan.
func (c *Controller) SetIdle(pos physics.Vec2) {
	c.capability.MarkUpdated()
	now := c.capability.LastUpdate()
	c.settle(pos, now)
	c.publish(EventIdle, now)
}

// IssueMove replaces the current plan with a path from the current position to destination.
// It reports false, leaving the plan untouched, when the capability has negative speed or
// turn acceleration.
func (c *Controller) IssueMove(destination physics.Vec2) bool {
	if c.capability.Speed() < 0 || c.capability.TurnAccel() < 0 {
		c.logger.Debug("move ignored: no propulsion",
			log.Int("speed", c.capability.Speed()),
			log.Int("turn_accel", c.capability.TurnAccel()))
		return false
	}

	c.capability.MarkUpdated()
	now := c.capability.LastUpdate()
	start := c.Advance(now)

	c.plan = planMove(start, destination, c.plan.Heading, now, kinematicsOf(c.capability))
	if c.plan.Phase == PhaseIdle {
		c.position = c.plan.Destination
		c.publish(EventIdle, now)
		return true
	}
	c.position = start
	c.publish(EventCommand, now)
	return true
}

// Advance returns the position at now and commits the arc to line transition when
// now is past the end of the arc. After that the plan is a plain straight segment.
func (c *Controller) Advance(now int64) physics.Vec2 {
	if c.plan.Phase == PhaseIdle {
		return c.position
	}
	if now < c.plan.StartTime {
		c.position = c.plan.Start
		return c.position
	}

	k := kinematicsOf(c.capability)
	dt := c.elapsed(now)

	if c.plan.Phase == PhaseTurning {
		travel := k.angularTravel(c.plan.Arc.Radius, dt)
		if travel < math.Abs(c.plan.Arc.Angle) {
			c.position, c.plan.Heading = c.plan.onArc(travel)
			return c.position
		}

		end, arcTime := c.plan.arcEnd(k)
		heading := c.plan.Destination.Sub(end)
		if heading.Len() > headingEps {
			heading = heading.Unit()
		} else {
			_, heading = c.plan.onArc(math.Abs(c.plan.Arc.Angle))
		}

		c.plan.Phase = PhaseStraight
		c.plan.Arc = Arc{}
		c.plan.Start = end
		c.plan.Direction = heading
		c.plan.Heading = heading
		c.plan.StartTime += int64(math.Round(arcTime * float64(c.unit)))
		dt -= arcTime

		c.position = end
		c.publish(EventArcComplete, c.plan.StartTime)
	}

	pos, arrived := k.lineAt(c.plan.Start, c.plan.Destination, dt)
	if arrived {
		c.settle(c.plan.Destination, now)
		c.publish(EventArrived, now)
		return c.position
	}
	c.position = pos
	return c.position
}

// Predict returns the position at future without touching the plan.
func (c *Controller) Predict(future int64) physics.Vec2 {
	p := c.plan
	if future < p.StartTime {
		return p.Start
	}
	if p.Phase == PhaseIdle {
		return p.Destination
	}

	k := kinematicsOf(c.capability)
	dt := c.elapsedFrom(p.StartTime, future)
	start := p.Start

	if p.Phase == PhaseTurning {
		travel := k.angularTravel(p.Arc.Radius, dt)
		if travel < math.Abs(p.Arc.Angle) {
			pos, _ := p.onArc(travel)
			return pos
		}
		var arcTime float64
		start, arcTime = p.arcEnd(k)
		dt -= arcTime
	}

	pos, _ := k.lineAt(start, p.Destination, dt)
	return pos
}

// ArcEndsAt is the timestamp at which the current arc hands over to the straight segment.
func (c *Controller) ArcEndsAt() (int64, bool) {
	if c.plan.Phase != PhaseTurning {
		return 0, false
	}
	_, arcTime := c.plan.arcEnd(kinematicsOf(c.capability))
	if math.IsInf(arcTime, 0) || math.IsNaN(arcTime) {
		return 0, false
	}
	return c.plan.StartTime + int64(math.Round(arcTime*float64(c.unit))), true
}

// ArrivesAt is the earliest timestamp at which Advance reports the entity idle at its destination.
func (c *Controller) ArrivesAt() (int64, bool) {
	if c.plan.Phase == PhaseIdle {
		return c.plan.StartTime, true
	}
	k := kinematicsOf(c.capability)
	if k.speed <= 0 {
		return 0, false
	}
	start := c.plan.Start
	var total float64
	if c.plan.Phase == PhaseTurning {
		var arcTime float64
		start, arcTime = c.plan.arcEnd(k)
		total += arcTime
	}
	total += start.Distance(c.plan.Destination) / k.speed
	if math.IsInf(total, 0) || math.IsNaN(total) {
		return 0, false
	}
	// one extra millisecond absorbs the rounding of the arc hand-over
	return c.plan.StartTime + int64(math.Ceil(total*float64(c.unit))) + 1, true
}

func (c *Controller) Position() physics.Vec2    { return c.position }
func (c *Controller) Heading() physics.Vec2     { return c.plan.Heading }
func (c *Controller) Destination() physics.Vec2 { return c.plan.Destination }
func (c *Controller) Phase() Phase              { return c.plan.Phase }
func (c *Controller) TurnSign() int             { return c.plan.TurnSign() }
func (c *Controller) InMotion() bool            { return c.plan.InMotion() }
func (c *Controller) TimeUnit() int64           { return c.unit }

// Plan returns a copy of the current plan.
func (c *Controller) Plan() Plan { return c.plan }

func (c *Controller) settle(pos physics.Vec2, at int64) {
	c.plan = idlePlan(pos, c.plan.Heading, at)
	c.position = pos
}

func (c *Controller) elapsed(now int64) float64 {
	return c.elapsedFrom(c.plan.StartTime, now)
}

func (c *Controller) elapsedFrom(start, now int64) float64 {
	return float64(now-start) / float64(c.unit)
}
