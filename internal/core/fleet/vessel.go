package fleet

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/zeusync/helmsman/internal/core/systems/movement"
	"github.com/zeusync/helmsman/internal/core/systems/physics"
)

// Class describes the propulsion of a family of vessels.
type Class struct {
	Name      string `yaml:"name" json:"name"`
	Speed     int    `yaml:"speed" json:"speed"`
	TurnAccel int    `yaml:"turn_accel" json:"turn_accel"`
}

func (c Class) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidClass)
	}
	if c.Speed < 0 || c.TurnAccel < 0 {
		return fmt.Errorf("%w: %s has negative speed or turn acceleration", ErrInvalidClass, c.Name)
	}
	return nil
}

// MinTurnRadius is the tightest circle the class can fly at full speed.
func (c Class) MinTurnRadius() float64 {
	return movement.MinTurnRadius(c.Speed, c.TurnAccel)
}

// Vessel is a fleet member driven by its own movement controller.
// Controller access is serialized by the lock of the registry shard owning the vessel.
type Vessel struct {
	id     uuid.UUID
	class  Class
	clock  movement.Clock
	last   atomic.Int64
	ctrl   *movement.Controller
	mu     *sync.Mutex
	spawn  physics.Vec2
	create int64
}

var (
	_ movement.Capability = (*Vessel)(nil)
	_ movement.Tracker    = (*Vessel)(nil)
)

func (v *Vessel) ID() uuid.UUID           { return v.id }
func (v *Vessel) Class() Class            { return v.class }
func (v *Vessel) Speed() int              { return v.class.Speed }
func (v *Vessel) TurnAccel() int          { return v.class.TurnAccel }
func (v *Vessel) MarkUpdated()            { v.last.Store(v.clock.NowMillis()) }
func (v *Vessel) LastUpdate() int64       { return v.last.Load() }
func (v *Vessel) CreatedAt() int64        { return v.create }
func (v *Vessel) SpawnedAt() physics.Vec2 { return v.spawn }

// CurrentPosition evaluates the plan without committing the arc to line transition.
func (v *Vessel) CurrentPosition(at int64) physics.Vec2 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ctrl.Predict(at)
}

// IsVisible always reports true; the fleet has no fog of war.
func (v *Vessel) IsVisible(int64) bool {
	return true
}

// Snapshot is the externally visible state of one vessel at a point in time.
type Snapshot struct {
	ID          uuid.UUID      `json:"id"`
	Class       string         `json:"class"`
	At          int64          `json:"at"`
	Position    physics.Vec2   `json:"position"`
	Heading     physics.Vec2   `json:"heading"`
	Destination physics.Vec2   `json:"destination"`
	Phase       movement.Phase `json:"phase"`
	TurnSign    int            `json:"turn_sign"`
	ArrivesAt   int64          `json:"arrives_at,omitempty"`
	Visible     bool           `json:"visible"`
	CreatedAt   int64          `json:"created_at"`
	SpawnedAt   physics.Vec2   `json:"spawned_at"`
}

func (v *Vessel) snapshot(at int64, pos physics.Vec2) Snapshot {
	s := Snapshot{
		ID:          v.id,
		Class:       v.class.Name,
		At:          at,
		Position:    pos,
		Heading:     v.ctrl.Heading(),
		Destination: v.ctrl.Destination(),
		Phase:       v.ctrl.Phase(),
		TurnSign:    v.ctrl.TurnSign(),
		Visible:     v.IsVisible(at),
		CreatedAt:   v.CreatedAt(),
		SpawnedAt:   v.SpawnedAt(),
	}
	if eta, ok := v.ctrl.ArrivesAt(); ok {
		s.ArrivesAt = eta
	}
	return s
}
