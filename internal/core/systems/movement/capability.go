package movement

import "github.com/zeusync/helmsman/internal/core/systems/physics"

// Capability is what an entity must expose to be driven by a Controller.
type Capability interface {
	// Speed is the maximum linear speed, in distance per time unit.
	Speed() int
	// TurnAccel is the lateral acceleration budget. The minimum turn radius is Speed²/TurnAccel.
	TurnAccel() int
	// MarkUpdated records the current clock reading as the last update.
	MarkUpdated()
	// LastUpdate is the millisecond timestamp recorded by the latest MarkUpdated.
	LastUpdate() int64
}

// Tracker is consumed by presentation and visibility layers, never by the Controller itself.
type Tracker interface {
	CurrentPosition(at int64) physics.Vec2
	IsVisible(at int64) bool
}
