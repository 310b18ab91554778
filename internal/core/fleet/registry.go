package fleet

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/zeusync/helmsman/internal/core/events/bus"
	"github.com/zeusync/helmsman/internal/core/observability/log"
	"github.com/zeusync/helmsman/internal/core/systems/movement"
	"github.com/zeusync/helmsman/internal/core/systems/physics"
	"github.com/zeusync/helmsman/pkg/concurrent"
)

const defaultShardCount = 16

// Config tunes a Registry.
type Config struct {
	Shards   int
	TimeUnit int64
	Disperse int
	Classes  []Class
}

// shard guards a subset of vessels. One lock per shard serializes every
// controller mutation of the vessels it owns.
type shard struct {
	mu      sync.Mutex
	vessels map[uuid.UUID]*Vessel
}

// Registry hosts many independently driven vessels.
// Vessels never interact; the registry only multiplexes them.
type Registry struct {
	shards   []*shard
	classes  map[string]Class
	clock    movement.Clock
	unit     int64
	disperse int

	rngMu sync.Mutex
	rng   *rand.Rand

	logger log.Log
	events bus.EventBus
}

// NewRegistry validates the class table and builds an empty registry.
// events may be nil, in which case controllers publish nothing.
func NewRegistry(cfg Config, clock movement.Clock, rng *rand.Rand, logger log.Log, events bus.EventBus) (*Registry, error) {
	if cfg.Shards <= 0 {
		cfg.Shards = defaultShardCount
	}
	if cfg.TimeUnit <= 0 {
		cfg.TimeUnit = movement.DefaultTimeUnit
	}
	if clock == nil {
		clock = movement.SystemClock{}
	}
	if logger == nil {
		logger = log.Nop()
	}

	classes := make(map[string]Class, len(cfg.Classes))
	for _, c := range cfg.Classes {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, ok := classes[c.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateClass, c.Name)
		}
		classes[c.Name] = c
	}

	r := &Registry{
		shards:   make([]*shard, cfg.Shards),
		classes:  classes,
		clock:    clock,
		unit:     cfg.TimeUnit,
		disperse: cfg.Disperse,
		rng:      rng,
		logger:   logger.With(log.String("component", "fleet")),
		events:   events,
	}
	for i := range r.shards {
		r.shards[i] = &shard{vessels: make(map[uuid.UUID]*Vessel)}
	}
	return r, nil
}

func (r *Registry) shardFor(id uuid.UUID) *shard {
	return r.shards[xxhash.Sum64(id[:])%uint64(len(r.shards))]
}

// Classes returns the known classes sorted by name.
func (r *Registry) Classes() []Class {
	out := make([]Class, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Spawn creates an idle vessel of the named class at pos.
func (r *Registry) Spawn(className string, pos physics.Vec2) (Snapshot, error) {
	class, ok := r.classes[className]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownClass, className)
	}

	v := &Vessel{
		id:     uuid.New(),
		class:  class,
		clock:  r.clock,
		spawn:  pos,
		create: r.clock.NowMillis(),
	}
	opts := []movement.Option{
		movement.WithTimeUnit(r.unit),
		movement.WithLogger(r.logger.With(log.String("vessel", v.id.String()))),
	}
	if r.events != nil {
		opts = append(opts, movement.WithEvents(r.events, v.id.String()))
	}
	v.ctrl = movement.NewController(v, opts...)

	s := r.shardFor(v.id)
	v.mu = &s.mu

	s.mu.Lock()
	defer s.mu.Unlock()
	s.vessels[v.id] = v
	v.ctrl.SetIdle(pos)

	r.logger.Info("vessel spawned",
		log.String("vessel", v.id.String()),
		log.String("class", class.Name),
		log.Stringer("position", pos))
	return v.snapshot(v.LastUpdate(), pos), nil
}

// SpawnNear spawns around center, offset by a random integer vector within the configured dispersion.
func (r *Registry) SpawnNear(className string, center physics.Vec2) (Snapshot, error) {
	r.rngMu.Lock()
	offset := physics.Random(r.rng, r.disperse)
	r.rngMu.Unlock()
	return r.Spawn(className, center.Add(offset))
}

func (r *Registry) Remove(id uuid.UUID) error {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vessels[id]; !ok {
		return fmt.Errorf("%w: %s", ErrVesselNotFound, id)
	}
	delete(s.vessels, id)
	r.logger.Info("vessel removed", log.String("vessel", id.String()))
	return nil
}

func (r *Registry) Get(id uuid.UUID) (*Vessel, error) {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vessels[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVesselNotFound, id)
	}
	return v, nil
}

// with runs fn holding the lock that serializes the vessel's controller.
func (r *Registry) with(id uuid.UUID, fn func(v *Vessel)) error {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vessels[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrVesselNotFound, id)
	}
	fn(v)
	return nil
}

// Move replaces the vessel's plan with a path to destination.
func (r *Registry) Move(id uuid.UUID, destination physics.Vec2) (Snapshot, error) {
	var (
		snap     Snapshot
		accepted bool
	)
	err := r.with(id, func(v *Vessel) {
		accepted = v.ctrl.IssueMove(destination)
		now := v.LastUpdate()
		snap = v.snapshot(now, v.ctrl.Position())
	})
	if err != nil {
		return Snapshot{}, err
	}
	if !accepted {
		return snap, fmt.Errorf("%w: %s", ErrNoPropulsion, id)
	}
	return snap, nil
}

// Halt stops the vessel where it is at the current clock reading.
func (r *Registry) Halt(id uuid.UUID) (Snapshot, error) {
	var snap Snapshot
	err := r.with(id, func(v *Vessel) {
		now := r.clock.NowMillis()
		v.ctrl.SetIdle(v.ctrl.Advance(now))
		snap = v.snapshot(v.LastUpdate(), v.ctrl.Position())
	})
	return snap, err
}

// Position advances the vessel to at and returns its position.
// A timestamp ahead of the clock is predicted, never committed.
func (r *Registry) Position(id uuid.UUID, at int64) (physics.Vec2, error) {
	var pos physics.Vec2
	err := r.with(id, func(v *Vessel) {
		pos = r.positionAt(v, at)
	})
	return pos, err
}

// Predict evaluates the vessel's plan at at without committing anything.
func (r *Registry) Predict(id uuid.UUID, at int64) (physics.Vec2, error) {
	var pos physics.Vec2
	err := r.with(id, func(v *Vessel) {
		pos = v.ctrl.Predict(at)
	})
	return pos, err
}

// Snapshot advances the vessel to at and describes it, with the same clock rule as Position.
func (r *Registry) Snapshot(id uuid.UUID, at int64) (Snapshot, error) {
	var snap Snapshot
	err := r.with(id, func(v *Vessel) {
		snap = v.snapshot(at, r.positionAt(v, at))
	})
	return snap, err
}

// AdvanceAll advances every vessel to at, one goroutine per shard.
// The result is ordered by vessel id. A future at only predicts.
func (r *Registry) AdvanceAll(ctx context.Context, at int64) ([]Snapshot, error) {
	return r.collect(ctx, func(v *Vessel) Snapshot {
		return v.snapshot(at, r.positionAt(v, at))
	})
}

// positionAt commits the plan up to at only when the clock has reached it.
// Otherwise a read could complete an arrival the vessel has not made yet.
func (r *Registry) positionAt(v *Vessel, at int64) physics.Vec2 {
	if at > r.clock.NowMillis() {
		return v.ctrl.Predict(at)
	}
	return v.ctrl.Advance(at)
}

// PredictAll describes every vessel at at without committing transitions.
func (r *Registry) PredictAll(ctx context.Context, at int64) ([]Snapshot, error) {
	return r.collect(ctx, func(v *Vessel) Snapshot {
		return v.snapshot(at, v.ctrl.Predict(at))
	})
}

func (r *Registry) collect(ctx context.Context, fn func(v *Vessel) Snapshot) ([]Snapshot, error) {
	chunks, err := concurrent.Map(ctx, r.shards, len(r.shards), func(ctx context.Context, s *shard) ([]Snapshot, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := make([]Snapshot, 0, len(s.vessels))
		for _, v := range s.vessels {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out = append(out, fn(v))
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	all := concurrent.Flatten(chunks)
	sort.Slice(all, func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() })
	return all, nil
}

func (r *Registry) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.Lock()
		n += len(s.vessels)
		s.mu.Unlock()
	}
	return n
}
