package injector

import (
	"math/rand"

	"github.com/google/wire"

	"github.com/zeusync/helmsman/internal/config"
	"github.com/zeusync/helmsman/internal/core/events/bus"
	"github.com/zeusync/helmsman/internal/core/fleet"
	"github.com/zeusync/helmsman/internal/core/observability/log"
	"github.com/zeusync/helmsman/internal/core/systems/movement"
	"github.com/zeusync/helmsman/internal/server"
)

// ProviderSet builds a running fleet server from a validated config.Config.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	ProvideEventBus,
	ProvideClock,
	ProvideRand,
	ProvideRegistry,
	ProvideServerConfig,
	server.NewServer,
)

// ProvideLogger builds the zap logger and returns a cleanup that flushes it.
func ProvideLogger(cfg config.Config) (*log.Logger, func(), error) {
	logger, err := log.NewWithOptions(cfg.LogLevel(), log.Options{Encoding: cfg.Log.Encoding})
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

func ProvideEventBus() bus.EventBus {
	return bus.New()
}

func ProvideClock() movement.Clock {
	return movement.SystemClock{}
}

// ProvideRand seeds the spawn dispersion source. The same seed replays the same spawn offsets.
func ProvideRand(cfg config.Config) *rand.Rand {
	return rand.New(rand.NewSource(cfg.Fleet.Seed))
}

func ProvideRegistry(cfg config.Config, clock movement.Clock, rng *rand.Rand, logger log.Log, events bus.EventBus) (*fleet.Registry, error) {
	return fleet.NewRegistry(cfg.Registry(), clock, rng, logger, events)
}

func ProvideServerConfig(cfg config.Config) server.Config {
	return server.Config{
		ListenAddr:      cfg.Server.ListenAddr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxMessageSize:  cfg.Server.MaxMessageSize,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	}
}
