// Package game wires the grappling systems into a fixed-step simulation:
// world setup, the per-tick system order, remote and local input, prediction
// replay and telemetry. It has no rendering dependency; the renderer package
// draws a Game and feeds it keyboard input.
package game

import (
	"log/slog"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/grapple/components"
	"github.com/pthm-cable/grapple/config"
	"github.com/pthm-cable/grapple/effects"
	"github.com/pthm-cable/grapple/event"
	"github.com/pthm-cable/grapple/netplay"
	"github.com/pthm-cable/grapple/systems"
	"github.com/pthm-cable/grapple/telemetry"
)

// Options configures a Game.
type Options struct {
	Seed           int64
	Config         *config.Config // nil uses config.Cfg()
	LogStats       bool           // log window stats and perf via slog
	StatsWindowSec float64        // 0 uses telemetry.stats_window
	SnapshotDir    string         // bookmark snapshots, empty disables
	OutputDir      string         // CSV output, empty disables
	StepsPerUpdate int
	Scenario       bool            // spawn the configured demo world
	Server         *netplay.Server // remote players, nil for local only
	StatsCallback  func(telemetry.WindowStats)
}

// Game holds the complete simulation state.
type Game struct {
	cfg *config.Config
	log *slog.Logger
	rng *rand.Rand

	world  *ecs.World
	bus    *event.Bus
	timing *systems.Timing
	fx     *effects.Recorder
	cmd    *systems.CommandBuffer
	grid   *systems.SpatialGrid
	dt     float64

	physics     *systems.PhysicsSystem
	joints      *systems.JointSystem
	grapple     *systems.GrapplingSystem
	guns        *systems.GunSystem
	projectiles *systems.ProjectileSystem
	gathering   *systems.GatheringSystem
	radiation   *systems.RadiationSystem
	chain       *systems.ChainRadiationSystem
	explosions  *systems.ExplosionSystem
	puddles     *systems.PuddleSystem
	registry    *systems.SystemRegistry

	// Mappers
	posMap     *ecs.Map[components.Position]
	velMap     *ecs.Map[components.Velocity]
	bodyMap    *ecs.Map[components.Body]
	actorMap   *ecs.Map[components.Actor]
	handsMap   *ecs.Map[components.Hands]
	combatMap  *ecs.Map[components.CombatMode]
	ctrlMap    *ecs.Map[components.Controller]
	gunMap     *ecs.Map[components.GrapplingGun]
	ammoMap    *ecs.Map[components.BasicAmmo]
	weaponMap  *ecs.Map[components.Gun]
	holderMap  *ecs.Map[components.Contained]
	projMap    *ecs.Map[components.Projectile]
	rockMap    *ecs.Map[components.Gatherable]
	puddleMap  *ecs.Map[components.Puddle]
	chainMap   *ecs.Map[components.ChainRadiation]
	sourceMap  *ecs.Map[components.RadiationSource]
	hookMap    *ecs.Map[components.GrapplingProjectile]
	bodyFilter *ecs.Filter2[components.Position, components.Body]
	gunFilter  *ecs.Filter1[components.GrapplingGun]
	ctrlFilter *ecs.Filter1[components.Controller]

	projFilter   *ecs.Filter2[components.Position, components.Projectile]
	puddleFilter *ecs.Filter2[components.Position, components.Puddle]
	views        []BodyView

	// Input queued for the next tick
	steering []SteerInput
	swaps    []ecs.Entity
	stances  []ecs.Entity
	reels    []systems.ReelRequest

	// Remote players
	server     *netplay.Server
	sessions   map[string]ecs.Entity
	stateEvery uint64

	player     ecs.Entity // local keyboard player, zero when absent
	autopilots []*autopilot
	predictor  *Predictor

	// Telemetry
	collector     *telemetry.Collector
	perf          *telemetry.PerfCollector
	bookmarks     *telemetry.BookmarkDetector
	output        *telemetry.OutputManager
	logStats      bool
	snapshotDir   string
	statsCallback func(telemetry.WindowStats)

	paused         bool
	stepsPerUpdate int
}

// NewGameWithOptions builds a game with every system wired in step order.
func NewGameWithOptions(opts Options) *Game {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}

	world := ecs.NewWorld()
	bus := event.NewBus()
	logger := slog.Default().With("component", "game")
	timing := &systems.Timing{
		FrameTime:          cfg.Physics.DT,
		FirstTimePredicted: true,
		Server:             cfg.Authority.Server,
	}
	fx := effects.NewRecorder(slog.Default())
	cmd := systems.NewCommandBuffer(world)

	g := &Game{
		cfg:    cfg,
		log:    logger,
		rng:    rand.New(rand.NewSource(opts.Seed)),
		world:  world,
		bus:    bus,
		timing: timing,
		fx:     fx,
		cmd:    cmd,
		grid:   systems.NewSpatialGrid(cfg.Derived.WorldW, cfg.Derived.WorldH, cfg.Physics.GridCellSize),
		dt:     cfg.Physics.DT,

		registry: systems.NewSystemRegistry(),

		posMap:     ecs.NewMap[components.Position](world),
		velMap:     ecs.NewMap[components.Velocity](world),
		bodyMap:    ecs.NewMap[components.Body](world),
		actorMap:   ecs.NewMap[components.Actor](world),
		handsMap:   ecs.NewMap[components.Hands](world),
		combatMap:  ecs.NewMap[components.CombatMode](world),
		ctrlMap:    ecs.NewMap[components.Controller](world),
		gunMap:     ecs.NewMap[components.GrapplingGun](world),
		ammoMap:    ecs.NewMap[components.BasicAmmo](world),
		weaponMap:  ecs.NewMap[components.Gun](world),
		holderMap:  ecs.NewMap[components.Contained](world),
		projMap:    ecs.NewMap[components.Projectile](world),
		rockMap:    ecs.NewMap[components.Gatherable](world),
		puddleMap:  ecs.NewMap[components.Puddle](world),
		chainMap:   ecs.NewMap[components.ChainRadiation](world),
		sourceMap:  ecs.NewMap[components.RadiationSource](world),
		hookMap:    ecs.NewMap[components.GrapplingProjectile](world),
		bodyFilter: ecs.NewFilter2[components.Position, components.Body](world),
		gunFilter:  ecs.NewFilter1[components.GrapplingGun](world),
		ctrlFilter: ecs.NewFilter1[components.Controller](world),

		projFilter:   ecs.NewFilter2[components.Position, components.Projectile](world),
		puddleFilter: ecs.NewFilter2[components.Position, components.Puddle](world),

		server:   opts.Server,
		sessions: make(map[string]ecs.Entity),

		logStats:       opts.LogStats,
		snapshotDir:    opts.SnapshotDir,
		statsCallback:  opts.StatsCallback,
		stepsPerUpdate: max(opts.StepsPerUpdate, 1),
	}

	g.physics = systems.NewPhysicsSystem(world,
		systems.Bounds{Width: cfg.Derived.WorldW, Height: cfg.Derived.WorldH},
		systems.PhysicsConfig{
			LinearDamping: cfg.Physics.LinearDamping,
			SleepSpeed:    cfg.Physics.SleepSpeed,
			SleepTicks:    int32(cfg.Physics.SleepTicks),
		})
	g.joints = systems.NewJointSystem(world, bus, cfg.Physics.SolverFraction)
	g.grapple = systems.NewGrapplingSystem(world, bus, timing, fx, g.joints, g.physics, cmd)
	g.guns = systems.NewGunSystem(world, bus, systems.GunConfig{
		ProjectileRadius:   cfg.Grapple.ProjectileRadius,
		ProjectileLifetime: cfg.Grapple.ProjectileLifetime,
		GatherAmount:       cfg.Gathering.Amount,
	})
	g.projectiles = systems.NewProjectileSystem(world, bus, timing, cmd)
	g.gathering = systems.NewGatheringSystem(world, bus, timing, cmd)
	g.radiation = systems.NewRadiationSystem(world, bus, systems.RadiationConfig{
		SourceRange:    cfg.Radiation.SourceRange,
		UpdateInterval: cfg.Radiation.UpdateInterval,
		Unit:           cfg.Radiation.FalloffUnit,
	})
	g.chain = systems.NewChainRadiationSystem(world, bus)
	g.explosions = systems.NewExplosionSystem(world, bus, timing, fx, g.physics, cmd)
	g.puddles = systems.NewPuddleSystem(world, bus, timing, fx, cfg.Puddle.UnitsPerVolume)

	// Telemetry
	statsWindow := opts.StatsWindowSec
	if statsWindow <= 0 {
		statsWindow = cfg.Telemetry.StatsWindow
	}
	g.collector = telemetry.NewCollector(statsWindow, cfg.Physics.DT)
	g.collector.Attach(bus)
	g.perf = telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow)
	g.bookmarks = telemetry.NewBookmarkDetector(5)

	if opts.OutputDir != "" {
		om, err := telemetry.NewOutputManager(opts.OutputDir)
		if err != nil {
			logger.Error("failed to create output manager", "error", err)
		} else {
			g.output = om
			if err := om.WriteConfig(cfg); err != nil {
				logger.Error("failed to write config", "error", err)
			}
		}
	}

	if cfg.Network.StateInterval > 0 {
		g.stateEvery = max(uint64(cfg.Network.StateInterval/cfg.Physics.DT+0.5), 1)
	}

	if !cfg.Authority.Server && cfg.Authority.RollbackTicks > 0 {
		g.predictor = NewPredictor(g, cfg.Authority.RollbackTicks)
	}

	if opts.Scenario {
		g.spawnScenario()
	}

	return g
}

// Update advances the simulation by StepsPerUpdate ticks unless paused.
func (g *Game) Update() {
	if g.paused {
		g.drainNetwork()
		return
	}
	for range g.stepsPerUpdate {
		g.Step()
	}
}

// UpdateHeadless is Update for runs without a window. Frames are still
// recorded so perf output carries the loop rate.
func (g *Game) UpdateHeadless() {
	g.Update()
	g.perf.RecordFrame()
}

// Unload flushes and closes telemetry output.
func (g *Game) Unload() {
	if g.output != nil {
		if err := g.output.WriteEffects(g.fx.Drain()); err != nil {
			g.log.Error("failed to write effects", "error", err)
		}
		if err := g.output.Close(); err != nil {
			g.log.Error("failed to close output", "error", err)
		}
	}
}

// Tick returns the number of simulated ticks.
func (g *Game) Tick() uint64 { return g.timing.Tick }

// World exposes the ECS world for rendering.
func (g *Game) World() *ecs.World { return g.world }

// Config returns the configuration the game was built with.
func (g *Game) Config() *config.Config { return g.cfg }

// Effects returns the effects recorder.
func (g *Game) Effects() *effects.Recorder { return g.fx }

// Joints returns the joint system.
func (g *Game) Joints() *systems.JointSystem { return g.joints }

// Perf returns the perf collector.
func (g *Game) Perf() *telemetry.PerfCollector { return g.perf }

// Registry returns the system registry used to name perf phases.
func (g *Game) Registry() *systems.SystemRegistry { return g.registry }

// Player returns the local keyboard player, if one was spawned.
func (g *Game) Player() (ecs.Entity, bool) {
	if g.player.IsZero() || !g.world.Alive(g.player) {
		return ecs.Entity{}, false
	}
	return g.player, true
}

// Paused reports whether ticking is suspended.
func (g *Game) Paused() bool { return g.paused }

// SetPaused suspends or resumes ticking.
func (g *Game) SetPaused(p bool) { g.paused = p }

// StepsPerUpdate returns the ticks run per Update call.
func (g *Game) StepsPerUpdate() int { return g.stepsPerUpdate }

// SetStepsPerUpdate sets the ticks run per Update call, clamped to [1, 64].
func (g *Game) SetStepsPerUpdate(n int) { g.stepsPerUpdate = min(max(n, 1), 64) }
