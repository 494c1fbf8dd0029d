package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tilerealm/server/internal/combat"
	"github.com/tilerealm/server/internal/config"
	"github.com/tilerealm/server/internal/core/event"
	"github.com/tilerealm/server/internal/core/sched"
	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/data"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/persist"
	"github.com/tilerealm/server/internal/region"
	"github.com/tilerealm/server/internal/scripting"
	"github.com/tilerealm/server/internal/system"
	"github.com/tilerealm/server/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := "config/server.toml"
	if p := os.Getenv("TILEREALM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting server",
		zap.String("name", cfg.Server.Name), zap.Int("id", cfg.Server.ID))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	if err := persist.RunMigrations(ctx, db.Pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("database ready")

	charRepo := persist.NewCharacterRepo(db)

	// Static data tables.
	mapGrid, err := data.LoadMapGrid(cfg.World.MapFile)
	if err != nil {
		return fmt.Errorf("map: %w", err)
	}
	mobs, err := data.LoadMobTable(filepath.Join(cfg.World.DataDir, "mobs.yaml"))
	if err != nil {
		return fmt.Errorf("mobs: %w", err)
	}
	items, err := data.LoadItemTable(filepath.Join(cfg.World.DataDir, "items.yaml"))
	if err != nil {
		return fmt.Errorf("items: %w", err)
	}
	drops, err := data.LoadDropTable(filepath.Join(cfg.World.DataDir, "drops.yaml"))
	if err != nil {
		return fmt.Errorf("drops: %w", err)
	}
	spawns, err := data.LoadSpawnList(filepath.Join(cfg.World.DataDir, "spawns.yaml"))
	if err != nil {
		return fmt.Errorf("spawns: %w", err)
	}
	log.Info("data loaded",
		zap.Int("mobs", mobs.Count()),
		zap.Int("items", items.Count()),
		zap.Int("drop_tables", drops.Count()),
		zap.Int("spawns", len(spawns)))

	engine, err := scripting.NewEngine(cfg.World.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("scripts: %w", err)
	}
	defer engine.Close()

	// Core world assembly. Everything shares the one game-loop goroutine.
	bus := event.NewBus()
	event.Subscribe(bus, func(ev event.EntityKilled) {
		log.Debug("kill",
			zap.Int32("killer", ev.KillerInstance),
			zap.Int32("victim", ev.VictimInstance),
			zap.Int32("template", ev.VictimTemplate))
	})
	scheduler := sched.New(cfg.World.TickRate)
	bridge := net.NewBridge(log)
	partition := region.NewPartition(cfg.World.ZoneWidth, cfg.World.ZoneHeight, mapGrid.Width(), mapGrid.Height())
	regions := region.NewManager(partition, mapGrid, bridge, log)
	grid := world.NewSpatialGrid()

	registry := world.NewRegistry(grid, regions, bridge, scheduler, bus, mapGrid, mobs, items, drops, world.Config{
		Combat: combat.Config{
			FollowInterval: cfg.Combat.FollowInterval,
			CheckInterval:  cfg.Combat.CheckInterval,
			ForgetAfter:    cfg.Combat.ForgetAfter,
		},
		ItemBlinkAfter: cfg.Combat.ItemBlinkAfter,
		ItemDespawn:    cfg.Combat.ItemDespawn,
		DropRate:       cfg.Rates.DropRate,
		GoldRate:       cfg.Rates.GoldRate,
	}, log)
	registry.SetScripts(engine)
	registry.SetBehaviors(engine)

	for _, entry := range spawns {
		count := entry.Count
		if count < 1 {
			count = 1
		}
		for i := 0; i < count; i++ {
			registry.SpawnMobFromEntry(entry)
		}
	}
	log.Info("world populated", zap.Int("mobs", registry.Count(world.TypeMob)))

	persistSys := system.NewPersistenceSystem(registry, charRepo, cfg.Database.SaveInterval, log)

	runner := coresys.NewRunner()
	runner.Register(system.NewEventSystem(bus))
	runner.Register(system.NewTimerSystem(scheduler))
	runner.Register(system.NewAggroSystem(registry, cfg.World.AggroRange))
	runner.Register(system.NewWanderSystem(registry))
	runner.Register(system.NewRegionFlushSystem(regions, bridge))
	runner.Register(persistSys)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.World.TickRate)
	defer ticker.Stop()

	log.Info("game loop running", zap.Duration("tick", cfg.World.TickRate))

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.World.TickRate)
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			persistSys.SaveDirty()
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
