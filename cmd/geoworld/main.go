package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/geoworld/engine/internal/config"
	"github.com/geoworld/engine/internal/core/event"
	coresys "github.com/geoworld/engine/internal/core/system"
	"github.com/geoworld/engine/internal/data"
	"github.com/geoworld/engine/internal/geometry"
	"github.com/geoworld/engine/internal/persist"
	"github.com/geoworld/engine/internal/scripting"
	"github.com/geoworld/engine/internal/system"
	"github.com/geoworld/engine/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

// ── Main logic ────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("GEOWORLD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	fmt.Printf("\n  \033[1m%s\033[0m\n\n", cfg.Server.Name)

	// 3. Read world files. A snapshot, when present, is the whole world;
	// otherwise the world is built from map files and scripts.
	printSection("geometry")
	files, fromSnapshot, err := readWorldFiles(cfg.World, log)
	if err != nil {
		return err
	}
	pool := data.ResumePool(files, geometry.ID(cfg.World.FirstID))

	// 4. Restore the geometry pool and registry
	bus := event.NewBus()
	var store *persist.WorldStore
	if cfg.Database.Enabled {
		printSection("database")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		if err := persist.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("migrations applied")

		store = persist.NewWorldStore(db)
		if pool, err = store.GeometryPool(ctx, pool); err != nil {
			return fmt.Errorf("restore geometry pool: %w", err)
		}
	}

	ws := world.NewState(pool, bus, log)
	event.Subscribe(bus, func(e event.GeometryRetired) {
		log.Info("geometry retired", zap.Stringer("id", e.ID))
	})

	if store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := store.Geometry.LoadInto(ctx, ws)
		cancel()
		if err != nil {
			return fmt.Errorf("restore geometry: %w", err)
		}
		printStat("restored", n)
	}

	if ws.Len() == 0 {
		n, err := data.PublishAll(ws, files)
		if err != nil {
			return fmt.Errorf("load maps: %w", err)
		}
		printStat("map files", n)

		if !fromSnapshot {
			n, err = runScripts(ws, cfg.World.ScriptDir, log)
			if err != nil {
				return fmt.Errorf("scripts: %w", err)
			}
			printStat("scripts", n)
		}
	}
	printStat("static maps", ws.Len())
	ws.EachNamed(func(id geometry.ID, meta world.Meta, g geometry.Geometry) {
		if m, ok := g.(*geometry.StaticMap); ok {
			log.Debug("static map",
				zap.Stringer("id", id),
				zap.String("name", meta.Name),
				zap.String("source", meta.Source),
				zap.Int("sectors", len(m.Sectors)),
				zap.Int("surfaces", m.SurfaceCount()),
				zap.Stringer("render_node", m.RenderNode))
		}
	})
	fmt.Println()

	// 5. Systems
	runner := coresys.NewRunner()
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(system.NewCleanupSystem(ws))

	var saver system.Saver
	switch {
	case store != nil:
		saver = store
	case cfg.World.SnapshotFile != "":
		saver = data.SnapshotSaver{Path: cfg.World.SnapshotFile}
	}
	var persistSys *system.PersistenceSystem
	if saver != nil {
		interval := int(cfg.World.SaveInterval / cfg.World.TickRate)
		persistSys = system.NewPersistenceSystem(ws, saver, log, interval)
		runner.Register(persistSys)
		// whatever was built this boot is saved right away
		persistSys.SaveNow()
	}

	// 6. World loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.World.TickRate)
	defer ticker.Stop()

	log.Info("world running", zap.Duration("tick", cfg.World.TickRate), zap.Int("geometry", ws.Len()))
	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.World.TickRate)
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			runner.TickPhase(coresys.PhaseCleanup, 0)
			if persistSys != nil {
				persistSys.SaveNow()
			}
			log.Info("world stopped")
			return nil
		}
	}
}

// readWorldFiles returns the snapshot file when it exists, otherwise the
// configured map files. Missing map files are only a warning.
func readWorldFiles(cfg config.WorldConfig, log *zap.Logger) ([]data.SourceFile, bool, error) {
	if cfg.SnapshotFile != "" {
		f, err := data.LoadMapFile(cfg.SnapshotFile)
		switch {
		case err == nil:
			log.Info("world snapshot found", zap.String("path", cfg.SnapshotFile), zap.Int("maps", len(f.Maps)))
			return []data.SourceFile{{Path: cfg.SnapshotFile, File: f}}, true, nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, false, fmt.Errorf("load snapshot: %w", err)
		}
	}
	files, err := data.ReadAll(cfg.MapFiles)
	switch {
	case errors.Is(err, data.ErrNoMaps):
		log.Warn("no map files found", zap.Strings("paths", cfg.MapFiles))
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("load maps: %w", err)
	}
	return files, false, nil
}

func runScripts(ws *world.State, dir string, log *zap.Logger) (int, error) {
	if dir == "" {
		return 0, nil
	}
	eng := scripting.NewEngine(log)
	defer eng.Close()
	if err := eng.LoadDir(dir); err != nil {
		return 0, err
	}
	return data.Publish(ws, eng.Maps(), dir)
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
