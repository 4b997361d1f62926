// Package app wires configuration, storage, the venue adapter, the grid
// engine and the status server into a runnable process.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/domain"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/engine"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/exchange"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/exchange/aster"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/exchange/paper"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/infra"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/metrics"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/server"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/storage"
	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/tradelog"
)

// Bootstrap orchestrates the application startup sequence.
type Bootstrap struct {
	Config  *infra.Config
	Engine  *engine.Engine
	Metrics *metrics.Metrics

	registry *prometheus.Registry
	trades   *tradelog.Log
	store    *tradelog.Store
	snaps    *storage.SnapshotManager
	srv      *server.Server
	venue    exchange.Adapter
	paper    *paper.Venue
	live     *aster.Adapter
	unlock   func()
}

// NewBootstrap creates a new Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and builds every component up to (but
// not including) the engine loop. configPath may be empty to use the
// default lookup.
func (b *Bootstrap) Initialize(configPath string) error {
	if configPath == "" {
		configPath = infra.ResolveConfigPath()
	}
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	infra.SetupLogger(cfg.Logging.Level)
	infra.PrintBanner(cfg)

	mode := strings.ToLower(cfg.Trading.Mode)

	// Optional secrets file; env vars already took precedence in LoadConfig.
	if mode == infra.ModeLive && cfg.API.Aster.APIKey == "" {
		secretPath := filepath.Join(filepath.Dir(configPath), "secrets", "live.yaml")
		if secret, err := infra.LoadSecretConfig(secretPath); err == nil {
			secret.ApplyTo(cfg)
		}
		if cfg.API.Aster.APIKey == "" || cfg.API.Aster.APISecret == "" {
			return fmt.Errorf("live mode requires API credentials (env GRIDBOT_API_KEY/GRIDBOT_API_SECRET or %s)", secretPath)
		}
	}

	// Data isolation per mode: _workspace/data/{mode}/tradelog.db
	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data", mode)
	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	dbPath := filepath.Join(dataDir, "tradelog.db")
	store, err := tradelog.OpenStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open trade log store: %w", err)
	}
	b.store = store
	slog.Info("TRADELOG_STORE_READY", slog.String("path", dbPath), slog.String("mode", mode))

	logCap := cfg.Grid.MaxLogEntries
	if logCap <= 0 {
		logCap = 200
	}
	b.trades = tradelog.New(logCap, store)
	if recent, err := store.Recent(context.Background(), logCap); err == nil {
		b.trades.Preload(recent)
	}

	b.snaps = storage.NewSnapshotManager(filepath.Join(dataDir, "snapshots"))

	switch mode {
	case infra.ModePaper:
		balance := cfg.Paper.InitialBalance
		if balance <= 0 {
			balance = 10000
		}
		b.paper = paper.New(cfg.Trading.Symbol, balance, engineQuanta(cfg))
		b.venue = b.paper
	case infra.ModeLive:
		b.live = aster.New(cfg)
		b.venue = b.live
	default:
		return fmt.Errorf("unknown trading mode %q", cfg.Trading.Mode)
	}

	b.registry = prometheus.NewRegistry()
	b.Metrics = metrics.New(b.registry)

	b.Engine = engine.New(engineConfig(cfg), b.venue,
		engine.WithTradeLog(b.trades),
		engine.WithMetrics(b.Metrics),
	)

	addr := cfg.Server.Addr
	if addr == "" {
		addr = "localhost:8080"
	}
	b.srv = server.New(addr, b.Engine, b.registry)

	return nil
}

// Run starts the engine and status server and blocks until ctx ends,
// then shuts everything down in reverse order.
func (b *Bootstrap) Run(ctx context.Context) {
	go b.srv.Start()

	if b.paper != nil {
		go b.drivePaperPrices(ctx)
	}
	go b.archiveSnapshots(ctx)

	// In live mode the startup barrier needs the venue's real resting
	// orders, not just the first (possibly empty) stream frame.
	if b.live != nil {
		if err := b.live.SeedOpenOrders(ctx, b.Config.Trading.Symbol); err != nil {
			slog.Warn("OPEN_ORDER_SEED_FAILED", slog.Any("error", err))
		}
	}

	b.Engine.Start(ctx)

	<-ctx.Done()
	slog.Info("SHUTDOWN_REQUESTED")

	b.Engine.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if b.Config.Trading.CancelOnExit {
		if err := b.venue.CancelAllOrders(shutdownCtx, b.Config.Trading.Symbol); err != nil {
			slog.Warn("EXIT_CANCEL_FAILED", slog.Any("error", err))
		} else {
			slog.Info("EXIT_CANCELED_OPEN_ORDERS", slog.String("symbol", b.Config.Trading.Symbol))
		}
	}
	if err := b.srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("STATUS_SERVER_SHUTDOWN_FAILED", slog.Any("error", err))
	}

	if b.live != nil {
		b.live.Close()
	}
	if b.store != nil {
		b.store.Close()
	}
	if b.unlock != nil {
		b.unlock()
	}
	slog.Info("SHUTDOWN_COMPLETE")
}

// archiveSnapshots captures the engine state every minute for
// post-mortem inspection, keeping the last ten captures.
func (b *Bootstrap) archiveSnapshots(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := b.snaps.Save(now, b.Engine.GetSnapshot()); err != nil {
				slog.Warn("SNAPSHOT_SAVE_FAILED", slog.Any("error", err))
				continue
			}
			if err := b.snaps.Cleanup(10); err != nil {
				slog.Warn("SNAPSHOT_CLEANUP_FAILED", slog.Any("error", err))
			}
		}
	}
}

// drivePaperPrices feeds the simulated venue a random walk so the grid
// has something to trade against. The walk starts at the geometric
// midpoint of the band and is reflected at 2x the band edges.
func (b *Bootstrap) drivePaperPrices(ctx context.Context) {
	lower := b.Config.Grid.LowerPrice
	upper := b.Config.Grid.UpperPrice
	price := math.Sqrt(lower * upper)
	step := (upper - lower) / 200

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(b.Config.RefreshInterval() / 2)
	defer ticker.Stop()

	b.paper.PushPrice(price)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			price += (rng.Float64()*2 - 1) * step
			if price < lower/2 {
				price = lower / 2
			}
			if price > upper*2 {
				price = upper * 2
			}
			b.paper.PushPrice(price)
		}
	}
}

func engineQuanta(cfg *infra.Config) domain.Precision {
	return domain.Precision{
		PriceTick: cfg.Grid.PriceTick,
		QtyStep:   cfg.Grid.QtyStep,
	}
}

func engineConfig(cfg *infra.Config) engine.Config {
	return engine.Config{
		Symbol:               cfg.Trading.Symbol,
		LowerPrice:           cfg.Grid.LowerPrice,
		UpperPrice:           cfg.Grid.UpperPrice,
		GridLevels:           cfg.Grid.Levels,
		GridMode:             cfg.Grid.Mode,
		OrderSize:            cfg.Grid.OrderSize,
		MaxPositionSize:      cfg.Grid.MaxPositionSize,
		StopLossPct:          cfg.Grid.StopLossPct,
		RestartTriggerPct:    cfg.Grid.RestartTriggerPct,
		AutoRestart:          cfg.Grid.AutoRestart,
		Direction:            engine.Direction(cfg.Grid.Direction),
		MaxPriceDeviationPct: cfg.Grid.MaxPriceDeviationPct,
		RefreshInterval:      cfg.RefreshInterval(),
		DeferredTimeout:      cfg.DeferredTimeout(),
		SuppressionTTL:       cfg.SuppressionTTL(),
		PlacementCooldown:    cfg.PlacementCooldown(),
		MaxLogEntries:        cfg.Grid.MaxLogEntries,
		PriceTick:            cfg.Grid.PriceTick,
		QtyStep:              cfg.Grid.QtyStep,
	}
}
