package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/steelstack/millwatch/internal/alerts"
	"github.com/steelstack/millwatch/internal/api"
	"github.com/steelstack/millwatch/internal/cache"
	"github.com/steelstack/millwatch/internal/config"
	"github.com/steelstack/millwatch/internal/events"
	"github.com/steelstack/millwatch/internal/explain"
	"github.com/steelstack/millwatch/internal/metrics"
	"github.com/steelstack/millwatch/internal/models"
	"github.com/steelstack/millwatch/internal/notify"
	"github.com/steelstack/millwatch/internal/plantgen"
	"github.com/steelstack/millwatch/internal/repo"
	"github.com/steelstack/millwatch/internal/riskmodel"
	"github.com/steelstack/millwatch/internal/services"
	"github.com/steelstack/millwatch/internal/sim"
	"github.com/steelstack/millwatch/internal/state"
	"github.com/steelstack/millwatch/internal/utils"
	"github.com/steelstack/millwatch/internal/ws"
)

const version = "1.0.0"

// plantBroadcast fans the per-tick aggregate out to WebSocket clients and the
// Kafka event stream.
type plantBroadcast struct {
	hub    *ws.Hub
	events *events.Publisher
}

func (b plantBroadcast) BroadcastPlantUpdate(u ws.PlantUpdate) {
	b.hub.BroadcastPlantUpdate(u)
	if b.events.Enabled() {
		b.events.PlantUpdated(u.Timestamp, u.HighRiskCount, u.TotalEquipment)
	}
}

// alertMetricsSink counts created alerts by severity.
type alertMetricsSink struct{}

func (alertMetricsSink) AlertCreated(alert models.Alert) {
	metrics.RecordAlert(string(alert.Severity))
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting millwatch-engine", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cacheProvider cache.Provider = cache.NoopProvider{}
	var assessTTL time.Duration
	switch {
	case cfg.Cache.Enabled && cfg.Cache.Addr == "":
		// Enabled without an address runs a process-local cache.
		cacheProvider = cache.NewMemoryProvider()
		assessTTL = cfg.Cache.AssessmentTTL
		logger.Info("using in-process assessment cache")
	case cfg.Cache.Enabled:
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			assessTTL = cfg.Cache.AssessmentTTL
			defer provider.Close()
		}
	}

	model, err := riskmodel.Train(cfg.Model)
	if err != nil {
		logger.Error("model training failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("risk model trained",
		slog.Int("trees", cfg.Model.Trees),
		slog.Int("samples", cfg.Model.Samples),
	)

	explainer, err := explain.New(model, model.Background(cfg.Explainer.Background),
		cfg.Explainer.Permutations, cfg.Explainer.Seed)
	if err != nil {
		logger.Error("explainer init failed", slog.Any("error", err))
		os.Exit(1)
	}

	// History persistence is best effort: an unreachable database logs a
	// warning and the plant runs from memory alone.
	recorder, err := repo.NewRecorder(ctx, logger, cfg.Database.DSN, cfg.Database.QueueSize)
	if err != nil {
		logger.Warn("history recorder unavailable, continuing without persistence", slog.Any("error", err))
		recorder = nil
	}

	publisher := events.NewPublisher(logger, events.Config{
		Enabled:   cfg.Events.Enabled,
		Brokers:   cfg.Events.Brokers,
		Topic:     cfg.Events.Topic,
		QueueSize: cfg.Events.QueueSize,
	})

	var notifier *notify.Notifier
	if cfg.Webhook.URL != "" {
		notifier = notify.NewNotifier(logger, cfg.Webhook.URL, cfg.Webhook.Timeout)
	}

	sinks := []alerts.Sink{alertMetricsSink{}}
	if recorder != nil {
		sinks = append(sinks, recorder)
	}
	if notifier != nil {
		sinks = append(sinks, notifier)
	}
	if publisher.Enabled() {
		sinks = append(sinks, publisher)
	}
	engine := alerts.NewEngine(logger, sinks...)

	store := state.New()
	hub := ws.NewHub(logger, store)
	if err := metrics.RegisterConnectionsGauge(prometheus.DefaultRegisterer, func() float64 {
		connections, _ := hub.Stats()
		return float64(connections)
	}); err != nil {
		logger.Warn("ws connections gauge unavailable", slog.Any("error", err))
	}

	var simRecorder sim.Recorder
	if recorder != nil {
		simRecorder = recorder
	}
	simulator := sim.New(logger, store, model, engine,
		plantBroadcast{hub: hub, events: publisher},
		simRecorder,
		utils.NewLatencyTracker(256),
		sim.Config{
			TickInterval: cfg.Simulation.TickInterval,
			UsageStep:    cfg.Simulation.UsageStep,
			Jitter:       cfg.Simulation.Jitter,
			Thresholds:   cfg.Thresholds,
			Seed:         cfg.Plant.Seed,
		})

	simulator.Bootstrap(plantgen.Generate(plantgen.Config{
		Seed:         cfg.Plant.Seed,
		HistoryHours: cfg.Plant.HistoryHours,
	}))

	assessment := services.NewAssessmentService(logger, store, explainer, cacheProvider, assessTTL)

	// Regeneration swaps in a fresh population; a time-based seed keeps each
	// reset distinct from the boot population. Equipment ids carry over
	// between populations, so cached assessments for them are dropped.
	regenerate := func() int {
		snap := plantgen.Generate(plantgen.Config{
			Seed:         time.Now().UnixNano(),
			HistoryHours: cfg.Plant.HistoryHours,
		})
		simulator.Bootstrap(snap)
		ids := make([]string, 0, len(snap.Equipment))
		for _, eq := range snap.Equipment {
			ids = append(ids, eq.ID)
		}
		assessment.Invalidate(context.Background(), ids)
		return len(snap.Equipment)
	}

	handler := api.New(api.Deps{
		Log:        logger,
		Store:      store,
		Alerts:     engine,
		Assessment: assessment,
		Sim:        simulator,
		Hub:        hub,
		Recorder:   recorder,
		Regenerate: regenerate,
		Version:    version,
		Started:    time.Now(),
	})

	server, err := api.NewServer(cfg.Server, handler)
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	go hub.Run(ctx)
	go simulator.Run(ctx)
	go recorder.Run(ctx)
	go publisher.Run(ctx)
	if notifier != nil {
		go notifier.Run(ctx)
	}
	if configPath != "" {
		go func() {
			if err := config.Watch(ctx, logger, configPath, func(next *config.Config) {
				simulator.SetThresholds(next.Thresholds)
			}); err != nil {
				logger.Error("config watcher failed", slog.Any("error", err))
			}
		}()
	}

	go func() {
		logger.Info("http server listening", slog.String("address", server.Address()))
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("http server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("millwatch-engine stopped")
}
