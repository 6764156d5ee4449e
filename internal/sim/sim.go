// Package sim drives the live telemetry loop. Every tick it perturbs
// equipment readings, re-scores failure risk, appends tracked sensor history
// and emits exactly one aggregate update to the websocket hub. The Simulator
// is the sole writer of equipment state; request handlers only read through
// the store.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/steelstack/millwatch/internal/alerts"
	"github.com/steelstack/millwatch/internal/features"
	"github.com/steelstack/millwatch/internal/metrics"
	"github.com/steelstack/millwatch/internal/models"
	"github.com/steelstack/millwatch/internal/state"
	"github.com/steelstack/millwatch/internal/utils"
	"github.com/steelstack/millwatch/internal/ws"
)

// Monotonic readings never receive jitter. operating_hours advances by the
// configured usage step instead; heats_count only moves on real heat changes.
var monotonicReadings = map[string]bool{
	"operating_hours": true,
	"heats_count":     true,
}

// Scorer produces a failure probability in [0,1] for a feature vector.
type Scorer interface {
	Predict(features.Vector) float64
}

// Broadcaster receives the single aggregate update emitted per tick.
type Broadcaster interface {
	BroadcastPlantUpdate(ws.PlantUpdate)
}

// Recorder persists prediction samples off the hot path. Implementations
// must not block; a nil Recorder disables persistence.
type Recorder interface {
	PredictionMade(equipmentID string, probability float64, healthScore int)
}

// Config carries the loop tuning knobs. Zero values fall back to the
// production cadence.
type Config struct {
	TickInterval time.Duration
	UsageStep    float64
	Jitter       float64
	Thresholds   models.AlertThresholds
	Seed         int64
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 15 * time.Second
	}
	if c.UsageStep < 0 {
		c.UsageStep = 0
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	if c.Thresholds == (models.AlertThresholds{}) {
		c.Thresholds = models.AlertThresholds{Medium: 0.30, High: 0.55}
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// Simulator owns the tick loop. Tick and Bootstrap must be called from a
// single goroutine (the loop or the regenerate handler holding it off);
// SetThresholds may be called concurrently.
type Simulator struct {
	log      *slog.Logger
	store    *state.Store
	scorer   Scorer
	engine   *alerts.Engine
	hub      Broadcaster
	recorder Recorder
	latency  *utils.LatencyTracker

	tick      time.Duration
	usageStep float64
	jitter    float64

	thresholds atomic.Value // models.AlertThresholds

	rng *rand.Rand
	now func() time.Time
}

// New wires a Simulator over the shared state store. recorder may be nil.
func New(log *slog.Logger, store *state.Store, scorer Scorer, engine *alerts.Engine, hub Broadcaster, recorder Recorder, latency *utils.LatencyTracker, cfg Config) *Simulator {
	cfg = cfg.withDefaults()
	s := &Simulator{
		log:       log,
		store:     store,
		scorer:    scorer,
		engine:    engine,
		hub:       hub,
		recorder:  recorder,
		latency:   latency,
		tick:      cfg.TickInterval,
		usageStep: cfg.UsageStep,
		jitter:    cfg.Jitter,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		now:       time.Now,
	}
	s.thresholds.Store(cfg.Thresholds)
	return s
}

// SetThresholds swaps the cutoffs used by subsequent ticks. Config hot-reload
// calls this while the loop is running.
func (s *Simulator) SetThresholds(t models.AlertThresholds) {
	if err := t.Validate(); err != nil {
		s.log.Warn("rejected threshold update", "error", err)
		return
	}
	s.thresholds.Store(t)
	s.log.Info("alert thresholds updated", "medium", t.Medium, "high", t.High)
}

// Thresholds returns the cutoffs currently in force.
func (s *Simulator) Thresholds() models.AlertThresholds {
	return s.thresholds.Load().(models.AlertThresholds)
}

// Bootstrap scores every equipment in the snapshot, stamps status colors,
// swaps the snapshot into the store and re-baselines the alert engine so
// equipment that is already degraded produces its initial alerts. Startup
// and plant regeneration both run through here.
func (s *Simulator) Bootstrap(snap state.Snapshot) {
	th := s.Thresholds()
	for _, eq := range snap.Equipment {
		probability := s.scorer.Predict(features.Extract(eq.Readings))
		metrics.RecordPrediction()
		eq.Risk = models.Assess(probability, th)
		eq.Status = eq.Risk.Category.StatusColor()
		if s.recorder != nil {
			s.recorder.PredictionMade(eq.ID, eq.Risk.Probability, eq.Risk.HealthScore)
		}
	}

	s.store.Replace(snap)
	s.engine.Reset()
	for _, eq := range snap.Equipment {
		s.engine.Observe(eq)
	}

	equipment, sensors, stages := s.store.Counts()
	s.log.Info("plant state bootstrapped",
		"equipment", equipment,
		"sensors", sensors,
		"stages", stages,
		"alerts", s.engine.Count(),
	)
}

// Run drives the loop until ctx is cancelled. The sleep between ticks is
// interruptible, so shutdown never waits out a full interval.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.log.Info("simulation loop started", "tick_interval", s.tick.String())
	for {
		select {
		case <-ctx.Done():
			s.log.Info("simulation loop stopped")
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick advances every equipment one step. A failure in one equipment is
// recovered and logged, its previous snapshot stays visible until the next
// tick, and the remaining equipment still update. Exactly one broadcast goes
// out per tick regardless of per-equipment failures.
func (s *Simulator) Tick() {
	started := s.now()

	for _, eq := range s.store.List() {
		if err := s.step(eq, started); err != nil {
			metrics.RecordEquipmentFailure()
			s.log.Error("equipment update failed", "equipment_id", eq.ID, "error", err)
		}
	}

	equipment := s.store.List()
	highRisk := 0
	for _, eq := range equipment {
		if eq.Risk.Category == models.CategoryHigh {
			highRisk++
		}
	}

	s.hub.BroadcastPlantUpdate(ws.PlantUpdate{
		Timestamp:      started,
		HighRiskCount:  highRisk,
		TotalEquipment: len(equipment),
	})

	elapsed := s.now().Sub(started)
	s.latency.Observe(elapsed)
	metrics.ObserveTick(elapsed, highRisk)

	s.log.Debug("tick complete",
		"duration", elapsed.String(),
		"high_risk_count", highRisk,
		"total_equipment", len(equipment),
	)
}

// step rebuilds one equipment snapshot and swaps it into the store. The
// recover turns a scorer panic into an error so the tick keeps going.
func (s *Simulator) step(prev *models.Equipment, ts time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("equipment update panicked: %v", r)
		}
	}()

	readings := prev.Readings.Clone()
	readings["operating_hours"] += s.usageStep
	for key, value := range readings {
		if monotonicReadings[key] {
			continue
		}
		readings[key] = value + (s.rng.Float64()*2-1)*s.jitter
	}

	probability := s.scorer.Predict(features.Extract(readings))
	metrics.RecordPrediction()

	next := *prev
	next.Readings = readings
	next.Risk = models.Assess(probability, s.Thresholds())
	next.Status = next.Risk.Category.StatusColor()
	if s.recorder != nil {
		s.recorder.PredictionMade(next.ID, next.Risk.Probability, next.Risk.HealthScore)
	}
	s.store.Update(&next)

	for _, sensor := range s.store.Sensors(next.ID) {
		value, ok := readings[sensor.Key]
		if !ok {
			continue
		}
		s.store.Append(sensor.ID, models.Point{Timestamp: ts, Value: value})
	}

	s.engine.Observe(&next)
	return nil
}

// TickStats reports loop timing for the health endpoint.
func (s *Simulator) TickStats() (count int, last, p95 time.Duration) {
	return s.latency.Count(), s.latency.Last(), s.latency.Percentile(95)
}
