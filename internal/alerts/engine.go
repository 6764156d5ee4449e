// Package alerts turns risk-category transitions into alert records. The
// engine is edge-triggered: an alert is created only when a unit's category
// moves upward, so a unit holding at high risk across ticks produces exactly
// one alert until it recovers and degrades again.
package alerts

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/steelstack/millwatch/internal/models"
)

// ErrNotFound is returned by Acknowledge for an unknown alert id.
var ErrNotFound = errors.New("alerts: alert not found")

// Sink receives created alerts fire-and-forget. Implementations must not
// block: the engine calls sinks synchronously from the simulation tick.
type Sink interface {
	AlertCreated(alert models.Alert)
}

// Engine tracks the last observed risk category per equipment unit and owns
// the alert collection. Creation and acknowledgement share one mutex, so the
// simulation loop and concurrent acknowledge requests never race on a record.
type Engine struct {
	log   *slog.Logger
	sinks []Sink

	mu     sync.Mutex
	last   map[string]models.RiskCategory
	alerts []*models.Alert
	byID   map[string]*models.Alert

	now func() time.Time
}

// NewEngine creates an Engine. Sinks are optional downstream consumers
// (recorder, webhook, event publisher) notified of every created alert.
func NewEngine(log *slog.Logger, sinks ...Sink) *Engine {
	return &Engine{
		log:   log,
		sinks: sinks,
		last:  make(map[string]models.RiskCategory),
		byID:  make(map[string]*models.Alert),
		now:   time.Now,
	}
}

// Observe feeds one equipment snapshot through the transition function. A
// unit seen for the first time baselines against low, so equipment that is
// already degraded when the plant comes up produces its bootstrap alert.
// Returns the created alert and true on an upward transition.
func (e *Engine) Observe(eq *models.Equipment) (models.Alert, bool) {
	category := eq.Risk.Category

	e.mu.Lock()
	prev, seen := e.last[eq.ID]
	if !seen {
		prev = models.CategoryLow
	}
	e.last[eq.ID] = category

	if category.Rank() <= prev.Rank() {
		e.mu.Unlock()
		return models.Alert{}, false
	}

	alert := &models.Alert{
		ID:            uuid.NewString(),
		EquipmentID:   eq.ID,
		EquipmentType: eq.TypeDisplay,
		Stage:         eq.StageID,
		Severity:      category,
		Message:       fmt.Sprintf("Failure risk (%.0f%%)", eq.Risk.Probability*100),
		Probability:   eq.Risk.Probability,
		CreatedAt:     e.now(),
	}
	e.alerts = append(e.alerts, alert)
	e.byID[alert.ID] = alert
	out := *alert
	e.mu.Unlock()

	e.log.Info("alert created",
		"alert_id", out.ID,
		"equipment_id", out.EquipmentID,
		"severity", out.Severity,
		"probability", out.Probability,
	)
	for _, sink := range e.sinks {
		sink.AlertCreated(out)
	}
	return out, true
}

// Acknowledge marks an alert acknowledged. Acknowledging an already
// acknowledged alert is a no-op success; an unknown id returns ErrNotFound.
func (e *Engine) Acknowledge(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	alert, ok := e.byID[id]
	if !ok {
		return ErrNotFound
	}
	if alert.Acknowledged {
		return nil
	}
	ts := e.now()
	alert.Acknowledged = true
	alert.AcknowledgedAt = &ts
	return nil
}

// Filter selects alerts for List. Zero values match everything.
type Filter struct {
	Acknowledged *bool
	Severity     models.RiskCategory
	Stage        string
}

// List returns matching alerts as copies, sorted by probability at creation,
// highest first.
func (e *Engine) List(f Filter) []models.Alert {
	e.mu.Lock()
	out := make([]models.Alert, 0, len(e.alerts))
	for _, alert := range e.alerts {
		if f.Acknowledged != nil && alert.Acknowledged != *f.Acknowledged {
			continue
		}
		if f.Severity != "" && alert.Severity != f.Severity {
			continue
		}
		if f.Stage != "" && alert.Stage != f.Stage {
			continue
		}
		out = append(out, *alert)
	}
	e.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Probability > out[j].Probability })
	return out
}

// ActiveCount returns the number of unacknowledged alerts.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, alert := range e.alerts {
		if !alert.Acknowledged {
			n++
		}
	}
	return n
}

// Count returns the total number of alerts held.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.alerts)
}

// Reset drops all alerts and per-equipment transition state. Only the admin
// regenerate path calls this; a running plant never resolves alerts.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.last = make(map[string]models.RiskCategory)
	e.alerts = nil
	e.byID = make(map[string]*models.Alert)
}
