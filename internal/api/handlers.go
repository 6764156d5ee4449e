package api

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/steelstack/millwatch/internal/alerts"
	"github.com/steelstack/millwatch/internal/models"
	"github.com/steelstack/millwatch/internal/services"
)

// Remaining-life projection factors: a healthy consumable is good for about
// 50 heats / 200 operating hours, scaled down by failure probability.
const (
	remainingHeatsSpan = 50
	remainingHoursSpan = 200
)

// banner returns GET /: service identity and entry points.
func (h *Handler) banner(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, bannerResponse{
		Service:   "millwatch-engine",
		Version:   h.version,
		Status:    "running",
		WebSocket: "/ws",
		Health:    "/api/health",
	})
}

// health returns GET /api/health: population counts, hub connections and
// tick loop timing.
func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	equipment, sensors, stages := h.store.Counts()
	connections, _ := h.hub.Stats()
	tickCount, tickLast, tickP95 := h.sim.TickStats()

	now := h.now()
	jsonResp(w, http.StatusOK, healthResponse{
		Status:         "ok",
		Timestamp:      now.UTC(),
		UptimeSeconds:  round1(now.Sub(h.started).Seconds()),
		EquipmentCount: equipment,
		SensorCount:    sensors,
		StageCount:     stages,
		WSConnections:  connections,
		TickCount:      tickCount,
		TickLastMs:     round2(float64(tickLast.Microseconds()) / 1000),
		TickP95Ms:      round2(float64(tickP95.Microseconds()) / 1000),
	})
}

// plantOverview returns GET /api/plant/overview: the dashboard KPI block.
func (h *Handler) plantOverview(w http.ResponseWriter, _ *http.Request) {
	equipment := h.store.List()

	var healthSum, probSum float64
	var high, medium, low int
	for _, eq := range equipment {
		healthSum += float64(eq.Risk.HealthScore)
		probSum += eq.Risk.Probability
		switch eq.Risk.Category {
		case models.CategoryHigh:
			high++
		case models.CategoryMedium:
			medium++
		default:
			low++
		}
	}

	total := len(equipment)
	avgHealth := 0.0
	avgProb := 0.0
	operational := 0.0
	if total > 0 {
		avgHealth = healthSum / float64(total)
		avgProb = probSum / float64(total)
		operational = float64(total-high) / float64(total) * 100
	}

	// Nominal 300 t/h line rate, derated by fleet health and by 4% per
	// high-risk unit, with sampling noise so the KPI reads like a live meter.
	production := 300 * (avgHealth / 100) * (1 - 0.04*float64(high)) * (0.95 + rand.Float64()*0.1)
	if production < 0 {
		production = 0
	}

	falseVal := false
	critical := alertFilterTop(h.alerts, alerts.Filter{Acknowledged: &falseVal, Severity: models.CategoryHigh}, 5)

	jsonResp(w, http.StatusOK, plantOverviewResponse{
		Timestamp:            h.now().UTC(),
		TotalEquipment:       total,
		AvgHealthScore:       round1(avgHealth),
		AvgProbability:       round3(avgProb),
		HighRiskCount:        high,
		MediumRiskCount:      medium,
		LowRiskCount:         low,
		OperationalRatePct:   round1(operational),
		ProductionRateTPH:    round1(production),
		CriticalEquipment:    topCritical(equipment, 5),
		Stages:               h.stageSummaries(),
		UnacknowledgedAlerts: h.alerts.ActiveCount(),
		CriticalAlerts:       critical,
	})
}

// listStages returns GET /api/stages: the production line with per-stage
// risk rollups.
func (h *Handler) listStages(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, h.stageSummaries())
}

// stageDetail returns GET /api/stage/{id}: one stage with its equipment
// sorted worst-first and recent open alerts.
func (h *Handler) stageDetail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	stage, ok := h.store.Stage(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "stage not found")
		return
	}

	var equipment []*models.Equipment
	dist := map[string]int{"low": 0, "medium": 0, "high": 0}
	for _, eq := range h.store.List() {
		if eq.StageID != id {
			continue
		}
		equipment = append(equipment, eq)
		dist[string(eq.Risk.Category)]++
	}
	sort.SliceStable(equipment, func(i, j int) bool {
		return equipment[i].Risk.Probability > equipment[j].Risk.Probability
	})

	falseVal := false
	recent := alertFilterTop(h.alerts, alerts.Filter{Acknowledged: &falseVal, Stage: id}, 5)

	jsonResp(w, http.StatusOK, stageDetailResponse{
		Stage:            stage,
		EquipmentCount:   len(equipment),
		RiskDistribution: dist,
		Equipment:        equipment,
		RecentAlerts:     recent,
	})
}

// equipmentDetail returns GET /api/equipment/{id}: identity, health block
// with remaining-life projection and per-sensor warn/alarm states.
func (h *Handler) equipmentDetail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	eq, ok := h.store.Get(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "equipment not found")
		return
	}

	sensors := h.store.Sensors(id)
	statuses := make([]sensorStatus, 0, len(sensors))
	for _, s := range sensors {
		statuses = append(statuses, sensorStatus{Sensor: s, Status: sensorStatusFor(s)})
	}

	remaining := 1 - eq.Risk.Probability
	jsonResp(w, http.StatusOK, equipmentDetailResponse{
		Equipment: eq,
		Health: healthBlock{
			HealthScore:    eq.Risk.HealthScore,
			Probability:    eq.Risk.Probability,
			RiskCategory:   eq.Risk.Category,
			Status:         eq.Status,
			RemainingHeats: clampNonNegative(int(remaining * remainingHeatsSpan)),
			RemainingHours: clampNonNegative(int(remaining * remainingHoursSpan)),
		},
		Sensors: statuses,
	})
}

// explanation returns GET /api/equipment/{id}/explanation: per-feature
// attribution with the template narrative.
func (h *Handler) explanation(w http.ResponseWriter, r *http.Request) {
	out, err := h.assess.Explanation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.assessError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, out)
}

// recommendations returns GET /api/equipment/{id}/recommendations: ranked
// maintenance actions.
func (h *Handler) recommendations(w http.ResponseWriter, r *http.Request) {
	out, err := h.assess.Recommendations(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.assessError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, out)
}

// accidentRisk returns GET /api/equipment/{id}/accident-risk: matches
// against the historical incident record.
func (h *Handler) accidentRisk(w http.ResponseWriter, r *http.Request) {
	out, err := h.assess.AccidentRisk(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.assessError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) assessError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrEquipmentNotFound) {
		jsonErr(w, http.StatusNotFound, "equipment not found")
		return
	}
	h.log.Error("assessment failed", "error", err)
	jsonErr(w, http.StatusInternalServerError, "assessment failed")
}

// sensorHistory returns GET /api/sensor/{id}/history with an optional
// hours window, serving the series slice with summary statistics.
func (h *Handler) sensorHistory(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 168 {
			jsonErr(w, http.StatusBadRequest, "hours must be between 1 and 168")
			return
		}
		hours = parsed
	}

	id := mux.Vars(r)["id"]
	sensor, ok := h.store.Sensor(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "sensor not found")
		return
	}

	series, _ := h.store.Series(id)
	cutoff := h.now().Add(-time.Duration(hours) * time.Hour)
	window := series[:0:0]
	for _, p := range series {
		if p.Timestamp.After(cutoff) {
			window = append(window, p)
		}
	}

	jsonResp(w, http.StatusOK, sensorHistoryResponse{
		SensorID:     sensor.ID,
		Name:         sensor.DisplayName,
		Equipment:    sensor.EquipmentID,
		Unit:         sensor.Unit,
		CurrentValue: sensor.CurrentValue,
		IsDerived:    sensor.IsDerived,
		Thresholds:   sensor.Thresholds,
		Hours:        hours,
		Statistics:   summarize(window),
		History:      window,
	})
}

// listAlerts returns GET /api/alerts filtered by the acknowledged,
// severity and stage query params, sorted by probability at creation.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	var filter alerts.Filter

	if raw := r.URL.Query().Get("acknowledged"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, "acknowledged must be true or false")
			return
		}
		filter.Acknowledged = &parsed
	}
	if raw := r.URL.Query().Get("severity"); raw != "" {
		switch models.RiskCategory(raw) {
		case models.CategoryLow, models.CategoryMedium, models.CategoryHigh:
			filter.Severity = models.RiskCategory(raw)
		default:
			jsonErr(w, http.StatusBadRequest, "severity must be low, medium or high")
			return
		}
	}
	filter.Stage = r.URL.Query().Get("stage")

	matched := h.alerts.List(filter)
	jsonResp(w, http.StatusOK, alertListResponse{Total: len(matched), Alerts: matched})
}

// acknowledgeAlert handles POST /api/alerts/{id}/acknowledge: idempotent;
// unknown ids get a 404.
func (h *Handler) acknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.alerts.Acknowledge(id); err != nil {
		if errors.Is(err, alerts.ErrNotFound) {
			jsonErr(w, http.StatusNotFound, "alert not found")
			return
		}
		h.log.Error("acknowledge failed", "alert_id", id, "error", err)
		jsonErr(w, http.StatusInternalServerError, "acknowledge failed")
		return
	}
	h.rec.AlertAcknowledged(id)
	jsonResp(w, http.StatusOK, acknowledgeResponse{Status: "acknowledged", AlertID: id})
}

// regeneratePlant handles POST /api/admin/regenerate: full plant reset.
func (h *Handler) regeneratePlant(w http.ResponseWriter, _ *http.Request) {
	count := h.regen()
	h.log.Info("plant regenerated", "equipment_count", count)
	jsonResp(w, http.StatusOK, regenerateResponse{
		Status:         "success",
		Message:        "Data regenerated",
		EquipmentCount: count,
	})
}

// wsStats returns GET /api/ws/stats: hub connection bookkeeping.
func (h *Handler) wsStats(w http.ResponseWriter, _ *http.Request) {
	connections, subscriptions := h.hub.Stats()
	jsonResp(w, http.StatusOK, wsStatsResponse{
		TotalConnections:       connections,
		EquipmentSubscriptions: subscriptions,
		Timestamp:              h.now().UTC(),
	})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// stageSummaries rolls equipment risk up to the production line.
func (h *Handler) stageSummaries() []stageSummary {
	equipment := h.store.List()
	out := make([]stageSummary, 0)
	for _, stage := range h.store.Stages() {
		summary := stageSummary{
			ID:     stage.ID,
			Name:   stage.Name,
			Order:  stage.Order,
			Status: "green",
		}
		medium := 0
		for _, eq := range equipment {
			if eq.StageID != stage.ID {
				continue
			}
			summary.EquipmentCount++
			switch eq.Risk.Category {
			case models.CategoryHigh:
				summary.HighRiskCount++
			case models.CategoryMedium:
				medium++
			}
		}
		if summary.HighRiskCount > 0 {
			summary.Status = "red"
		} else if medium > 0 {
			summary.Status = "yellow"
		}
		out = append(out, summary)
	}
	return out
}

// topCritical picks the worst high-risk units, probability descending.
func topCritical(equipment []*models.Equipment, limit int) []equipmentSummary {
	var critical []*models.Equipment
	for _, eq := range equipment {
		if eq.Risk.Category == models.CategoryHigh {
			critical = append(critical, eq)
		}
	}
	sort.SliceStable(critical, func(i, j int) bool {
		return critical[i].Risk.Probability > critical[j].Risk.Probability
	})
	if len(critical) > limit {
		critical = critical[:limit]
	}

	out := make([]equipmentSummary, 0, len(critical))
	for _, eq := range critical {
		out = append(out, equipmentSummary{
			ID:          eq.ID,
			TypeDisplay: eq.TypeDisplay,
			StageName:   eq.StageName,
			Status:      eq.Status,
			HealthScore: eq.Risk.HealthScore,
			Probability: eq.Risk.Probability,
		})
	}
	return out
}

func alertFilterTop(engine *alerts.Engine, f alerts.Filter, limit int) []models.Alert {
	matched := engine.List(f)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

// sensorStatusFor grades a live value against the sensor's thresholds. An
// alarm level below the warning level marks a depletion-style sensor where
// low values are the dangerous ones.
func sensorStatusFor(s models.Sensor) string {
	v := s.CurrentValue
	warn, alarm := s.Thresholds.Warning, s.Thresholds.Alarm
	if alarm < warn {
		switch {
		case v <= alarm:
			return "alarm"
		case v <= warn:
			return "warning"
		default:
			return "ok"
		}
	}
	switch {
	case v >= alarm:
		return "alarm"
	case v >= warn:
		return "warning"
	default:
		return "ok"
	}
}

func summarize(points []models.Point) seriesStatistics {
	if len(points) == 0 {
		return seriesStatistics{}
	}
	min, max, sum := points[0].Value, points[0].Value, 0.0
	for _, p := range points {
		if p.Value < min {
			min = p.Value
		}
		if p.Value > max {
			max = p.Value
		}
		sum += p.Value
	}
	avg := sum / float64(len(points))

	variance := 0.0
	for _, p := range points {
		variance += (p.Value - avg) * (p.Value - avg)
	}
	variance /= float64(len(points))

	return seriesStatistics{
		Min:    round2(min),
		Max:    round2(max),
		Avg:    round2(avg),
		StdDev: round2(math.Sqrt(variance)),
	}
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
