package api

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/steelstack/millwatch/internal/advisor"
	"github.com/steelstack/millwatch/internal/models"
)

// maintenanceQueue returns GET /api/maintenance/queue: units worth a work
// order now, worst first, capped at ten.
func (h *Handler) maintenanceQueue(w http.ResponseWriter, _ *http.Request) {
	var candidates []*models.Equipment
	for _, eq := range h.store.List() {
		if eq.Risk.Probability >= 0.2 {
			candidates = append(candidates, eq)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Risk.Probability > candidates[j].Risk.Probability
	})
	if len(candidates) > 10 {
		candidates = candidates[:10]
	}

	queue := make([]maintenanceQueueItem, 0, len(candidates))
	for _, eq := range candidates {
		queue = append(queue, maintenanceQueueItem{
			EquipmentID:       eq.ID,
			TypeDisplay:       eq.TypeDisplay,
			StageName:         eq.StageName,
			Probability:       eq.Risk.Probability,
			HealthScore:       eq.Risk.HealthScore,
			Urgency:           queueUrgency(eq.Risk.Probability),
			RecommendedAction: advisor.Recommend(eq.Readings)[0].Action,
		})
	}

	jsonResp(w, http.StatusOK, maintenanceQueueResponse{
		GeneratedAt: h.now().UTC(),
		Count:       len(queue),
		Queue:       queue,
	})
}

func queueUrgency(p float64) string {
	switch {
	case p > 0.7:
		return "immediate"
	case p > 0.5:
		return "next_shift"
	default:
		return "planned"
	}
}

// maintenanceHistory returns GET /api/maintenance/history filtered by the
// days and equipment_id query params: completed interventions with cost and
// downtime rollups per event type.
func (h *Handler) maintenanceHistory(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			jsonErr(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = parsed
	}
	equipmentID := r.URL.Query().Get("equipment_id")
	if equipmentID != "" {
		if _, ok := h.store.Get(equipmentID); !ok {
			jsonErr(w, http.StatusNotFound, "equipment not found")
			return
		}
	}

	cutoff := h.now().AddDate(0, 0, -days)
	resp := maintenanceHistoryResponse{
		Days:        days,
		EquipmentID: equipmentID,
		ByType:      map[string]maintenanceTypeRollup{},
		Events:      []models.MaintenanceEvent{},
	}
	for _, ev := range h.store.Maintenance(equipmentID) {
		if !ev.StartTime.After(cutoff) {
			continue
		}
		resp.TotalEvents++
		resp.TotalCostUSD += ev.CostUSD
		resp.TotalDowntimeMins += ev.DurationMins

		rollup := resp.ByType[ev.Type]
		rollup.Count++
		rollup.CostUSD += ev.CostUSD
		rollup.DowntimeMins += ev.DurationMins
		resp.ByType[ev.Type] = rollup

		// Store hands events back newest first, so the cap keeps the latest.
		if len(resp.Events) < 50 {
			resp.Events = append(resp.Events, ev)
		}
	}

	jsonResp(w, http.StatusOK, resp)
}

// upcomingMaintenance returns GET /api/maintenance/upcoming: a forward
// schedule derived from the current risk picture.
func (h *Handler) upcomingMaintenance(w http.ResponseWriter, _ *http.Request) {
	now := h.now()
	scheduled := make([]upcomingMaintenanceItem, 0)
	for _, eq := range h.store.List() {
		var window, maintType string
		var due time.Time
		switch p := eq.Risk.Probability; {
		case p > 0.7:
			window, maintType, due = "within_24_hours", "predictive", now.AddDate(0, 0, 1)
		case p > 0.5:
			window, maintType, due = "within_72_hours", "predictive", now.AddDate(0, 0, 3)
		case p > 0.3:
			window, maintType, due = "this_week", "preventive", now.AddDate(0, 0, 7)
		default:
			continue
		}
		scheduled = append(scheduled, upcomingMaintenanceItem{
			EquipmentID:     eq.ID,
			TypeDisplay:     eq.TypeDisplay,
			StageName:       eq.StageName,
			Probability:     eq.Risk.Probability,
			Window:          window,
			ScheduledDate:   due.Format("2006-01-02"),
			MaintenanceType: maintType,
		})
	}
	sort.SliceStable(scheduled, func(i, j int) bool {
		return scheduled[i].Probability > scheduled[j].Probability
	})

	jsonResp(w, http.StatusOK, upcomingMaintenanceResponse{
		GeneratedAt: now.UTC(),
		Count:       len(scheduled),
		Scheduled:   scheduled,
	})
}

// reliability returns GET /api/maintenance/mtbf-mttr, the
// maintenance-derived reliability record, plant-wide or for one unit.
func (h *Handler) reliability(w http.ResponseWriter, r *http.Request) {
	var units []*models.Equipment
	if id := r.URL.Query().Get("equipment_id"); id != "" {
		eq, ok := h.store.Get(id)
		if !ok {
			jsonErr(w, http.StatusNotFound, "equipment not found")
			return
		}
		units = []*models.Equipment{eq}
	} else {
		units = h.store.List()
	}

	resp := reliabilityResponse{
		GeneratedAt: h.now().UTC(),
		Equipment:   make([]equipmentReliability, 0, len(units)),
	}
	var mtbf, mttr, score float64
	for _, eq := range units {
		m, ok := h.store.Reliability(eq.ID)
		if !ok {
			continue
		}
		resp.Equipment = append(resp.Equipment, equipmentReliability{
			EquipmentID:        eq.ID,
			TypeDisplay:        eq.TypeDisplay,
			ReliabilityMetrics: m,
		})
		mtbf += m.MTBFHours
		mttr += m.MTTRHours
		score += m.ReliabilityScore
		resp.Plant.TotalFailures += m.FailureCount
	}
	if n := len(resp.Equipment); n > 0 {
		resp.Plant.AvgMTBFHours = round1(mtbf / float64(n))
		resp.Plant.AvgMTTRHours = round1(mttr / float64(n))
		resp.Plant.AvgReliabilityScore = round1(score / float64(n))
	}

	jsonResp(w, http.StatusOK, resp)
}

// riskDistribution returns GET /api/analytics/risk-distribution: the fleet
// split into probability bands with member ids.
func (h *Handler) riskDistribution(w http.ResponseWriter, _ *http.Request) {
	buckets := []riskBucket{
		{Name: "critical", Range: ">= 0.80", Equipment: []string{}},
		{Name: "high", Range: "0.55 - 0.79", Equipment: []string{}},
		{Name: "medium", Range: "0.30 - 0.54", Equipment: []string{}},
		{Name: "low", Range: "0.10 - 0.29", Equipment: []string{}},
		{Name: "healthy", Range: "< 0.10", Equipment: []string{}},
	}
	equipment := h.store.List()
	for _, eq := range equipment {
		i := bucketIndex(eq.Risk.Probability)
		buckets[i].Count++
		buckets[i].Equipment = append(buckets[i].Equipment, eq.ID)
	}

	jsonResp(w, http.StatusOK, riskDistributionResponse{
		GeneratedAt:    h.now().UTC(),
		TotalEquipment: len(equipment),
		Buckets:        buckets,
	})
}

func bucketIndex(p float64) int {
	switch {
	case p >= 0.8:
		return 0
	case p >= 0.55:
		return 1
	case p >= 0.3:
		return 2
	case p >= 0.1:
		return 3
	default:
		return 4
	}
}

// prioritiesToday returns GET /api/priorities/today: the five worst units
// with the dominant risk factor and the first recommended action.
func (h *Handler) prioritiesToday(w http.ResponseWriter, r *http.Request) {
	ranked := h.store.List()
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Risk.Probability > ranked[j].Risk.Probability
	})
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}

	items := make([]priorityItem, 0, len(ranked))
	for i, eq := range ranked {
		item := priorityItem{
			Rank:        i + 1,
			EquipmentID: eq.ID,
			TypeDisplay: eq.TypeDisplay,
			StageName:   eq.StageName,
			Probability: eq.Risk.Probability,
			Urgency:     priorityUrgency(eq.Risk.Probability),
			Action:      advisor.Recommend(eq.Readings)[0].Action,
		}
		expl, err := h.assess.Explanation(r.Context(), eq.ID)
		if err != nil {
			h.log.Error("explanation failed", "equip_id", eq.ID, "error", err)
		} else if len(expl.TopFactors) > 0 {
			item.DominantFactor = expl.TopFactors[0].Feature
		}
		items = append(items, item)
	}

	jsonResp(w, http.StatusOK, prioritiesResponse{
		GeneratedAt: h.now().UTC(),
		Priorities:  items,
	})
}

func priorityUrgency(p float64) string {
	switch {
	case p > 0.75:
		return "IMMEDIATE"
	case p > 0.6:
		return "THIS_SHIFT"
	default:
		return "TODAY"
	}
}

// prioritiesSummary returns GET /api/priorities/summary: the shift briefing
// rollup. Equipment counts once in the worst band it qualifies for.
func (h *Handler) prioritiesSummary(w http.ResponseWriter, _ *http.Request) {
	counts := map[string]int{"green": 0, "yellow": 0, "red": 0}
	var healthSum float64
	var critical, high, medium int

	equipment := h.store.List()
	for _, eq := range equipment {
		counts[eq.Status]++
		healthSum += float64(eq.Risk.HealthScore)
		switch {
		case eq.Risk.Probability >= 0.8:
			critical++
		case eq.Risk.Category == models.CategoryHigh:
			high++
		case eq.Risk.Category == models.CategoryMedium:
			medium++
		}
	}
	avgHealth := 0.0
	if len(equipment) > 0 {
		avgHealth = healthSum / float64(len(equipment))
	}

	jsonResp(w, http.StatusOK, prioritySummaryResponse{
		GeneratedAt:               h.now().UTC(),
		StatusCounts:              counts,
		PlantHealthScore:          round1(avgHealth),
		CriticalCount:             critical,
		EstimatedMaintenanceHours: round1(float64(critical)*1.5 + float64(high)*0.8 + float64(medium)*0.4),
		UnacknowledgedAlerts:      h.alerts.ActiveCount(),
	})
}
