package plantgen

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/steelstack/millwatch/internal/models"
	"github.com/steelstack/millwatch/internal/utils"
)

const maintenanceDaysBack = 30

type maintenanceType struct {
	key          string
	display      string
	costBase     int
	durationBase int
}

var maintenanceTypes = []maintenanceType{
	{key: "preventive", display: "Preventive Maintenance", costBase: 500, durationBase: 120},
	{key: "predictive", display: "Predictive Maintenance", costBase: 800, durationBase: 90},
	{key: "corrective", display: "Corrective Repair", costBase: 1500, durationBase: 180},
	{key: "inspection", display: "Routine Inspection", costBase: 100, durationBase: 30},
}

var partTypes = []string{
	"Nozzle",
	"Refractory lining",
	"Slide gate plate",
	"Sensor",
	"Valve",
	"Bearing",
}

// generateMaintenance backfills 3-8 completed interventions per unit over
// the last 30 days, newest first.
func generateMaintenance(rng *rand.Rand, now time.Time, equipment []*models.Equipment) []models.MaintenanceEvent {
	var events []models.MaintenanceEvent
	for idx, eq := range equipment {
		n := 3 + rng.Intn(6)
		for i := 0; i < n; i++ {
			mt := maintenanceTypes[rng.Intn(len(maintenanceTypes))]

			daysAgo := uniform(rng, 0, maintenanceDaysBack)
			start := now.Add(-time.Duration(daysAgo * 24 * float64(time.Hour)))
			duration := mt.durationBase + (rng.Intn(51) - 20)
			cost := mt.costBase + (rng.Intn(601) - 100)

			var parts []string
			if mt.key == "corrective" || mt.key == "predictive" {
				parts = sampleParts(rng, 1+rng.Intn(3))
			}

			events = append(events, models.MaintenanceEvent{
				ID:            fmt.Sprintf("MAINT-%05d", idx*100+i),
				EquipmentID:   eq.ID,
				EquipmentType: eq.TypeDisplay,
				Stage:         eq.StageName,
				Type:          mt.key,
				TypeDisplay:   mt.display,
				Date:          start.Format("2006-01-02"),
				StartTime:     start,
				EndTime:       start.Add(time.Duration(duration) * time.Minute),
				DurationMins:  duration,
				PartsReplaced: parts,
				CostUSD:       cost,
				Technician:    fmt.Sprintf("Tech-%d", 1+rng.Intn(8)),
				Status:        "completed",
			})
		}
	}

	sort.Slice(events, func(i, j int) bool { return events[i].StartTime.After(events[j].StartTime) })
	return events
}

func sampleParts(rng *rand.Rand, n int) []string {
	perm := rng.Perm(len(partTypes))
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = partTypes[perm[i]]
	}
	return parts
}

// reliabilityByEquipment derives MTBF/MTTR from the corrective events in the
// 30-day window, normalized against its 720 hours.
func reliabilityByEquipment(events []models.MaintenanceEvent, equipment []*models.Equipment) map[string]models.ReliabilityMetrics {
	out := make(map[string]models.ReliabilityMetrics, len(equipment))
	for _, eq := range equipment {
		failures := 0
		downMins := 0.0
		for _, ev := range events {
			if ev.EquipmentID == eq.ID && ev.Type == "corrective" {
				failures++
				downMins += utils.DurationMinutes(ev.StartTime, ev.EndTime)
			}
		}
		divisor := float64(failures)
		if failures == 0 {
			divisor = 1
		}
		out[eq.ID] = models.ReliabilityMetrics{
			MTBFHours:        round1(720 / divisor),
			MTTRHours:        round2(downMins / divisor / 60),
			FailureCount:     failures,
			ReliabilityScore: round1(math.Max(0, 100-float64(failures)*15)),
		}
	}
	return out
}
