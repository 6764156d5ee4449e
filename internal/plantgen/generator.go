package plantgen

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/steelstack/millwatch/internal/models"
	"github.com/steelstack/millwatch/internal/state"
)

// Config controls generation. The zero value of Now means the current time;
// everything else about the output is a pure function of Seed and
// HistoryHours.
type Config struct {
	Seed         int64
	HistoryHours int
	Now          time.Time
}

func (c Config) withDefaults() Config {
	if c.HistoryHours <= 0 {
		c.HistoryHours = 24
	}
	if c.Now.IsZero() {
		c.Now = time.Now()
	}
	return c
}

// Generate builds a complete plant population. Risk assessments are left
// zeroed: the caller scores every unit against the trained model before the
// population goes live, including the units this generator pushes into
// failure ranges.
func Generate(cfg Config) state.Snapshot {
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewSource(cfg.Seed))

	var (
		equipment []*models.Equipment
		sensors   []models.Sensor
		series    = make(map[string][]models.Point)
	)

	counter := 1
	for _, t := range equipmentTypes {
		for i := 0; i < t.units; i++ {
			id := fmt.Sprintf("%s-%03d", strings.ToUpper(t.key), counter)
			counter++

			readings := generateReadings(rng)
			opHours := readings["operating_hours"]

			equipment = append(equipment, &models.Equipment{
				ID:              id,
				Type:            t.key,
				TypeDisplay:     t.display,
				StageID:         t.stageID,
				StageName:       stageTitle(t.stageID),
				Readings:        readings,
				InstallDate:     cfg.Now.AddDate(0, 0, -int(opHours*0.5)).Format("2006-01-02"),
				LastMaintenance: cfg.Now.AddDate(0, 0, -(1 + rng.Intn(30))).Format("2006-01-02"),
			})

			for _, tracked := range trackedSensors {
				sensor, history := generateSensor(rng, cfg, id, tracked, readings[tracked.key])
				sensors = append(sensors, sensor)
				series[sensor.ID] = history
			}
		}
	}

	forceCritical(rng, equipment)

	maintenance := generateMaintenance(rng, cfg.Now, equipment)

	return state.Snapshot{
		Stages:      stages,
		Equipment:   equipment,
		Sensors:     sensors,
		Series:      series,
		Maintenance: maintenance,
		Reliability: reliabilityByEquipment(maintenance, equipment),
	}
}

// generateReadings seeds one unit's reading set. A Beta(2,5) age factor
// keeps most of the population young and healthy while leaving a worn tail.
func generateReadings(rng *rand.Rand) models.SensorReadings {
	age := betaSample(rng, 2, 5)

	opHours := round1(age * 800)
	temp := round1(1540 + age*15 + uniform(rng, -3, 3))
	argon := round1(uniform(rng, 4, 10))
	gatePos := round1(uniform(rng, 30, 70))
	wear := round1(age * 100)

	return models.SensorReadings{
		"steel_temp_c":        temp,
		"argon_flow_lpm":      argon,
		"argon_pressure_bar":  round2(1.0 + age*2.0 + uniform(rng, 0, 0.3)),
		"gate_position_pct":   gatePos,
		"operating_hours":     opHours,
		"clogging_index":      cloggingIndex(rng, gatePos, argon, age),
		"refractory_mm":       round1(math.Max(30, 150-opHours*0.08)),
		"wear_pct":            wear,
		"erosion_pct":         round1(wear * 0.85),
		"heats_count":         float64(int(opHours*1.3)) + float64(rng.Intn(31)),
		"heats_sequence":      float64(1 + rng.Intn(12)),
		"tundish_weight_tons": round1(uniform(rng, 25, 40)),
		"casting_speed_m_min": round2(uniform(rng, 0.9, 1.6)),
	}
}

// cloggingIndex models nozzle blockage: deviation from the 45% reference
// gate opening, a penalty for starved argon flow, and age.
func cloggingIndex(rng *rand.Rand, gatePos, argonFlow, age float64) float64 {
	base := math.Abs(gatePos-45) / 45 * 50
	if argonFlow < 5 {
		base += 20
	}
	base += age*30 + uniform(rng, -2, 2)
	return round1(math.Min(100, math.Max(0, base)))
}

func generateSensor(rng *rand.Rand, cfg Config, equipmentID string, tracked trackedSensor, value float64) (models.Sensor, []models.Point) {
	id := equipmentID + "-" + strings.ReplaceAll(strings.ToUpper(tracked.key), "_", "-")

	// Random-walk backfill at 15-minute intervals, drifting from the live
	// value with steps proportional to magnitude.
	points := cfg.HistoryHours * 4
	history := make([]models.Point, 0, points)
	current := value
	for h := 0; h < points; h++ {
		offset := time.Duration((float64(cfg.HistoryHours) - 0.25*float64(h)) * float64(time.Hour))
		current += rng.NormFloat64() * math.Abs(current) * 0.005
		history = append(history, models.Point{
			Timestamp: cfg.Now.Add(-offset),
			Value:     round2(current),
		})
	}

	return models.Sensor{
		ID:           id,
		EquipmentID:  equipmentID,
		Key:          tracked.key,
		DisplayName:  tracked.name,
		Unit:         tracked.unit,
		CurrentValue: round2(value),
		IsDerived:    tracked.derived,
		Thresholds: models.SensorThresholds{
			Warning: tracked.warning,
			Alarm:   tracked.alarm,
		},
	}, history
}

// forceCritical pushes one unit in each of the three hottest stages into
// known failure ranges so the plant always carries live high-risk work. The
// model rescoring these readings is what actually raises the probability.
func forceCritical(rng *rand.Rand, equipment []*models.Equipment) {
	for _, stageID := range []string{"continuous-casting", "secondary-metallurgy", "melt-shop"} {
		var pool []*models.Equipment
		for _, eq := range equipment {
			if eq.StageID == stageID {
				pool = append(pool, eq)
			}
		}
		if len(pool) == 0 {
			continue
		}
		eq := pool[rng.Intn(len(pool))]
		eq.Readings["clogging_index"] = uniform(rng, 85, 98)
		eq.Readings["wear_pct"] = uniform(rng, 75, 95)
		eq.Readings["erosion_pct"] = uniform(rng, 70, 92)
		eq.Readings["refractory_mm"] = uniform(rng, 35, 55)
	}
}

func stageTitle(id string) string {
	parts := strings.Split(id, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// betaSample draws from Beta(a,b) for small integer shapes, using the
// gamma-ratio construction with gammas built from exponentials.
func betaSample(rng *rand.Rand, a, b int) float64 {
	x := gammaSample(rng, a)
	y := gammaSample(rng, b)
	return x / (x + y)
}

func gammaSample(rng *rand.Rand, shape int) float64 {
	product := 1.0
	for i := 0; i < shape; i++ {
		product *= 1 - rng.Float64()
	}
	return -math.Log(product)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
