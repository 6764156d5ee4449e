package features

import (
	"math"
	"strings"

	"github.com/steelstack/millwatch/internal/models"
)

// Count is the fixed length of a feature vector.
const Count = 10

// Names lists the feature keys in declaration order. The order is part of the
// model contract: training and inference both depend on it.
var Names = []string{
	"clogging_index",
	"refractory_mm",
	"wear_pct",
	"erosion_pct",
	"age_heats",
	"heats_sequence",
	"temp_deviation",
	"level_variation_mm",
	"opening_pct",
	"usage_hours",
}

// Vector is a fully populated, fixed-order feature vector.
type Vector [Count]float64

// referenceTemp is the casting temperature baseline for temp_deviation.
const referenceTemp = 1540

// Extract converts an arbitrary reading set into a complete feature vector.
// Missing or non-finite readings fall back per the defaulting table; this
// function never fails.
func Extract(readings models.SensorReadings) Vector {
	var v Vector
	v[0] = pick(readings, "clogging_index", 0)
	v[1] = pick(readings, "refractory_mm", 150)
	v[2] = pickWithFallback(readings, "wear_pct", "plate_wear_pct", 0)
	v[3] = pick(readings, "erosion_pct", 0)
	v[4] = pick(readings, "age_heats", 0)
	v[5] = pick(readings, "heats_sequence", 0)
	v[6] = pick(readings, "steel_temp_c", referenceTemp) - referenceTemp
	v[7] = pick(readings, "level_variation_mm", 0)
	v[8] = pickWithFallback(readings, "opening_pct", "gate_position_pct", 50)
	v[9] = usageHours(readings)
	return v
}

// DisplayName renders a feature key for presentation.
func DisplayName(feature string) string {
	if feature == "temp_deviation" {
		return "Temperature Deviation"
	}
	parts := strings.Split(feature, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// RawValue returns the reading value to present alongside an attribution.
// temp_deviation is derived, so its presented value is the temperature itself.
func RawValue(feature string, readings models.SensorReadings, extracted float64) float64 {
	if feature == "temp_deviation" {
		return pick(readings, "steel_temp_c", referenceTemp)
	}
	return extracted
}

func pick(readings models.SensorReadings, key string, def float64) float64 {
	if v, ok := readings[key]; ok && finite(v) {
		return v
	}
	return def
}

func pickWithFallback(readings models.SensorReadings, key, fallback string, def float64) float64 {
	if v, ok := readings[key]; ok && finite(v) {
		return v
	}
	return pick(readings, fallback, def)
}

func usageHours(readings models.SensorReadings) float64 {
	if v, ok := readings["usage_hours"]; ok && finite(v) {
		return v
	}
	if v, ok := readings["operating_hours"]; ok && finite(v) {
		return v / 100
	}
	return 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
