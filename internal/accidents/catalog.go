// Package accidents matches live readings against the conditions that
// preceded historical incidents, surfacing the recorded lesson when a unit
// drifts back into a known failure pattern.
package accidents

import (
	"github.com/steelstack/millwatch/internal/models"
)

// lowIsBad marks reading keys where danger lies below the threshold: a
// thinning refractory lining, falling hydraulic pressure or starved argon
// flow. All other thresholds trip when the reading is at or above them.
var lowIsBad = map[string]bool{
	"refractory_mm":          true,
	"hydraulic_pressure_bar": true,
	"argon_flow_lpm":         true,
}

// History is the incident catalog, newest first. Prevention thresholds refer
// to reading keys of the named equipment type.
var History = []models.AccidentRecord{
	{
		Date:                "2024-11-15",
		EquipmentType:       "tundish",
		Incident:            "Nozzle clogging caused steel breakout - 8hr downtime",
		RootCause:           "Clogging index exceeded 85%, refractory damage",
		Consequence:         "Production loss: 120 tons, Equipment damage: $45,000",
		PreventionThreshold: map[string]float64{"clogging_index": 70},
		Lesson:              "Inspect nozzle immediately when clogging exceeds 70%",
	},
	{
		Date:                "2024-10-22",
		EquipmentType:       "sen",
		Incident:            "SEN erosion led to mold breakthrough",
		RootCause:           "Wear exceeded 75% on stainless steel grade",
		Consequence:         "12 tons scrapped, 4hr production delay",
		PreventionThreshold: map[string]float64{"wear_pct": 70, "erosion_pct": 70},
		Lesson:              "Replace SEN at 70% wear for stainless grades",
	},
	{
		Date:                "2024-09-08",
		EquipmentType:       "ladle",
		Incident:            "Ladle refractory spalling during night shift",
		RootCause:           "Refractory thickness below 60mm, thermal cycling fatigue",
		Consequence:         "Steel contamination, 6 heats scrapped",
		PreventionThreshold: map[string]float64{"refractory_mm": 65},
		Lesson:              "Replace refractory when thickness drops below 65mm",
	},
	{
		Date:                "2024-08-19",
		EquipmentType:       "gate",
		Incident:            "Slide gate hydraulic failure mid-cast",
		RootCause:           "Hydraulic pressure dropped to 80 bar, seal failure",
		Consequence:         "Emergency stop, 4hr delay, 8 tons solidified steel",
		PreventionThreshold: map[string]float64{"hydraulic_pressure_bar": 100},
		Lesson:              "Monitor hydraulic pressure, replace seals at 100 bar minimum",
	},
	{
		Date:                "2024-07-30",
		EquipmentType:       "mold",
		Incident:            "Mold level control lost during heat #10",
		RootCause:           "Operator fatigue (night shift), sensor drift",
		Consequence:         "Breakout risk, emergency shutdown",
		PreventionThreshold: map[string]float64{"heats_sequence": 8},
		Lesson:              "Increase monitoring after heat #8, verify sensors every 6 heats",
	},
	{
		Date:                "2024-06-14",
		EquipmentType:       "tundish",
		Incident:            "Alumina buildup restricted flow",
		RootCause:           "Argon flow below 5 LPM for extended period",
		Consequence:         "Uneven casting, 15 tons downgraded",
		PreventionThreshold: map[string]float64{"argon_flow_lpm": 6},
		Lesson:              "Maintain argon flow above 6 LPM, especially for Al-killed steel",
	},
}

// Check returns a warning for every catalog incident of the given equipment
// type whose prevention thresholds are all met by the current readings. For
// keys in lowIsBad the condition is reading <= threshold; otherwise
// reading >= threshold. Absent readings count as zero, so a missing
// refractory reading matches while a missing clogging reading does not.
func Check(equipmentType string, readings models.SensorReadings) []models.AccidentWarning {
	var warnings []models.AccidentWarning
	for _, record := range History {
		if record.EquipmentType != equipmentType {
			continue
		}
		if !thresholdsMet(record.PreventionThreshold, readings) {
			continue
		}
		current := make(map[string]float64, len(record.PreventionThreshold))
		for k := range record.PreventionThreshold {
			current[k] = readings[k]
		}
		warnings = append(warnings, models.AccidentWarning{
			AccidentDate:    record.Date,
			Incident:        record.Incident,
			Lesson:          record.Lesson,
			CurrentReadings: current,
		})
	}
	return warnings
}

func thresholdsMet(thresholds map[string]float64, readings models.SensorReadings) bool {
	for key, limit := range thresholds {
		value := readings[key]
		if lowIsBad[key] {
			if value > limit {
				return false
			}
		} else if value < limit {
			return false
		}
	}
	return true
}
