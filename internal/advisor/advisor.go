// Package advisor renders operator-facing explanation text and rule-based
// maintenance recommendations from risk output and live readings.
package advisor

import (
	"fmt"
	"strings"

	"github.com/steelstack/millwatch/internal/models"
)

// Recommendation is one ranked maintenance action.
type Recommendation struct {
	Priority          int    `json:"priority"`
	Action            string `json:"action"`
	Reason            string `json:"reason"`
	Urgency           string `json:"urgency"`
	EstimatedTimeMins int    `json:"estimated_time_mins"`
}

// Urgency levels, most to least pressing.
const (
	UrgencyImmediate = "immediate"
	UrgencySoon      = "soon"
	UrgencyPlanned   = "planned"
	UrgencyRoutine   = "routine"
)

// RiskLevel words a probability for prose: HIGH above 0.7, MODERATE above
// 0.3, LOW otherwise.
func RiskLevel(probability float64) string {
	switch {
	case probability > 0.7:
		return "HIGH"
	case probability > 0.3:
		return "MODERATE"
	default:
		return "LOW"
	}
}

// Explain renders a short plain-language assessment: risk level, the top
// risk-increasing factors phrased per sensor family, and one action sentence
// matched to the probability band.
func Explain(equipmentID string, probability float64, attributions []models.Attribution) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s shows %s risk with %.0f%% failure probability. ",
		equipmentID, RiskLevel(probability), probability*100)

	factors := make([]string, 0, 3)
	for _, a := range attributions {
		if a.Direction != models.DirectionIncreasesRisk {
			continue
		}
		factors = append(factors, describeFactor(a))
		if len(factors) == 3 {
			break
		}
	}
	if len(factors) > 0 {
		b.WriteString("Primary risk factors: ")
		b.WriteString(strings.Join(factors, ", "))
		b.WriteString(". ")
	}

	switch {
	case probability > 0.7:
		b.WriteString("Recommend immediate inspection and scheduling maintenance within current shift.")
	case probability > 0.5:
		b.WriteString("Recommend scheduling inspection within next 4-8 hours.")
	case probability > 0.3:
		b.WriteString("Monitor closely and plan maintenance for next scheduled downtime.")
	default:
		b.WriteString("Equipment operating within normal parameters.")
	}
	return b.String()
}

func describeFactor(a models.Attribution) string {
	switch {
	case strings.Contains(a.Feature, "clogging"):
		return fmt.Sprintf("elevated clogging index (%.0f)", a.Value)
	case strings.Contains(a.Feature, "wear"), strings.Contains(a.Feature, "erosion"):
		return fmt.Sprintf("component wear at %.0f%%", a.Value)
	case strings.Contains(a.Feature, "refractory"):
		return fmt.Sprintf("refractory thickness down to %.0fmm", a.Value)
	case strings.Contains(a.Feature, "heats"):
		return fmt.Sprintf("%.0f heats in current sequence", a.Value)
	default:
		return fmt.Sprintf("%s at %.1f", strings.ToLower(a.DisplayName), a.Value)
	}
}

// Recommend derives ranked maintenance actions from live readings. At least
// one recommendation is always returned; a healthy unit gets the routine
// monitoring entry.
func Recommend(readings models.SensorReadings) []Recommendation {
	var out []Recommendation
	priority := 1

	if clogging := readings["clogging_index"]; clogging > 50 {
		urgency := UrgencySoon
		if clogging > 75 {
			urgency = UrgencyImmediate
		}
		out = append(out, Recommendation{
			Priority:          priority,
			Action:            "Inspect nozzle for alumina buildup",
			Reason:            fmt.Sprintf("Clogging index at %.0f", clogging),
			Urgency:           urgency,
			EstimatedTimeMins: 20,
		})
		priority++
	}

	// Absent refractory readings mean the unit has no lining to reline.
	if refractory, ok := readings["refractory_mm"]; ok && refractory < 80 {
		urgency := UrgencyPlanned
		if refractory < 60 {
			urgency = UrgencyImmediate
		}
		out = append(out, Recommendation{
			Priority:          priority,
			Action:            "Schedule refractory relining",
			Reason:            fmt.Sprintf("Refractory thickness at %.0fmm", refractory),
			Urgency:           urgency,
			EstimatedTimeMins: 240,
		})
		priority++
	}

	if readings["wear_pct"] > 60 || readings["erosion_pct"] > 60 {
		out = append(out, Recommendation{
			Priority:          priority,
			Action:            "Replace worn components",
			Reason:            "Component wear detected",
			Urgency:           UrgencySoon,
			EstimatedTimeMins: 60,
		})
	}

	if len(out) == 0 {
		out = append(out, Recommendation{
			Priority:          1,
			Action:            "Continue normal monitoring",
			Reason:            "Equipment operating within parameters",
			Urgency:           UrgencyRoutine,
			EstimatedTimeMins: 0,
		})
	}
	return out
}
