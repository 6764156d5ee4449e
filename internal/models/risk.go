package models

import (
	"fmt"
	"math"
)

// RiskCategory buckets a failure probability against the configured thresholds.
type RiskCategory string

const (
	CategoryLow    RiskCategory = "low"
	CategoryMedium RiskCategory = "medium"
	CategoryHigh   RiskCategory = "high"
)

// Rank orders categories for comparisons: low < medium < high.
func (c RiskCategory) Rank() int {
	switch c {
	case CategoryMedium:
		return 1
	case CategoryHigh:
		return 2
	default:
		return 0
	}
}

// StatusColor maps a category to the dashboard status color.
func (c RiskCategory) StatusColor() string {
	switch c {
	case CategoryHigh:
		return "red"
	case CategoryMedium:
		return "yellow"
	default:
		return "green"
	}
}

// AlertThresholds holds the two probability cutoffs shared by risk
// categorization and alerting. Medium must be strictly below High.
type AlertThresholds struct {
	Medium float64 `yaml:"medium" json:"medium"`
	High   float64 `yaml:"high" json:"high"`
}

// Validate rejects threshold pairs that would make categorization ambiguous.
func (t AlertThresholds) Validate() error {
	if t.Medium < 0 || t.High > 1 {
		return fmt.Errorf("thresholds must lie in [0,1], got medium=%v high=%v", t.Medium, t.High)
	}
	if t.Medium >= t.High {
		return fmt.Errorf("medium threshold %v must be below high threshold %v", t.Medium, t.High)
	}
	return nil
}

// Categorize maps a failure probability onto a risk category. The mapping is
// monotonic non-decreasing in probability.
func (t AlertThresholds) Categorize(probability float64) RiskCategory {
	switch {
	case probability > t.High:
		return CategoryHigh
	case probability > t.Medium:
		return CategoryMedium
	default:
		return CategoryLow
	}
}

// RiskAssessment is the model output attached to each equipment snapshot.
type RiskAssessment struct {
	Probability float64      `json:"failure_probability"`
	HealthScore int          `json:"health_score"`
	Category    RiskCategory `json:"risk_category"`
}

// Assess derives the full assessment from a probability and thresholds.
// HealthScore is round((1-p)*100) clamped to [0,100].
func Assess(probability float64, thresholds AlertThresholds) RiskAssessment {
	score := int(math.Round((1 - probability) * 100))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return RiskAssessment{
		Probability: probability,
		HealthScore: score,
		Category:    thresholds.Categorize(probability),
	}
}

const (
	DirectionIncreasesRisk = "increases_risk"
	DirectionDecreasesRisk = "decreases_risk"
)

// Attribution is one feature's signed contribution to a prediction.
type Attribution struct {
	Feature      string  `json:"feature"`
	DisplayName  string  `json:"display_name"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
	Direction    string  `json:"direction"`
}
