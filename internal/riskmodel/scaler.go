package riskmodel

import (
	"math"

	"github.com/steelstack/millwatch/internal/features"
)

// Scaler standardizes feature vectors to zero mean and unit variance using
// statistics fit on the training matrix. The identical scaler must be applied
// at inference.
type Scaler struct {
	Mean [features.Count]float64
	Std  [features.Count]float64
}

func fitScaler(rows []features.Vector) Scaler {
	var s Scaler
	if len(rows) == 0 {
		for i := range s.Std {
			s.Std[i] = 1
		}
		return s
	}

	n := float64(len(rows))
	for _, row := range rows {
		for i, v := range row {
			s.Mean[i] += v
		}
	}
	for i := range s.Mean {
		s.Mean[i] /= n
	}

	for _, row := range rows {
		for i, v := range row {
			d := v - s.Mean[i]
			s.Std[i] += d * d
		}
	}
	for i := range s.Std {
		s.Std[i] = math.Sqrt(s.Std[i] / n)
		if s.Std[i] == 0 {
			// Constant columns carry no signal; scale by 1 to stay finite.
			s.Std[i] = 1
		}
	}
	return s
}

// Transform returns the standardized copy of v.
func (s *Scaler) Transform(v features.Vector) features.Vector {
	var out features.Vector
	for i, x := range v {
		out[i] = (x - s.Mean[i]) / s.Std[i]
	}
	return out
}
