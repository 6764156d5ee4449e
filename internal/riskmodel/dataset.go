package riskmodel

import (
	"math/rand"

	"github.com/steelstack/millwatch/internal/features"
)

// featureRanges bounds the uniform training distribution per feature, in
// feature declaration order.
var featureRanges = [features.Count][2]float64{
	{0, 100},  // clogging_index
	{30, 200}, // refractory_mm
	{0, 100},  // wear_pct
	{0, 100},  // erosion_pct
	{0, 150},  // age_heats
	{0, 12},   // heats_sequence
	{-50, 50}, // temp_deviation
	{0, 15},   // level_variation_mm
	{20, 100}, // opening_pct
	{0, 8},    // usage_hours
}

const (
	labelNoiseStd = 0.1
	labelCutoff   = 0.45
)

// labelScore is the deterministic part of the training-label rule: a weighted
// combination of range-normalized failure drivers. Temperature deviation and
// usage hours intentionally carry no weight.
func labelScore(v features.Vector) float64 {
	return v[0]/100*0.25 +
		(1-v[1]/200)*0.20 +
		v[2]/100*0.15 +
		v[3]/100*0.12 +
		v[4]/150*0.10 +
		v[5]/12*0.08 +
		v[7]/15*0.05 +
		v[8]/100*0.05
}

// synthesize draws the fixed synthetic training set. The same rng state
// always yields the same samples and labels.
func synthesize(samples int, rng *rand.Rand) ([]features.Vector, []int) {
	rows := make([]features.Vector, samples)
	labels := make([]int, samples)
	for i := range rows {
		var v features.Vector
		for j, bounds := range featureRanges {
			v[j] = bounds[0] + rng.Float64()*(bounds[1]-bounds[0])
		}
		rows[i] = v
		if labelScore(v)+rng.NormFloat64()*labelNoiseStd > labelCutoff {
			labels[i] = 1
		}
	}
	return rows, labels
}
