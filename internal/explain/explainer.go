// Package explain attributes risk predictions to individual features using
// Monte-Carlo permutation sampling of Shapley values against a fixed
// background of training rows.
package explain

import (
	"errors"
	"math"
	"math/rand"
	"sort"

	"github.com/steelstack/millwatch/internal/features"
	"github.com/steelstack/millwatch/internal/models"
)

// Scorer produces an unrounded failure probability for a feature vector.
type Scorer interface {
	Score(features.Vector) float64
}

const (
	defaultPermutations = 20
	topAttributions     = 5
)

// ErrNoBackground is returned by New when no background rows are available
// to marginalize features against.
var ErrNoBackground = errors.New("explain: empty background sample")

// Explainer estimates per-feature contributions for one prediction. Each
// Explain call draws from its own rng seeded with the configured seed, so
// identical readings always produce identical attributions and concurrent
// calls never interfere.
type Explainer struct {
	scorer       Scorer
	background   []features.Vector
	permutations int
	seed         int64
}

// New builds an Explainer over a background sample, typically
// Model.Background rows. permutations <= 0 selects the default.
func New(scorer Scorer, background []features.Vector, permutations int, seed int64) (*Explainer, error) {
	if scorer == nil {
		return nil, errors.New("explain: nil scorer")
	}
	if len(background) == 0 {
		return nil, ErrNoBackground
	}
	if permutations <= 0 {
		permutations = defaultPermutations
	}
	return &Explainer{
		scorer:       scorer,
		background:   background,
		permutations: permutations,
		seed:         seed,
	}, nil
}

// Explain returns the five strongest feature attributions for a reading set,
// ordered by absolute contribution with ties broken by feature declaration
// order. Over all ten features the contributions telescope: their sum equals
// the instance score minus the mean background score.
func (e *Explainer) Explain(readings models.SensorReadings) []models.Attribution {
	instance := features.Extract(readings)
	rng := rand.New(rand.NewSource(e.seed))

	var sums [features.Count]float64
	for p := 0; p < e.permutations; p++ {
		order := rng.Perm(features.Count)
		for _, base := range e.background {
			hybrid := base
			prev := e.scorer.Score(hybrid)
			for _, f := range order {
				hybrid[f] = instance[f]
				next := e.scorer.Score(hybrid)
				sums[f] += next - prev
				prev = next
			}
		}
	}

	norm := float64(e.permutations * len(e.background))
	var contrib [features.Count]float64
	for f := range contrib {
		contrib[f] = sums[f] / norm
	}

	idx := make([]int, features.Count)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return math.Abs(contrib[idx[a]]) > math.Abs(contrib[idx[b]])
	})

	out := make([]models.Attribution, 0, topAttributions)
	for _, f := range idx[:topAttributions] {
		direction := models.DirectionDecreasesRisk
		if contrib[f] > 0 {
			direction = models.DirectionIncreasesRisk
		}
		name := features.Names[f]
		out = append(out, models.Attribution{
			Feature:      name,
			DisplayName:  features.DisplayName(name),
			Value:        math.Round(features.RawValue(name, readings, instance[f])*100) / 100,
			Contribution: math.Round(contrib[f]*10000) / 10000,
			Direction:    direction,
		})
	}
	return out
}
