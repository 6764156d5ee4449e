// Package riskmodel trains and serves the equipment failure-risk classifier:
// a random forest fitted on a fixed synthetic dataset of degradation
// scenarios. Training is deterministic for a given seed, so every process
// that starts with the same Config scores equipment identically.
package riskmodel

import (
	"errors"
	"math"
	"math/rand"

	"github.com/steelstack/millwatch/internal/features"
)

// ErrSingleClass is returned by Train when the synthesized labels collapse
// into one class and no classifier can be fitted.
var ErrSingleClass = errors.New("riskmodel: training labels are single-class")

// Config controls dataset synthesis and forest growth. Zero values fall back
// to the defaults the scoring pipeline was tuned on.
type Config struct {
	Seed            int64 `yaml:"seed"`
	Samples         int   `yaml:"samples"`
	Trees           int   `yaml:"trees"`
	MaxDepth        int   `yaml:"max_depth"`
	MinSamplesSplit int   `yaml:"min_samples_split"`
}

func (c Config) withDefaults() Config {
	if c.Seed == 0 {
		c.Seed = 42
	}
	if c.Samples <= 0 {
		c.Samples = 1000
	}
	if c.Trees <= 0 {
		c.Trees = 100
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 10
	}
	if c.MinSamplesSplit <= 0 {
		c.MinSamplesSplit = 5
	}
	return c
}

// Model is a trained forest plus the scaler fitted on its training set.
// It is immutable after Train and safe for concurrent use.
type Model struct {
	scaler   Scaler
	trees    []*treeNode
	training []features.Vector
}

// Train synthesizes the training set, fits the scaler and grows the forest.
// A single sequential rng seeded from cfg.Seed drives sampling, bootstrap
// draws and per-split feature subsets, which makes the whole model a pure
// function of its Config.
func Train(cfg Config) (*Model, error) {
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewSource(cfg.Seed))

	rows, labels := synthesize(cfg.Samples, rng)
	positives := 0
	for _, l := range labels {
		positives += l
	}
	if positives == 0 || positives == len(labels) {
		return nil, ErrSingleClass
	}

	scaler := fitScaler(rows)
	scaled := make([]features.Vector, len(rows))
	for i, v := range rows {
		scaled[i] = scaler.Transform(v)
	}

	params := treeParams{
		maxDepth:        cfg.MaxDepth,
		minSamplesSplit: cfg.MinSamplesSplit,
		mtry:            int(math.Sqrt(features.Count)),
	}

	trees := make([]*treeNode, cfg.Trees)
	boot := make([]int, len(rows))
	for t := range trees {
		for i := range boot {
			boot[i] = rng.Intn(len(rows))
		}
		trees[t] = growTree(scaled, labels, boot, 0, params, rng)
	}

	return &Model{scaler: scaler, trees: trees, training: rows}, nil
}

// Score returns the unrounded failure probability for a raw feature vector:
// the mean positive-class fraction across the forest's leaves.
func (m *Model) Score(v features.Vector) float64 {
	scaled := m.scaler.Transform(v)
	sum := 0.0
	for _, t := range m.trees {
		sum += t.predict(scaled)
	}
	return sum / float64(len(m.trees))
}

// Predict returns the failure probability rounded to three decimals, the
// precision every downstream consumer sees.
func (m *Model) Predict(v features.Vector) float64 {
	return math.Round(m.Score(v)*1000) / 1000
}

// Background returns up to n raw training rows sampled at a fixed stride,
// for use as the reference distribution when attributing predictions.
func (m *Model) Background(n int) []features.Vector {
	if n <= 0 || len(m.training) == 0 {
		return nil
	}
	if n >= len(m.training) {
		out := make([]features.Vector, len(m.training))
		copy(out, m.training)
		return out
	}
	stride := len(m.training) / n
	out := make([]features.Vector, 0, n)
	for i := 0; len(out) < n; i += stride {
		out = append(out, m.training[i])
	}
	return out
}
