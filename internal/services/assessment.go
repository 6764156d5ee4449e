// Package services hosts the assessment facade between the HTTP layer and the
// analytics components: per-feature attribution, template explanations,
// maintenance recommendations and accident-history matching. Results are
// cached for one simulation tick, since readings only move when the loop
// advances.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/steelstack/millwatch/internal/accidents"
	"github.com/steelstack/millwatch/internal/advisor"
	"github.com/steelstack/millwatch/internal/cache"
	"github.com/steelstack/millwatch/internal/explain"
	"github.com/steelstack/millwatch/internal/models"
	"github.com/steelstack/millwatch/internal/state"
)

// ErrEquipmentNotFound signals an unknown equipment id; the HTTP layer maps
// it to a 404.
var ErrEquipmentNotFound = errors.New("equipment not found")

// Explanation is the response body for equipment explanation lookups.
type Explanation struct {
	EquipmentID string               `json:"equip_id"`
	Probability float64              `json:"failure_probability"`
	RiskLevel   string               `json:"risk_level"`
	TopFactors  []models.Attribution `json:"top_factors"`
	Explanation string               `json:"explanation"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// Recommendations carries the ranked advisor output for one equipment unit.
type Recommendations struct {
	EquipmentID     string                   `json:"equip_id"`
	Probability     float64                  `json:"failure_probability"`
	Recommendations []advisor.Recommendation `json:"recommendations"`
	GeneratedAt     time.Time                `json:"generated_at"`
}

// AccidentRisk reports matches against the historical incident record.
type AccidentRisk struct {
	EquipmentID   string                   `json:"equip_id"`
	EquipmentType string                   `json:"equipment_type"`
	Warnings      []models.AccidentWarning `json:"warnings"`
	WarningCount  int                      `json:"warning_count"`
	GeneratedAt   time.Time                `json:"generated_at"`
}

// AssessmentService reads equipment snapshots from the store and derives
// presentation-ready analytics. It never mutates plant state.
type AssessmentService struct {
	log       *slog.Logger
	store     *state.Store
	explainer *explain.Explainer
	cache     cache.Provider
	ttl       time.Duration
	now       func() time.Time
}

// NewAssessmentService wires the facade. A nil cache provider disables
// caching via the noop implementation.
func NewAssessmentService(log *slog.Logger, store *state.Store, explainer *explain.Explainer, cacheProvider cache.Provider, ttl time.Duration) *AssessmentService {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	return &AssessmentService{
		log:       log,
		store:     store,
		explainer: explainer,
		cache:     cacheProvider,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Explanation attributes the current prediction for one equipment unit and
// renders the template explanation text.
func (s *AssessmentService) Explanation(ctx context.Context, equipmentID string) (Explanation, error) {
	eq, ok := s.store.Get(equipmentID)
	if !ok {
		return Explanation{}, ErrEquipmentNotFound
	}

	cacheKey := ""
	if s.ttl > 0 {
		cacheKey = explanationKey(equipmentID)
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cached Explanation
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	attributions := s.explainer.Explain(eq.Readings)
	out := Explanation{
		EquipmentID: eq.ID,
		Probability: eq.Risk.Probability,
		RiskLevel:   advisor.RiskLevel(eq.Risk.Probability),
		TopFactors:  attributions,
		Explanation: advisor.Explain(eq.ID, eq.Risk.Probability, attributions),
		GeneratedAt: s.now().UTC(),
	}
	s.put(ctx, cacheKey, out)
	return out, nil
}

// Recommendations runs the rule-based advisor over the current readings.
func (s *AssessmentService) Recommendations(ctx context.Context, equipmentID string) (Recommendations, error) {
	eq, ok := s.store.Get(equipmentID)
	if !ok {
		return Recommendations{}, ErrEquipmentNotFound
	}

	cacheKey := ""
	if s.ttl > 0 {
		cacheKey = recommendationsKey(equipmentID)
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cached Recommendations
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	out := Recommendations{
		EquipmentID:     eq.ID,
		Probability:     eq.Risk.Probability,
		Recommendations: advisor.Recommend(eq.Readings),
		GeneratedAt:     s.now().UTC(),
	}
	s.put(ctx, cacheKey, out)
	return out, nil
}

// AccidentRisk matches the current readings against the incident record for
// the unit's equipment type.
func (s *AssessmentService) AccidentRisk(ctx context.Context, equipmentID string) (AccidentRisk, error) {
	eq, ok := s.store.Get(equipmentID)
	if !ok {
		return AccidentRisk{}, ErrEquipmentNotFound
	}

	cacheKey := ""
	if s.ttl > 0 {
		cacheKey = accidentsKey(equipmentID)
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cached AccidentRisk
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	warnings := accidents.Check(eq.Type, eq.Readings)
	out := AccidentRisk{
		EquipmentID:   eq.ID,
		EquipmentType: eq.Type,
		Warnings:      warnings,
		WarningCount:  len(warnings),
		GeneratedAt:   s.now().UTC(),
	}
	s.put(ctx, cacheKey, out)
	return out, nil
}

// Invalidate drops cached assessments for the given equipment ids. Called on
// plant regeneration: ids carry over between populations, so a cached
// explanation would otherwise describe the previous plant until its TTL ran
// out.
func (s *AssessmentService) Invalidate(ctx context.Context, equipmentIDs []string) {
	if s.ttl <= 0 {
		return
	}
	for _, id := range equipmentIDs {
		for _, key := range []string{explanationKey(id), recommendationsKey(id), accidentsKey(id)} {
			if err := s.cache.Del(ctx, key); err != nil {
				s.log.Debug("assessment cache invalidation failed", "key", key, "error", err)
			}
		}
	}
}

func (s *AssessmentService) put(ctx context.Context, key string, v any) {
	if s.ttl <= 0 || key == "" {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.ttl); err != nil {
		s.log.Debug("assessment cache write failed", "key", key, "error", err)
	}
}

func explanationKey(id string) string     { return "assess:explanation:" + id }
func recommendationsKey(id string) string { return "assess:recommendations:" + id }
func accidentsKey(id string) string       { return "assess:accidents:" + id }
