package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/steelstack/millwatch/internal/cache"
	"github.com/steelstack/millwatch/internal/explain"
	"github.com/steelstack/millwatch/internal/features"
	"github.com/steelstack/millwatch/internal/models"
	"github.com/steelstack/millwatch/internal/state"
)

type stubCache struct {
	mu    sync.Mutex
	store map[string][]byte
	gets  int
	sets  int
	dels  int
}

func newStubCache() *stubCache {
	return &stubCache{store: make(map[string][]byte)}
}

func (s *stubCache) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	value, ok := s.store[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return append([]byte(nil), value...), nil
}

func (s *stubCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	s.store[key] = append([]byte(nil), value...)
	return nil
}

func (s *stubCache) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dels++
	delete(s.store, key)
	return nil
}

func (s *stubCache) Close() error { return nil }

// cloggingScorer makes the clogging feature the sole driver of risk, so
// attribution tests have a known dominant factor.
type cloggingScorer struct{}

func (cloggingScorer) Score(v features.Vector) float64 { return v[0] / 100 }

func newTestService(t *testing.T, provider cache.Provider, ttl time.Duration) (*AssessmentService, *state.Store) {
	t.Helper()
	store := state.New()
	store.Replace(state.Snapshot{Equipment: []*models.Equipment{
		{
			ID:          "TUNDISH-001",
			Type:        "tundish",
			TypeDisplay: "Tundish",
			StageID:     "continuous_casting",
			StageName:   "Continuous Casting",
			Status:      "red",
			Readings: models.SensorReadings{
				"clogging_index": 90,
				"argon_flow_lpm": 8,
				"steel_temp_c":   1548,
			},
			Risk: models.Assess(0.8, models.AlertThresholds{Medium: 0.30, High: 0.55}),
		},
	}})

	explainer, err := explain.New(cloggingScorer{}, []features.Vector{{}}, 10, 42)
	if err != nil {
		t.Fatalf("explainer: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAssessmentService(log, store, explainer, provider, ttl), store
}

func TestExplanationUnknownEquipment(t *testing.T) {
	svc, _ := newTestService(t, nil, 0)
	if _, err := svc.Explanation(context.Background(), "NOPE-999"); !errors.Is(err, ErrEquipmentNotFound) {
		t.Fatalf("err = %v, want ErrEquipmentNotFound", err)
	}
}

func TestExplanationContent(t *testing.T) {
	svc, _ := newTestService(t, nil, 0)

	out, err := svc.Explanation(context.Background(), "TUNDISH-001")
	if err != nil {
		t.Fatalf("Explanation: %v", err)
	}
	if out.EquipmentID != "TUNDISH-001" {
		t.Errorf("equip id = %q", out.EquipmentID)
	}
	if out.Probability != 0.8 {
		t.Errorf("probability = %v, want the stored assessment 0.8", out.Probability)
	}
	if out.RiskLevel != "HIGH" {
		t.Errorf("risk level = %q, want HIGH", out.RiskLevel)
	}
	if len(out.TopFactors) == 0 || len(out.TopFactors) > 5 {
		t.Fatalf("top factors = %d, want 1..5", len(out.TopFactors))
	}
	if out.TopFactors[0].Feature != "clogging_index" {
		t.Errorf("dominant factor = %q, want clogging_index", out.TopFactors[0].Feature)
	}
	if !strings.Contains(out.Explanation, "clogging") {
		t.Errorf("explanation %q should mention clogging", out.Explanation)
	}
	if out.GeneratedAt.IsZero() {
		t.Error("generated_at should be set")
	}
}

func TestExplanationServedFromCache(t *testing.T) {
	provider := newStubCache()
	svc, store := newTestService(t, provider, 15*time.Second)

	first, err := svc.Explanation(context.Background(), "TUNDISH-001")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}

	// Change the live readings; a cached assessment must still be served
	// until the TTL expires.
	eq, _ := store.Get("TUNDISH-001")
	next := *eq
	next.Readings = models.SensorReadings{"clogging_index": 5}
	next.Risk = models.Assess(0.1, models.AlertThresholds{Medium: 0.30, High: 0.55})
	store.Update(&next)

	second, err := svc.Explanation(context.Background(), "TUNDISH-001")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if second.Probability != first.Probability {
		t.Errorf("cached probability = %v, want %v", second.Probability, first.Probability)
	}
	if !second.GeneratedAt.Equal(first.GeneratedAt) {
		t.Errorf("cached generated_at = %v, want %v", second.GeneratedAt, first.GeneratedAt)
	}
	if provider.sets != 1 {
		t.Errorf("cache sets = %d, want 1", provider.sets)
	}
}

func TestExplanationZeroTTLSkipsCache(t *testing.T) {
	provider := newStubCache()
	svc, _ := newTestService(t, provider, 0)

	if _, err := svc.Explanation(context.Background(), "TUNDISH-001"); err != nil {
		t.Fatalf("Explanation: %v", err)
	}
	if provider.gets != 0 || provider.sets != 0 {
		t.Errorf("cache touched with zero TTL: gets=%d sets=%d", provider.gets, provider.sets)
	}
}

func TestInvalidateDropsCachedAssessments(t *testing.T) {
	provider := newStubCache()
	svc, store := newTestService(t, provider, 15*time.Second)

	if _, err := svc.Explanation(context.Background(), "TUNDISH-001"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	eq, _ := store.Get("TUNDISH-001")
	next := *eq
	next.Risk = models.Assess(0.1, models.AlertThresholds{Medium: 0.30, High: 0.55})
	store.Update(&next)

	svc.Invalidate(context.Background(), []string{"TUNDISH-001"})
	if provider.dels != 3 {
		t.Fatalf("cache deletes = %d, want one per assessment kind (3)", provider.dels)
	}

	out, err := svc.Explanation(context.Background(), "TUNDISH-001")
	if err != nil {
		t.Fatalf("call after invalidation: %v", err)
	}
	if out.Probability != 0.1 {
		t.Errorf("probability after invalidation = %v, want fresh 0.1", out.Probability)
	}
}

func TestRecommendationsContent(t *testing.T) {
	svc, _ := newTestService(t, nil, 0)

	out, err := svc.Recommendations(context.Background(), "TUNDISH-001")
	if err != nil {
		t.Fatalf("Recommendations: %v", err)
	}
	if len(out.Recommendations) == 0 {
		t.Fatal("expected at least one recommendation")
	}
	top := out.Recommendations[0]
	if top.Priority != 1 {
		t.Errorf("top priority = %d, want 1", top.Priority)
	}
	if !strings.Contains(strings.ToLower(top.Action), "nozzle") && !strings.Contains(strings.ToLower(top.Reason), "clogging") {
		t.Errorf("top recommendation should address clogging, got %+v", top)
	}
	if top.Urgency != "immediate" {
		t.Errorf("urgency = %q, want immediate for clogging at 90", top.Urgency)
	}

	if _, err := svc.Recommendations(context.Background(), "NOPE-999"); !errors.Is(err, ErrEquipmentNotFound) {
		t.Fatalf("err = %v, want ErrEquipmentNotFound", err)
	}
}

func TestAccidentRiskMatching(t *testing.T) {
	svc, _ := newTestService(t, nil, 0)

	out, err := svc.AccidentRisk(context.Background(), "TUNDISH-001")
	if err != nil {
		t.Fatalf("AccidentRisk: %v", err)
	}
	if out.EquipmentType != "tundish" {
		t.Errorf("equipment type = %q", out.EquipmentType)
	}
	// clogging 90 trips the breakout incident; argon 8 stays above the
	// buildup incident's 6 LPM floor.
	if out.WarningCount != 1 || len(out.Warnings) != 1 {
		t.Fatalf("warnings = %d, want exactly 1", out.WarningCount)
	}
	if out.Warnings[0].AccidentDate != "2024-11-15" {
		t.Errorf("matched incident = %q, want 2024-11-15", out.Warnings[0].AccidentDate)
	}
	if got := out.Warnings[0].CurrentReadings["clogging_index"]; got != 90 {
		t.Errorf("echoed reading = %v, want 90", got)
	}
}

func TestAccidentRiskCached(t *testing.T) {
	provider := newStubCache()
	svc, store := newTestService(t, provider, 15*time.Second)

	first, err := svc.AccidentRisk(context.Background(), "TUNDISH-001")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}

	eq, _ := store.Get("TUNDISH-001")
	next := *eq
	next.Readings = models.SensorReadings{"clogging_index": 0, "argon_flow_lpm": 20}
	store.Update(&next)

	second, err := svc.AccidentRisk(context.Background(), "TUNDISH-001")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if second.WarningCount != first.WarningCount {
		t.Errorf("cached warning count = %d, want %d", second.WarningCount, first.WarningCount)
	}
}
