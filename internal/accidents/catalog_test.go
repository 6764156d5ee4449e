package accidents

import (
	"testing"

	"github.com/steelstack/millwatch/internal/models"
)

func TestCheckUpperBoundThreshold(t *testing.T) {
	warnings := Check("tundish", models.SensorReadings{"clogging_index": 75, "argon_flow_lpm": 9})
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warnings))
	}
	if warnings[0].AccidentDate != "2024-11-15" {
		t.Fatalf("matched wrong incident: %s", warnings[0].AccidentDate)
	}
	if warnings[0].CurrentReadings["clogging_index"] != 75 {
		t.Fatalf("current readings: %v", warnings[0].CurrentReadings)
	}

	if got := Check("tundish", models.SensorReadings{"clogging_index": 69.9, "argon_flow_lpm": 9}); len(got) != 0 {
		t.Fatalf("below clogging threshold must not warn, got %d", len(got))
	}
}

func TestCheckBoundaryIsInclusive(t *testing.T) {
	if got := Check("tundish", models.SensorReadings{"clogging_index": 70, "argon_flow_lpm": 9}); len(got) != 1 {
		t.Fatalf("reading exactly at threshold must warn, got %d", len(got))
	}
	if got := Check("ladle", models.SensorReadings{"refractory_mm": 65}); len(got) != 1 {
		t.Fatalf("refractory exactly at threshold must warn, got %d", len(got))
	}
}

func TestCheckLowerBoundThresholds(t *testing.T) {
	// Thin lining is dangerous; a healthy lining above the limit is not.
	if got := Check("ladle", models.SensorReadings{"refractory_mm": 50}); len(got) != 1 {
		t.Fatalf("thin refractory must warn, got %d", len(got))
	}
	if got := Check("ladle", models.SensorReadings{"refractory_mm": 120}); len(got) != 0 {
		t.Fatalf("healthy refractory must not warn, got %d", len(got))
	}

	if got := Check("gate", models.SensorReadings{"hydraulic_pressure_bar": 90}); len(got) != 1 {
		t.Fatalf("low hydraulic pressure must warn, got %d", len(got))
	}
	if got := Check("gate", models.SensorReadings{"hydraulic_pressure_bar": 140}); len(got) != 0 {
		t.Fatalf("nominal hydraulic pressure must not warn, got %d", len(got))
	}
}

func TestCheckRequiresAllThresholds(t *testing.T) {
	// The SEN incident needs both wear and erosion at 70+.
	if got := Check("sen", models.SensorReadings{"wear_pct": 80, "erosion_pct": 50}); len(got) != 0 {
		t.Fatalf("partial match must not warn, got %d", len(got))
	}
	if got := Check("sen", models.SensorReadings{"wear_pct": 80, "erosion_pct": 71}); len(got) != 1 {
		t.Fatalf("full match must warn, got %d", len(got))
	}
}

func TestCheckMultipleIncidentsSameType(t *testing.T) {
	// High clogging plus starved argon trips both tundish incidents.
	warnings := Check("tundish", models.SensorReadings{
		"clogging_index": 85,
		"argon_flow_lpm": 4,
	})
	if len(warnings) != 2 {
		t.Fatalf("got %d warnings, want 2", len(warnings))
	}
}

func TestCheckUnknownTypeAndAbsentReadings(t *testing.T) {
	if got := Check("eaf", models.SensorReadings{"clogging_index": 99}); len(got) != 0 {
		t.Fatalf("type without incidents must not warn, got %d", len(got))
	}

	// Absent readings count as zero: the lower-bound argon incident matches,
	// the upper-bound clogging incident does not.
	warnings := Check("tundish", models.SensorReadings{})
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warnings))
	}
	if warnings[0].AccidentDate != "2024-06-14" {
		t.Fatalf("matched wrong incident: %s", warnings[0].AccidentDate)
	}
}

func TestCatalogShape(t *testing.T) {
	if len(History) != 6 {
		t.Fatalf("catalog holds %d incidents, want 6", len(History))
	}
	for _, rec := range History {
		if rec.EquipmentType == "" || rec.Incident == "" || rec.Lesson == "" {
			t.Fatalf("incomplete record: %+v", rec)
		}
		if len(rec.PreventionThreshold) == 0 {
			t.Fatalf("record %s has no thresholds", rec.Date)
		}
	}
}
