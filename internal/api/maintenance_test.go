package api

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func TestMaintenanceQueueRanksWorstFirst(t *testing.T) {
	env := newTestEnv(t)

	rr := doRequest(t, env.handler, http.MethodGet, "/api/maintenance/queue")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp maintenanceQueueResponse
	decodeJSON(t, rr, &resp)

	// EAF-002 at 0.05 stays below the 0.2 queue floor.
	if resp.Count != 2 || len(resp.Queue) != 2 {
		t.Fatalf("queue = %+v, want 2 entries", resp)
	}
	first, second := resp.Queue[0], resp.Queue[1]
	if first.EquipmentID != "CAST-001" || first.Urgency != "immediate" {
		t.Errorf("first = %+v, want CAST-001 immediate", first)
	}
	if second.EquipmentID != "EAF-001" || second.Urgency != "planned" {
		t.Errorf("second = %+v, want EAF-001 planned", second)
	}
	if first.RecommendedAction == "" || second.RecommendedAction == "" {
		t.Error("queue entries must carry a recommended action")
	}
}

func TestMaintenanceHistoryRollups(t *testing.T) {
	env := newTestEnv(t)

	rr := doRequest(t, env.handler, http.MethodGet, "/api/maintenance/history")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp maintenanceHistoryResponse
	decodeJSON(t, rr, &resp)

	// The 45-day-old event falls outside the default 30-day window.
	if resp.Days != 30 || resp.TotalEvents != 2 {
		t.Fatalf("days=%d events=%d, want 30/2", resp.Days, resp.TotalEvents)
	}
	if resp.TotalCostUSD != 6100 || resp.TotalDowntimeMins != 165 {
		t.Errorf("totals = $%d / %dmin, want 6100/165", resp.TotalCostUSD, resp.TotalDowntimeMins)
	}
	if got := resp.ByType["unplanned_repair"]; got.Count != 1 || got.CostUSD != 5200 {
		t.Errorf("unplanned_repair rollup = %+v", got)
	}
	if got := resp.ByType["preventive"]; got.Count != 1 || got.DowntimeMins != 45 {
		t.Errorf("preventive rollup = %+v", got)
	}
	// Newest first.
	if resp.Events[0].ID != "MAINT-00002" {
		t.Errorf("first event = %q, want MAINT-00002", resp.Events[0].ID)
	}

	rr = doRequest(t, env.handler, http.MethodGet, "/api/maintenance/history?days=60")
	decodeJSON(t, rr, &resp)
	if resp.TotalEvents != 3 {
		t.Errorf("60-day events = %d, want 3", resp.TotalEvents)
	}

	rr = doRequest(t, env.handler, http.MethodGet, "/api/maintenance/history?equipment_id=CAST-001")
	decodeJSON(t, rr, &resp)
	if resp.TotalEvents != 1 || resp.EquipmentID != "CAST-001" {
		t.Errorf("caster history = %+v, want 1 event in window", resp)
	}

	for _, q := range []string{"days=0", "days=366", "days=soon"} {
		rr := doRequest(t, env.handler, http.MethodGet, "/api/maintenance/history?"+q)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", q, rr.Code)
		}
	}
	if rr := doRequest(t, env.handler, http.MethodGet, "/api/maintenance/history?equipment_id=NOPE"); rr.Code != http.StatusNotFound {
		t.Errorf("unknown equipment status = %d, want 404", rr.Code)
	}
}

func TestUpcomingMaintenanceWindows(t *testing.T) {
	env := newTestEnv(t)

	rr := doRequest(t, env.handler, http.MethodGet, "/api/maintenance/upcoming")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp upcomingMaintenanceResponse
	decodeJSON(t, rr, &resp)

	if resp.Count != 2 {
		t.Fatalf("scheduled = %+v, want 2 entries (healthy unit excluded)", resp)
	}
	first := resp.Scheduled[0]
	if first.EquipmentID != "CAST-001" || first.Window != "within_24_hours" || first.MaintenanceType != "predictive" {
		t.Errorf("first = %+v, want CAST-001 within_24_hours predictive", first)
	}
	if want := time.Now().AddDate(0, 0, 1).Format("2006-01-02"); first.ScheduledDate != want {
		t.Errorf("scheduled date = %q, want %q", first.ScheduledDate, want)
	}
	second := resp.Scheduled[1]
	if second.EquipmentID != "EAF-001" || second.Window != "this_week" || second.MaintenanceType != "preventive" {
		t.Errorf("second = %+v, want EAF-001 this_week preventive", second)
	}
}

func TestReliabilityRollup(t *testing.T) {
	env := newTestEnv(t)

	rr := doRequest(t, env.handler, http.MethodGet, "/api/maintenance/mtbf-mttr")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp reliabilityResponse
	decodeJSON(t, rr, &resp)

	// Only the two units with a maintenance record carry metrics.
	if len(resp.Equipment) != 2 {
		t.Fatalf("equipment = %+v, want 2 entries", resp.Equipment)
	}
	if resp.Plant.AvgMTBFHours != 600 || resp.Plant.AvgMTTRHours != 4 {
		t.Errorf("plant averages = %+v, want MTBF 600 MTTR 4", resp.Plant)
	}
	if resp.Plant.TotalFailures != 5 || resp.Plant.AvgReliabilityScore != 92 {
		t.Errorf("plant rollup = %+v, want 5 failures score 92", resp.Plant)
	}

	rr = doRequest(t, env.handler, http.MethodGet, "/api/maintenance/mtbf-mttr?equipment_id=EAF-001")
	decodeJSON(t, rr, &resp)
	if len(resp.Equipment) != 1 || resp.Equipment[0].MTBFHours != 720 {
		t.Errorf("single unit = %+v", resp.Equipment)
	}

	if rr := doRequest(t, env.handler, http.MethodGet, "/api/maintenance/mtbf-mttr?equipment_id=NOPE"); rr.Code != http.StatusNotFound {
		t.Errorf("unknown equipment status = %d, want 404", rr.Code)
	}
}

func TestRiskDistributionBuckets(t *testing.T) {
	env := newTestEnv(t)

	rr := doRequest(t, env.handler, http.MethodGet, "/api/analytics/risk-distribution")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp riskDistributionResponse
	decodeJSON(t, rr, &resp)

	if resp.TotalEquipment != 3 || len(resp.Buckets) != 5 {
		t.Fatalf("response = %+v, want 3 units over 5 buckets", resp)
	}
	byName := map[string]riskBucket{}
	for _, b := range resp.Buckets {
		byName[b.Name] = b
	}
	if b := byName["critical"]; b.Count != 1 || b.Equipment[0] != "CAST-001" {
		t.Errorf("critical = %+v, want just CAST-001 at 0.82", b)
	}
	if b := byName["medium"]; b.Count != 1 || b.Equipment[0] != "EAF-001" {
		t.Errorf("medium = %+v, want just EAF-001", b)
	}
	if b := byName["healthy"]; b.Count != 1 || b.Equipment[0] != "EAF-002" {
		t.Errorf("healthy = %+v, want just EAF-002", b)
	}
	if byName["high"].Count != 0 || byName["low"].Count != 0 {
		t.Errorf("high/low = %d/%d, want empty", byName["high"].Count, byName["low"].Count)
	}
}

func TestPrioritiesToday(t *testing.T) {
	env := newTestEnv(t)

	rr := doRequest(t, env.handler, http.MethodGet, "/api/priorities/today")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp prioritiesResponse
	decodeJSON(t, rr, &resp)

	if len(resp.Priorities) != 3 {
		t.Fatalf("priorities = %d, want all 3 units", len(resp.Priorities))
	}
	first := resp.Priorities[0]
	if first.Rank != 1 || first.EquipmentID != "CAST-001" || first.Urgency != "IMMEDIATE" {
		t.Errorf("rank 1 = %+v, want CAST-001 IMMEDIATE", first)
	}
	if first.Action == "" || first.DominantFactor == "" {
		t.Errorf("rank 1 = %+v, want action and dominant factor", first)
	}
	if second := resp.Priorities[1]; second.EquipmentID != "EAF-001" || second.Urgency != "TODAY" {
		t.Errorf("rank 2 = %+v, want EAF-001 TODAY", second)
	}
}

func TestPrioritiesSummary(t *testing.T) {
	env := newTestEnv(t)

	rr := doRequest(t, env.handler, http.MethodGet, "/api/priorities/summary")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp prioritySummaryResponse
	decodeJSON(t, rr, &resp)

	if resp.StatusCounts["red"] != 1 || resp.StatusCounts["yellow"] != 1 || resp.StatusCounts["green"] != 1 {
		t.Errorf("status counts = %v, want 1/1/1", resp.StatusCounts)
	}
	if resp.PlantHealthScore != 57.7 {
		t.Errorf("plant health = %v, want 57.7", resp.PlantHealthScore)
	}
	if resp.CriticalCount != 1 {
		t.Errorf("critical = %d, want 1 (the 0.82 caster)", resp.CriticalCount)
	}
	// One critical (1.5h) plus one medium (0.4h).
	if resp.EstimatedMaintenanceHours != 1.9 {
		t.Errorf("estimated hours = %v, want 1.9", resp.EstimatedMaintenanceHours)
	}
	if resp.UnacknowledgedAlerts != 2 {
		t.Errorf("unacknowledged = %d, want 2", resp.UnacknowledgedAlerts)
	}
}

func TestMaintenanceReportWorkbook(t *testing.T) {
	env := newTestEnv(t)

	rr := doRequest(t, env.handler, http.MethodGet, "/api/reports/maintenance.xlsx")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("content type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename=maintenance_report.xlsx` {
		t.Errorf("disposition = %q", cd)
	}

	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != "Summary" || sheets[1] != "Events" {
		t.Fatalf("sheets = %v, want [Summary Events]", sheets)
	}

	if v, _ := f.GetCellValue("Summary", "B4"); v != "3" {
		t.Errorf("total equipment cell = %q, want 3", v)
	}
	if v, _ := f.GetCellValue("Summary", "B7"); v != "2" {
		t.Errorf("window events cell = %q, want 2", v)
	}

	if v, _ := f.GetCellValue("Events", "A1"); v != "Event ID" {
		t.Errorf("events header = %q, want Event ID", v)
	}
	// Newest event inside the 30-day window leads.
	if v, _ := f.GetCellValue("Events", "A2"); v != "MAINT-00002" {
		t.Errorf("first event row = %q, want MAINT-00002", v)
	}
	if v, _ := f.GetCellValue("Events", "B3"); v != "CAST-001" {
		t.Errorf("second event equipment = %q, want CAST-001", v)
	}
}
