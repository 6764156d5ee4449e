package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/steelstack/millwatch/internal/models"
)

const reportWindowDays = 30

// maintenanceReport returns GET /api/reports/maintenance.xlsx: a workbook
// with plant KPIs and the recent maintenance record.
func (h *Handler) maintenanceReport(w http.ResponseWriter, _ *http.Request) {
	now := h.now()
	cutoff := now.AddDate(0, 0, -reportWindowDays)
	var events []models.MaintenanceEvent
	for _, ev := range h.store.Maintenance("") {
		if ev.StartTime.After(cutoff) {
			events = append(events, ev)
		}
	}

	out, err := buildMaintenanceReport(now, h.store.List(), events)
	if err != nil {
		h.log.Error("report build failed", "error", err)
		jsonErr(w, http.StatusInternalServerError, "report build failed")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename=maintenance_report.xlsx`)
	w.WriteHeader(http.StatusOK)
	w.Write(out) //nolint:errcheck
}

// buildMaintenanceReport renders the workbook: a Summary sheet with plant
// KPIs and an Events sheet listing the window's interventions.
func buildMaintenanceReport(generatedAt time.Time, equipment []*models.Equipment, events []models.MaintenanceEvent) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "Summary"
	eventsSheet := "Events"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(eventsSheet)

	var healthSum float64
	high := 0
	for _, eq := range equipment {
		healthSum += float64(eq.Risk.HealthScore)
		if eq.Risk.Category == models.CategoryHigh {
			high++
		}
	}
	avgHealth := 0.0
	if len(equipment) > 0 {
		avgHealth = healthSum / float64(len(equipment))
	}
	var cost, downtime int
	for _, ev := range events {
		cost += ev.CostUSD
		downtime += ev.DurationMins
	}

	_ = f.SetCellValue(summarySheet, "A1", "Maintenance Report")
	_ = f.SetCellValue(summarySheet, "A3", "Generated")
	_ = f.SetCellValue(summarySheet, "B3", generatedAt.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Total Equipment")
	_ = f.SetCellValue(summarySheet, "B4", len(equipment))
	_ = f.SetCellValue(summarySheet, "A5", "High Risk Units")
	_ = f.SetCellValue(summarySheet, "B5", high)
	_ = f.SetCellValue(summarySheet, "A6", "Avg Health Score")
	_ = f.SetCellValue(summarySheet, "B6", round1(avgHealth))
	_ = f.SetCellValue(summarySheet, "A7", fmt.Sprintf("Events (%d days)", reportWindowDays))
	_ = f.SetCellValue(summarySheet, "B7", len(events))
	_ = f.SetCellValue(summarySheet, "A8", "Total Cost (USD)")
	_ = f.SetCellValue(summarySheet, "B8", cost)
	_ = f.SetCellValue(summarySheet, "A9", "Total Downtime (min)")
	_ = f.SetCellValue(summarySheet, "B9", downtime)

	_ = f.SetCellValue(eventsSheet, "A1", "Event ID")
	_ = f.SetCellValue(eventsSheet, "B1", "Equipment")
	_ = f.SetCellValue(eventsSheet, "C1", "Type")
	_ = f.SetCellValue(eventsSheet, "D1", "Date")
	_ = f.SetCellValue(eventsSheet, "E1", "Duration (min)")
	_ = f.SetCellValue(eventsSheet, "F1", "Cost (USD)")
	_ = f.SetCellValue(eventsSheet, "G1", "Technician")
	_ = f.SetCellValue(eventsSheet, "H1", "Status")
	for i, ev := range events {
		row := i + 2
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("A%d", row), ev.ID)
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("B%d", row), ev.EquipmentID)
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("C%d", row), ev.TypeDisplay)
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("D%d", row), ev.Date)
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("E%d", row), ev.DurationMins)
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("F%d", row), ev.CostUSD)
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("G%d", row), ev.Technician)
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("H%d", row), ev.Status)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
