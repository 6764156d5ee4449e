package models

import "time"

// MaintenanceEvent is one completed maintenance intervention.
type MaintenanceEvent struct {
	ID            string    `json:"event_id"`
	EquipmentID   string    `json:"equipment_id"`
	EquipmentType string    `json:"equipment_type"`
	Stage         string    `json:"stage"`
	Type          string    `json:"event_type"`
	TypeDisplay   string    `json:"event_type_display"`
	Date          string    `json:"date"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	DurationMins  int       `json:"duration_mins"`
	PartsReplaced []string  `json:"parts_replaced"`
	CostUSD       int       `json:"cost_usd"`
	Technician    string    `json:"technician"`
	Status        string    `json:"status"`
}

// ReliabilityMetrics aggregates maintenance outcomes for one equipment unit.
type ReliabilityMetrics struct {
	MTBFHours        float64 `json:"mtbf_hours"`
	MTTRHours        float64 `json:"mttr_hours"`
	FailureCount     int     `json:"failure_count"`
	ReliabilityScore float64 `json:"reliability_score"`
}
