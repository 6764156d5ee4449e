package models

import "time"

// Alert records an upward risk-category transition for one equipment unit.
// Alerts are never deleted; acknowledging is the only mutation.
type Alert struct {
	ID             string       `json:"id"`
	EquipmentID    string       `json:"equipment_id"`
	EquipmentType  string       `json:"equipment_type"`
	Stage          string       `json:"stage"`
	Severity       RiskCategory `json:"severity"`
	Message        string       `json:"message"`
	Probability    float64      `json:"probability_at_creation"`
	CreatedAt      time.Time    `json:"created_at"`
	Acknowledged   bool         `json:"acknowledged"`
	AcknowledgedAt *time.Time   `json:"acknowledged_at,omitempty"`
}
