package models

// AccidentRecord is a historical incident with the sensor conditions that
// preceded it. Threshold keys refer to reading keys of the equipment type.
type AccidentRecord struct {
	Date                string             `json:"accident_date"`
	EquipmentType       string             `json:"equipment_type"`
	Incident            string             `json:"incident"`
	RootCause           string             `json:"root_cause"`
	Consequence         string             `json:"consequence"`
	PreventionThreshold map[string]float64 `json:"prevention_threshold"`
	Lesson              string             `json:"lesson"`
}

// AccidentWarning signals that current readings match a past incident's
// prevention thresholds.
type AccidentWarning struct {
	AccidentDate    string             `json:"accident_date"`
	Incident        string             `json:"incident"`
	Lesson          string             `json:"lesson"`
	CurrentReadings map[string]float64 `json:"current_readings"`
}
