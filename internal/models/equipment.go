package models

import "time"

// SensorReadings maps sensor keys to numeric values. The key set varies by
// equipment type; no schema is enforced at this layer.
type SensorReadings map[string]float64

// Clone returns an independent copy of the readings map.
func (r SensorReadings) Clone() SensorReadings {
	out := make(SensorReadings, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Stage is one step of the production line.
type Stage struct {
	ID    string `json:"stage_id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// Equipment is an immutable snapshot of one unit's state. The simulation loop
// builds a fresh snapshot each tick and publishes it atomically; readers must
// not mutate a snapshot they received.
type Equipment struct {
	ID              string         `json:"equip_id"`
	Type            string         `json:"type"`
	TypeDisplay     string         `json:"type_display"`
	StageID         string         `json:"stage_id"`
	StageName       string         `json:"stage_name"`
	Status          string         `json:"status"`
	Readings        SensorReadings `json:"readings"`
	Risk            RiskAssessment `json:"risk"`
	InstallDate     string         `json:"install_date"`
	LastMaintenance string         `json:"last_maintenance"`
}

// SensorThresholds carries the warning and alarm levels for one sensor.
type SensorThresholds struct {
	Warning float64 `json:"warning"`
	Alarm   float64 `json:"alarm"`
}

// Sensor describes one tracked metric of an equipment unit. Key names the
// reading the sensor samples from.
type Sensor struct {
	ID           string           `json:"sensor_id"`
	EquipmentID  string           `json:"equipment_id"`
	Key          string           `json:"key"`
	DisplayName  string           `json:"display_name"`
	Unit         string           `json:"unit"`
	CurrentValue float64          `json:"current_value"`
	IsDerived    bool             `json:"is_derived"`
	Thresholds   SensorThresholds `json:"thresholds"`
}

// Point is a single sample in a sensor's bounded history window.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
