package api

import (
	"time"

	"github.com/steelstack/millwatch/internal/models"
)

type errorResponse struct {
	Error string `json:"error"`
}

type bannerResponse struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Status    string `json:"status"`
	WebSocket string `json:"websocket"`
	Health    string `json:"health"`
}

type healthResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	UptimeSeconds  float64   `json:"uptime_seconds"`
	EquipmentCount int       `json:"equipment_count"`
	SensorCount    int       `json:"sensor_count"`
	StageCount     int       `json:"stage_count"`
	WSConnections  int       `json:"ws_connections"`
	TickCount      int       `json:"tick_count"`
	TickLastMs     float64   `json:"tick_last_ms"`
	TickP95Ms      float64   `json:"tick_p95_ms"`
}

// equipmentSummary is the compact equipment representation used by list-style
// endpoints.
type equipmentSummary struct {
	ID          string  `json:"equip_id"`
	TypeDisplay string  `json:"type_display"`
	StageName   string  `json:"stage_name"`
	Status      string  `json:"status"`
	HealthScore int     `json:"health_score"`
	Probability float64 `json:"failure_probability"`
}

type stageSummary struct {
	ID             string `json:"stage_id"`
	Name           string `json:"name"`
	Order          int    `json:"order"`
	EquipmentCount int    `json:"equipment_count"`
	HighRiskCount  int    `json:"high_risk_count"`
	Status         string `json:"status"`
}

type plantOverviewResponse struct {
	Timestamp            time.Time          `json:"timestamp"`
	TotalEquipment       int                `json:"total_equipment"`
	AvgHealthScore       float64            `json:"avg_health_score"`
	AvgProbability       float64            `json:"avg_failure_probability"`
	HighRiskCount        int                `json:"high_risk_count"`
	MediumRiskCount      int                `json:"medium_risk_count"`
	LowRiskCount         int                `json:"low_risk_count"`
	OperationalRatePct   float64            `json:"operational_rate_pct"`
	ProductionRateTPH    float64            `json:"production_rate_tph"`
	CriticalEquipment    []equipmentSummary `json:"critical_equipment"`
	Stages               []stageSummary     `json:"stages"`
	UnacknowledgedAlerts int                `json:"unacknowledged_alerts"`
	CriticalAlerts       []models.Alert     `json:"critical_alerts"`
}

type stageDetailResponse struct {
	Stage            models.Stage        `json:"stage"`
	EquipmentCount   int                 `json:"equipment_count"`
	RiskDistribution map[string]int      `json:"risk_distribution"`
	Equipment        []*models.Equipment `json:"equipment"`
	RecentAlerts     []models.Alert      `json:"recent_alerts"`
}

type healthBlock struct {
	HealthScore    int                 `json:"health_score"`
	Probability    float64             `json:"failure_probability"`
	RiskCategory   models.RiskCategory `json:"risk_category"`
	Status         string              `json:"status"`
	RemainingHeats int                 `json:"predicted_remaining_heats"`
	RemainingHours int                 `json:"predicted_remaining_hours"`
}

// sensorStatus decorates a sensor with its live warn/alarm state.
type sensorStatus struct {
	models.Sensor
	Status string `json:"status"`
}

type equipmentDetailResponse struct {
	Equipment *models.Equipment `json:"equipment"`
	Health    healthBlock       `json:"health"`
	Sensors   []sensorStatus    `json:"sensors"`
}

type seriesStatistics struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	StdDev float64 `json:"std_dev"`
}

type sensorHistoryResponse struct {
	SensorID     string                  `json:"sensor_id"`
	Name         string                  `json:"name"`
	Equipment    string                  `json:"equipment"`
	Unit         string                  `json:"unit"`
	CurrentValue float64                 `json:"current_value"`
	IsDerived    bool                    `json:"is_derived"`
	Thresholds   models.SensorThresholds `json:"thresholds"`
	Hours        int                     `json:"hours"`
	Statistics   seriesStatistics        `json:"statistics"`
	History      []models.Point          `json:"history"`
}

type alertListResponse struct {
	Total  int            `json:"total"`
	Alerts []models.Alert `json:"alerts"`
}

type acknowledgeResponse struct {
	Status  string `json:"status"`
	AlertID string `json:"alert_id"`
}

type maintenanceQueueItem struct {
	EquipmentID       string  `json:"equip_id"`
	TypeDisplay       string  `json:"type_display"`
	StageName         string  `json:"stage_name"`
	Probability       float64 `json:"failure_probability"`
	HealthScore       int     `json:"health_score"`
	Urgency           string  `json:"urgency"`
	RecommendedAction string  `json:"recommended_action"`
}

type maintenanceQueueResponse struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Count       int                    `json:"count"`
	Queue       []maintenanceQueueItem `json:"queue"`
}

type maintenanceTypeRollup struct {
	Count        int `json:"count"`
	CostUSD      int `json:"cost_usd"`
	DowntimeMins int `json:"downtime_mins"`
}

type maintenanceHistoryResponse struct {
	Days              int                              `json:"days"`
	EquipmentID       string                           `json:"equipment_id,omitempty"`
	TotalEvents       int                              `json:"total_events"`
	TotalCostUSD      int                              `json:"total_cost_usd"`
	TotalDowntimeMins int                              `json:"total_downtime_mins"`
	ByType            map[string]maintenanceTypeRollup `json:"by_type"`
	Events            []models.MaintenanceEvent        `json:"events"`
}

type upcomingMaintenanceItem struct {
	EquipmentID     string  `json:"equip_id"`
	TypeDisplay     string  `json:"type_display"`
	StageName       string  `json:"stage_name"`
	Probability     float64 `json:"failure_probability"`
	Window          string  `json:"window"`
	ScheduledDate   string  `json:"scheduled_date"`
	MaintenanceType string  `json:"maintenance_type"`
}

type upcomingMaintenanceResponse struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	Count       int                       `json:"count"`
	Scheduled   []upcomingMaintenanceItem `json:"scheduled"`
}

type equipmentReliability struct {
	EquipmentID string `json:"equip_id"`
	TypeDisplay string `json:"type_display"`
	models.ReliabilityMetrics
}

type plantReliability struct {
	AvgMTBFHours        float64 `json:"avg_mtbf_hours"`
	AvgMTTRHours        float64 `json:"avg_mttr_hours"`
	TotalFailures       int     `json:"total_failures"`
	AvgReliabilityScore float64 `json:"avg_reliability_score"`
}

type reliabilityResponse struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Equipment   []equipmentReliability `json:"equipment"`
	Plant       plantReliability       `json:"plant"`
}

type riskBucket struct {
	Name      string   `json:"name"`
	Range     string   `json:"range"`
	Count     int      `json:"count"`
	Equipment []string `json:"equipment"`
}

type riskDistributionResponse struct {
	GeneratedAt    time.Time    `json:"generated_at"`
	TotalEquipment int          `json:"total_equipment"`
	Buckets        []riskBucket `json:"buckets"`
}

type priorityItem struct {
	Rank           int     `json:"rank"`
	EquipmentID    string  `json:"equip_id"`
	TypeDisplay    string  `json:"type_display"`
	StageName      string  `json:"stage_name"`
	Probability    float64 `json:"failure_probability"`
	Urgency        string  `json:"urgency"`
	DominantFactor string  `json:"dominant_factor,omitempty"`
	Action         string  `json:"action"`
}

type prioritiesResponse struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Priorities  []priorityItem `json:"priorities"`
}

type prioritySummaryResponse struct {
	GeneratedAt               time.Time      `json:"generated_at"`
	StatusCounts              map[string]int `json:"status_counts"`
	PlantHealthScore          float64        `json:"plant_health_score"`
	CriticalCount             int            `json:"critical_count"`
	EstimatedMaintenanceHours float64        `json:"estimated_maintenance_hours"`
	UnacknowledgedAlerts      int            `json:"unacknowledged_alerts"`
}

type regenerateResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	EquipmentCount int    `json:"equipment_count"`
}

type wsStatsResponse struct {
	TotalConnections       int       `json:"total_connections"`
	EquipmentSubscriptions int       `json:"equipment_subscriptions"`
	Timestamp              time.Time `json:"timestamp"`
}
