// Package plantgen synthesizes the plant population the engine runs against:
// production stages, equipment units with physically plausible readings,
// tracked sensors with history windows, and a maintenance record. Output is
// a pure function of the generator config, so a seed reproduces the plant.
package plantgen

import "github.com/steelstack/millwatch/internal/models"

// stages is the production line in order.
var stages = []models.Stage{
	{ID: "raw-materials", Name: "Raw Materials", Order: 1},
	{ID: "melt-shop", Name: "Melt Shop (EAF/BOF)", Order: 2},
	{ID: "secondary-metallurgy", Name: "Secondary Metallurgy", Order: 3},
	{ID: "continuous-casting", Name: "Continuous Casting", Order: 4},
	{ID: "hot-rolling", Name: "Hot Rolling", Order: 5},
	{ID: "finishing", Name: "Finishing & Shipping", Order: 6},
}

type equipmentType struct {
	key     string
	display string
	stageID string
	units   int
}

// equipmentTypes lists the twelve unit types in line order. The casting
// stage runs four strands, so its consumable types carry four units each.
var equipmentTypes = []equipmentType{
	{key: "scrap_bucket", display: "Scrap Bucket", stageID: "raw-materials", units: 3},
	{key: "eaf", display: "Electric Arc Furnace", stageID: "melt-shop", units: 3},
	{key: "electrode", display: "Graphite Electrode", stageID: "melt-shop", units: 3},
	{key: "ladle", display: "Steel Ladle", stageID: "secondary-metallurgy", units: 3},
	{key: "vacuum_degasser", display: "Vacuum Degasser", stageID: "secondary-metallurgy", units: 3},
	{key: "tundish", display: "Tundish", stageID: "continuous-casting", units: 4},
	{key: "sen", display: "SEN (Submerged Entry Nozzle)", stageID: "continuous-casting", units: 4},
	{key: "mold", display: "Copper Mold", stageID: "continuous-casting", units: 4},
	{key: "gate", display: "Slide Gate", stageID: "continuous-casting", units: 4},
	{key: "reheat_furnace", display: "Reheat Furnace", stageID: "hot-rolling", units: 3},
	{key: "roughing_mill", display: "Roughing Mill", stageID: "hot-rolling", units: 3},
	{key: "coating_line", display: "Coating Line", stageID: "finishing", units: 3},
}

// trackedSensor configures one of the four per-unit sensors that keep a
// history window for the dashboard charts.
type trackedSensor struct {
	key     string
	name    string
	unit    string
	warning float64
	alarm   float64
	derived bool
}

var trackedSensors = []trackedSensor{
	{key: "steel_temp_c", name: "Steel Temperature", unit: "°C", warning: 1555, alarm: 1565},
	{key: "clogging_index", name: "Clogging Index", unit: "%", warning: 65, alarm: 80, derived: true},
	{key: "wear_pct", name: "Wear Percentage", unit: "%", warning: 70, alarm: 85, derived: true},
	{key: "refractory_mm", name: "Refractory Thickness", unit: "mm", warning: 80, alarm: 60},
}
