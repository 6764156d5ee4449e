// Package state owns the live plant population: equipment snapshots, the
// sensor registry with bounded history series, and the maintenance record.
// The simulation loop is the sole writer of equipment state; everything the
// API layer reads comes out of this store.
package state

import (
	"sort"
	"sync"

	"github.com/steelstack/millwatch/internal/models"
)

// SeriesCap is the number of points retained per sensor series. Appending
// past the cap evicts the oldest point.
const SeriesCap = 100

// Snapshot is a complete plant population, produced by plantgen at startup
// and on regenerate. The store takes ownership of all contained slices and
// maps; callers must not retain references after Replace.
type Snapshot struct {
	Stages      []models.Stage
	Equipment   []*models.Equipment
	Sensors     []models.Sensor
	Series      map[string][]models.Point
	Maintenance []models.MaintenanceEvent
	Reliability map[string]models.ReliabilityMetrics
}

// Store is the thread-safe plant state container. Equipment values are
// immutable snapshots: Update swaps the pointer for a freshly built value,
// so readers holding an older pointer keep a consistent view.
type Store struct {
	mu          sync.RWMutex
	stages      []models.Stage
	equipment   map[string]*models.Equipment
	order       []string
	sensors     map[string]models.Sensor
	byEquipment map[string][]string
	series      map[string][]models.Point
	maintenance []models.MaintenanceEvent
	reliability map[string]models.ReliabilityMetrics
}

// New creates an empty Store. Call Replace to load a population.
func New() *Store {
	s := &Store{}
	s.reset(Snapshot{})
	return s
}

// Replace swaps the entire plant population atomically. Used at startup and
// by the admin regenerate path; readers either see the old population or the
// new one, never a mix.
func (s *Store) Replace(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(snap)
}

func (s *Store) reset(snap Snapshot) {
	s.stages = snap.Stages
	s.equipment = make(map[string]*models.Equipment, len(snap.Equipment))
	s.order = make([]string, 0, len(snap.Equipment))
	for _, eq := range snap.Equipment {
		s.equipment[eq.ID] = eq
		s.order = append(s.order, eq.ID)
	}
	sort.Strings(s.order)

	s.sensors = make(map[string]models.Sensor, len(snap.Sensors))
	s.byEquipment = make(map[string][]string)
	for _, sensor := range snap.Sensors {
		s.sensors[sensor.ID] = sensor
		s.byEquipment[sensor.EquipmentID] = append(s.byEquipment[sensor.EquipmentID], sensor.ID)
	}

	s.series = snap.Series
	if s.series == nil {
		s.series = make(map[string][]models.Point)
	}
	for id, pts := range s.series {
		if len(pts) > SeriesCap {
			trimmed := make([]models.Point, SeriesCap)
			copy(trimmed, pts[len(pts)-SeriesCap:])
			s.series[id] = trimmed
		}
	}

	s.maintenance = snap.Maintenance
	s.reliability = snap.Reliability
	if s.reliability == nil {
		s.reliability = make(map[string]models.ReliabilityMetrics)
	}
}

// Get returns the current snapshot for one equipment unit.
func (s *Store) Get(id string) (*models.Equipment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	eq, ok := s.equipment[id]
	return eq, ok
}

// List returns all equipment snapshots ordered by equipment id.
func (s *Store) List() []*models.Equipment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Equipment, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.equipment[id])
	}
	return out
}

// Update publishes a new snapshot for one equipment unit. Unknown ids are
// ignored; the population only changes through Replace.
func (s *Store) Update(eq *models.Equipment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.equipment[eq.ID]; ok {
		s.equipment[eq.ID] = eq
	}
}

// Stages returns the production stages in line order.
func (s *Store) Stages() []models.Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Stage, len(s.stages))
	copy(out, s.stages)
	return out
}

// Stage looks a stage up by id.
func (s *Store) Stage(id string) (models.Stage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.stages {
		if st.ID == id {
			return st, true
		}
	}
	return models.Stage{}, false
}

// Sensors returns the tracked sensors of one equipment unit in registry order.
func (s *Store) Sensors(equipmentID string) []models.Sensor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byEquipment[equipmentID]
	out := make([]models.Sensor, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.sensors[id])
	}
	return out
}

// Sensor looks a sensor up by id.
func (s *Store) Sensor(id string) (models.Sensor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sensor, ok := s.sensors[id]
	return sensor, ok
}

// Append adds a point to a sensor's series, evicting the oldest point past
// SeriesCap, and moves the sensor's current value to the point's value.
// Unknown sensor ids are ignored.
func (s *Store) Append(sensorID string, p models.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sensor, ok := s.sensors[sensorID]
	if !ok {
		return
	}
	sensor.CurrentValue = p.Value
	s.sensors[sensorID] = sensor

	pts := append(s.series[sensorID], p)
	if len(pts) > SeriesCap {
		copy(pts[0:], pts[1:])
		pts = pts[:SeriesCap]
	}
	s.series[sensorID] = pts
}

// Series returns a copy of a sensor's history window, oldest first.
func (s *Store) Series(sensorID string) ([]models.Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sensors[sensorID]; !ok {
		return nil, false
	}
	pts := s.series[sensorID]
	out := make([]models.Point, len(pts))
	copy(out, pts)
	return out, true
}

// Maintenance returns maintenance events, newest first. An empty equipmentID
// selects the whole plant.
func (s *Store) Maintenance(equipmentID string) []models.MaintenanceEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.MaintenanceEvent, 0, len(s.maintenance))
	for _, ev := range s.maintenance {
		if equipmentID == "" || ev.EquipmentID == equipmentID {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out
}

// Reliability returns the maintenance-derived reliability metrics for one
// equipment unit.
func (s *Store) Reliability(equipmentID string) (models.ReliabilityMetrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.reliability[equipmentID]
	return m, ok
}

// Counts reports population sizes for the health endpoint.
func (s *Store) Counts() (equipment, sensors, stages int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.equipment), len(s.sensors), len(s.stages)
}
