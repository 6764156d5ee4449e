// Package api exposes the plant over REST and WebSocket: live state reads,
// assessment lookups, alert management, maintenance analytics, report export
// and the admin regenerate path. Handlers only read the shared store; all
// equipment writes stay inside the simulation loop.
package api

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/steelstack/millwatch/internal/alerts"
	"github.com/steelstack/millwatch/internal/repo"
	"github.com/steelstack/millwatch/internal/services"
	"github.com/steelstack/millwatch/internal/sim"
	"github.com/steelstack/millwatch/internal/state"
	"github.com/steelstack/millwatch/internal/ws"
)

// RegenerateFunc rebuilds the plant population and returns the new equipment
// count. Wired by main so the HTTP layer stays ignorant of plant generation.
type RegenerateFunc func() int

// Deps carries everything the handlers read from. Recorder may be nil.
type Deps struct {
	Log        *slog.Logger
	Store      *state.Store
	Alerts     *alerts.Engine
	Assessment *services.AssessmentService
	Sim        *sim.Simulator
	Hub        *ws.Hub
	Recorder   *repo.Recorder
	Regenerate RegenerateFunc
	Version    string
	Started    time.Time
	AccessLog  io.Writer
}

// Handler resolves HTTP requests against the live plant state.
type Handler struct {
	log     *slog.Logger
	store   *state.Store
	alerts  *alerts.Engine
	assess  *services.AssessmentService
	sim     *sim.Simulator
	hub     *ws.Hub
	rec     *repo.Recorder
	regen   RegenerateFunc
	version string
	started time.Time
	now     func() time.Time
}

// New builds the full HTTP surface: routes, permissive CORS and access
// logging.
func New(deps Deps) http.Handler {
	h := &Handler{
		log:     deps.Log,
		store:   deps.Store,
		alerts:  deps.Alerts,
		assess:  deps.Assessment,
		sim:     deps.Sim,
		hub:     deps.Hub,
		rec:     deps.Recorder,
		regen:   deps.Regenerate,
		version: deps.Version,
		started: deps.Started,
		now:     time.Now,
	}
	if h.started.IsZero() {
		h.started = time.Now()
	}

	accessLog := deps.AccessLog
	if accessLog == nil {
		accessLog = os.Stdout
	}

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return cors(handlers.LoggingHandler(accessLog, h.routes()))
}

func (h *Handler) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", h.banner).Methods("GET")
	r.HandleFunc("/api/health", h.health).Methods("GET")

	r.HandleFunc("/api/plant/overview", h.plantOverview).Methods("GET")
	r.HandleFunc("/api/stages", h.listStages).Methods("GET")
	r.HandleFunc("/api/stage/{id}", h.stageDetail).Methods("GET")

	r.HandleFunc("/api/equipment/{id}", h.equipmentDetail).Methods("GET")
	r.HandleFunc("/api/equipment/{id}/explanation", h.explanation).Methods("GET")
	r.HandleFunc("/api/equipment/{id}/recommendations", h.recommendations).Methods("GET")
	r.HandleFunc("/api/equipment/{id}/accident-risk", h.accidentRisk).Methods("GET")

	r.HandleFunc("/api/sensor/{id}/history", h.sensorHistory).Methods("GET")

	r.HandleFunc("/api/alerts", h.listAlerts).Methods("GET")
	r.HandleFunc("/api/alerts/{id}/acknowledge", h.acknowledgeAlert).Methods("POST")

	r.HandleFunc("/api/maintenance/queue", h.maintenanceQueue).Methods("GET")
	r.HandleFunc("/api/maintenance/history", h.maintenanceHistory).Methods("GET")
	r.HandleFunc("/api/maintenance/upcoming", h.upcomingMaintenance).Methods("GET")
	r.HandleFunc("/api/maintenance/mtbf-mttr", h.reliability).Methods("GET")

	r.HandleFunc("/api/analytics/risk-distribution", h.riskDistribution).Methods("GET")
	r.HandleFunc("/api/priorities/today", h.prioritiesToday).Methods("GET")
	r.HandleFunc("/api/priorities/summary", h.prioritiesSummary).Methods("GET")

	r.HandleFunc("/api/reports/maintenance.xlsx", h.maintenanceReport).Methods("GET")
	r.HandleFunc("/api/admin/regenerate", h.regeneratePlant).Methods("POST")

	r.HandleFunc("/api/ws/stats", h.wsStats).Methods("GET")
	r.HandleFunc("/ws", h.hub.ServePlant).Methods("GET")
	r.HandleFunc("/ws/equipment/{id}", func(w http.ResponseWriter, req *http.Request) {
		h.hub.ServeEquipment(w, req, mux.Vars(req)["id"])
	}).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
