package ws_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/steelstack/millwatch/internal/models"
	"github.com/steelstack/millwatch/internal/state"
	wsHub "github.com/steelstack/millwatch/internal/ws"
)

// --- helpers ----------------------------------------------------------------

func newStore() *state.Store {
	st := state.New()
	st.Replace(state.Snapshot{
		Equipment: []*models.Equipment{
			{
				ID:          "TUNDISH-016",
				Type:        "tundish",
				TypeDisplay: "Tundish",
				StageID:     "continuous-casting",
				Status:      "yellow",
				Readings:    models.SensorReadings{"clogging_index": 48.5},
				Risk: models.RiskAssessment{
					Probability: 0.41,
					HealthScore: 59,
					Category:    models.CategoryMedium,
				},
			},
		},
	})
	return st
}

// startHub starts a test HTTP server routing /ws and /ws/equipment/{id} to
// the hub. Returns the ws:// base URL and the hub.
func startHub(t *testing.T) (wsURL string, hub *wsHub.Hub) {
	t.Helper()

	hub = wsHub.NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)), newStore())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServePlant)
	mux.HandleFunc("/ws/equipment/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/ws/equipment/")
		hub.ServeEquipment(w, r, id)
	})
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(msg, &m); err != nil {
		t.Fatalf("unmarshal %s: %v", msg, err)
	}
	return m
}

func waitForStats(t *testing.T, hub *wsHub.Hub, connections, subscriptions int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c, s := hub.Stats()
		if c == connections && s == subscriptions {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	c, s := hub.Stats()
	t.Fatalf("Stats = (%d,%d), want (%d,%d)", c, s, connections, subscriptions)
}

// --- tests ------------------------------------------------------------------

func TestPlantClientsReceiveBroadcast(t *testing.T) {
	wsURL, hub := startHub(t)

	conn := dial(t, wsURL+"/ws")
	waitForStats(t, hub, 1, 0)

	hub.BroadcastPlantUpdate(wsHub.PlantUpdate{
		Timestamp:      time.Now(),
		HighRiskCount:  3,
		TotalEquipment: 40,
	})

	m := readMessage(t, conn)
	if m["type"] != "plant_update" {
		t.Fatalf("type = %v, want plant_update", m["type"])
	}
	if m["high_risk_count"].(float64) != 3 || m["total_equipment"].(float64) != 40 {
		t.Fatalf("counts wrong: %v", m)
	}
}

func TestEquipmentSubscriptionGetsInitialState(t *testing.T) {
	wsURL, hub := startHub(t)

	conn := dial(t, wsURL+"/ws/equipment/TUNDISH-016")
	m := readMessage(t, conn)

	if m["type"] != "initial_state" {
		t.Fatalf("type = %v, want initial_state", m["type"])
	}
	if m["equip_id"] != "TUNDISH-016" || m["status"] != "yellow" {
		t.Fatalf("identity wrong: %v", m)
	}
	if m["health_score"].(float64) != 59 || m["failure_probability"].(float64) != 0.41 {
		t.Fatalf("risk block wrong: %v", m)
	}
	readings, ok := m["readings"].(map[string]interface{})
	if !ok || readings["clogging_index"].(float64) != 48.5 {
		t.Fatalf("readings wrong: %v", m["readings"])
	}

	waitForStats(t, hub, 1, 1)

	// Equipment subscribers also receive the plant-wide tick aggregate.
	hub.BroadcastPlantUpdate(wsHub.PlantUpdate{TotalEquipment: 40})
	if m := readMessage(t, conn); m["type"] != "plant_update" {
		t.Fatalf("type = %v, want plant_update", m["type"])
	}
}

func TestUnknownEquipmentStillConnects(t *testing.T) {
	wsURL, hub := startHub(t)

	dial(t, wsURL+"/ws/equipment/GHOST-999")
	waitForStats(t, hub, 1, 1)

	// No initial_state was queued; the first message is the next broadcast.
	conn := dial(t, wsURL+"/ws/equipment/GHOST-999")
	waitForStats(t, hub, 2, 1)
	hub.BroadcastPlantUpdate(wsHub.PlantUpdate{TotalEquipment: 1})
	if m := readMessage(t, conn); m["type"] != "plant_update" {
		t.Fatalf("type = %v, want plant_update", m["type"])
	}
}

func TestStatsTrackDisconnects(t *testing.T) {
	wsURL, hub := startHub(t)

	plant := dial(t, wsURL+"/ws")
	equip := dial(t, wsURL+"/ws/equipment/TUNDISH-016")
	readMessage(t, equip) // initial_state
	waitForStats(t, hub, 2, 1)

	equip.Close()
	waitForStats(t, hub, 1, 0)

	plant.Close()
	waitForStats(t, hub, 0, 0)
}

func TestBroadcastWithNoClients(t *testing.T) {
	_, hub := startHub(t)
	// Must not block or panic.
	hub.BroadcastPlantUpdate(wsHub.PlantUpdate{TotalEquipment: 40})
}
