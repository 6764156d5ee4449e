// Command mock-hooks is a local stand-in for an operator webhook endpoint.
// Point the engine's webhook.url at http://localhost:9090/hooks/alerts and
// every delivered alert is logged and kept for inspection via GET /received.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"
)

type alertPayload struct {
	Alert struct {
		ID          string    `json:"id"`
		EquipmentID string    `json:"equipment_id"`
		Stage       string    `json:"stage"`
		Severity    string    `json:"severity"`
		Message     string    `json:"message"`
		Probability float64   `json:"probability_at_creation"`
		CreatedAt   time.Time `json:"created_at"`
	} `json:"alert"`
}

type received struct {
	ReceivedAt  time.Time `json:"received_at"`
	AlertID     string    `json:"alert_id"`
	EquipmentID string    `json:"equipment_id"`
	Severity    string    `json:"severity"`
	Message     string    `json:"message"`
}

// inbox keeps the most recent deliveries, newest first.
type inbox struct {
	mu    sync.Mutex
	items []received
}

const inboxCap = 100

func (b *inbox) add(r received) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append([]received{r}, b.items...)
	if len(b.items) > inboxCap {
		b.items = b.items[:inboxCap]
	}
}

func (b *inbox) list() []received {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]received, len(b.items))
	copy(out, b.items)
	return out
}

func main() {
	logger := log.New(log.Writer(), "mock-hooks ", log.LstdFlags|log.Lmicroseconds)
	box := &inbox{}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/hooks/alerts", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var payload alertPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			logger.Printf("bad alert payload: %v", err)
			return
		}
		a := payload.Alert
		box.add(received{
			ReceivedAt:  time.Now(),
			AlertID:     a.ID,
			EquipmentID: a.EquipmentID,
			Severity:    a.Severity,
			Message:     a.Message,
		})
		logger.Printf("alert %s: [%s] %s p=%.3f (%s)", a.ID, a.Severity, a.EquipmentID, a.Probability, a.Message)
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("/received", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		items := box.list()
		writeJSON(w, map[string]any{"count": len(items), "alerts": items})
	})

	srv := &http.Server{
		Addr:    ":9090",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :9090")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
