package repo

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/steelstack/millwatch/internal/models"
)

const defaultQueueSize = 256

// schema is applied statement by statement at startup so the recorder works
// against an empty database. pgx's extended protocol allows one statement
// per Exec.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS alerts (
		alert_id     TEXT PRIMARY KEY,
		equip_id     TEXT NOT NULL,
		severity     TEXT NOT NULL,
		message      TEXT NOT NULL,
		probability  DOUBLE PRECISION NOT NULL,
		acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS predictions (
		id                  BIGSERIAL PRIMARY KEY,
		equip_id            TEXT NOT NULL,
		failure_probability DOUBLE PRECISION NOT NULL,
		health_score        INTEGER NOT NULL,
		recorded_at         TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_predictions_equip
		ON predictions (equip_id, recorded_at DESC)`,
}

const (
	insertAlertStmt = `INSERT INTO alerts
		(alert_id, equip_id, severity, message, probability, acknowledged, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (alert_id) DO UPDATE SET acknowledged = EXCLUDED.acknowledged`

	acknowledgeAlertStmt = `UPDATE alerts SET acknowledged = TRUE WHERE alert_id = $1`

	insertPredictionStmt = `INSERT INTO predictions
		(equip_id, failure_probability, health_score, recorded_at)
		VALUES ($1, $2, $3, $4)`
)

const writeTimeout = 5 * time.Second

// execer is the slice of sql.DB the recorder writes through. Tests
// substitute a recording fake.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type record struct {
	kind string
	stmt string
	args []any
}

// Recorder persists alerts and prediction samples to Postgres. Writes are
// fire-and-forget: callers enqueue without blocking and records are dropped
// with a warning once the queue is full, so a slow database can never stall
// the simulation loop or the HTTP surface. A nil *Recorder is a safe no-op.
type Recorder struct {
	log     *slog.Logger
	db      execer
	closer  interface{ Close() error }
	queue   chan record
	dropped atomic.Int64
	now     func() time.Time
}

// NewRecorder opens the database, verifies connectivity, creates the schema,
// and returns a recorder ready to Run. An empty DSN disables recording and
// returns (nil, nil).
func NewRecorder(ctx context.Context, log *slog.Logger, dsn string, queueSize int) (*Recorder, error) {
	if dsn == "" {
		return nil, nil
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	r := newRecorderWithDB(log, db, queueSize)
	r.closer = db
	return r, nil
}

// newRecorderWithDB wires an explicit executor. Used in tests.
func newRecorderWithDB(log *slog.Logger, db execer, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Recorder{
		log:   log,
		db:    db,
		queue: make(chan record, queueSize),
		now:   time.Now,
	}
}

// Dropped reports how many records were discarded because the queue was full.
func (r *Recorder) Dropped() int64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

// AlertCreated queues the alert for insertion. Implements alerts.Sink.
func (r *Recorder) AlertCreated(alert models.Alert) {
	if r == nil {
		return
	}
	r.enqueue(record{
		kind: "alert",
		stmt: insertAlertStmt,
		args: []any{
			alert.ID, alert.EquipmentID, string(alert.Severity), alert.Message,
			alert.Probability, alert.Acknowledged, alert.CreatedAt,
		},
	})
}

// AlertAcknowledged queues the acknowledgement flag update.
func (r *Recorder) AlertAcknowledged(alertID string) {
	if r == nil {
		return
	}
	r.enqueue(record{
		kind: "acknowledge",
		stmt: acknowledgeAlertStmt,
		args: []any{alertID},
	})
}

// PredictionMade queues a prediction sample for insertion.
func (r *Recorder) PredictionMade(equipmentID string, probability float64, healthScore int) {
	if r == nil {
		return
	}
	r.enqueue(record{
		kind: "prediction",
		stmt: insertPredictionStmt,
		args: []any{equipmentID, probability, healthScore, r.now().UTC()},
	})
}

func (r *Recorder) enqueue(rec record) {
	select {
	case r.queue <- rec:
	default:
		r.dropped.Add(1)
		r.log.Warn("recorder queue full, dropping record",
			"kind", rec.kind, "dropped", r.dropped.Load())
	}
}

// Run drains the queue until ctx is cancelled. Write failures are logged and
// never stop the worker.
func (r *Recorder) Run(ctx context.Context) {
	if r == nil {
		return
	}
	defer r.close()
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-r.queue:
			r.deliver(ctx, rec)
		}
	}
}

func (r *Recorder) deliver(ctx context.Context, rec record) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if _, err := r.db.ExecContext(wctx, rec.stmt, rec.args...); err != nil {
		r.log.Error("recorder write failed", "kind", rec.kind, "error", err)
		return
	}
	r.log.Debug("record persisted", "kind", rec.kind)
}

func (r *Recorder) close() {
	if r.closer == nil {
		return
	}
	if err := r.closer.Close(); err != nil {
		r.log.Error("database close failed", "error", err)
	}
}
