package repo

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/steelstack/millwatch/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type executedStmt struct {
	query string
	args  []any
}

// recordingExecer captures executed statements and can be told to fail the
// first N writes.
type recordingExecer struct {
	mu       sync.Mutex
	failures int
	ch       chan executedStmt
}

func newRecordingExecer() *recordingExecer {
	return &recordingExecer{ch: make(chan executedStmt, 8)}
}

func (e *recordingExecer) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	e.mu.Lock()
	if e.failures > 0 {
		e.failures--
		e.mu.Unlock()
		return nil, errors.New("connection reset")
	}
	e.mu.Unlock()
	e.ch <- executedStmt{query: query, args: args}
	return nil, nil
}

func (e *recordingExecer) await(t *testing.T) executedStmt {
	t.Helper()
	select {
	case stmt := <-e.ch:
		return stmt
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for write")
	}
	return executedStmt{}
}

func TestAlertInsertWritten(t *testing.T) {
	exec := newRecordingExecer()
	rec := newRecorderWithDB(testLogger(), exec, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	created := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	rec.AlertCreated(models.Alert{
		ID:          "A-1",
		EquipmentID: "TUNDISH-001",
		Severity:    models.CategoryHigh,
		Message:     "Failure risk (82%)",
		Probability: 0.82,
		CreatedAt:   created,
	})

	stmt := exec.await(t)
	if !strings.Contains(stmt.query, "INSERT INTO alerts") {
		t.Fatalf("unexpected statement: %s", stmt.query)
	}
	if len(stmt.args) != 7 {
		t.Fatalf("expected 7 args, got %d", len(stmt.args))
	}
	if stmt.args[0] != "A-1" || stmt.args[1] != "TUNDISH-001" || stmt.args[2] != "high" {
		t.Fatalf("unexpected args: %v", stmt.args)
	}
	if stmt.args[4] != 0.82 || stmt.args[5] != false {
		t.Fatalf("unexpected args: %v", stmt.args)
	}
	if got, ok := stmt.args[6].(time.Time); !ok || !got.Equal(created) {
		t.Fatalf("unexpected created_at arg: %v", stmt.args[6])
	}
}

func TestPredictionInsertWritten(t *testing.T) {
	exec := newRecordingExecer()
	rec := newRecorderWithDB(testLogger(), exec, 8)
	now := time.Date(2025, 3, 10, 8, 0, 15, 0, time.UTC)
	rec.now = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	rec.PredictionMade("EAF-002", 0.37, 63)

	stmt := exec.await(t)
	if !strings.Contains(stmt.query, "INSERT INTO predictions") {
		t.Fatalf("unexpected statement: %s", stmt.query)
	}
	if stmt.args[0] != "EAF-002" || stmt.args[1] != 0.37 || stmt.args[2] != 63 {
		t.Fatalf("unexpected args: %v", stmt.args)
	}
	if got, ok := stmt.args[3].(time.Time); !ok || !got.Equal(now) {
		t.Fatalf("unexpected recorded_at arg: %v", stmt.args[3])
	}
}

func TestAcknowledgeUpdateWritten(t *testing.T) {
	exec := newRecordingExecer()
	rec := newRecorderWithDB(testLogger(), exec, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	rec.AlertAcknowledged("A-9")

	stmt := exec.await(t)
	if !strings.Contains(stmt.query, "UPDATE alerts SET acknowledged") {
		t.Fatalf("unexpected statement: %s", stmt.query)
	}
	if len(stmt.args) != 1 || stmt.args[0] != "A-9" {
		t.Fatalf("unexpected args: %v", stmt.args)
	}
}

func TestFailedWriteDoesNotStopWorker(t *testing.T) {
	exec := newRecordingExecer()
	exec.failures = 1
	rec := newRecorderWithDB(testLogger(), exec, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	rec.AlertAcknowledged("A-1")
	rec.AlertAcknowledged("A-2")

	stmt := exec.await(t)
	if stmt.args[0] != "A-2" {
		t.Fatalf("expected second record after failed first write, got %v", stmt.args[0])
	}
}

func TestFullQueueDropsWithoutBlocking(t *testing.T) {
	exec := newRecordingExecer()
	rec := newRecorderWithDB(testLogger(), exec, 2)

	// No worker running: the queue fills and further records must drop.
	for i := 0; i < 5; i++ {
		rec.PredictionMade("EAF-001", 0.5, 50)
	}
	if got := len(rec.queue); got != 2 {
		t.Fatalf("expected 2 queued records, got %d", got)
	}
	if got := rec.Dropped(); got != 3 {
		t.Fatalf("expected 3 dropped records, got %d", got)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	rec.AlertCreated(models.Alert{ID: "A-1"})
	rec.AlertAcknowledged("A-1")
	rec.PredictionMade("EAF-001", 0.5, 50)
	if rec.Dropped() != 0 {
		t.Fatal("nil recorder should report zero drops")
	}

	done := make(chan struct{})
	go func() {
		rec.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nil Run should return immediately")
	}
}

func TestDisabledWithoutDSN(t *testing.T) {
	rec, err := NewRecorder(context.Background(), testLogger(), "", 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Fatal("expected nil recorder for empty DSN")
	}
}
