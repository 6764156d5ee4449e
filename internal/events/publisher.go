package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/steelstack/millwatch/internal/models"
)

// Published event type markers.
const (
	typeAlertCreated = "alert_created"
	typePlantSummary = "plant_summary"
)

const defaultQueueSize = 256

// Config controls the Kafka event publisher.
type Config struct {
	Enabled   bool
	Brokers   []string
	Topic     string
	QueueSize int
}

// messageWriter is the slice of kafka.Writer the publisher depends on.
// Tests substitute a recording fake.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type alertEvent struct {
	Type      string       `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Alert     models.Alert `json:"alert"`
}

type summaryEvent struct {
	Type           string    `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	HighRiskCount  int       `json:"high_risk_count"`
	TotalEquipment int       `json:"total_equipment"`
}

// Publisher ships alert and plant-summary events to a Kafka topic.
// Publishing is best-effort: events are queued without blocking callers
// and dropped with a warning once the queue is full, so a slow or absent
// broker can never stall the simulation loop.
type Publisher struct {
	log     *slog.Logger
	writer  messageWriter
	closer  interface{ Close() error }
	queue   chan kafka.Message
	dropped atomic.Int64
	now     func() time.Time
}

// NewPublisher builds a Publisher for the configured brokers and topic.
// A disabled config yields a publisher whose methods are no-ops.
func NewPublisher(log *slog.Logger, cfg Config) *Publisher {
	if !cfg.Enabled {
		return &Publisher{log: log}
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	p := newPublisherWithWriter(log, cfg, writer)
	p.closer = writer
	return p
}

// newPublisherWithWriter wires an explicit writer. Used in tests.
func newPublisherWithWriter(log *slog.Logger, cfg Config, writer messageWriter) *Publisher {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Publisher{
		log:    log,
		writer: writer,
		queue:  make(chan kafka.Message, size),
		now:    time.Now,
	}
}

// Enabled reports whether the publisher ships events.
func (p *Publisher) Enabled() bool { return p.queue != nil }

// Dropped reports how many events were discarded because the queue was full.
func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

// AlertCreated queues an alert_created event keyed by equipment ID so
// per-equipment ordering survives partitioning. It never blocks.
func (p *Publisher) AlertCreated(alert models.Alert) {
	if p.queue == nil {
		return
	}
	evt := alertEvent{Type: typeAlertCreated, Timestamp: p.now().UTC(), Alert: alert}
	p.enqueue(typeAlertCreated, []byte(alert.EquipmentID), evt)
}

// PlantUpdated queues a plant_summary event for a completed simulation tick.
func (p *Publisher) PlantUpdated(ts time.Time, highRisk, total int) {
	if p.queue == nil {
		return
	}
	evt := summaryEvent{Type: typePlantSummary, Timestamp: ts, HighRiskCount: highRisk, TotalEquipment: total}
	p.enqueue(typePlantSummary, []byte("plant"), evt)
}

func (p *Publisher) enqueue(kind string, key []byte, evt any) {
	value, err := json.Marshal(evt)
	if err != nil {
		p.log.Error("event encode failed", "kind", kind, "error", err)
		return
	}
	msg := kafka.Message{Key: key, Value: value, Time: p.now()}
	select {
	case p.queue <- msg:
	default:
		p.dropped.Add(1)
		p.log.Warn("event queue full, dropping event",
			"kind", kind, "key", string(key), "dropped", p.dropped.Load())
	}
}

// Run delivers queued events until ctx is cancelled. Delivery failures are
// logged and never stop the worker.
func (p *Publisher) Run(ctx context.Context) {
	if p.queue == nil {
		return
	}
	defer p.close()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-p.queue:
			if err := p.writer.WriteMessages(ctx, msg); err != nil {
				p.log.Error("event publish failed", "key", string(msg.Key), "error", err)
				continue
			}
			p.log.Debug("event published", "key", string(msg.Key))
		}
	}
}

func (p *Publisher) close() {
	if p.closer == nil {
		return
	}
	if err := p.closer.Close(); err != nil {
		p.log.Error("kafka writer close failed", "error", err)
	}
}
