// Package kafka publishes cycle-completion notifications so downstream
// distribution services learn about fresh S-111 artifacts without polling
// the output directory.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/ofs-s111/internal/pipeline"
)

// CycleEvent is the wire format of one completed forecast cycle.
type CycleEvent struct {
	Model       string    `json:"model"`
	Cycle       string    `json:"cycle"`
	Artifacts   []string  `json:"artifacts"`
	GapHours    []int     `json:"gap_hours"`
	Available   int       `json:"available_hours"`
	CompletedAt time.Time `json:"completed_at"`
}

// Notifier writes cycle-completion events to a Kafka topic, keyed by model
// so each model's cycles stay ordered within a partition.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Notifier for the given brokers and topic.
func NewNotifier(brokers []string, topic string, logger *slog.Logger) *Notifier {
	return &Notifier{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.LeastBytes{},
			RequiredAcks: kafkago.RequireAll,
		},
		logger: logger,
	}
}

// Notify publishes one completed cycle.
func (n *Notifier) Notify(ctx context.Context, report *pipeline.Report) error {
	msg, err := serializeReport(report, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing cycle event for %s %s: %w", report.Model, report.Cycle, err)
	}
	n.logger.Debug("cycle event published",
		"model", report.Model,
		"cycle", report.Cycle.String(),
		"artifacts", len(report.Artifacts),
	)
	return nil
}

// Close flushes pending messages and releases the writer.
func (n *Notifier) Close() error {
	return n.writer.Close()
}

func serializeReport(report *pipeline.Report, at time.Time) (kafkago.Message, error) {
	event := CycleEvent{
		Model:       report.Model,
		Cycle:       report.Cycle.String(),
		Artifacts:   report.Artifacts,
		GapHours:    report.GapHours,
		Available:   report.Available,
		CompletedAt: at,
	}
	value, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serializing cycle event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(report.Model),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "model", Value: []byte(report.Model)},
			{Key: "cycle", Value: []byte(report.Cycle.String())},
		},
	}, nil
}
