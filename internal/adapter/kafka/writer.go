package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/checkpoint-status-service/internal/config"
	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
)

// SnapshotWriter publishes every live snapshot to a Kafka topic, one message
// per checkpoint view keyed by checkpoint id. It implements pipeline.Sink.
type SnapshotWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewSnapshotWriter creates a Kafka producer for the configured snapshot topic.
func NewSnapshotWriter(cfg *config.Config, logger *slog.Logger) *SnapshotWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSnapshotTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &SnapshotWriter{writer: w, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *SnapshotWriter) Name() string { return "kafka" }

// PublishSnapshot writes all views of snap in a single WriteMessages call.
func (w *SnapshotWriter) PublishSnapshot(ctx context.Context, snap domain.Snapshot) error {
	if len(snap.Checkpoints) == 0 {
		return nil
	}
	msgs, err := serializeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write snapshot %d: %w", snap.Cycle, err)
	}
	w.logger.Debug("snapshot written to kafka", "cycle", snap.Cycle, "messages", len(msgs))
	return nil
}

func (w *SnapshotWriter) Close() error {
	return w.writer.Close()
}

// serializeSnapshot marshals each CheckpointView into a Kafka message.
func serializeSnapshot(snap domain.Snapshot) ([]kafkago.Message, error) {
	msgs := make([]kafkago.Message, len(snap.Checkpoints))
	publishedAt := []byte(snap.PublishedAt.Format(time.RFC3339))
	cycle := []byte(strconv.FormatUint(snap.Cycle, 10))
	for i, v := range snap.Checkpoints {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("serialize checkpoint view %s: %w", v.ID, err)
		}
		msgs[i] = kafkago.Message{
			Key:   []byte(v.ID),
			Value: data,
			Time:  snap.PublishedAt,
			Headers: []kafkago.Header{
				{Key: "status", Value: []byte(v.Status)},
				{Key: "cycle", Value: cycle},
				{Key: "published_at", Value: publishedAt},
			},
		}
	}
	return msgs, nil
}
