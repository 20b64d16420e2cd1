package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/ocean-contour-service/internal/config"
	"github.com/couchcryptid/ocean-contour-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes computed contour sets to a Kafka topic.
// It implements pipeline.Sink.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish sends one set as a GeoJSON FeatureCollection keyed by its
// canonical key, so every set for a key lands on the same partition.
func (w *Writer) Publish(ctx context.Context, set *domain.ContourSet) error {
	msg, err := serializeToMessage(set)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write contour set %s: %w", set.Key, err)
	}
	w.logger.Debug("contour set published", "key", set.Key.String(), "bytes", len(msg.Value))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a ContourSet into a Kafka message.
func serializeToMessage(set *domain.ContourSet) (kafkago.Message, error) {
	data, err := set.MarshalGeoJSON()
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize contour set: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(set.Key.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "parameter", Value: []byte(set.Key.Parameter.String())},
			{Key: "horizon", Value: []byte(set.Key.Horizon.String())},
			{Key: "year", Value: []byte(strconv.Itoa(set.Key.Year))},
			{Key: "status", Value: []byte(set.Status)},
			{Key: "computed_at", Value: []byte(set.ComputedAt.Format(time.RFC3339))},
		},
	}, nil
}
