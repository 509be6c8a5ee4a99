package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/satellite-climate-service/internal/config"
	"github.com/couchcryptid/satellite-climate-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// EventTypeIngested is the event_type header on every sink message.
const EventTypeIngested = "observation.ingested"

// IngestedEvent announces that an observation was stored.
type IngestedEvent struct {
	EventType       string    `json:"event_type"`
	LocationID      string    `json:"location_id"`
	ObservationDate string    `json:"observation_date"`
	LST             *float64  `json:"lst"`
	NDVI            *float64  `json:"ndvi"`
	DataSource      string    `json:"data_source,omitempty"`
	IngestedAt      time.Time `json:"ingested_at"`
}

// Writer produces observation.ingested events to the sink topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
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

// LoadBatch publishes one event per observation in a single WriteMessages
// call. Events are keyed by location so a location's events stay ordered.
func (w *Writer) LoadBatch(ctx context.Context, observations []domain.Observation) error {
	if len(observations) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(observations))
	for i := range observations {
		msg, err := serializeToMessage(observations[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish ingested events: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(o domain.Observation) (kafkago.Message, error) {
	data, err := json.Marshal(IngestedEvent{
		EventType:       EventTypeIngested,
		LocationID:      o.LocationID,
		ObservationDate: o.Date.String(),
		LST:             o.LST,
		NDVI:            o.NDVI,
		DataSource:      o.DataSource,
		IngestedAt:      o.IngestedAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize ingested event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(o.LocationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventTypeIngested)},
			{Key: "ingested_at", Value: []byte(o.IngestedAt.Format(time.RFC3339))},
		},
	}, nil
}
