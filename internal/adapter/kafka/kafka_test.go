package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/couchcryptid/satellite-climate-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("loc-1"),
		Value:     []byte(`{"location_id":"loc-1"}`),
		Topic:     "satellite-observations",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "data_source", Value: []byte("MODIS")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("loc-1"), raw.Key)
	assert.JSONEq(t, `{"location_id":"loc-1"}`, string(raw.Value))
	assert.Equal(t, "satellite-observations", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "MODIS", raw.Headers["data_source"])
	assert.Nil(t, raw.Commit)
}

func TestSerializeToMessage(t *testing.T) {
	ingested := time.Date(2026, 1, 9, 3, 0, 0, 0, time.UTC)
	lst := 18.23
	obs := domain.Observation{
		LocationID: "loc-1",
		Date:       domain.Date{Year: 2026, Month: time.January, Day: 8},
		LST:        &lst,
		DataSource: "MODIS",
		IngestedAt: ingested,
	}

	msg, err := serializeToMessage(obs)
	require.NoError(t, err)

	assert.Equal(t, []byte("loc-1"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte(EventTypeIngested), msg.Headers[0].Value)
	assert.Equal(t, "ingested_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(ingested.Format(time.RFC3339)), msg.Headers[1].Value)

	var event IngestedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, EventTypeIngested, event.EventType)
	assert.Equal(t, "2026-01-08", event.ObservationDate)
	require.NotNil(t, event.LST)
	assert.Equal(t, 18.23, *event.LST)
	assert.Nil(t, event.NDVI)
	assert.Contains(t, string(msg.Value), `"ndvi":null`)
}
