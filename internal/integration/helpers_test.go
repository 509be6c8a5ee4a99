//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"

	"github.com/couchcryptid/satellite-climate-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("satellite-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// observationPayload builds a collector message with an LST reading in Kelvin
// and an NDVI reading.
func observationPayload(t *testing.T, locationID, date string, kelvin, ndvi float64) []byte {
	t.Helper()
	data, err := json.Marshal(domain.ObservationMessage{
		LocationID:      locationID,
		ObservationDate: date,
		DataSource:      "mock",
		Observations: domain.ProductReadings{
			LST:  &domain.ProductReading{Dataset: domain.ProductLST, PixelValue: &kelvin},
			NDVI: &domain.ProductReading{Dataset: domain.ProductNDVI, PixelValue: &ndvi},
		},
	})
	require.NoError(t, err)
	return data
}

// knownLocations is a LocationChecker backed by a fixed set of IDs.
type knownLocations map[string]bool

func (k knownLocations) LocationExists(_ context.Context, id string) (bool, error) {
	return k[id], nil
}
