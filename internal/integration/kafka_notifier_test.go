//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/ofs-s111/internal/adapter/kafka"
	"github.com/couchcryptid/ofs-s111/internal/domain"
	"github.com/couchcryptid/ofs-s111/internal/pipeline"
)

const testTopic = "s111-cycles-test"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka launches a single-node Kafka broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("s111-test-cluster"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkago.Dial("tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestNotifierPublishesCycleEvent round-trips a cycle-completion event
// through a real broker and checks key, headers, and payload.
func TestNotifierPublishesCycleEvent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cycle, err := domain.ParseCycle("2019070100")
	require.NoError(t, err)
	report := &pipeline.Report{
		Model:     "cbofs",
		Cycle:     cycle,
		Artifacts: []string{"/out/S111US_20190701T00Z_CBOFS.h5"},
		GapHours:  []int{7},
		Available: 48,
	}

	notifier := kafka.NewNotifier([]string{broker}, testTopic, discardLogger())
	t.Cleanup(func() { _ = notifier.Close() })

	require.NoError(t, notifier.Notify(ctx, report))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read cycle event")

	assert.Equal(t, []byte("cbofs"), msg.Key)

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "cbofs", headers["model"])
	assert.Equal(t, "2019070100", headers["cycle"])

	var event kafka.CycleEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, "cbofs", event.Model)
	assert.Equal(t, "2019070100", event.Cycle)
	assert.Equal(t, []string{"/out/S111US_20190701T00Z_CBOFS.h5"}, event.Artifacts)
	assert.Equal(t, []int{7}, event.GapHours)
	assert.Equal(t, 48, event.Available)
	assert.False(t, event.CompletedAt.IsZero())
}

// TestNotifierOrdersEventsPerModel checks that successive cycles of one model
// arrive in publication order, which the model-keyed partitioning guarantees.
func TestNotifierOrdersEventsPerModel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	notifier := kafka.NewNotifier([]string{broker}, testTopic, discardLogger())
	t.Cleanup(func() { _ = notifier.Close() })

	for _, stamp := range []string{"2019070100", "2019070106", "2019070112"} {
		cycle, err := domain.ParseCycle(stamp)
		require.NoError(t, err)
		require.NoError(t, notifier.Notify(ctx, &pipeline.Report{
			Model: "cbofs", Cycle: cycle, Available: 49,
		}))
	}

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	var got []string
	for len(got) < 3 {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err)

		var event kafka.CycleEvent
		require.NoError(t, json.Unmarshal(msg.Value, &event))
		got = append(got, event.Cycle)
	}
	assert.Equal(t, []string{"2019070100", "2019070106", "2019070112"}, got)
}
