//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	kafkaadapter "github.com/couchcryptid/quake-feed-service/internal/adapter/kafka"
	"github.com/couchcryptid/quake-feed-service/internal/adapter/usgs"
	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/filters"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
	"github.com/couchcryptid/quake-feed-service/internal/store"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTopic = "test-earthquake-events"

const feedBody = `{"type":"FeatureCollection","features":[
 {"id":"ak024","properties":{"mag":1.4,"place":"27 km NW of Healy, Alaska","time":1714132800000},"geometry":{"coordinates":[-149.4,64.0,12.1]}},
 {"id":"us7000m9","properties":{"mag":7.4,"place":"18 km S of Hualien City, Taiwan","time":1712105400000},"geometry":{"coordinates":[121.56,23.82,34.8]}},
 {"id":"ci4011","properties":{"mag":"3.1","place":"5 km NW of Ridgecrest, CA","time":1714120000000},"geometry":{"coordinates":[-117.7,35.6,8]}},
 {"id":"nc7315","properties":{"mag":0,"place":"The Geysers, CA","time":1714110000000},"geometry":{"coordinates":[-122.8,38.8,2]}},
 {"properties":{"mag":5.2,"time":1714100000000},"geometry":{"coordinates":[-69.5,-20.1,90]}}
]}`

type publishedMessage struct {
	Event   domain.Event
	Key     string
	Headers map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var event domain.Event
	require.NoError(t, json.Unmarshal(msg.Value, &event), "unmarshal message")

	return publishedMessage{Event: event, Key: string(msg.Key), Headers: headers}
}

// TestFetchPublishesToKafka wires a fake USGS endpoint through the store into
// a real broker and checks what downstream consumers receive.
func TestFetchPublishesToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(feedBody))
	}))
	t.Cleanup(feed.Close)

	publisher := kafkaadapter.NewPublisher([]string{broker}, testTopic, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	metrics := observability.NewMetricsForTesting()
	fm := filters.NewManager(ctx, filters.NewMemoryStorage(), discardLogger(), metrics)
	s := store.New(usgs.NewClient(feed.URL, 5*time.Second, discardLogger()), fm, discardLogger(), metrics,
		store.WithPublisher(publisher))

	require.NoError(t, s.FetchEarthquakes(ctx))
	require.Equal(t, 4, s.Len(), "zero magnitude is discarded")

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := map[string]publishedMessage{}
	for len(received) < 4 {
		pm := readPublished(ctx, t, consumer)
		received[pm.Key] = pm

		assert.Equal(t, pm.Event.ID, pm.Key)
		_, err := time.Parse(time.RFC3339, pm.Headers["fetched_at"])
		assert.NoError(t, err, "fetched_at should be valid RFC3339")
	}

	assert.Equal(t, "minor", received["ak024"].Headers["tier"])
	assert.Equal(t, "high", received["us7000m9"].Headers["tier"])
	assert.Equal(t, "low", received["ci4011"].Headers["tier"])
	assert.InDelta(t, 3.1, received["ci4011"].Event.Magnitude, 1e-9, "string magnitude coerced")

	synth, ok := received["eq-4-1714100000000"]
	require.True(t, ok, "feature without id gets a synthesized key")
	assert.Equal(t, domain.UnknownPlace, synth.Event.Place)
	assert.Equal(t, "medium", synth.Headers["tier"])
}

// TestPublishUnavailableBrokerKeepsStore checks that a dead broker only
// affects publishing.
func TestPublishUnavailableBrokerKeepsStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(feedBody))
	}))
	t.Cleanup(feed.Close)

	publisher := kafkaadapter.NewPublisher([]string{"127.0.0.1:1"}, testTopic, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	metrics := observability.NewMetricsForTesting()
	fm := filters.NewManager(ctx, filters.NewMemoryStorage(), discardLogger(), metrics)
	s := store.New(usgs.NewClient(feed.URL, 5*time.Second, discardLogger()), fm, discardLogger(), metrics,
		store.WithPublisher(publisher))

	require.NoError(t, s.FetchEarthquakes(ctx))
	assert.Equal(t, 4, s.Len())
	assert.Empty(t, s.Error())
}
