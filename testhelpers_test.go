//go:build integration

package main_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Kilat-Pet-Delivery/service-fare/internal/application"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain/fare"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/events"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/geocoding"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/observability"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/routing"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/upstream"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	KafkaBrokers []string
	Cleanup      func()
}

// fareStack holds wired-up fare service components.
type fareStack struct {
	Registry        *application.SessionRegistry
	Metrics         *observability.Collector
	CleanupProducer func()
}

// knownPlaces are the only addresses the fake geocoder resolves.
var knownPlaces = map[string][2]float64{
	"MG Road, Pune 411001":   {18.5204, 73.8567},
	"Baner, Pune 411045":     {18.5590, 73.7868},
	"Hinjewadi, Pune 411057": {18.5913, 73.7389},
}

// setupContainers starts a Kafka testcontainer.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers, events.TopicFareEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
	}

	return &testInfra{
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// fakeOpenCageServer answers forward lookups from knownPlaces.
func fakeOpenCageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		results := []map[string]any{}
		if place, ok := knownPlaces[r.URL.Query().Get("q")]; ok {
			results = append(results, map[string]any{
				"formatted": r.URL.Query().Get("q"),
				"geometry":  map[string]float64{"lat": place[0], "lng": place[1]},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// fakeORSServer returns a straight two-point route of distanceMeters.
func fakeORSServer(t *testing.T, distanceMeters float64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Coordinates [][2]float64 `json:"coordinates"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Coordinates) != 2 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"features": []map[string]any{{
				"properties": map[string]any{"summary": map[string]float64{"distance": distanceMeters}},
				"geometry":   map[string]any{"coordinates": body.Coordinates},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// setupFareStack wires up the full fare service stack against fake upstream APIs.
func setupFareStack(t *testing.T, brokers []string, distanceMeters float64) *fareStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	metrics, err := observability.NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	geocoder := geocoding.NewOpenCageGeocoder(
		fakeOpenCageServer(t).URL, "test-key",
		upstream.NewClient("geocoder", 5*time.Second, metrics, logger), logger,
	)
	router := routing.NewOpenRouteRouter(
		fakeORSServer(t, distanceMeters).URL, "test-key", routing.DefaultProfile,
		upstream.NewClient("router", 5*time.Second, metrics, logger), logger,
	)
	pricing, err := fare.NewTableStrategy(fare.DefaultTiers())
	require.NoError(t, err)

	producer := events.NewProducer(brokers, logger)
	publisher := events.NewComparisonPublisher(producer, events.TopicFareEvents, logger)

	svc := application.NewComparisonService(geocoder, router, pricing, []application.Publisher{publisher}, metrics, logger)
	return &fareStack{
		Registry:        application.NewSessionRegistry(svc, time.Minute, metrics, logger),
		Metrics:         metrics,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type for the session.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, sessionID uuid.UUID, timeout time.Duration) events.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		if string(msg.Key) != sessionID.String() {
			continue
		}
		ce, err := events.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
