package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shenikar/dispatch_coordination_system/internal/config"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return logger
}

func TestRedisWebhookPublisher_Publish(t *testing.T) {
	// Подготовка
	mr, client := newTestRedis(t)
	publisher := NewRedisWebhookPublisher(client)

	// Действие
	err := publisher.Publish(context.Background(), WebhookEvent{
		Type:       EventIncidentCreated,
		IncidentID: "inc-1",
		Priority:   "high",
	})

	// Проверки
	require.NoError(t, err)
	items, err := mr.List(webhookQueueKey)
	require.NoError(t, err)
	require.Len(t, items, 1)

	var event WebhookEvent
	require.NoError(t, json.Unmarshal([]byte(items[0]), &event))
	assert.Equal(t, EventIncidentCreated, event.Type)
	assert.Equal(t, "inc-1", event.IncidentID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestWebhookWorker_DeliversSignedEvent(t *testing.T) {
	// Подготовка
	_, client := newTestRedis(t)

	type received struct {
		body      string
		signature string
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{body: string(body), signature: r.Header.Get("X-Webhook-Signature")}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := &config.Config{
		WebhookURL:        srv.URL,
		WebhookSecret:     "s3cret",
		WebhookTimeout:    time.Second,
		WebhookMaxRetries: 3,
		WebhookBaseDelay:  10 * time.Millisecond,
	}
	worker := NewWebhookWorker(client, silentLogger(), cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// Действие
	require.NoError(t, NewRedisWebhookPublisher(client).Publish(ctx, WebhookEvent{
		Type:       EventDispatchOpened,
		DispatchID: "d-1",
	}))

	// Проверки
	select {
	case r := <-got:
		assert.Contains(t, r.body, `"dispatch.opened"`)
		assert.Equal(t, generateHMACSHA256(r.body, "s3cret"), r.signature)
	case <-time.After(3 * time.Second):
		t.Fatal("webhook was not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWebhookWorker_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, client := newTestRedis(t)
	worker := NewWebhookWorker(client, silentLogger(), &config.Config{
		WebhookURL:        srv.URL,
		WebhookTimeout:    time.Second,
		WebhookMaxRetries: 3,
		WebhookBaseDelay:  5 * time.Millisecond,
	})

	worker.processWebhookEvent(context.Background(), WebhookEvent{Type: EventUnitRemoved}, `{"type":"unit.removed"}`)

	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookWorker_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, client := newTestRedis(t)
	worker := NewWebhookWorker(client, silentLogger(), &config.Config{
		WebhookURL:        srv.URL,
		WebhookTimeout:    time.Second,
		WebhookMaxRetries: 2,
		WebhookBaseDelay:  5 * time.Millisecond,
	})

	worker.processWebhookEvent(context.Background(), WebhookEvent{Type: EventUnitRemoved}, `{}`)

	assert.Equal(t, int32(2), calls.Load())
}

func TestNopWebhookPublisher(t *testing.T) {
	var p WebhookPublisher = NopWebhookPublisher{}
	assert.NoError(t, p.Publish(context.Background(), WebhookEvent{Type: EventIncidentCreated}))
}
