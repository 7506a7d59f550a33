package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	webhookQueueKey = "webhook_events"
)

// EventType - тип события координации, передаваемого во внешний сервис уведомлений
type EventType string

const (
	EventIncidentCreated       EventType = "incident.created"
	EventIncidentStatusChanged EventType = "incident.status_changed"
	EventDispatchOpened        EventType = "dispatch.opened"
	EventDispatchAdvanced      EventType = "dispatch.advanced"
	EventUnitRemoved           EventType = "unit.removed"
	EventUnitOutOfService      EventType = "unit.out_of_service"
)

// WebhookEvent - структура для данных вебхука
type WebhookEvent struct {
	Type       EventType `json:"type"`
	IncidentID string    `json:"incident_id,omitempty"`
	UnitID     string    `json:"unit_id,omitempty"`
	DispatchID string    `json:"dispatch_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Priority   string    `json:"priority,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// WebhookPublisher - интерфейс для публикации вебхуков
type WebhookPublisher interface {
	Publish(ctx context.Context, event WebhookEvent) error
}

// RedisWebhookPublisher - реализация WebhookPublisher, использующая Redis
type RedisWebhookPublisher struct {
	redisClient *redis.Client
}

// NewRedisWebhookPublisher создает новый RedisWebhookPublisher
func NewRedisWebhookPublisher(client *redis.Client) *RedisWebhookPublisher {
	return &RedisWebhookPublisher{
		redisClient: client,
	}
}

// Publish публикует событие вебхука в очередь Redis
func (p *RedisWebhookPublisher) Publish(ctx context.Context, event WebhookEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	// LPUSH в голову списка, воркер забирает с хвоста
	if err := p.redisClient.LPush(ctx, webhookQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish webhook event to Redis: %w", err)
	}
	return nil
}

// NopWebhookPublisher отбрасывает события (Redis не настроен)
type NopWebhookPublisher struct{}

func (NopWebhookPublisher) Publish(context.Context, WebhookEvent) error { return nil }
