package changefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

const defaultChannelPrefix = "changefeed:"

// RedisBroker - брокер сигналов поверх Redis pub/sub, общий для всех экземпляров сервиса
type RedisBroker struct {
	client *redis.Client
	prefix string
}

// NewRedisBroker создает брокер; пустой prefix заменяется на "changefeed:"
func NewRedisBroker(client *redis.Client, prefix string) *RedisBroker {
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	return &RedisBroker{client: client, prefix: prefix}
}

func (b *RedisBroker) channel(collection models.Collection) string {
	return b.prefix + string(collection)
}

// Publish отправляет сигнал в канал коллекции. Полезная нагрузка - время изменения,
// подписчики ее не разбирают.
func (b *RedisBroker) Publish(ctx context.Context, collection models.Collection) error {
	payload := time.Now().UTC().Format(time.RFC3339Nano)
	if err := b.client.Publish(ctx, b.channel(collection), payload).Err(); err != nil {
		return fmt.Errorf("%w: failed to publish change for %s: %v", models.ErrStoreUnavailable, collection, err)
	}
	return nil
}

// Listen подписывается на канал коллекции и дожидается подтверждения подписки
func (b *RedisBroker) Listen(ctx context.Context, collection models.Collection) (Listener, error) {
	ps := b.client.Subscribe(ctx, b.channel(collection))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("%w: failed to subscribe to %s: %v", models.ErrStoreUnavailable, collection, err)
	}

	l := &redisListener{
		ps:         ps,
		collection: collection,
		ch:         make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go l.run()
	return l, nil
}

type redisListener struct {
	ps         *redis.PubSub
	collection models.Collection
	ch         chan struct{}
	done       chan struct{}
	once       sync.Once

	mu  sync.Mutex
	err error
}

func (l *redisListener) run() {
	defer close(l.ch)
	msgs := l.ps.Channel()
	for {
		select {
		case <-l.done:
			return
		case _, ok := <-msgs:
			if !ok {
				select {
				case <-l.done:
				default:
					l.mu.Lock()
					l.err = fmt.Errorf("%w: pub/sub channel for %s closed", models.ErrStoreUnavailable, l.collection)
					l.mu.Unlock()
				}
				return
			}
			select {
			case l.ch <- struct{}{}:
			default:
			}
		}
	}
}

func (l *redisListener) Changes() <-chan struct{} { return l.ch }

func (l *redisListener) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *redisListener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		err = l.ps.Close()
	})
	return err
}
