package changefeed

import (
	"context"
	"sync"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

// LocalBroker - брокер сигналов внутри процесса (для хранилища в памяти и тестов)
type LocalBroker struct {
	mu        sync.Mutex
	listeners map[models.Collection]map[*localListener]struct{}
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{
		listeners: make(map[models.Collection]map[*localListener]struct{}),
	}
}

// Publish будит всех слушателей коллекции. Сигналы схлопываются:
// у каждого слушателя ожидает не более одного.
func (b *LocalBroker) Publish(_ context.Context, collection models.Collection) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for l := range b.listeners[collection] {
		select {
		case l.ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (b *LocalBroker) Listen(_ context.Context, collection models.Collection) (Listener, error) {
	l := &localListener{broker: b, collection: collection, ch: make(chan struct{}, 1)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners[collection] == nil {
		b.listeners[collection] = make(map[*localListener]struct{})
	}
	b.listeners[collection][l] = struct{}{}
	return l, nil
}

// Listeners возвращает число активных слушателей коллекции
func (b *LocalBroker) Listeners(collection models.Collection) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[collection])
}

type localListener struct {
	broker     *LocalBroker
	collection models.Collection
	ch         chan struct{}
	once       sync.Once
}

func (l *localListener) Changes() <-chan struct{} { return l.ch }

func (l *localListener) Err() error { return nil }

func (l *localListener) Close() error {
	l.once.Do(func() {
		l.broker.mu.Lock()
		delete(l.broker.listeners[l.collection], l)
		close(l.ch)
		l.broker.mu.Unlock()
	})
	return nil
}
