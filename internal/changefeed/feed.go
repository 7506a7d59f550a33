package changefeed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/dispatch_coordination_system/internal/metrics"
	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

// Loader читает текущее множество документов коллекции целиком
type Loader[T any] func(ctx context.Context) ([]T, error)

// Snapshot - полное состояние коллекции на момент TakenAt (не дифф)
type Snapshot[T any] struct {
	Collection models.Collection `json:"collection"`
	// Seq строго растет в пределах одной подписки
	Seq     uint64    `json:"seq"`
	Docs    []T       `json:"docs"`
	TakenAt time.Time `json:"taken_at"`
}

// Feed - лента снимков одной коллекции
type Feed[T any] struct {
	broker     Broker
	collection models.Collection
	load       Loader[T]
	logger     *logrus.Logger
	maxBackoff time.Duration
}

// New создает ленту коллекции
func New[T any](broker Broker, collection models.Collection, load Loader[T], logger *logrus.Logger) *Feed[T] {
	return &Feed[T]{
		broker:     broker,
		collection: collection,
		load:       load,
		logger:     logger,
		maxBackoff: 30 * time.Second,
	}
}

// WithMaxBackoff ограничивает паузу между переподписками в Watch
func (f *Feed[T]) WithMaxBackoff(d time.Duration) *Feed[T] {
	if d > 0 {
		f.maxBackoff = d
	}
	return f
}

func (f *Feed[T]) Collection() models.Collection { return f.collection }

// Poll - разовое чтение снимка, запасной путь при недоступной подписке
func (f *Feed[T]) Poll(ctx context.Context) (Snapshot[T], error) {
	docs, err := f.load(ctx)
	if err != nil {
		return Snapshot[T]{}, storeUnavailable(f.collection, err)
	}
	return Snapshot[T]{Collection: f.collection, Docs: docs, TakenAt: time.Now().UTC()}, nil
}

// Subscribe открывает поток снимков. Первый снимок доступен сразу после возврата,
// следующие приходят после каждого сигнала об изменении коллекции.
// Вызывающий обязан вызвать Close при завершении работы.
func (f *Feed[T]) Subscribe(ctx context.Context) (*Subscription[T], error) {
	// Слушатель поднимается до первого чтения, чтобы не потерять запись между ними
	listener, err := f.broker.Listen(ctx, f.collection)
	if err != nil {
		return nil, storeUnavailable(f.collection, err)
	}

	docs, err := f.load(ctx)
	if err != nil {
		_ = listener.Close()
		return nil, storeUnavailable(f.collection, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		ch:     make(chan Snapshot[T], 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.ch <- Snapshot[T]{Collection: f.collection, Seq: 1, Docs: docs, TakenAt: time.Now().UTC()}
	metrics.FeedSnapshotsTotal.WithLabelValues(string(f.collection)).Inc()
	metrics.FeedSubscriptions.WithLabelValues(string(f.collection)).Inc()

	go f.run(subCtx, s, listener)
	return s, nil
}

func (f *Feed[T]) run(ctx context.Context, s *Subscription[T], listener Listener) {
	log := f.logger.WithField("collection", f.collection)
	defer func() {
		_ = listener.Close()
		close(s.ch)
		close(s.done)
		metrics.FeedSubscriptions.WithLabelValues(string(f.collection)).Dec()
	}()

	seq := uint64(1)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-listener.Changes():
			if !ok {
				if err := listener.Err(); err != nil {
					log.WithError(err).Warn("Change feed listener terminated")
					s.setErr(err)
				}
				return
			}
			docs, err := f.load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.WithError(err).Error("Failed to reload collection snapshot")
				s.setErr(storeUnavailable(f.collection, err))
				return
			}
			seq++
			s.deliver(Snapshot[T]{Collection: f.collection, Seq: seq, Docs: docs, TakenAt: time.Now().UTC()})
			metrics.FeedSnapshotsTotal.WithLabelValues(string(f.collection)).Inc()
		}
	}
}

// Watch держит подписку открытой до отмены ctx: после терминальной ошибки
// переподписывается с экспоненциальной задержкой. fn вызывается последовательно.
func (f *Feed[T]) Watch(ctx context.Context, fn func(Snapshot[T])) error {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(200*time.Millisecond),
		backoff.WithMaxInterval(f.maxBackoff),
		backoff.WithMaxElapsedTime(0),
	)
	bo := backoff.WithContext(exp, ctx)
	log := f.logger.WithField("collection", f.collection)

	for {
		sub, err := f.Subscribe(ctx)
		if err == nil {
			for snap := range sub.Snapshots() {
				exp.Reset()
				fn(snap)
			}
			err = sub.Err()
			_ = sub.Close()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return ctx.Err()
		}
		log.WithError(err).WithField("retry_in", wait.String()).Warn("Change feed subscription lost, resubscribing")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Subscription - поток снимков; Close является освобождающим вызовом подписки
type Subscription[T any] struct {
	ch     chan Snapshot[T]
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Snapshots закрывается после Close или терминальной ошибки (см. Err)
func (s *Subscription[T]) Snapshots() <-chan Snapshot[T] { return s.ch }

// Err возвращает терминальную ошибку потока; nil, если поток закрыт вызывающим
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close останавливает доставку и освобождает слушателя брокера. Идемпотентен.
func (s *Subscription[T]) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *Subscription[T]) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// deliver кладет снимок в буфер; недоставленный более старый снимок вытесняется
func (s *Subscription[T]) deliver(snap Snapshot[T]) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

func storeUnavailable(collection models.Collection, err error) error {
	if errors.Is(err, models.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", models.ErrStoreUnavailable, collection, err)
}
