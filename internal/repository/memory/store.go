// Package memory - транзакционное хранилище документов в памяти процесса.
// Транзакции выполняются последовательно над копией состояния, копия
// подменяет состояние только при успешном завершении.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/dispatch_coordination_system/internal/changefeed"
	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

type state struct {
	incidents  map[uuid.UUID]*models.Incident
	units      map[uuid.UUID]*models.Unit
	dispatches map[uuid.UUID]*models.Dispatch
}

func newState() state {
	return state{
		incidents:  make(map[uuid.UUID]*models.Incident),
		units:      make(map[uuid.UUID]*models.Unit),
		dispatches: make(map[uuid.UUID]*models.Dispatch),
	}
}

func (s state) clone() state {
	out := newState()
	for id, inc := range s.incidents {
		out.incidents[id] = inc.Clone()
	}
	for id, u := range s.units {
		out.units[id] = u.Clone()
	}
	for id, d := range s.dispatches {
		out.dispatches[id] = d.Clone()
	}
	return out
}

type txKey struct{}

type tx struct {
	store   *Store
	state   state
	touched map[models.Collection]struct{}
}

func (t *tx) touch(c models.Collection) {
	t.touched[c] = struct{}{}
}

// Store - хранилище коллекций incidents, units, dispatches
type Store struct {
	mu     sync.Mutex
	state  state
	broker changefeed.Broker
	logger *logrus.Logger
	now    func() time.Time
}

// NewStore создает пустое хранилище. После каждой зафиксированной транзакции
// брокер получает сигналы по затронутым коллекциям.
func NewStore(broker changefeed.Broker, logger *logrus.Logger) *Store {
	return &Store{
		state:  newState(),
		broker: broker,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithinTx выполняет fn в транзакции. Вложенный вызов присоединяется к внешней транзакции.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if t, ok := ctx.Value(txKey{}).(*tx); ok && t.store == s {
		return fn(ctx)
	}

	touched, err := s.commit(ctx, fn)
	if err != nil {
		return err
	}
	s.publish(ctx, touched)
	return nil
}

// commit выполняет fn под блокировкой и подменяет состояние при успехе.
// Паника в fn снимает блокировку, состояние остается прежним.
func (s *Store) commit(ctx context.Context, fn func(ctx context.Context) error) (map[models.Collection]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{store: s, state: s.state.clone(), touched: make(map[models.Collection]struct{})}
	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return nil, err
	}
	s.state = t.state
	return t.touched, nil
}

func (s *Store) publish(ctx context.Context, touched map[models.Collection]struct{}) {
	if s.broker == nil || len(touched) == 0 {
		return
	}
	for _, c := range models.Collections {
		if _, ok := touched[c]; !ok {
			continue
		}
		if err := s.broker.Publish(ctx, c); err != nil {
			s.logger.WithError(err).WithField("collection", c).Warn("Failed to publish change signal")
		}
	}
}

// write выполняет изменение в текущей транзакции или в неявной транзакции на одну операцию
func (s *Store) write(ctx context.Context, fn func(t *tx) error) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		return fn(ctx.Value(txKey{}).(*tx))
	})
}

// read читает из состояния транзакции, а вне транзакции - из зафиксированного состояния
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if t, ok := ctx.Value(txKey{}).(*tx); ok && t.store == s {
		return fn(&t.state)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.state)
}
