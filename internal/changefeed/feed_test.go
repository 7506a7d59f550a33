package changefeed

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

type docSource struct {
	mu   sync.Mutex
	docs []string
	err  error
}

func (s *docSource) set(docs ...string) {
	s.mu.Lock()
	s.docs = docs
	s.mu.Unlock()
}

func (s *docSource) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *docSource) load(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]string(nil), s.docs...), nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return logger
}

func nextSnapshot(t *testing.T, sub *Subscription[string]) Snapshot[string] {
	t.Helper()
	select {
	case snap, ok := <-sub.Snapshots():
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
	}
	return Snapshot[string]{}
}

// waitFor читает снимки, пока не придет удовлетворяющий условию
func waitFor(t *testing.T, sub *Subscription[string], cond func(Snapshot[string]) bool) Snapshot[string] {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-sub.Snapshots():
			require.True(t, ok, "subscription closed")
			if cond(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("expected snapshot was not delivered")
			return Snapshot[string]{}
		}
	}
}

func TestFeed_Subscribe_DeliversInitialAndSubsequentSnapshots(t *testing.T) {
	// Подготовка
	broker := NewLocalBroker()
	src := &docSource{}
	src.set("a")
	feed := New[string](broker, models.CollectionIncidents, src.load, testLogger())
	ctx := context.Background()

	// Действие
	sub, err := feed.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	// Проверки
	first := nextSnapshot(t, sub)
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, []string{"a"}, first.Docs)
	assert.Equal(t, models.CollectionIncidents, first.Collection)

	src.set("a", "b")
	require.NoError(t, broker.Publish(ctx, models.CollectionIncidents))

	second := nextSnapshot(t, sub)
	assert.Greater(t, second.Seq, first.Seq)
	assert.Equal(t, []string{"a", "b"}, second.Docs)
}

func TestFeed_IgnoresOtherCollections(t *testing.T) {
	broker := NewLocalBroker()
	src := &docSource{}
	feed := New[string](broker, models.CollectionUnits, src.load, testLogger())
	ctx := context.Background()

	sub, err := feed.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()
	nextSnapshot(t, sub)

	require.NoError(t, broker.Publish(ctx, models.CollectionIncidents))

	select {
	case <-sub.Snapshots():
		t.Fatal("signal for another collection must not trigger a snapshot")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFeed_SlowConsumerGetsLatestSnapshot(t *testing.T) {
	// Подготовка
	broker := NewLocalBroker()
	src := &docSource{}
	feed := New[string](broker, models.CollectionDispatches, src.load, testLogger())
	ctx := context.Background()
	sub, err := feed.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()
	nextSnapshot(t, sub)

	// Действие: много записей без чтения
	for _, v := range []string{"1", "2", "3", "4", "5"} {
		src.set(v)
		require.NoError(t, broker.Publish(ctx, models.CollectionDispatches))
	}

	// Проверки: в итоге доставлено последнее состояние
	last := waitFor(t, sub, func(s Snapshot[string]) bool {
		return len(s.Docs) == 1 && s.Docs[0] == "5"
	})
	assert.Equal(t, []string{"5"}, last.Docs)
}

func TestFeed_Close_ReleasesListener(t *testing.T) {
	broker := NewLocalBroker()
	src := &docSource{}
	feed := New[string](broker, models.CollectionIncidents, src.load, testLogger())

	sub, err := feed.Subscribe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, broker.Listeners(models.CollectionIncidents))

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	assert.Equal(t, 0, broker.Listeners(models.CollectionIncidents))
	assert.NoError(t, sub.Err())

	// После закрытия канал снимков закрыт, остаток буфера можно дочитать
	for range sub.Snapshots() {
	}
}

func TestFeed_Subscribe_InitialLoadFailure(t *testing.T) {
	broker := NewLocalBroker()
	src := &docSource{}
	src.fail(errors.New("connection refused"))
	feed := New[string](broker, models.CollectionIncidents, src.load, testLogger())

	sub, err := feed.Subscribe(context.Background())

	require.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.Nil(t, sub)
	assert.Equal(t, 0, broker.Listeners(models.CollectionIncidents))
}

func TestFeed_ReloadFailureTerminatesWithStoreUnavailable(t *testing.T) {
	// Подготовка
	broker := NewLocalBroker()
	src := &docSource{}
	feed := New[string](broker, models.CollectionIncidents, src.load, testLogger())
	ctx := context.Background()
	sub, err := feed.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()
	nextSnapshot(t, sub)

	// Действие
	src.fail(errors.New("connection reset"))
	require.NoError(t, broker.Publish(ctx, models.CollectionIncidents))

	// Проверки
	select {
	case _, ok := <-sub.Snapshots():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription was not terminated")
	}
	require.ErrorIs(t, sub.Err(), models.ErrStoreUnavailable)
}

func TestFeed_Poll(t *testing.T) {
	src := &docSource{}
	src.set("x", "y")
	feed := New[string](NewLocalBroker(), models.CollectionUnits, src.load, testLogger())

	snap, err := feed.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, snap.Docs)

	src.fail(errors.New("down"))
	_, err = feed.Poll(context.Background())
	require.ErrorIs(t, err, models.ErrStoreUnavailable)
}

func TestFeed_Watch_ResubscribesAfterFailure(t *testing.T) {
	// Подготовка
	broker := NewLocalBroker()
	src := &docSource{}
	src.set("before")
	feed := New[string](broker, models.CollectionIncidents, src.load, testLogger()).WithMaxBackoff(50 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan []string, 16)
	done := make(chan error, 1)
	go func() {
		done <- feed.Watch(ctx, func(s Snapshot[string]) { got <- s.Docs })
	}()
	require.Equal(t, []string{"before"}, <-got)

	// Действие: обрыв, затем восстановление хранилища
	src.fail(errors.New("connection reset"))
	require.NoError(t, broker.Publish(ctx, models.CollectionIncidents))
	time.Sleep(20 * time.Millisecond)
	src.mu.Lock()
	src.err = nil
	src.docs = []string{"after"}
	src.mu.Unlock()

	// Проверки
	select {
	case docs := <-got:
		assert.Equal(t, []string{"after"}, docs)
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not resubscribe")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestRedisBroker_SignalsReachListeners(t *testing.T) {
	// Подготовка
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	broker := NewRedisBroker(client, "")
	ctx := context.Background()

	src := &docSource{}
	src.set("u1")
	feed := New[string](broker, models.CollectionUnits, src.load, testLogger())
	sub, err := feed.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()
	nextSnapshot(t, sub)

	// Действие
	src.set("u1", "u2")
	require.NoError(t, broker.Publish(ctx, models.CollectionUnits))

	// Проверки
	snap := waitFor(t, sub, func(s Snapshot[string]) bool { return len(s.Docs) == 2 })
	assert.Equal(t, []string{"u1", "u2"}, snap.Docs)
	assert.Equal(t, []string{"changefeed:units"}, mr.PubSubChannels(""))
}

func TestRedisBroker_ListenFailsWhenServerIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, err := NewRedisBroker(client, "test:").Listen(context.Background(), models.CollectionIncidents)
	require.ErrorIs(t, err, models.ErrStoreUnavailable)

	err = NewRedisBroker(client, "test:").Publish(context.Background(), models.CollectionIncidents)
	require.ErrorIs(t, err, models.ErrStoreUnavailable)
}
