package service

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/shenikar/dispatch_coordination_system/internal/changefeed"
	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

// BoardView - производные представления для операторов поверх последних снимков
type BoardView interface {
	Summary() models.BoardSummary
	Incidents(filter models.IncidentFilter) []*models.Incident
}

// Board держит последние снимки трех коллекций. Кэш одноразовый: источник
// истины - хранилище, после обрыва подписки снимки приходят заново.
type Board struct {
	feeds  Feeds
	logger *logrus.Logger

	mu         sync.RWMutex
	incidents  changefeed.Snapshot[*models.Incident]
	units      changefeed.Snapshot[*models.Unit]
	dispatches changefeed.Snapshot[*models.Dispatch]
}

func NewBoard(feeds Feeds, logger *logrus.Logger) *Board {
	return &Board{feeds: feeds, logger: logger}
}

// Run подписывается на все три коллекции и обновляет кэш до отмены ctx
func (b *Board) Run(ctx context.Context) error {
	b.logger.Info("Operator board is watching change feeds")
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.feeds.Incidents.Watch(ctx, func(s changefeed.Snapshot[*models.Incident]) {
			b.mu.Lock()
			b.incidents = s
			b.mu.Unlock()
		})
	})
	g.Go(func() error {
		return b.feeds.Units.Watch(ctx, func(s changefeed.Snapshot[*models.Unit]) {
			b.mu.Lock()
			b.units = s
			b.mu.Unlock()
		})
	})
	g.Go(func() error {
		return b.feeds.Dispatches.Watch(ctx, func(s changefeed.Snapshot[*models.Dispatch]) {
			b.mu.Lock()
			b.dispatches = s
			b.mu.Unlock()
		})
	})
	return g.Wait()
}

func (b *Board) Summary() models.BoardSummary {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := models.BoardSummary{
		IncidentsByStatus:   make(map[models.IncidentStatus]int),
		IncidentsByPriority: make(map[models.Priority]int),
		UnitsByStatus:       make(map[models.UnitStatus]int),
		Seq: map[models.Collection]uint64{
			models.CollectionIncidents:  b.incidents.Seq,
			models.CollectionUnits:      b.units.Seq,
			models.CollectionDispatches: b.dispatches.Seq,
		},
	}
	for _, inc := range b.incidents.Docs {
		out.IncidentsByStatus[inc.Status]++
		if !inc.Status.Terminal() {
			out.IncidentsByPriority[inc.Priority]++
		}
	}
	for _, u := range b.units.Docs {
		out.UnitsByStatus[u.Status]++
	}
	for _, d := range b.dispatches.Docs {
		if d.Open() {
			out.OpenDispatches++
		}
	}
	return out
}

// Incidents фильтрует и сортирует последний снимок инцидентов в памяти
func (b *Board) Incidents(filter models.IncidentFilter) []*models.Incident {
	b.mu.RLock()
	docs := b.incidents.Docs
	b.mu.RUnlock()
	return filter.Apply(docs)
}
