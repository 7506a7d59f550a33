package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shenikar/dispatch_coordination_system/internal/changefeed"
	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

// Feeds - ленты снимков трех коллекций координации
type Feeds struct {
	Incidents  *changefeed.Feed[*models.Incident]
	Units      *changefeed.Feed[*models.Unit]
	Dispatches *changefeed.Feed[*models.Dispatch]
}

// NewFeeds строит ленты поверх репозиториев: каждый снимок - полное чтение коллекции
func NewFeeds(stores Stores, broker changefeed.Broker, logger *logrus.Logger, maxBackoff time.Duration) Feeds {
	return Feeds{
		Incidents: changefeed.New(broker, models.CollectionIncidents, func(ctx context.Context) ([]*models.Incident, error) {
			return stores.Incidents.List(ctx, models.IncidentFilter{})
		}, logger).WithMaxBackoff(maxBackoff),
		Units: changefeed.New(broker, models.CollectionUnits, func(ctx context.Context) ([]*models.Unit, error) {
			return stores.Units.List(ctx, models.UnitFilter{})
		}, logger).WithMaxBackoff(maxBackoff),
		Dispatches: changefeed.New(broker, models.CollectionDispatches, func(ctx context.Context) ([]*models.Dispatch, error) {
			return stores.Dispatches.History(ctx, models.HistoryQuery{})
		}, logger).WithMaxBackoff(maxBackoff),
	}
}
