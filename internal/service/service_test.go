package service

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/shenikar/dispatch_coordination_system/internal/changefeed"
	"github.com/shenikar/dispatch_coordination_system/internal/config"
	"github.com/shenikar/dispatch_coordination_system/internal/models"
	"github.com/shenikar/dispatch_coordination_system/internal/repository/memory"
	"github.com/shenikar/dispatch_coordination_system/internal/webhook"
)

// testEnv - сервисы координации поверх хранилища в памяти
type testEnv struct {
	store     *memory.Store
	broker    *changefeed.LocalBroker
	stores    Stores
	logger    *logrus.Logger
	cfg       *config.Config
	incidents IncidentService
	units     UnitService
	ledger    DispatchLedger
	coord     Coordinator
}

func testConfig() *config.Config {
	return &config.Config{
		StoreDriver:          config.DriverMemory,
		AssignIncidentStatus: "in_progress",
		DispatchDefaultETA:   15 * time.Minute,
		WorkflowMaxAttempts:  3,
		WorkflowRetryDelay:   time.Millisecond,
	}
}

func newTestEnv(t *testing.T, publisher webhook.WebhookPublisher) *testEnv {
	return newTestEnvWithConfig(t, testConfig(), publisher)
}

func newTestEnvWithConfig(t *testing.T, cfg *config.Config, publisher webhook.WebhookPublisher) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	if publisher == nil {
		publisher = webhook.NopWebhookPublisher{}
	}
	broker := changefeed.NewLocalBroker()
	store := memory.NewStore(broker, logger)
	stores := Stores{
		Tx:         store,
		Incidents:  memory.NewIncidentRepository(store),
		Units:      memory.NewUnitRepository(store),
		Dispatches: memory.NewDispatchRepository(store),
	}
	return buildEnv(store, broker, stores, logger, cfg, publisher)
}

func buildEnv(store *memory.Store, broker *changefeed.LocalBroker, stores Stores, logger *logrus.Logger, cfg *config.Config, publisher webhook.WebhookPublisher) *testEnv {
	ledger := NewDispatchLedger(stores, logger, cfg)
	return &testEnv{
		store:     store,
		broker:    broker,
		stores:    stores,
		logger:    logger,
		cfg:       cfg,
		incidents: NewIncidentService(stores, logger, cfg, publisher),
		units:     NewUnitService(stores, logger, cfg),
		ledger:    ledger,
		coord:     NewCoordinator(stores, ledger, publisher, logger, cfg),
	}
}

// withStores пересобирает сервисы с подмененными репозиториями
func (e *testEnv) withStores(stores Stores) *testEnv {
	return buildEnv(e.store, e.broker, stores, e.logger, e.cfg, webhook.NopWebhookPublisher{})
}

func (e *testEnv) createIncident(t *testing.T, reporter string) *models.Incident {
	t.Helper()
	inc := &models.Incident{
		ReporterName: reporter,
		Location:     models.Location{Address: "ул. Ленина, 10"},
	}
	require.NoError(t, e.incidents.CreateIncident(context.Background(), inc))
	return inc
}

func (e *testEnv) registerUnit(t *testing.T, callSign string, equipment ...string) *models.Unit {
	t.Helper()
	unit := &models.Unit{
		CallSign:     callSign,
		VehicleClass: models.VehicleAdvanced,
		Crew:         []string{"Сергей Орлов", "Мария Белова"},
		Location:     models.Location{Coordinates: &models.Coordinates{Latitude: 55.75, Longitude: 37.61}},
	}
	for _, name := range equipment {
		unit.Equipment = append(unit.Equipment, models.EquipmentItem{Name: name})
	}
	require.NoError(t, e.units.RegisterUnit(context.Background(), unit))
	return unit
}

func (e *testEnv) unit(t *testing.T, id uuid.UUID) *models.Unit {
	t.Helper()
	u, err := e.stores.Units.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (e *testEnv) incident(t *testing.T, id uuid.UUID) *models.Incident {
	t.Helper()
	inc, err := e.stores.Incidents.GetByID(context.Background(), id)
	require.NoError(t, err)
	return inc
}

// flakyUnits отвечает на первые failures вызовов Update ошибкой err
type flakyUnits struct {
	UnitRepository
	failures int32
	err      error
	calls    atomic.Int32
}

func (f *flakyUnits) Update(ctx context.Context, unit *models.Unit) error {
	if f.calls.Add(1) <= f.failures {
		return f.err
	}
	return f.UnitRepository.Update(ctx, unit)
}

// brokenIncidents не может сохранить изменения инцидентов
type brokenIncidents struct {
	IncidentRepository
	err error
}

func (b brokenIncidents) Update(context.Context, *models.Incident) error {
	return b.err
}
