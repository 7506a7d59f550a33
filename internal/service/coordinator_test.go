package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
	"github.com/shenikar/dispatch_coordination_system/internal/webhook"
	webhook_mocks "github.com/shenikar/dispatch_coordination_system/internal/webhook/mocks"
)

func TestDispatch_AssignsUnitToIncident(t *testing.T) {
	// Подготовка
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")
	unit := env.registerUnit(t, "A-101")

	// Действие
	d, err := env.coord.Dispatch(ctx, unit.ID, inc.ID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.DispatchEnRoute, d.Status)
	assert.Equal(t, unit.ID, d.UnitID)
	assert.Equal(t, inc.ID, d.IncidentID)
	assert.Equal(t, 15*time.Minute, d.EstimatedArrival.Sub(d.DispatchedAt))

	u := env.unit(t, unit.ID)
	assert.Equal(t, models.UnitDispatched, u.Status)
	require.NotNil(t, u.CurrentIncidentID)
	assert.Equal(t, inc.ID, *u.CurrentIncidentID)
	assert.Equal(t, models.IncidentInProgress, env.incident(t, inc.ID).Status)

	history, err := env.ledger.History(ctx, models.HistoryQuery{UnitID: &unit.ID})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, d.ID, history[0].ID)
	assert.True(t, history[0].Open())
}

func TestDispatch_AssignedPolicyAndArrival(t *testing.T) {
	// Подготовка
	cfg := testConfig()
	cfg.AssignIncidentStatus = "assigned"
	env := newTestEnvWithConfig(t, cfg, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Олег Кузнецов")
	unit := env.registerUnit(t, "A-102")

	// Действие
	_, err := env.coord.Dispatch(ctx, unit.ID, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentAssigned, env.incident(t, inc.ID).Status)

	d, err := env.coord.MarkArrived(ctx, unit.ID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.DispatchOnScene, d.Status)
	assert.NotNil(t, d.ArrivedAt)
	assert.Equal(t, models.UnitOnScene, env.unit(t, unit.ID).Status)
	assert.Equal(t, models.IncidentInProgress, env.incident(t, inc.ID).Status)
}

func TestAdvanceDispatch_FullCycleReleasesUnit(t *testing.T) {
	// Подготовка
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")
	unit := env.registerUnit(t, "A-101")
	d, err := env.coord.Dispatch(ctx, unit.ID, inc.ID)
	require.NoError(t, err)

	// Действие
	d, err = env.coord.AdvanceDispatch(ctx, d.ID, models.DispatchOnScene)
	require.NoError(t, err)
	assert.Equal(t, models.UnitOnScene, env.unit(t, unit.ID).Status)

	d, err = env.coord.AdvanceDispatch(ctx, d.ID, models.DispatchTransporting)
	require.NoError(t, err)
	assert.Equal(t, models.UnitTransporting, env.unit(t, unit.ID).Status)

	d, err = env.coord.AdvanceDispatch(ctx, d.ID, models.DispatchCompleted)
	require.NoError(t, err)

	// Проверки
	assert.Equal(t, models.DispatchCompleted, d.Status)
	assert.NotNil(t, d.ArrivedAt)
	assert.NotNil(t, d.CompletedAt)

	u := env.unit(t, unit.ID)
	assert.Equal(t, models.UnitAvailable, u.Status)
	assert.Nil(t, u.CurrentIncidentID)
	assert.Equal(t, 1, u.CallCount)

	_, err = env.ledger.OpenForUnit(ctx, unit.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAdvanceDispatch_SameStatusIsNoop(t *testing.T) {
	// Подготовка
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")
	unit := env.registerUnit(t, "A-101")
	d, err := env.coord.Dispatch(ctx, unit.ID, inc.ID)
	require.NoError(t, err)

	// Действие
	again, err := env.coord.AdvanceDispatch(ctx, d.ID, models.DispatchEnRoute)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, d.Version, again.Version)

	_, err = env.coord.CompleteCall(ctx, unit.ID)
	require.NoError(t, err)
	before := env.unit(t, unit.ID)

	done, err := env.coord.AdvanceDispatch(ctx, d.ID, models.DispatchCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.DispatchCompleted, done.Status)

	after := env.unit(t, unit.ID)
	assert.Equal(t, 1, after.CallCount)
	assert.Equal(t, before.Version, after.Version)
}

func TestAdvanceDispatch_Rejections(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")
	unit := env.registerUnit(t, "A-101")
	d, err := env.coord.Dispatch(ctx, unit.ID, inc.ID)
	require.NoError(t, err)

	t.Run("skipping on_scene", func(t *testing.T) {
		_, err := env.coord.AdvanceDispatch(ctx, d.ID, models.DispatchTransporting)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
		assert.Equal(t, models.UnitDispatched, env.unit(t, unit.ID).Status)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := env.coord.AdvanceDispatch(ctx, d.ID, models.DispatchStatus("parked"))
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("unknown dispatch", func(t *testing.T) {
		_, err := env.coord.AdvanceDispatch(ctx, uuid.New(), models.DispatchOnScene)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("backwards after completion", func(t *testing.T) {
		_, err := env.coord.CompleteCall(ctx, unit.ID)
		require.NoError(t, err)

		_, err = env.coord.AdvanceDispatch(ctx, d.ID, models.DispatchOnScene)
		assert.ErrorIs(t, err, models.ErrPreconditionFailed)
	})

	t.Run("no open dispatch for unit", func(t *testing.T) {
		_, err := env.coord.MarkTransporting(ctx, unit.ID)
		assert.ErrorIs(t, err, models.ErrPreconditionFailed)
	})
}

func TestCloseIncident_CompletedIncidentCannotReopen(t *testing.T) {
	// Подготовка
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")
	closed, err := env.coord.CloseIncident(ctx, inc.ID)
	require.NoError(t, err)
	require.Equal(t, models.IncidentCompleted, closed.Status)

	// Действие
	_, err = env.incidents.SetStatus(ctx, inc.ID, models.IncidentPending)

	// Проверки
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	after := env.incident(t, inc.ID)
	assert.Equal(t, models.IncidentCompleted, after.Status)
	assert.Equal(t, closed.Version, after.Version)

	_, err = env.coord.CloseIncident(ctx, inc.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	_, err = env.coord.CancelIncident(ctx, inc.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, closed.Version, env.incident(t, inc.ID).Version)
}

func TestCancelIncident_ReleasesOpenDispatch(t *testing.T) {
	// Подготовка
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")
	unit := env.registerUnit(t, "A-101", "дефибриллятор")
	d, err := env.coord.Dispatch(ctx, unit.ID, inc.ID)
	require.NoError(t, err)
	_, err = env.coord.ReserveEquipment(ctx, unit.ID, "дефибриллятор", inc.ID)
	require.NoError(t, err)

	// Действие
	cancelled, err := env.coord.CancelIncident(ctx, inc.ID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.IncidentCancelled, cancelled.Status)

	done, err := env.ledger.GetDispatch(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DispatchCompleted, done.Status)

	u := env.unit(t, unit.ID)
	assert.Equal(t, models.UnitAvailable, u.Status)
	assert.Nil(t, u.CurrentIncidentID)
	assert.Equal(t, 1, u.CallCount)
	assert.Nil(t, u.Equipment[0].ReservedFor)
}

func TestCloseIncident_ReleasesEquipmentOnOtherUnits(t *testing.T) {
	// Подготовка
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")
	spare := env.registerUnit(t, "B-200", "кислород")
	_, err := env.coord.ReserveEquipment(ctx, spare.ID, "кислород", inc.ID)
	require.NoError(t, err)

	// Действие
	_, err = env.coord.CloseIncident(ctx, inc.ID)

	// Проверки
	require.NoError(t, err)
	u := env.unit(t, spare.ID)
	assert.Nil(t, u.Equipment[0].ReservedFor)
	assert.Equal(t, models.UnitAvailable, u.Status)
	assert.Equal(t, 0, u.CallCount)
}

func TestDispatch_ConcurrentDispatchOfSameUnit(t *testing.T) {
	// Подготовка
	env := newTestEnv(t, nil)
	ctx := context.Background()
	unit := env.registerUnit(t, "U-2")
	incidents := []*models.Incident{
		env.createIncident(t, "Заявитель 2"),
		env.createIncident(t, "Заявитель 3"),
	}

	// Действие
	start := make(chan struct{})
	errs := make([]error, len(incidents))
	var wg sync.WaitGroup
	for i, inc := range incidents {
		wg.Add(1)
		go func(i int, incidentID uuid.UUID) {
			defer wg.Done()
			<-start
			_, errs[i] = env.coord.Dispatch(ctx, unit.ID, incidentID)
		}(i, inc.ID)
	}
	close(start)
	wg.Wait()

	// Проверки
	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, models.ErrPreconditionFailed)
	}
	assert.Equal(t, 1, succeeded)

	history, err := env.ledger.History(ctx, models.HistoryQuery{UnitID: &unit.ID})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Open())

	u := env.unit(t, unit.ID)
	assert.Equal(t, models.UnitDispatched, u.Status)
	assert.Equal(t, history[0].IncidentID, *u.CurrentIncidentID)

	pending := 0
	for _, inc := range incidents {
		if env.incident(t, inc.ID).Status == models.IncidentPending {
			pending++
		}
	}
	assert.Equal(t, 1, pending)
}

func TestDispatch_Preconditions(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	t.Run("unit out of service", func(t *testing.T) {
		inc := env.createIncident(t, "Заявитель")
		unit := env.registerUnit(t, "OOS-1")
		_, err := env.units.SetStatus(ctx, unit.ID, models.UnitOutOfService, nil)
		require.NoError(t, err)

		_, err = env.coord.Dispatch(ctx, unit.ID, inc.ID)
		assert.ErrorIs(t, err, models.ErrPreconditionFailed)
		assert.Equal(t, models.IncidentPending, env.incident(t, inc.ID).Status)
	})

	t.Run("incident already in progress", func(t *testing.T) {
		inc := env.createIncident(t, "Заявитель")
		first := env.registerUnit(t, "P-1")
		second := env.registerUnit(t, "P-2")
		_, err := env.coord.Dispatch(ctx, first.ID, inc.ID)
		require.NoError(t, err)

		_, err = env.coord.Dispatch(ctx, second.ID, inc.ID)
		assert.ErrorIs(t, err, models.ErrPreconditionFailed)
		assert.Equal(t, models.UnitAvailable, env.unit(t, second.ID).Status)
	})

	t.Run("unknown incident", func(t *testing.T) {
		unit := env.registerUnit(t, "N-1")
		_, err := env.coord.Dispatch(ctx, unit.ID, uuid.New())
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestDispatch_FailureLeavesRegistriesUnchanged(t *testing.T) {
	// Подготовка
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")
	unit := env.registerUnit(t, "A-101")

	stores := env.stores
	stores.Incidents = brokenIncidents{IncidentRepository: env.stores.Incidents, err: models.ErrStoreUnavailable}
	broken := env.withStores(stores)

	// Действие
	_, err := broken.coord.Dispatch(ctx, unit.ID, inc.ID)

	// Проверки
	require.ErrorIs(t, err, models.ErrStoreUnavailable)

	u := env.unit(t, unit.ID)
	assert.Equal(t, models.UnitAvailable, u.Status)
	assert.Nil(t, u.CurrentIncidentID)
	assert.Equal(t, unit.Version, u.Version)
	assert.Equal(t, models.IncidentPending, env.incident(t, inc.ID).Status)

	history, err := env.ledger.History(ctx, models.HistoryQuery{IncidentID: &inc.ID})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDispatch_RetriesOnConflict(t *testing.T) {
	// Подготовка
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")
	unit := env.registerUnit(t, "A-101")

	flaky := &flakyUnits{UnitRepository: env.stores.Units, failures: 1, err: models.ErrConflict}
	stores := env.stores
	stores.Units = flaky
	retrying := env.withStores(stores)

	// Действие
	d, err := retrying.coord.Dispatch(ctx, unit.ID, inc.ID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, int32(2), flaky.calls.Load())

	history, err := env.ledger.History(ctx, models.HistoryQuery{UnitID: &unit.ID})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, d.ID, history[0].ID)
}

func TestDispatch_GivesUpAfterMaxAttempts(t *testing.T) {
	// Подготовка
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")
	unit := env.registerUnit(t, "A-101")

	flaky := &flakyUnits{UnitRepository: env.stores.Units, failures: 100, err: models.ErrConflict}
	stores := env.stores
	stores.Units = flaky
	retrying := env.withStores(stores)

	// Действие
	_, err := retrying.coord.Dispatch(ctx, unit.ID, inc.ID)

	// Проверки
	require.ErrorIs(t, err, models.ErrConflict)
	assert.Equal(t, int32(env.cfg.WorkflowMaxAttempts), flaky.calls.Load())
	assert.Equal(t, models.IncidentPending, env.incident(t, inc.ID).Status)
}

func TestRemoveUnit_BusyUnitIsRejected(t *testing.T) {
	// Подготовка
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")
	unit := env.registerUnit(t, "A-101")
	_, err := env.coord.Dispatch(ctx, unit.ID, inc.ID)
	require.NoError(t, err)

	// Действие
	err = env.coord.RemoveUnit(ctx, unit.ID)

	// Проверки
	require.ErrorIs(t, err, models.ErrPreconditionFailed)
	assert.Equal(t, models.UnitDispatched, env.unit(t, unit.ID).Status)

	_, err = env.coord.CompleteCall(ctx, unit.ID)
	require.NoError(t, err)
	require.NoError(t, env.coord.RemoveUnit(ctx, unit.ID))

	_, err = env.units.GetUnit(ctx, unit.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEquipmentReservation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")
	other := env.createIncident(t, "Петр Иванов")
	unit := env.registerUnit(t, "A-101", "Дефибриллятор", "Кислород")

	t.Run("reserve", func(t *testing.T) {
		u, err := env.coord.ReserveEquipment(ctx, unit.ID, "дефибриллятор", inc.ID)
		require.NoError(t, err)
		require.NotNil(t, u.Equipment[0].ReservedFor)
		assert.Equal(t, inc.ID, *u.Equipment[0].ReservedFor)
		assert.Nil(t, u.Equipment[1].ReservedFor)
	})

	t.Run("same incident again is a no-op", func(t *testing.T) {
		before := env.unit(t, unit.ID)
		_, err := env.coord.ReserveEquipment(ctx, unit.ID, "Дефибриллятор", inc.ID)
		require.NoError(t, err)
		assert.Equal(t, before.Version, env.unit(t, unit.ID).Version)
	})

	t.Run("reserved for another incident", func(t *testing.T) {
		_, err := env.coord.ReserveEquipment(ctx, unit.ID, "Дефибриллятор", other.ID)
		assert.ErrorIs(t, err, models.ErrPreconditionFailed)
	})

	t.Run("item not in manifest", func(t *testing.T) {
		_, err := env.coord.ReserveEquipment(ctx, unit.ID, "Носилки", inc.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("release", func(t *testing.T) {
		u, err := env.coord.ReleaseEquipment(ctx, unit.ID, "Дефибриллятор")
		require.NoError(t, err)
		assert.Nil(t, u.Equipment[0].ReservedFor)

		_, err = env.coord.ReleaseEquipment(ctx, unit.ID, "Дефибриллятор")
		assert.ErrorIs(t, err, models.ErrPreconditionFailed)
	})

	t.Run("terminal incident", func(t *testing.T) {
		_, err := env.coord.CancelIncident(ctx, other.ID)
		require.NoError(t, err)

		_, err = env.coord.ReserveEquipment(ctx, unit.ID, "Кислород", other.ID)
		assert.ErrorIs(t, err, models.ErrPreconditionFailed)
	})
}

func TestCompleteCall_ReleasesReservedEquipment(t *testing.T) {
	// Подготовка
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")
	unit := env.registerUnit(t, "A-101", "Кислород")
	_, err := env.coord.ReserveEquipment(ctx, unit.ID, "Кислород", inc.ID)
	require.NoError(t, err)
	_, err = env.coord.Dispatch(ctx, unit.ID, inc.ID)
	require.NoError(t, err)

	// Действие
	_, err = env.coord.CompleteCall(ctx, unit.ID)

	// Проверки
	require.NoError(t, err)
	assert.Nil(t, env.unit(t, unit.ID).Equipment[0].ReservedFor)
}

func TestDispatch_PublishesWebhookEvents(t *testing.T) {
	// Подготовка
	ctrl := gomock.NewController(t)
	webhookMock := webhook_mocks.NewMockWebhookPublisher(ctrl)
	env := newTestEnv(t, webhookMock)
	ctx := context.Background()

	// Ожидания
	webhookMock.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event webhook.WebhookEvent) error {
			assert.Equal(t, webhook.EventIncidentCreated, event.Type)
			return nil
		}).Times(1)

	inc := env.createIncident(t, "Анна Смирнова")
	unit := env.registerUnit(t, "A-101")

	webhookMock.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event webhook.WebhookEvent) error {
			assert.Equal(t, webhook.EventDispatchOpened, event.Type)
			assert.Equal(t, unit.ID.String(), event.UnitID)
			assert.Equal(t, inc.ID.String(), event.IncidentID)
			assert.False(t, event.Timestamp.IsZero())
			return errors.New("redis is down")
		}).Times(1)

	// Действие
	_, err := env.coord.Dispatch(ctx, unit.ID, inc.ID)

	// Проверки
	require.NoError(t, err, "webhook failures must not fail the action")
}

func TestTakeOutOfService_ClosesOpenDispatch(t *testing.T) {
	// Подготовка
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")
	unit := env.registerUnit(t, "A-101", "дефибриллятор")
	d, err := env.coord.Dispatch(ctx, unit.ID, inc.ID)
	require.NoError(t, err)
	_, err = env.coord.MarkArrived(ctx, unit.ID)
	require.NoError(t, err)
	_, err = env.coord.ReserveEquipment(ctx, unit.ID, "дефибриллятор", inc.ID)
	require.NoError(t, err)

	// Действие
	u, err := env.coord.TakeOutOfService(ctx, unit.ID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.UnitOutOfService, u.Status)

	stored := env.unit(t, unit.ID)
	assert.Equal(t, models.UnitOutOfService, stored.Status)
	assert.Nil(t, stored.CurrentIncidentID)
	assert.Equal(t, 0, stored.CallCount)
	assert.Nil(t, stored.Equipment[0].ReservedFor)

	done, err := env.ledger.GetDispatch(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DispatchCompleted, done.Status)
	_, err = env.stores.Dispatches.FindOpenByUnit(ctx, unit.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.Equal(t, models.IncidentInProgress, env.incident(t, inc.ID).Status)

	back, err := env.units.SetStatus(ctx, unit.ID, models.UnitAvailable, nil)
	require.NoError(t, err)
	assert.Equal(t, models.UnitAvailable, back.Status)
}

func TestTakeOutOfService_IdleUnit(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	unit := env.registerUnit(t, "A-101")

	u, err := env.coord.TakeOutOfService(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UnitOutOfService, u.Status)

	again, err := env.coord.TakeOutOfService(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Version, again.Version)

	_, err = env.coord.TakeOutOfService(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}
