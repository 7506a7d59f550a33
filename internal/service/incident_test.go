package service

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
	"github.com/shenikar/dispatch_coordination_system/internal/service/mocks"
	"github.com/shenikar/dispatch_coordination_system/internal/webhook"
	webhook_mocks "github.com/shenikar/dispatch_coordination_system/internal/webhook/mocks"
)

// newTestIncidentService - вспомогательная функция для создания инстанса сервиса с моками.
func newTestIncidentService(t *testing.T) (*incidentService, *mocks.MockIncidentRepository, *webhook_mocks.MockWebhookPublisher) {
	ctrl := gomock.NewController(t)
	txMock := mocks.NewMockTransactor(ctrl)
	repoMock := mocks.NewMockIncidentRepository(ctrl)
	webhookMock := webhook_mocks.NewMockWebhookPublisher(ctrl)

	txMock.EXPECT().
		WithinTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		}).AnyTimes()

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	service := NewIncidentService(Stores{Tx: txMock, Incidents: repoMock}, logger, testConfig(), webhookMock)
	return service.(*incidentService), repoMock, webhookMock
}

func TestCreateIncident_Success(t *testing.T) {
	// Подготовка
	service, repoMock, webhookMock := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	incident := &models.Incident{
		ReporterName: "Анна Смирнова",
		Location:     models.Location{Address: "ул. Ленина, 10"},
	}

	// Ожидания
	repoMock.EXPECT().
		Create(ctx, incident).
		DoAndReturn(func(_ context.Context, inc *models.Incident) error {
			inc.ID = incidentID
			inc.Version = 1
			return nil
		}).Times(1)

	webhookMock.EXPECT().
		Publish(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, event webhook.WebhookEvent) error {
			assert.Equal(t, webhook.EventIncidentCreated, event.Type)
			assert.Equal(t, incidentID.String(), event.IncidentID)
			assert.Equal(t, string(models.PriorityMedium), event.Priority)
			return nil
		}).Times(1)

	// Действие
	err := service.CreateIncident(ctx, incident)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, incidentID, incident.ID)
	assert.Equal(t, models.IncidentPending, incident.Status)
	assert.Equal(t, models.PriorityMedium, incident.Priority)
	assert.Equal(t, models.OriginOperator, incident.Origin)
}

func TestCreateIncident_ValidationError(t *testing.T) {
	service, repoMock, webhookMock := newTestIncidentService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		incident *models.Incident
	}{
		{"no reporter", &models.Incident{Location: models.Location{Address: "ул. Ленина, 10"}}},
		{"no location", &models.Incident{ReporterName: "Анна Смирнова"}},
		{"bad priority", &models.Incident{
			ReporterName: "Анна Смирнова",
			Priority:     "urgent",
			Location:     models.Location{Address: "ул. Ленина, 10"},
		}},
		{"bad coordinates", &models.Incident{
			ReporterName: "Анна Смирнова",
			Location:     models.Location{Coordinates: &models.Coordinates{Latitude: 10, Longitude: 200}},
		}},
	}

	// Ожидания
	repoMock.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)
	webhookMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.CreateIncident(ctx, tt.incident)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestCreateIncident_RepositoryError(t *testing.T) {
	// Подготовка
	service, repoMock, webhookMock := newTestIncidentService(t)
	ctx := context.Background()
	expectedErr := fmt.Errorf("failed to create incident: %w", models.ErrStoreUnavailable)

	// Ожидания
	repoMock.EXPECT().Create(ctx, gomock.Any()).Return(expectedErr).Times(1)
	webhookMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	err := service.CreateIncident(ctx, &models.Incident{
		ReporterName: "Анна Смирнова",
		Location:     models.Location{Address: "ул. Ленина, 10"},
	})

	// Проверки
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "service: could not create incident")
}

func TestSetStatus_RetriesOnConflict(t *testing.T) {
	// Подготовка
	service, repoMock, webhookMock := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	load := func(context.Context, uuid.UUID) (*models.Incident, error) {
		return &models.Incident{ID: incidentID, Status: models.IncidentPending, Priority: models.PriorityHigh, Version: 3}, nil
	}

	// Ожидания
	repoMock.EXPECT().GetByID(gomock.Any(), incidentID).DoAndReturn(load).Times(2)
	gomock.InOrder(
		repoMock.EXPECT().Update(gomock.Any(), gomock.Any()).Return(models.ErrConflict),
		repoMock.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil),
	)
	webhookMock.EXPECT().
		Publish(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, event webhook.WebhookEvent) error {
			assert.Equal(t, webhook.EventIncidentStatusChanged, event.Type)
			assert.Equal(t, string(models.IncidentAssigned), event.Status)
			return nil
		}).Times(1)

	// Действие
	updated, err := service.SetStatus(ctx, incidentID, models.IncidentAssigned)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.IncidentAssigned, updated.Status)
	assert.False(t, updated.UpdatedAt.IsZero())
}

func TestSetStatus_InvalidTransitionIsNotRetried(t *testing.T) {
	// Подготовка
	service, repoMock, webhookMock := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()

	// Ожидания
	repoMock.EXPECT().
		GetByID(gomock.Any(), incidentID).
		Return(&models.Incident{ID: incidentID, Status: models.IncidentCompleted}, nil).
		Times(1)
	repoMock.EXPECT().Update(gomock.Any(), gomock.Any()).Times(0)
	webhookMock.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	_, err := service.SetStatus(ctx, incidentID, models.IncidentPending)

	// Проверки
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestIncidentTransitions(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		path []models.IncidentStatus
		next models.IncidentStatus
		ok   bool
	}{
		{"pending to assigned", nil, models.IncidentAssigned, true},
		{"pending to in_progress", nil, models.IncidentInProgress, true},
		{"pending to cancelled", nil, models.IncidentCancelled, true},
		{"assigned to completed", []models.IncidentStatus{models.IncidentAssigned}, models.IncidentCompleted, true},
		{"in_progress to cancelled", []models.IncidentStatus{models.IncidentInProgress}, models.IncidentCancelled, true},
		{"in_progress back to pending", []models.IncidentStatus{models.IncidentInProgress}, models.IncidentPending, false},
		{"in_progress back to assigned", []models.IncidentStatus{models.IncidentInProgress}, models.IncidentAssigned, false},
		{"cancelled is terminal", []models.IncidentStatus{models.IncidentCancelled}, models.IncidentInProgress, false},
		{"completed is terminal", []models.IncidentStatus{models.IncidentCompleted}, models.IncidentCancelled, false},
		{"pending to pending", nil, models.IncidentPending, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inc := env.createIncident(t, "Анна Смирнова")
			for _, s := range tt.path {
				_, err := env.incidents.SetStatus(ctx, inc.ID, s)
				require.NoError(t, err)
			}
			before := env.incident(t, inc.ID)

			_, err := env.incidents.SetStatus(ctx, inc.ID, tt.next)

			after := env.incident(t, inc.ID)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.next, after.Status)
				return
			}
			assert.ErrorIs(t, err, models.ErrInvalidTransition)
			assert.Equal(t, before.Status, after.Status)
			assert.Equal(t, before.Version, after.Version)
		})
	}
}

func TestSetPriority(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")

	updated, err := env.incidents.SetPriority(ctx, inc.ID, models.PriorityCritical)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityCritical, updated.Priority)
	assert.Equal(t, models.IncidentPending, updated.Status)

	_, err = env.incidents.SetPriority(ctx, inc.ID, "urgent")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = env.incidents.SetStatus(ctx, inc.ID, models.IncidentCancelled)
	require.NoError(t, err)
	_, err = env.incidents.SetPriority(ctx, inc.ID, models.PriorityLow)
	assert.ErrorIs(t, err, models.ErrPreconditionFailed)
}

func TestRaisePanic(t *testing.T) {
	// Подготовка
	env := newTestEnv(t, nil)
	age := 72
	signal := models.PanicSignal{
		ReporterName:  "Нина Лебедева",
		ReporterPhone: "+7 900 000-00-00",
		ReporterAge:   &age,
		Location:      models.Location{Coordinates: &models.Coordinates{Latitude: 59.93, Longitude: 30.31}},
	}

	// Действие
	inc, err := env.incidents.RaisePanic(context.Background(), signal)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OriginPanic, inc.Origin)
	assert.Equal(t, "sos", inc.Type)
	assert.Equal(t, models.PriorityHigh, inc.Priority)
	assert.Equal(t, models.IncidentPending, inc.Status)
	assert.NotEmpty(t, inc.Description)
	assert.Equal(t, 72, *env.incident(t, inc.ID).ReporterAge)
}

func TestListIncidents(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	first := env.createIncident(t, "Анна Смирнова")
	time.Sleep(2 * time.Millisecond)
	second := env.createIncident(t, "Петр Иванов")
	_, err := env.incidents.SetPriority(ctx, second.ID, models.PriorityCritical)
	require.NoError(t, err)

	all, err := env.incidents.ListIncidents(ctx, models.IncidentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")

	critical, err := env.incidents.ListIncidents(ctx, models.IncidentFilter{Priorities: []models.Priority{models.PriorityCritical}})
	require.NoError(t, err)
	require.Len(t, critical, 1)
	assert.Equal(t, second.ID, critical[0].ID)

	found, err := env.incidents.ListIncidents(ctx, models.IncidentFilter{Search: "смирнова"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, first.ID, found[0].ID)

	page, err := env.incidents.ListIncidents(ctx, models.IncidentFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)
}

func TestGetIncident_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.incidents.GetIncident(context.Background(), uuid.New())

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSetStatus_TerminalWithOpenDispatchIsRejected(t *testing.T) {
	// Подготовка
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")
	unit := env.registerUnit(t, "A-101")
	d, err := env.coord.Dispatch(ctx, unit.ID, inc.ID)
	require.NoError(t, err)

	for _, status := range []models.IncidentStatus{models.IncidentCompleted, models.IncidentCancelled} {
		t.Run(string(status), func(t *testing.T) {
			// Действие
			_, err := env.incidents.SetStatus(ctx, inc.ID, status)

			// Проверки
			assert.ErrorIs(t, err, models.ErrPreconditionFailed)
			assert.Equal(t, models.IncidentInProgress, env.incident(t, inc.ID).Status)
			assert.Equal(t, models.UnitDispatched, env.unit(t, unit.ID).Status)
			open, err := env.stores.Dispatches.FindOpenByIncident(ctx, inc.ID)
			require.NoError(t, err)
			assert.Equal(t, d.ID, open.ID)
		})
	}
}

func TestSetStatus_TerminalWithReservedEquipmentIsRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")
	spare := env.registerUnit(t, "B-200", "кислород")
	_, err := env.coord.ReserveEquipment(ctx, spare.ID, "кислород", inc.ID)
	require.NoError(t, err)

	_, err = env.incidents.SetStatus(ctx, inc.ID, models.IncidentCancelled)
	assert.ErrorIs(t, err, models.ErrPreconditionFailed)

	_, err = env.coord.ReleaseEquipment(ctx, spare.ID, "кислород")
	require.NoError(t, err)
	cancelled, err := env.incidents.SetStatus(ctx, inc.ID, models.IncidentCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentCancelled, cancelled.Status)
}
