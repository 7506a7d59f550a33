package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

// Transactor выполняет fn как одну транзакцию хранилища. Репозитории, вызванные
// с переданным ctx, читают и пишут в рамках этой транзакции.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// IncidentRepository определяет контракт для работы с хранилищем инцидентов.
// Update выполняет compare-and-set по Version и увеличивает ее при успехе.
type IncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	Update(ctx context.Context, incident *models.Incident) error
	List(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, error)
}

// UnitRepository определяет контракт для работы с хранилищем машин
type UnitRepository interface {
	Create(ctx context.Context, unit *models.Unit) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Unit, error)
	Update(ctx context.Context, unit *models.Unit) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter models.UnitFilter) ([]*models.Unit, error)
}

// DispatchRepository определяет контракт для работы с журналом назначений.
// FindOpen* возвращают models.ErrNotFound, если открытого назначения нет.
type DispatchRepository interface {
	Create(ctx context.Context, dispatch *models.Dispatch) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispatch, error)
	Update(ctx context.Context, dispatch *models.Dispatch) error
	FindOpenByUnit(ctx context.Context, unitID uuid.UUID) (*models.Dispatch, error)
	FindOpenByIncident(ctx context.Context, incidentID uuid.UUID) (*models.Dispatch, error)
	History(ctx context.Context, q models.HistoryQuery) ([]*models.Dispatch, error)
}

// Stores - хранилище координации: транзакции и три коллекции
type Stores struct {
	Tx         Transactor
	Incidents  IncidentRepository
	Units      UnitRepository
	Dispatches DispatchRepository
}
