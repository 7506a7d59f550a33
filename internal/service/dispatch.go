package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/dispatch_coordination_system/internal/config"
	"github.com/shenikar/dispatch_coordination_system/internal/models"
	"github.com/shenikar/dispatch_coordination_system/internal/statemachine"
)

// DispatchLedger ведет журнал назначений. Open и Advance меняют только запись
// назначения и вызываются внутри транзакций Coordinator.
type DispatchLedger interface {
	Open(ctx context.Context, unitID, incidentID uuid.UUID) (*models.Dispatch, error)
	Advance(ctx context.Context, id uuid.UUID, status models.DispatchStatus) (*models.Dispatch, bool, error)
	GetDispatch(ctx context.Context, id uuid.UUID) (*models.Dispatch, error)
	OpenForUnit(ctx context.Context, unitID uuid.UUID) (*models.Dispatch, error)
	OpenForIncident(ctx context.Context, incidentID uuid.UUID) (*models.Dispatch, error)
	History(ctx context.Context, q models.HistoryQuery) ([]*models.Dispatch, error)
}

type dispatchLedger struct {
	stores  Stores
	machine *statemachine.Machine[models.DispatchStatus]
	eta     time.Duration
	logger  *logrus.Logger
	now     func() time.Time
}

func NewDispatchLedger(stores Stores, logger *logrus.Logger, cfg *config.Config) DispatchLedger {
	eta := cfg.DispatchDefaultETA
	if eta <= 0 {
		eta = 15 * time.Minute
	}
	return &dispatchLedger{
		stores:  stores,
		machine: statemachine.NewDispatchMachine(),
		eta:     eta,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ETA возвращает время до расчетного прибытия; после прибытия или просрочки - ноль
func ETA(d *models.Dispatch, now time.Time) time.Duration {
	if d.ArrivedAt != nil || !d.Open() {
		return 0
	}
	if left := d.EstimatedArrival.Sub(now); left > 0 {
		return left
	}
	return 0
}

// Open открывает назначение en_route с расчетным прибытием now + ETA по умолчанию
func (l *dispatchLedger) Open(ctx context.Context, unitID, incidentID uuid.UUID) (*models.Dispatch, error) {
	var dispatch *models.Dispatch
	err := l.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if open, err := optional(l.stores.Dispatches.FindOpenByUnit(ctx, unitID)); err != nil {
			return err
		} else if open != nil {
			return fmt.Errorf("%w: unit %s already has open dispatch %s", models.ErrPreconditionFailed, unitID, open.ID)
		}
		if open, err := optional(l.stores.Dispatches.FindOpenByIncident(ctx, incidentID)); err != nil {
			return err
		} else if open != nil {
			return fmt.Errorf("%w: incident %s already has open dispatch %s", models.ErrPreconditionFailed, incidentID, open.ID)
		}

		now := l.now()
		d := &models.Dispatch{
			UnitID:           unitID,
			IncidentID:       incidentID,
			Status:           models.DispatchEnRoute,
			DispatchedAt:     now,
			EstimatedArrival: now.Add(l.eta),
			UpdatedAt:        now,
		}
		if err := l.stores.Dispatches.Create(ctx, d); err != nil {
			return err
		}
		dispatch = d
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: could not open dispatch: %w", err)
	}
	return dispatch, nil
}

// Advance продвигает назначение по таблице переходов. Повтор текущего статуса
// ничего не пишет и возвращает changed=false.
func (l *dispatchLedger) Advance(ctx context.Context, id uuid.UUID, status models.DispatchStatus) (*models.Dispatch, bool, error) {
	if !status.Valid() {
		return nil, false, fmt.Errorf("ledger: could not advance dispatch: %w: unknown dispatch status %q", models.ErrValidation, status)
	}
	var (
		dispatch *models.Dispatch
		changed  bool
	)
	err := l.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		d, err := l.stores.Dispatches.GetByID(ctx, id)
		if err != nil {
			return err
		}
		dispatch = d
		if d.Status == status {
			return nil
		}
		if !d.Open() {
			return fmt.Errorf("%w: dispatch %s is already completed", models.ErrPreconditionFailed, id)
		}
		if err := l.machine.Transition(ctx, d.Status, status, d, l.now()); err != nil {
			return err
		}
		if err := l.stores.Dispatches.Update(ctx, d); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("ledger: could not advance dispatch: %w", err)
	}
	return dispatch, changed, nil
}

func (l *dispatchLedger) GetDispatch(ctx context.Context, id uuid.UUID) (*models.Dispatch, error) {
	d, err := l.stores.Dispatches.GetByID(ctx, id)
	if err != nil {
		logFailure(l.logger.WithFields(logrus.Fields{"service": "ledger", "method": "GetDispatch", "dispatch_id": id}), err, "Failed to get dispatch")
		return nil, fmt.Errorf("ledger: could not get dispatch: %w", err)
	}
	return d, nil
}

// OpenForUnit возвращает открытое назначение машины или models.ErrNotFound
func (l *dispatchLedger) OpenForUnit(ctx context.Context, unitID uuid.UUID) (*models.Dispatch, error) {
	d, err := l.stores.Dispatches.FindOpenByUnit(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("ledger: could not find open dispatch for unit %s: %w", unitID, err)
	}
	return d, nil
}

// OpenForIncident возвращает открытое назначение инцидента или models.ErrNotFound
func (l *dispatchLedger) OpenForIncident(ctx context.Context, incidentID uuid.UUID) (*models.Dispatch, error) {
	d, err := l.stores.Dispatches.FindOpenByIncident(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("ledger: could not find open dispatch for incident %s: %w", incidentID, err)
	}
	return d, nil
}

// History возвращает все назначения машины или инцидента, новые первыми
func (l *dispatchLedger) History(ctx context.Context, q models.HistoryQuery) ([]*models.Dispatch, error) {
	log := l.logger.WithFields(logrus.Fields{
		"service": "ledger",
		"method":  "History",
	})
	if q.UnitID == nil && q.IncidentID == nil {
		err := fmt.Errorf("%w: unit or incident is required", models.ErrValidation)
		log.WithError(err).Warn("History query rejected")
		return nil, fmt.Errorf("ledger: could not load history: %w", err)
	}
	log.Debug("Fetching dispatch history")

	dispatches, err := l.stores.Dispatches.History(ctx, q)
	if err != nil {
		logFailure(log, err, "Failed to load dispatch history")
		return nil, fmt.Errorf("ledger: could not load history: %w", err)
	}
	return dispatches, nil
}

// optional превращает models.ErrNotFound в отсутствие открытого назначения
func optional(d *models.Dispatch, err error) (*models.Dispatch, error) {
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return d, err
}
