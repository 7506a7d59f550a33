package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/dispatch_coordination_system/internal/config"
	"github.com/shenikar/dispatch_coordination_system/internal/models"
	"github.com/shenikar/dispatch_coordination_system/internal/statemachine"
	"github.com/shenikar/dispatch_coordination_system/internal/webhook"
)

// Coordinator - процесс координации, единственный компонент с записью в несколько
// коллекций. Каждое действие выполняется одной транзакцией: предусловия проверяются
// по чтению внутри нее, при гонке действие повторяется с новым чтением.
type Coordinator interface {
	Dispatch(ctx context.Context, unitID, incidentID uuid.UUID) (*models.Dispatch, error)
	AdvanceDispatch(ctx context.Context, dispatchID uuid.UUID, status models.DispatchStatus) (*models.Dispatch, error)
	MarkArrived(ctx context.Context, unitID uuid.UUID) (*models.Dispatch, error)
	MarkTransporting(ctx context.Context, unitID uuid.UUID) (*models.Dispatch, error)
	CompleteCall(ctx context.Context, unitID uuid.UUID) (*models.Dispatch, error)
	CloseIncident(ctx context.Context, incidentID uuid.UUID) (*models.Incident, error)
	CancelIncident(ctx context.Context, incidentID uuid.UUID) (*models.Incident, error)
	TakeOutOfService(ctx context.Context, unitID uuid.UUID) (*models.Unit, error)
	RemoveUnit(ctx context.Context, unitID uuid.UUID) error
	ReserveEquipment(ctx context.Context, unitID uuid.UUID, item string, incidentID uuid.UUID) (*models.Unit, error)
	ReleaseEquipment(ctx context.Context, unitID uuid.UUID, item string) (*models.Unit, error)
}

type coordinator struct {
	stores       Stores
	ledger       DispatchLedger
	incidents    *statemachine.Machine[models.IncidentStatus]
	units        *statemachine.Machine[models.UnitStatus]
	assignStatus models.IncidentStatus
	runner       txRunner
	publisher    webhook.WebhookPublisher
	logger       *logrus.Logger
	now          func() time.Time
}

func NewCoordinator(stores Stores, ledger DispatchLedger, publisher webhook.WebhookPublisher, logger *logrus.Logger, cfg *config.Config) Coordinator {
	assign := models.IncidentStatus(cfg.AssignIncidentStatus)
	if assign != models.IncidentAssigned {
		assign = models.IncidentInProgress
	}
	return &coordinator{
		stores:       stores,
		ledger:       ledger,
		incidents:    statemachine.NewIncidentMachine(),
		units:        statemachine.NewUnitMachine(),
		assignStatus: assign,
		runner: txRunner{
			tx:          stores.Tx,
			maxAttempts: cfg.WorkflowMaxAttempts,
			baseDelay:   cfg.WorkflowRetryDelay,
			retryable:   raceLike,
		},
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch назначает свободную машину на инцидент: машина -> dispatched со ссылкой
// на инцидент, инцидент -> статус назначения, открывается назначение en_route.
func (c *coordinator) Dispatch(ctx context.Context, unitID, incidentID uuid.UUID) (*models.Dispatch, error) {
	log := c.logger.WithFields(logrus.Fields{
		"service":     "coordinator",
		"method":      "Dispatch",
		"unit_id":     unitID,
		"incident_id": incidentID,
	})
	log.Info("Attempting to dispatch unit")

	var dispatch *models.Dispatch
	err := c.runner.run(ctx, "dispatch", log, func(ctx context.Context) error {
		unit, err := c.stores.Units.GetByID(ctx, unitID)
		if err != nil {
			return err
		}
		incident, err := c.stores.Incidents.GetByID(ctx, incidentID)
		if err != nil {
			return err
		}
		if unit.Status != models.UnitAvailable {
			return fmt.Errorf("%w: unit %s is %s, expected available", models.ErrPreconditionFailed, unitID, unit.Status)
		}
		if incident.Status != models.IncidentPending && incident.Status != models.IncidentAssigned {
			return fmt.Errorf("%w: incident %s is %s, expected pending or assigned", models.ErrPreconditionFailed, incidentID, incident.Status)
		}

		d, err := c.ledger.Open(ctx, unitID, incidentID)
		if err != nil {
			return err
		}

		now := c.now()
		ref := incidentID
		unit.CurrentIncidentID = &ref
		if err := c.units.Transition(ctx, unit.Status, models.UnitDispatched, unit, now); err != nil {
			return err
		}
		if err := c.stores.Units.Update(ctx, unit); err != nil {
			return err
		}

		if incident.Status != c.assignStatus {
			if err := c.incidents.Transition(ctx, incident.Status, c.assignStatus, incident, now); err != nil {
				return err
			}
			if err := c.stores.Incidents.Update(ctx, incident); err != nil {
				return err
			}
		}
		dispatch = d
		return nil
	})
	if err != nil {
		logFailure(log, err, "Failed to dispatch unit")
		return nil, fmt.Errorf("service: could not dispatch unit: %w", err)
	}

	log.WithField("dispatch_id", dispatch.ID).Info("Unit dispatched successfully")
	c.notify(ctx, log, webhook.WebhookEvent{
		Type:       webhook.EventDispatchOpened,
		IncidentID: incidentID.String(),
		UnitID:     unitID.String(),
		DispatchID: dispatch.ID.String(),
		Status:     string(dispatch.Status),
	})
	return dispatch, nil
}

// AdvanceDispatch продвигает назначение и отражает его на машине и инциденте.
// Повтор текущего статуса - пустая операция.
func (c *coordinator) AdvanceDispatch(ctx context.Context, dispatchID uuid.UUID, status models.DispatchStatus) (*models.Dispatch, error) {
	log := c.logger.WithFields(logrus.Fields{
		"service":     "coordinator",
		"method":      "AdvanceDispatch",
		"dispatch_id": dispatchID,
		"status":      status,
	})
	log.Info("Attempting to advance dispatch")

	if !status.Valid() {
		err := fmt.Errorf("%w: unknown dispatch status %q", models.ErrValidation, status)
		log.WithError(err).Warn("Advance rejected")
		return nil, fmt.Errorf("service: could not advance dispatch: %w", err)
	}

	var (
		dispatch *models.Dispatch
		changed  bool
	)
	err := c.runner.run(ctx, "advance_dispatch", log, func(ctx context.Context) error {
		d, err := c.stores.Dispatches.GetByID(ctx, dispatchID)
		if err != nil {
			return err
		}
		dispatch, changed, err = c.advance(ctx, d, status)
		return err
	})
	if err != nil {
		logFailure(log, err, "Failed to advance dispatch")
		return nil, fmt.Errorf("service: could not advance dispatch: %w", err)
	}
	c.advanced(ctx, log, dispatch, changed)
	return dispatch, nil
}

func (c *coordinator) MarkArrived(ctx context.Context, unitID uuid.UUID) (*models.Dispatch, error) {
	return c.advanceUnit(ctx, "MarkArrived", unitID, models.DispatchOnScene)
}

func (c *coordinator) MarkTransporting(ctx context.Context, unitID uuid.UUID) (*models.Dispatch, error) {
	return c.advanceUnit(ctx, "MarkTransporting", unitID, models.DispatchTransporting)
}

func (c *coordinator) CompleteCall(ctx context.Context, unitID uuid.UUID) (*models.Dispatch, error) {
	return c.advanceUnit(ctx, "CompleteCall", unitID, models.DispatchCompleted)
}

// advanceUnit продвигает открытое назначение машины
func (c *coordinator) advanceUnit(ctx context.Context, method string, unitID uuid.UUID, status models.DispatchStatus) (*models.Dispatch, error) {
	log := c.logger.WithFields(logrus.Fields{
		"service": "coordinator",
		"method":  method,
		"unit_id": unitID,
		"status":  status,
	})
	log.Info("Attempting to advance unit dispatch")

	var (
		dispatch *models.Dispatch
		changed  bool
	)
	err := c.runner.run(ctx, "advance_dispatch", log, func(ctx context.Context) error {
		if _, err := c.stores.Units.GetByID(ctx, unitID); err != nil {
			return err
		}
		d, err := optional(c.stores.Dispatches.FindOpenByUnit(ctx, unitID))
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("%w: unit %s has no open dispatch", models.ErrPreconditionFailed, unitID)
		}
		dispatch, changed, err = c.advance(ctx, d, status)
		return err
	})
	if err != nil {
		logFailure(log, err, "Failed to advance unit dispatch")
		return nil, fmt.Errorf("service: could not advance unit dispatch: %w", err)
	}
	c.advanced(ctx, log, dispatch, changed)
	return dispatch, nil
}

// advance выполняет продвижение внутри транзакции: назначение, затем машина и инцидент
func (c *coordinator) advance(ctx context.Context, d *models.Dispatch, status models.DispatchStatus) (*models.Dispatch, bool, error) {
	if d.Status == status {
		return d, false, nil
	}
	if !d.Open() {
		return nil, false, fmt.Errorf("%w: dispatch %s is already completed", models.ErrPreconditionFailed, d.ID)
	}

	updated, changed, err := c.ledger.Advance(ctx, d.ID, status)
	if err != nil || !changed {
		return updated, changed, err
	}

	now := c.now()
	unit, err := c.stores.Units.GetByID(ctx, d.UnitID)
	if err != nil {
		return nil, false, err
	}
	switch status {
	case models.DispatchOnScene, models.DispatchTransporting:
		target := models.UnitOnScene
		if status == models.DispatchTransporting {
			target = models.UnitTransporting
		}
		if unit.Status != target {
			if err := c.units.Transition(ctx, unit.Status, target, unit, now); err != nil {
				return nil, false, err
			}
			if err := c.stores.Units.Update(ctx, unit); err != nil {
				return nil, false, err
			}
		}
		if status == models.DispatchOnScene {
			if err := c.promoteIncident(ctx, d.IncidentID, now); err != nil {
				return nil, false, err
			}
		}
	case models.DispatchCompleted:
		if err := c.releaseUnit(ctx, unit, d.IncidentID, now); err != nil {
			return nil, false, err
		}
	}
	return updated, true, nil
}

// promoteIncident переводит назначенный инцидент в работу по прибытии машины
func (c *coordinator) promoteIncident(ctx context.Context, incidentID uuid.UUID, now time.Time) error {
	incident, err := c.stores.Incidents.GetByID(ctx, incidentID)
	if err != nil {
		return err
	}
	if incident.Status != models.IncidentAssigned {
		return nil
	}
	if err := c.incidents.Transition(ctx, incident.Status, models.IncidentInProgress, incident, now); err != nil {
		return err
	}
	return c.stores.Incidents.Update(ctx, incident)
}

// releaseUnit возвращает машину в available после завершенного вызова
func (c *coordinator) releaseUnit(ctx context.Context, unit *models.Unit, incidentID uuid.UUID, now time.Time) error {
	if unit.Status.Busy() {
		if err := c.units.Transition(ctx, unit.Status, models.UnitAvailable, unit, now); err != nil {
			return err
		}
	}
	unit.CallCount++
	unit.ReleaseEquipmentFor(incidentID)
	unit.UpdatedAt = now
	return c.stores.Units.Update(ctx, unit)
}

func (c *coordinator) advanced(ctx context.Context, log *logrus.Entry, d *models.Dispatch, changed bool) {
	if !changed {
		log.WithField("dispatch_id", d.ID).Info("Dispatch already in requested status, nothing to do")
		return
	}
	log.WithField("dispatch_id", d.ID).Info("Dispatch advanced successfully")
	c.notify(ctx, log, webhook.WebhookEvent{
		Type:       webhook.EventDispatchAdvanced,
		IncidentID: d.IncidentID.String(),
		UnitID:     d.UnitID.String(),
		DispatchID: d.ID.String(),
		Status:     string(d.Status),
	})
}

// CloseIncident завершает инцидент вместе с открытым назначением
func (c *coordinator) CloseIncident(ctx context.Context, incidentID uuid.UUID) (*models.Incident, error) {
	return c.finishIncident(ctx, "CloseIncident", incidentID, models.IncidentCompleted)
}

// CancelIncident отменяет инцидент вместе с открытым назначением
func (c *coordinator) CancelIncident(ctx context.Context, incidentID uuid.UUID) (*models.Incident, error) {
	return c.finishIncident(ctx, "CancelIncident", incidentID, models.IncidentCancelled)
}

func (c *coordinator) finishIncident(ctx context.Context, method string, incidentID uuid.UUID, target models.IncidentStatus) (*models.Incident, error) {
	log := c.logger.WithFields(logrus.Fields{
		"service":     "coordinator",
		"method":      method,
		"incident_id": incidentID,
	})
	log.Info("Attempting to finish incident")

	var (
		updated  *models.Incident
		released *models.Dispatch
	)
	err := c.runner.run(ctx, "finish_incident", log, func(ctx context.Context) error {
		released = nil
		incident, err := c.stores.Incidents.GetByID(ctx, incidentID)
		if err != nil {
			return err
		}
		if incident.Status.Terminal() {
			return fmt.Errorf("%w: incident %s is already %s", models.ErrInvalidTransition, incidentID, incident.Status)
		}

		now := c.now()
		open, err := optional(c.stores.Dispatches.FindOpenByIncident(ctx, incidentID))
		if err != nil {
			return err
		}
		if open != nil {
			d, _, err := c.ledger.Advance(ctx, open.ID, models.DispatchCompleted)
			if err != nil {
				return err
			}
			unit, err := c.stores.Units.GetByID(ctx, open.UnitID)
			if err != nil {
				return err
			}
			if err := c.releaseUnit(ctx, unit, incidentID, now); err != nil {
				return err
			}
			released = d
		}

		units, err := c.stores.Units.List(ctx, models.UnitFilter{})
		if err != nil {
			return err
		}
		for _, u := range units {
			if u.ReleaseEquipmentFor(incidentID) == 0 {
				continue
			}
			u.UpdatedAt = now
			if err := c.stores.Units.Update(ctx, u); err != nil {
				return err
			}
		}

		if err := c.incidents.Transition(ctx, incident.Status, target, incident, now); err != nil {
			return err
		}
		if err := c.stores.Incidents.Update(ctx, incident); err != nil {
			return err
		}
		updated = incident
		return nil
	})
	if err != nil {
		logFailure(log, err, "Failed to finish incident")
		return nil, fmt.Errorf("service: could not finish incident: %w", err)
	}

	log.WithField("status", updated.Status).Info("Incident finished successfully")
	if released != nil {
		c.advanced(ctx, log, released, true)
	}
	c.notify(ctx, log, webhook.WebhookEvent{
		Type:       webhook.EventIncidentStatusChanged,
		IncidentID: incidentID.String(),
		Status:     string(updated.Status),
		Priority:   string(updated.Priority),
	})
	return updated, nil
}

// TakeOutOfService выводит машину из эксплуатации из любого статуса (поломка).
// Открытое назначение машины завершается без учета вызова, резервы оборудования
// снимаются. Инцидент остается в текущем статусе.
func (c *coordinator) TakeOutOfService(ctx context.Context, unitID uuid.UUID) (*models.Unit, error) {
	log := c.logger.WithFields(logrus.Fields{
		"service": "coordinator",
		"method":  "TakeOutOfService",
		"unit_id": unitID,
	})
	log.Info("Attempting to take unit out of service")

	var (
		updated  *models.Unit
		released *models.Dispatch
	)
	err := c.runner.run(ctx, "take_out_of_service", log, func(ctx context.Context) error {
		released = nil
		unit, err := c.stores.Units.GetByID(ctx, unitID)
		if err != nil {
			return err
		}
		if unit.Status == models.UnitOutOfService {
			updated = unit
			return nil
		}

		open, err := optional(c.stores.Dispatches.FindOpenByUnit(ctx, unitID))
		if err != nil {
			return err
		}
		if open != nil {
			d, _, err := c.ledger.Advance(ctx, open.ID, models.DispatchCompleted)
			if err != nil {
				return err
			}
			released = d
		}

		now := c.now()
		unit.ReleaseAllEquipment()
		if err := c.units.Transition(ctx, unit.Status, models.UnitOutOfService, unit, now); err != nil {
			return err
		}
		if err := c.stores.Units.Update(ctx, unit); err != nil {
			return err
		}
		updated = unit
		return nil
	})
	if err != nil {
		logFailure(log, err, "Failed to take unit out of service")
		return nil, fmt.Errorf("service: could not take unit out of service: %w", err)
	}

	log.Info("Unit taken out of service")
	if released != nil {
		c.advanced(ctx, log, released, true)
	}
	c.notify(ctx, log, webhook.WebhookEvent{
		Type:   webhook.EventUnitOutOfService,
		UnitID: unitID.String(),
		Status: string(updated.Status),
	})
	return updated, nil
}

// RemoveUnit снимает машину с учета; занятую машину удалить нельзя
func (c *coordinator) RemoveUnit(ctx context.Context, unitID uuid.UUID) error {
	log := c.logger.WithFields(logrus.Fields{
		"service": "coordinator",
		"method":  "RemoveUnit",
		"unit_id": unitID,
	})
	log.Info("Attempting to remove unit")

	err := c.runner.run(ctx, "remove_unit", log, func(ctx context.Context) error {
		return removeUnit(ctx, c.stores, unitID)
	})
	if err != nil {
		logFailure(log, err, "Failed to remove unit")
		return fmt.Errorf("service: could not remove unit: %w", err)
	}

	log.Info("Unit removed successfully")
	c.notify(ctx, log, webhook.WebhookEvent{
		Type:   webhook.EventUnitRemoved,
		UnitID: unitID.String(),
	})
	return nil
}

// ReserveEquipment резервирует позицию оборудования машины под инцидент
func (c *coordinator) ReserveEquipment(ctx context.Context, unitID uuid.UUID, item string, incidentID uuid.UUID) (*models.Unit, error) {
	log := c.logger.WithFields(logrus.Fields{
		"service":     "coordinator",
		"method":      "ReserveEquipment",
		"unit_id":     unitID,
		"incident_id": incidentID,
		"item":        item,
	})
	log.Info("Attempting to reserve equipment")

	var updated *models.Unit
	err := c.runner.run(ctx, "reserve_equipment", log, func(ctx context.Context) error {
		unit, err := c.stores.Units.GetByID(ctx, unitID)
		if err != nil {
			return err
		}
		incident, err := c.stores.Incidents.GetByID(ctx, incidentID)
		if err != nil {
			return err
		}
		if incident.Status.Terminal() {
			return fmt.Errorf("%w: incident %s is %s", models.ErrPreconditionFailed, incidentID, incident.Status)
		}
		idx := unit.FindEquipment(item)
		if idx < 0 {
			return fmt.Errorf("%w: unit %s has no %q in its manifest", models.ErrNotFound, unitID, item)
		}
		if r := unit.Equipment[idx].ReservedFor; r != nil {
			if *r == incidentID {
				updated = unit
				return nil
			}
			return fmt.Errorf("%w: %q is already reserved for incident %s", models.ErrPreconditionFailed, item, *r)
		}
		ref := incidentID
		unit.Equipment[idx].ReservedFor = &ref
		unit.UpdatedAt = c.now()
		if err := c.stores.Units.Update(ctx, unit); err != nil {
			return err
		}
		updated = unit
		return nil
	})
	if err != nil {
		logFailure(log, err, "Failed to reserve equipment")
		return nil, fmt.Errorf("service: could not reserve equipment: %w", err)
	}
	log.Info("Equipment reserved successfully")
	return updated, nil
}

// ReleaseEquipment снимает резерв с позиции оборудования
func (c *coordinator) ReleaseEquipment(ctx context.Context, unitID uuid.UUID, item string) (*models.Unit, error) {
	log := c.logger.WithFields(logrus.Fields{
		"service": "coordinator",
		"method":  "ReleaseEquipment",
		"unit_id": unitID,
		"item":    item,
	})
	log.Info("Attempting to release equipment")

	var updated *models.Unit
	err := c.runner.run(ctx, "release_equipment", log, func(ctx context.Context) error {
		unit, err := c.stores.Units.GetByID(ctx, unitID)
		if err != nil {
			return err
		}
		idx := unit.FindEquipment(item)
		if idx < 0 {
			return fmt.Errorf("%w: unit %s has no %q in its manifest", models.ErrNotFound, unitID, item)
		}
		if unit.Equipment[idx].ReservedFor == nil {
			return fmt.Errorf("%w: %q is not reserved", models.ErrPreconditionFailed, item)
		}
		unit.Equipment[idx].ReservedFor = nil
		unit.UpdatedAt = c.now()
		if err := c.stores.Units.Update(ctx, unit); err != nil {
			return err
		}
		updated = unit
		return nil
	})
	if err != nil {
		logFailure(log, err, "Failed to release equipment")
		return nil, fmt.Errorf("service: could not release equipment: %w", err)
	}
	log.Info("Equipment released successfully")
	return updated, nil
}

func (c *coordinator) notify(ctx context.Context, log *logrus.Entry, event webhook.WebhookEvent) {
	event.Timestamp = c.now()
	if err := c.publisher.Publish(ctx, event); err != nil {
		log.WithError(err).Warn("Failed to publish webhook event")
	}
}
