package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/dispatch_coordination_system/internal/config"
	"github.com/shenikar/dispatch_coordination_system/internal/models"
	"github.com/shenikar/dispatch_coordination_system/internal/statemachine"
)

const defaultFuelLevel = 100

// UnitService определяет контракт реестра машин скорой помощи
type UnitService interface {
	RegisterUnit(ctx context.Context, unit *models.Unit) error
	GetUnit(ctx context.Context, id uuid.UUID) (*models.Unit, error)
	ListUnits(ctx context.Context, filter models.UnitFilter) ([]*models.Unit, error)
	UpdateUnit(ctx context.Context, id uuid.UUID, patch models.UnitPatch) (*models.Unit, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.UnitStatus, incidentRef *uuid.UUID) (*models.Unit, error)
	DeregisterUnit(ctx context.Context, id uuid.UUID) error
}

type unitService struct {
	stores  Stores
	machine *statemachine.Machine[models.UnitStatus]
	runner  txRunner
	logger  *logrus.Logger
	now     func() time.Time
}

func NewUnitService(stores Stores, logger *logrus.Logger, cfg *config.Config) UnitService {
	return &unitService{
		stores:  stores,
		machine: statemachine.NewUnitMachine(),
		runner: txRunner{
			tx:          stores.Tx,
			maxAttempts: cfg.WorkflowMaxAttempts,
			baseDelay:   cfg.WorkflowRetryDelay,
			retryable:   conflictOnly,
		},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func validateFuel(level int) error {
	if level < 0 || level > 100 {
		return fmt.Errorf("%w: fuel level %d out of range 0..100", models.ErrValidation, level)
	}
	return nil
}

func validateLocation(loc models.Location) error {
	if loc.IsZero() {
		return fmt.Errorf("%w: location is required", models.ErrValidation)
	}
	if c := loc.Coordinates; c != nil && !c.Valid() {
		return fmt.Errorf("%w: coordinates out of range", models.ErrValidation)
	}
	return nil
}

// RegisterUnit ставит машину на учет в статусе available
func (s *unitService) RegisterUnit(ctx context.Context, unit *models.Unit) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":   "unit",
		"method":    "RegisterUnit",
		"call_sign": unit.CallSign,
	})
	log.Info("Attempting to register a new unit")

	unit.CallSign = strings.TrimSpace(unit.CallSign)
	unit.Crew = cleanNames(unit.Crew)
	var err error
	switch {
	case unit.CallSign == "":
		err = fmt.Errorf("%w: call sign is required", models.ErrValidation)
	case len(unit.Crew) == 0:
		err = fmt.Errorf("%w: crew roster must not be empty", models.ErrValidation)
	case unit.VehicleClass != "" && !unit.VehicleClass.Valid():
		err = fmt.Errorf("%w: unknown vehicle class %q", models.ErrValidation, unit.VehicleClass)
	default:
		err = validateLocation(unit.Location)
	}
	if err == nil && unit.FuelLevel != 0 {
		err = validateFuel(unit.FuelLevel)
	}
	if err != nil {
		log.WithError(err).Warn("Unit rejected")
		return fmt.Errorf("service: could not register unit: %w", err)
	}

	if unit.VehicleClass == "" {
		unit.VehicleClass = models.VehicleBasic
	}
	if unit.FuelLevel == 0 {
		unit.FuelLevel = defaultFuelLevel
	}
	for i := range unit.Equipment {
		unit.Equipment[i].ReservedFor = nil
	}
	if unit.Equipment == nil {
		unit.Equipment = []models.EquipmentItem{}
	}
	unit.ID = uuid.Nil
	unit.Status = models.UnitAvailable
	unit.CurrentIncidentID = nil
	unit.CallCount = 0
	unit.CreatedAt = s.now()

	if err := s.stores.Units.Create(ctx, unit); err != nil {
		logFailure(log, err, "Failed to create unit in repository")
		return fmt.Errorf("service: could not register unit: %w", err)
	}
	log.WithField("unit_id", unit.ID).Info("Unit registered successfully")
	return nil
}

func (s *unitService) GetUnit(ctx context.Context, id uuid.UUID) (*models.Unit, error) {
	unit, err := s.stores.Units.GetByID(ctx, id)
	if err != nil {
		logFailure(s.logger.WithFields(logrus.Fields{"service": "unit", "method": "GetUnit", "unit_id": id}), err, "Failed to get unit")
		return nil, fmt.Errorf("service: could not get unit: %w", err)
	}
	return unit, nil
}

func (s *unitService) ListUnits(ctx context.Context, filter models.UnitFilter) ([]*models.Unit, error) {
	units, err := s.stores.Units.List(ctx, filter)
	if err != nil {
		logFailure(s.logger.WithFields(logrus.Fields{"service": "unit", "method": "ListUnits"}), err, "Failed to list units")
		return nil, fmt.Errorf("service: could not list units: %w", err)
	}
	return units, nil
}

// UpdateUnit меняет учетные данные и телеметрию машины. При замене списка
// оборудования резервы сохраняются за позициями, которые остались в списке.
func (s *unitService) UpdateUnit(ctx context.Context, id uuid.UUID, patch models.UnitPatch) (*models.Unit, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "unit",
		"method":  "UpdateUnit",
		"unit_id": id,
	})
	log.Info("Attempting to update unit")

	if err := validatePatch(patch); err != nil {
		log.WithError(err).Warn("Unit update rejected")
		return nil, fmt.Errorf("service: could not update unit: %w", err)
	}

	var updated *models.Unit
	err := s.runner.run(ctx, "unit_update", log, func(ctx context.Context) error {
		unit, err := s.stores.Units.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := applyPatch(unit, patch); err != nil {
			return err
		}
		unit.UpdatedAt = s.now()
		if err := s.stores.Units.Update(ctx, unit); err != nil {
			return err
		}
		updated = unit
		return nil
	})
	if err != nil {
		logFailure(log, err, "Failed to update unit")
		return nil, fmt.Errorf("service: could not update unit: %w", err)
	}
	log.Info("Unit updated successfully")
	return updated, nil
}

func validatePatch(patch models.UnitPatch) error {
	if patch.CallSign != nil && strings.TrimSpace(*patch.CallSign) == "" {
		return fmt.Errorf("%w: call sign must not be empty", models.ErrValidation)
	}
	if patch.VehicleClass != nil && !patch.VehicleClass.Valid() {
		return fmt.Errorf("%w: unknown vehicle class %q", models.ErrValidation, *patch.VehicleClass)
	}
	if patch.Crew != nil && len(cleanNames(patch.Crew)) == 0 {
		return fmt.Errorf("%w: crew roster must not be empty", models.ErrValidation)
	}
	if patch.FuelLevel != nil {
		if err := validateFuel(*patch.FuelLevel); err != nil {
			return err
		}
	}
	if patch.Location != nil {
		return validateLocation(*patch.Location)
	}
	return nil
}

func applyPatch(unit *models.Unit, patch models.UnitPatch) error {
	if patch.CallSign != nil {
		unit.CallSign = strings.TrimSpace(*patch.CallSign)
	}
	if patch.VehicleClass != nil {
		unit.VehicleClass = *patch.VehicleClass
	}
	if patch.Crew != nil {
		unit.Crew = cleanNames(patch.Crew)
	}
	if patch.Equipment != nil {
		next := &models.Unit{}
		for _, name := range cleanNames(patch.Equipment) {
			item := models.EquipmentItem{Name: name}
			if idx := unit.FindEquipment(name); idx >= 0 {
				item.ReservedFor = unit.Equipment[idx].ReservedFor
			}
			next.Equipment = append(next.Equipment, item)
		}
		for _, item := range unit.Equipment {
			if item.ReservedFor != nil && next.FindEquipment(item.Name) < 0 {
				return fmt.Errorf("%w: %q is reserved for incident %s", models.ErrPreconditionFailed, item.Name, *item.ReservedFor)
			}
		}
		if next.Equipment == nil {
			next.Equipment = []models.EquipmentItem{}
		}
		unit.Equipment = next.Equipment
	}
	if patch.FuelLevel != nil {
		unit.FuelLevel = *patch.FuelLevel
	}
	if patch.Location != nil {
		unit.Location = patch.Location.Clone()
	}
	return nil
}

// SetStatus переводит машину в новый статус. Занятые статусы требуют ссылку на
// инцидент; машину с открытым назначением нельзя вывести из цикла вызова в обход
// процесса координации (для поломки есть Coordinator.TakeOutOfService).
func (s *unitService) SetStatus(ctx context.Context, id uuid.UUID, status models.UnitStatus, incidentRef *uuid.UUID) (*models.Unit, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "unit",
		"method":  "SetStatus",
		"unit_id": id,
		"status":  status,
	})
	log.Info("Attempting to change unit status")

	if !status.Valid() {
		err := fmt.Errorf("%w: unknown unit status %q", models.ErrValidation, status)
		log.WithError(err).Warn("Status change rejected")
		return nil, fmt.Errorf("service: could not set unit status: %w", err)
	}

	var updated *models.Unit
	err := s.runner.run(ctx, "unit_set_status", log, func(ctx context.Context) error {
		unit, err := s.stores.Units.GetByID(ctx, id)
		if err != nil {
			return err
		}
		open, err := optional(s.stores.Dispatches.FindOpenByUnit(ctx, id))
		if err != nil {
			return err
		}
		if open != nil && !status.Busy() {
			return fmt.Errorf("%w: unit %s has open dispatch %s", models.ErrPreconditionFailed, id, open.ID)
		}

		if status.Busy() {
			ref := incidentRef
			if ref == nil {
				ref = unit.CurrentIncidentID
			}
			if ref != nil {
				if open != nil && open.IncidentID != *ref {
					return fmt.Errorf("%w: unit %s is dispatched to incident %s", models.ErrPreconditionFailed, id, open.IncidentID)
				}
				if _, err := s.stores.Incidents.GetByID(ctx, *ref); err != nil {
					return err
				}
				incidentID := *ref
				unit.CurrentIncidentID = &incidentID
			}
		}

		if err := s.machine.Transition(ctx, unit.Status, status, unit, s.now()); err != nil {
			return err
		}
		if err := s.stores.Units.Update(ctx, unit); err != nil {
			return err
		}
		updated = unit
		return nil
	})
	if err != nil {
		logFailure(log, err, "Failed to change unit status")
		return nil, fmt.Errorf("service: could not set unit status: %w", err)
	}
	log.Info("Unit status changed successfully")
	return updated, nil
}

// DeregisterUnit снимает машину с учета (жесткое удаление), только свободную и без открытого назначения
func (s *unitService) DeregisterUnit(ctx context.Context, id uuid.UUID) error {
	log := s.logger.WithFields(logrus.Fields{
		"service": "unit",
		"method":  "DeregisterUnit",
		"unit_id": id,
	})
	log.Info("Attempting to deregister unit")

	err := s.runner.run(ctx, "unit_deregister", log, func(ctx context.Context) error {
		return removeUnit(ctx, s.stores, id)
	})
	if err != nil {
		logFailure(log, err, "Failed to deregister unit")
		return fmt.Errorf("service: could not deregister unit: %w", err)
	}
	log.Info("Unit deregistered successfully")
	return nil
}

// removeUnit проверяет, что машина свободна, и удаляет ее в текущей транзакции
func removeUnit(ctx context.Context, stores Stores, id uuid.UUID) error {
	unit, err := stores.Units.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !unit.Status.Idle() {
		return fmt.Errorf("%w: unit %s is %s, expected available or out_of_service", models.ErrPreconditionFailed, id, unit.Status)
	}
	open, err := optional(stores.Dispatches.FindOpenByUnit(ctx, id))
	if err != nil {
		return err
	}
	if open != nil {
		return fmt.Errorf("%w: unit %s has open dispatch %s", models.ErrPreconditionFailed, id, open.ID)
	}
	for _, item := range unit.Equipment {
		if item.ReservedFor != nil {
			return fmt.Errorf("%w: unit %s has %q reserved for incident %s", models.ErrPreconditionFailed, id, item.Name, *item.ReservedFor)
		}
	}
	return stores.Units.Delete(ctx, id)
}
