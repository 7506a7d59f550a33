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
	"github.com/shenikar/dispatch_coordination_system/internal/webhook"
)

const panicIncidentType = "sos"

// IncidentService определяет контракт для бизнес-логики реестра инцидентов
type IncidentService interface {
	CreateIncident(ctx context.Context, incident *models.Incident) error
	RaisePanic(ctx context.Context, signal models.PanicSignal) (*models.Incident, error)
	GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.IncidentStatus) (*models.Incident, error)
	SetPriority(ctx context.Context, id uuid.UUID, priority models.Priority) (*models.Incident, error)
	ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, error)
}

type incidentService struct {
	stores    Stores
	machine   *statemachine.Machine[models.IncidentStatus]
	runner    txRunner
	publisher webhook.WebhookPublisher
	logger    *logrus.Logger
	now       func() time.Time
}

func NewIncidentService(stores Stores, logger *logrus.Logger, cfg *config.Config, publisher webhook.WebhookPublisher) IncidentService {
	return &incidentService{
		stores:  stores,
		machine: statemachine.NewIncidentMachine(),
		runner: txRunner{
			tx:          stores.Tx,
			maxAttempts: cfg.WorkflowMaxAttempts,
			baseDelay:   cfg.WorkflowRetryDelay,
			retryable:   conflictOnly,
		},
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func validateIncident(incident *models.Incident) error {
	if strings.TrimSpace(incident.ReporterName) == "" {
		return fmt.Errorf("%w: reporter name is required", models.ErrValidation)
	}
	if incident.Location.IsZero() {
		return fmt.Errorf("%w: location is required", models.ErrValidation)
	}
	if c := incident.Location.Coordinates; c != nil && !c.Valid() {
		return fmt.Errorf("%w: coordinates out of range", models.ErrValidation)
	}
	if incident.Priority != "" && !incident.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", models.ErrValidation, incident.Priority)
	}
	return nil
}

// CreateIncident создает инцидент в статусе pending
func (s *incidentService) CreateIncident(ctx context.Context, incident *models.Incident) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "incident",
		"method":   "CreateIncident",
		"reporter": incident.ReporterName,
	})
	log.Info("Attempting to create a new incident")

	if err := validateIncident(incident); err != nil {
		log.WithError(err).Warn("Incident rejected")
		return fmt.Errorf("service: could not create incident: %w", err)
	}
	if incident.Priority == "" {
		incident.Priority = models.PriorityMedium
	}
	if incident.Origin == "" {
		incident.Origin = models.OriginOperator
	}
	incident.Status = models.IncidentPending
	incident.ID = uuid.Nil
	incident.CreatedAt = s.now()

	if err := s.stores.Incidents.Create(ctx, incident); err != nil {
		logFailure(log, err, "Failed to create incident in repository")
		return fmt.Errorf("service: could not create incident: %w", err)
	}

	log.WithField("incident_id", incident.ID).Info("Incident created successfully")
	s.notify(ctx, log, webhook.WebhookEvent{
		Type:       webhook.EventIncidentCreated,
		IncidentID: incident.ID.String(),
		Status:     string(incident.Status),
		Priority:   string(incident.Priority),
	})
	return nil
}

// RaisePanic создает инцидент из сигнала тревоги пациента
func (s *incidentService) RaisePanic(ctx context.Context, signal models.PanicSignal) (*models.Incident, error) {
	priority := signal.Priority
	if priority == "" {
		priority = models.PriorityHigh
	}
	description := signal.Description
	if description == "" {
		description = "Panic button pressed"
	}
	incident := &models.Incident{
		ReporterName:  signal.ReporterName,
		ReporterPhone: signal.ReporterPhone,
		ReporterAge:   signal.ReporterAge,
		Description:   description,
		Type:          panicIncidentType,
		Origin:        models.OriginPanic,
		Priority:      priority,
		Location:      signal.Location,
	}
	if err := s.CreateIncident(ctx, incident); err != nil {
		return nil, err
	}
	return incident, nil
}

// GetIncident получает инцидент по ID
func (s *incidentService) GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "GetIncident",
		"incident_id": id,
	})
	log.Debug("Fetching incident by ID")

	incident, err := s.stores.Incidents.GetByID(ctx, id)
	if err != nil {
		logFailure(log, err, "Failed to get incident in repository")
		return nil, fmt.Errorf("service: could not get incident: %w", err)
	}
	return incident, nil
}

// SetStatus переводит инцидент в новый статус по таблице переходов
func (s *incidentService) SetStatus(ctx context.Context, id uuid.UUID, status models.IncidentStatus) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "SetStatus",
		"incident_id": id,
		"status":      status,
	})
	log.Info("Attempting to change incident status")

	if !status.Valid() {
		err := fmt.Errorf("%w: unknown incident status %q", models.ErrValidation, status)
		log.WithError(err).Warn("Status change rejected")
		return nil, fmt.Errorf("service: could not set incident status: %w", err)
	}

	var updated *models.Incident
	err := s.runner.run(ctx, "incident_set_status", log, func(ctx context.Context) error {
		incident, err := s.stores.Incidents.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.machine.Transition(ctx, incident.Status, status, incident, s.now()); err != nil {
			return err
		}
		if status.Terminal() {
			if err := s.checkDetached(ctx, id); err != nil {
				return err
			}
		}
		if err := s.stores.Incidents.Update(ctx, incident); err != nil {
			return err
		}
		updated = incident
		return nil
	})
	if err != nil {
		logFailure(log, err, "Failed to change incident status")
		return nil, fmt.Errorf("service: could not set incident status: %w", err)
	}

	log.Info("Incident status changed successfully")
	s.notify(ctx, log, webhook.WebhookEvent{
		Type:       webhook.EventIncidentStatusChanged,
		IncidentID: id.String(),
		Status:     string(updated.Status),
		Priority:   string(updated.Priority),
	})
	return updated, nil
}

// checkDetached запрещает закрывать в реестре инцидент с открытым назначением
// или зарезервированным оборудованием: их снимает только процесс координации.
func (s *incidentService) checkDetached(ctx context.Context, id uuid.UUID) error {
	open, err := optional(s.stores.Dispatches.FindOpenByIncident(ctx, id))
	if err != nil {
		return err
	}
	if open != nil {
		return fmt.Errorf("%w: incident %s has open dispatch %s", models.ErrPreconditionFailed, id, open.ID)
	}
	units, err := s.stores.Units.List(ctx, models.UnitFilter{})
	if err != nil {
		return err
	}
	for _, u := range units {
		for _, item := range u.Equipment {
			if r := item.ReservedFor; r != nil && *r == id {
				return fmt.Errorf("%w: %q on unit %s is reserved for incident %s", models.ErrPreconditionFailed, item.Name, u.ID, id)
			}
		}
	}
	return nil
}

// SetPriority меняет приоритет независимо от статуса; у закрытых инцидентов приоритет заморожен
func (s *incidentService) SetPriority(ctx context.Context, id uuid.UUID, priority models.Priority) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "SetPriority",
		"incident_id": id,
		"priority":    priority,
	})
	log.Info("Attempting to change incident priority")

	if !priority.Valid() {
		err := fmt.Errorf("%w: unknown priority %q", models.ErrValidation, priority)
		log.WithError(err).Warn("Priority change rejected")
		return nil, fmt.Errorf("service: could not set incident priority: %w", err)
	}

	var updated *models.Incident
	err := s.runner.run(ctx, "incident_set_priority", log, func(ctx context.Context) error {
		incident, err := s.stores.Incidents.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if incident.Status.Terminal() {
			return fmt.Errorf("%w: incident %s is %s", models.ErrPreconditionFailed, id, incident.Status)
		}
		if incident.Priority == priority {
			updated = incident
			return nil
		}
		incident.Priority = priority
		incident.UpdatedAt = s.now()
		if err := s.stores.Incidents.Update(ctx, incident); err != nil {
			return err
		}
		updated = incident
		return nil
	})
	if err != nil {
		logFailure(log, err, "Failed to change incident priority")
		return nil, fmt.Errorf("service: could not set incident priority: %w", err)
	}

	log.Info("Incident priority changed successfully")
	return updated, nil
}

// ListIncidents возвращает инциденты по фильтру, новые первыми
func (s *incidentService) ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "ListIncidents",
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
	log.Debug("Fetching list of incidents")

	incidents, err := s.stores.Incidents.List(ctx, filter)
	if err != nil {
		logFailure(log, err, "Failed to list incidents from repository")
		return nil, fmt.Errorf("service: could not list incidents: %w", err)
	}
	return incidents, nil
}

func (s *incidentService) notify(ctx context.Context, log *logrus.Entry, event webhook.WebhookEvent) {
	event.Timestamp = s.now()
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.WithError(err).Warn("Failed to publish webhook event")
	}
}
