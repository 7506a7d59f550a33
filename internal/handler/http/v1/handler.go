package v1

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/dispatch_coordination_system/internal/config"
	"github.com/shenikar/dispatch_coordination_system/internal/models"
	"github.com/shenikar/dispatch_coordination_system/internal/service"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	maxPage         = 1_000_000
)

// Services - зависимости обработчиков
type Services struct {
	Incidents   service.IncidentService
	Units       service.UnitService
	Ledger      service.DispatchLedger
	Coordinator service.Coordinator
	Board       service.BoardView
	Feeds       service.Feeds
}

type Handler struct {
	incidentService service.IncidentService
	unitService     service.UnitService
	ledger          service.DispatchLedger
	coordinator     service.Coordinator
	board           service.BoardView
	feeds           service.Feeds
	logger          *logrus.Logger
	validate        *validator.Validate
	cfg             *config.Config
	now             func() time.Time
}

func NewHandler(services Services, logger *logrus.Logger, cfg *config.Config) *Handler {
	validate := validator.New()
	validate.RegisterStructValidation(locationPairValidation, LocationDTO{})

	return &Handler{
		incidentService: services.Incidents,
		unitService:     services.Units,
		ledger:          services.Ledger,
		coordinator:     services.Coordinator,
		board:           services.Board,
		feeds:           services.Feeds,
		logger:          logger,
		validate:        validate,
		cfg:             cfg,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// bindJSON разбирает и валидирует тело запроса; при ошибке ответ уже записан
func (h *Handler) bindJSON(c *gin.Context, log *logrus.Entry, input any) bool {
	if err := c.ShouldBindJSON(input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func parseID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + what + " ID"})
		return uuid.Nil, false
	}
	return id, true
}

// queryList собирает значения параметра, переданные повтором и/или через запятую
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// incidentFilter строит фильтр списка инцидентов из query-параметров
func incidentFilter(c *gin.Context) (models.IncidentFilter, error) {
	filter := models.IncidentFilter{Search: c.Query("q")}
	for _, s := range queryList(c, "status") {
		status := models.IncidentStatus(s)
		if !status.Valid() {
			return filter, badQuery("status", s)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, p := range queryList(c, "priority") {
		priority := models.Priority(p)
		if !priority.Valid() {
			return filter, badQuery("priority", p)
		}
		filter.Priorities = append(filter.Priorities, priority)
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 || page > maxPage {
		return filter, badQuery("page", c.Query("page"))
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", strconv.Itoa(defaultPageSize)))
	if err != nil || pageSize < 1 {
		return filter, badQuery("pageSize", c.Query("pageSize"))
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize
	return filter, nil
}

// @Summary Create a new incident
// @Description Register an incoming emergency call. The incident starts as pending. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param incident body CreateIncidentRequest true "Incident creation request"
// @Success 201 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 503 {object} map[string]string "Store unavailable"
// @Router /incidents [post]
func (h *Handler) createIncident(c *gin.Context) {
	var input CreateIncidentRequest
	log := h.logger.WithField("method", "createIncident")

	if !h.bindJSON(c, log, &input) {
		return
	}

	model := DTOToIncidentModel(input)
	if err := h.incidentService.CreateIncident(c.Request.Context(), model); err != nil {
		respondError(c, log, err, "Failed to create incident in service")
		return
	}
	c.JSON(http.StatusCreated, ModelToIncidentResponse(model))
}

// @Summary Raise a patient panic signal
// @Description Create an incident from a patient panic signal. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param signal body PanicSignalRequest true "Panic signal"
// @Success 201 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 503 {object} map[string]string "Store unavailable"
// @Router /incidents/panic [post]
func (h *Handler) raisePanic(c *gin.Context) {
	var input PanicSignalRequest
	log := h.logger.WithField("method", "raisePanic")

	if !h.bindJSON(c, log, &input) {
		return
	}

	incident, err := h.incidentService.RaisePanic(c.Request.Context(), DTOToPanicSignal(input))
	if err != nil {
		respondError(c, log, err, "Failed to raise panic signal")
		return
	}
	c.JSON(http.StatusCreated, ModelToIncidentResponse(incident))
}

// @Summary Get a list of incidents
// @Description Get a filtered, paginated list of incidents, newest first. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "Comma separated statuses"
// @Param priority query string false "Comma separated priorities"
// @Param q query string false "Search by reporter, address or ID"
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Number of items per page" default(10)
// @Success 200 {array} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid query"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 503 {object} map[string]string "Store unavailable"
// @Router /incidents [get]
func (h *Handler) listIncidents(c *gin.Context) {
	log := h.logger.WithField("method", "listIncidents")

	filter, err := incidentFilter(c)
	if err != nil {
		respondError(c, log, err, "Invalid list query")
		return
	}

	incidents, err := h.incidentService.ListIncidents(c.Request.Context(), filter)
	if err != nil {
		respondError(c, log, err, "Failed to list incidents from service")
		return
	}
	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Get incident by ID
// @Description Get a single incident by its ID. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Router /incidents/{id} [get]
func (h *Handler) getIncident(c *gin.Context) {
	id, ok := parseID(c, "incident")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "getIncident").WithField("id", id)

	incident, err := h.incidentService.GetIncident(c.Request.Context(), id)
	if err != nil {
		respondError(c, log, err, "Failed to get incident from service")
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Change incident status
// @Description Move an incident along its lifecycle. completed and cancelled run the close and cancel workflows. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param status body IncidentStatusRequest true "Target status"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID or request body"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 409 {object} map[string]string "Transition not allowed"
// @Router /incidents/{id}/status [patch]
func (h *Handler) setIncidentStatus(c *gin.Context) {
	id, ok := parseID(c, "incident")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "setIncidentStatus").WithField("id", id)

	var input IncidentStatusRequest
	if !h.bindJSON(c, log, &input) {
		return
	}

	var (
		incident *models.Incident
		err      error
	)
	ctx := c.Request.Context()
	switch status := models.IncidentStatus(input.Status); status {
	case models.IncidentCompleted:
		incident, err = h.coordinator.CloseIncident(ctx, id)
	case models.IncidentCancelled:
		incident, err = h.coordinator.CancelIncident(ctx, id)
	default:
		incident, err = h.incidentService.SetStatus(ctx, id, status)
	}
	if err != nil {
		respondError(c, log, err, "Failed to change incident status")
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Change incident priority
// @Description Change the triage priority of an incident. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param priority body IncidentPriorityRequest true "New priority"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID or request body"
// @Failure 404 {object} map[string]string "Incident not found"
// @Router /incidents/{id}/priority [patch]
func (h *Handler) setIncidentPriority(c *gin.Context) {
	id, ok := parseID(c, "incident")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "setIncidentPriority").WithField("id", id)

	var input IncidentPriorityRequest
	if !h.bindJSON(c, log, &input) {
		return
	}

	incident, err := h.incidentService.SetPriority(c.Request.Context(), id, models.Priority(input.Priority))
	if err != nil {
		respondError(c, log, err, "Failed to change incident priority")
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Close an incident
// @Description Complete the incident, its open dispatch and release the unit and reserved equipment. Requires API key.
// @Tags Incidents
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 409 {object} map[string]string "Incident already terminal"
// @Router /incidents/{id}/close [post]
func (h *Handler) closeIncident(c *gin.Context) {
	id, ok := parseID(c, "incident")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "closeIncident").WithField("id", id)

	incident, err := h.coordinator.CloseIncident(c.Request.Context(), id)
	if err != nil {
		respondError(c, log, err, "Failed to close incident")
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Cancel an incident
// @Description Cancel the incident, complete its open dispatch and release the unit and reserved equipment. Requires API key.
// @Tags Incidents
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 409 {object} map[string]string "Incident already terminal"
// @Router /incidents/{id}/cancel [post]
func (h *Handler) cancelIncident(c *gin.Context) {
	id, ok := parseID(c, "incident")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "cancelIncident").WithField("id", id)

	incident, err := h.coordinator.CancelIncident(c.Request.Context(), id)
	if err != nil {
		respondError(c, log, err, "Failed to cancel incident")
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Get dispatch history of an incident
// @Description Get all dispatches of an incident, newest first. Requires API key.
// @Tags Incidents
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {array} DispatchResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Router /incidents/{id}/dispatches [get]
func (h *Handler) incidentDispatches(c *gin.Context) {
	id, ok := parseID(c, "incident")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "incidentDispatches").WithField("id", id)

	dispatches, err := h.ledger.History(c.Request.Context(), models.HistoryQuery{IncidentID: &id})
	if err != nil {
		respondError(c, log, err, "Failed to get incident dispatch history")
		return
	}
	c.JSON(http.StatusOK, ModelsToDispatchResponses(dispatches, h.now()))
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
