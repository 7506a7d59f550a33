package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

// @Summary Dispatch a unit
// @Description Assign an available unit to a pending or assigned incident. Requires API key.
// @Tags Dispatches
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param dispatch body DispatchRequest true "Unit and incident"
// @Success 201 {object} DispatchResponse
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 404 {object} map[string]string "Unit or incident not found"
// @Failure 409 {object} map[string]string "Unit or incident not eligible"
// @Router /dispatches [post]
func (h *Handler) createDispatch(c *gin.Context) {
	var input DispatchRequest
	log := h.logger.WithField("method", "createDispatch")

	if !h.bindJSON(c, log, &input) {
		return
	}
	log = log.WithField("unit_id", input.UnitID).WithField("incident_id", input.IncidentID)

	dispatch, err := h.coordinator.Dispatch(c.Request.Context(), input.UnitID, input.IncidentID)
	if err != nil {
		respondError(c, log, err, "Failed to dispatch unit")
		return
	}
	c.JSON(http.StatusCreated, ModelToDispatchResponse(dispatch, h.now()))
}

// @Summary Get dispatch by ID
// @Tags Dispatches
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Dispatch ID"
// @Success 200 {object} DispatchResponse
// @Failure 400 {object} map[string]string "Invalid dispatch ID"
// @Failure 404 {object} map[string]string "Dispatch not found"
// @Router /dispatches/{id} [get]
func (h *Handler) getDispatch(c *gin.Context) {
	id, ok := parseID(c, "dispatch")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "getDispatch").WithField("id", id)

	dispatch, err := h.ledger.GetDispatch(c.Request.Context(), id)
	if err != nil {
		respondError(c, log, err, "Failed to get dispatch from ledger")
		return
	}
	c.JSON(http.StatusOK, ModelToDispatchResponse(dispatch, h.now()))
}

// @Summary Advance a dispatch
// @Description Move a dispatch forward. Repeating the current status is a no-op. Requires API key.
// @Tags Dispatches
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Dispatch ID"
// @Param status body AdvanceDispatchRequest true "Target status"
// @Success 200 {object} DispatchResponse
// @Failure 400 {object} map[string]string "Invalid dispatch ID or request body"
// @Failure 404 {object} map[string]string "Dispatch not found"
// @Failure 409 {object} map[string]string "Transition not allowed"
// @Router /dispatches/{id}/advance [post]
func (h *Handler) advanceDispatch(c *gin.Context) {
	id, ok := parseID(c, "dispatch")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "advanceDispatch").WithField("id", id)

	var input AdvanceDispatchRequest
	if !h.bindJSON(c, log, &input) {
		return
	}

	dispatch, err := h.coordinator.AdvanceDispatch(c.Request.Context(), id, models.DispatchStatus(input.Status))
	if err != nil {
		respondError(c, log, err, "Failed to advance dispatch")
		return
	}
	c.JSON(http.StatusOK, ModelToDispatchResponse(dispatch, h.now()))
}

// @Summary Report unit arrival
// @Description Move the open dispatch of the unit to on_scene. Requires API key.
// @Tags Dispatches
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Unit ID"
// @Success 200 {object} DispatchResponse
// @Failure 404 {object} map[string]string "Unit not found"
// @Failure 409 {object} map[string]string "Unit has no open dispatch"
// @Router /units/{id}/arrive [post]
func (h *Handler) markArrived(c *gin.Context) {
	h.unitAction(c, "markArrived", h.coordinator.MarkArrived)
}

// @Summary Report patient transport
// @Description Move the open dispatch of the unit to transporting. Requires API key.
// @Tags Dispatches
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Unit ID"
// @Success 200 {object} DispatchResponse
// @Failure 404 {object} map[string]string "Unit not found"
// @Failure 409 {object} map[string]string "Unit has no open dispatch"
// @Router /units/{id}/transport [post]
func (h *Handler) markTransporting(c *gin.Context) {
	h.unitAction(c, "markTransporting", h.coordinator.MarkTransporting)
}

// @Summary Complete the call
// @Description Complete the open dispatch of the unit and return the unit to service. Requires API key.
// @Tags Dispatches
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Unit ID"
// @Success 200 {object} DispatchResponse
// @Failure 404 {object} map[string]string "Unit not found"
// @Failure 409 {object} map[string]string "Unit has no open dispatch"
// @Router /units/{id}/complete [post]
func (h *Handler) completeCall(c *gin.Context) {
	h.unitAction(c, "completeCall", h.coordinator.CompleteCall)
}

func (h *Handler) unitAction(c *gin.Context, method string, action func(context.Context, uuid.UUID) (*models.Dispatch, error)) {
	id, ok := parseID(c, "unit")
	if !ok {
		return
	}
	log := h.logger.WithField("method", method).WithField("unit_id", id)

	dispatch, err := action(c.Request.Context(), id)
	if err != nil {
		respondError(c, log, err, "Failed to advance unit dispatch")
		return
	}
	c.JSON(http.StatusOK, ModelToDispatchResponse(dispatch, h.now()))
}
