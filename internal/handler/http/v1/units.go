package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

// @Summary Register a unit
// @Description Put an ambulance on the roster. The unit starts as available. Requires API key.
// @Tags Units
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param unit body RegisterUnitRequest true "Unit registration request"
// @Success 201 {object} UnitResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 409 {object} map[string]string "Call sign already taken"
// @Router /units [post]
func (h *Handler) registerUnit(c *gin.Context) {
	var input RegisterUnitRequest
	log := h.logger.WithField("method", "registerUnit")

	if !h.bindJSON(c, log, &input) {
		return
	}

	model := DTOToUnitModel(input)
	if err := h.unitService.RegisterUnit(c.Request.Context(), model); err != nil {
		respondError(c, log, err, "Failed to register unit in service")
		return
	}
	c.JSON(http.StatusCreated, ModelToUnitResponse(model))
}

// @Summary Get a list of units
// @Description Get units ordered by call sign. Requires API key.
// @Tags Units
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "Comma separated statuses"
// @Param q query string false "Search by call sign, address or ID"
// @Success 200 {array} UnitResponse
// @Failure 400 {object} map[string]string "Invalid query"
// @Router /units [get]
func (h *Handler) listUnits(c *gin.Context) {
	log := h.logger.WithField("method", "listUnits")

	filter := models.UnitFilter{Search: c.Query("q")}
	for _, s := range queryList(c, "status") {
		status := models.UnitStatus(s)
		if !status.Valid() {
			respondError(c, log, badQuery("status", s), "Invalid list query")
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	units, err := h.unitService.ListUnits(c.Request.Context(), filter)
	if err != nil {
		respondError(c, log, err, "Failed to list units from service")
		return
	}
	c.JSON(http.StatusOK, ModelsToUnitResponses(units))
}

// @Summary Get unit by ID
// @Tags Units
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Unit ID"
// @Success 200 {object} UnitResponse
// @Failure 400 {object} map[string]string "Invalid unit ID"
// @Failure 404 {object} map[string]string "Unit not found"
// @Router /units/{id} [get]
func (h *Handler) getUnit(c *gin.Context) {
	id, ok := parseID(c, "unit")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "getUnit").WithField("id", id)

	unit, err := h.unitService.GetUnit(c.Request.Context(), id)
	if err != nil {
		respondError(c, log, err, "Failed to get unit from service")
		return
	}
	c.JSON(http.StatusOK, ModelToUnitResponse(unit))
}

// @Summary Update unit details
// @Description Change call sign, crew, equipment, fuel or location. Omitted fields are kept. Requires API key.
// @Tags Units
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Unit ID"
// @Param unit body UpdateUnitRequest true "Unit update request"
// @Success 200 {object} UnitResponse
// @Failure 400 {object} map[string]string "Invalid unit ID or request body"
// @Failure 404 {object} map[string]string "Unit not found"
// @Failure 409 {object} map[string]string "Reserved equipment removed or conflict"
// @Router /units/{id} [patch]
func (h *Handler) updateUnit(c *gin.Context) {
	id, ok := parseID(c, "unit")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "updateUnit").WithField("id", id)

	var input UpdateUnitRequest
	if !h.bindJSON(c, log, &input) {
		return
	}

	unit, err := h.unitService.UpdateUnit(c.Request.Context(), id, DTOToUnitPatch(input))
	if err != nil {
		respondError(c, log, err, "Failed to update unit in service")
		return
	}
	c.JSON(http.StatusOK, ModelToUnitResponse(unit))
}

// @Summary Change unit status
// @Description Set unit status directly. Busy statuses require an incident reference. out_of_service is accepted from any status and closes the open dispatch. Requires API key.
// @Tags Units
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Unit ID"
// @Param status body UnitStatusRequest true "Target status"
// @Success 200 {object} UnitResponse
// @Failure 400 {object} map[string]string "Invalid unit ID or request body"
// @Failure 404 {object} map[string]string "Unit or incident not found"
// @Failure 409 {object} map[string]string "Transition not allowed"
// @Failure 422 {object} map[string]string "Missing incident reference"
// @Router /units/{id}/status [patch]
func (h *Handler) setUnitStatus(c *gin.Context) {
	id, ok := parseID(c, "unit")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "setUnitStatus").WithField("id", id)

	var input UnitStatusRequest
	if !h.bindJSON(c, log, &input) {
		return
	}

	var (
		unit *models.Unit
		err  error
	)
	ctx := c.Request.Context()
	switch status := models.UnitStatus(input.Status); status {
	case models.UnitOutOfService:
		unit, err = h.coordinator.TakeOutOfService(ctx, id)
	default:
		unit, err = h.unitService.SetStatus(ctx, id, status, input.IncidentID)
	}
	if err != nil {
		respondError(c, log, err, "Failed to change unit status")
		return
	}
	c.JSON(http.StatusOK, ModelToUnitResponse(unit))
}

// @Summary Remove a unit
// @Description Take an idle unit off the roster. Busy units and units with reserved equipment are rejected. Requires API key.
// @Tags Units
// @Security ApiKeyAuth
// @Param id path string true "Unit ID"
// @Success 204 "No Content"
// @Failure 404 {object} map[string]string "Unit not found"
// @Failure 409 {object} map[string]string "Unit is busy"
// @Router /units/{id} [delete]
func (h *Handler) removeUnit(c *gin.Context) {
	id, ok := parseID(c, "unit")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "removeUnit").WithField("id", id)

	if err := h.coordinator.RemoveUnit(c.Request.Context(), id); err != nil {
		respondError(c, log, err, "Failed to remove unit")
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Get dispatch history of a unit
// @Tags Units
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Unit ID"
// @Success 200 {array} DispatchResponse
// @Failure 400 {object} map[string]string "Invalid unit ID"
// @Router /units/{id}/dispatches [get]
func (h *Handler) unitDispatches(c *gin.Context) {
	id, ok := parseID(c, "unit")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "unitDispatches").WithField("id", id)

	dispatches, err := h.ledger.History(c.Request.Context(), models.HistoryQuery{UnitID: &id})
	if err != nil {
		respondError(c, log, err, "Failed to get unit dispatch history")
		return
	}
	c.JSON(http.StatusOK, ModelsToDispatchResponses(dispatches, h.now()))
}

// @Summary Reserve equipment
// @Description Reserve an equipment item of the unit for an active incident. Requires API key.
// @Tags Units
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Unit ID"
// @Param reservation body ReserveEquipmentRequest true "Item and incident"
// @Success 200 {object} UnitResponse
// @Failure 404 {object} map[string]string "Unit, incident or item not found"
// @Failure 409 {object} map[string]string "Item reserved for another incident"
// @Router /units/{id}/equipment/reserve [post]
func (h *Handler) reserveEquipment(c *gin.Context) {
	id, ok := parseID(c, "unit")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "reserveEquipment").WithField("id", id)

	var input ReserveEquipmentRequest
	if !h.bindJSON(c, log, &input) {
		return
	}

	unit, err := h.coordinator.ReserveEquipment(c.Request.Context(), id, input.Item, input.IncidentID)
	if err != nil {
		respondError(c, log, err, "Failed to reserve equipment")
		return
	}
	c.JSON(http.StatusOK, ModelToUnitResponse(unit))
}

// @Summary Release equipment
// @Tags Units
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Unit ID"
// @Param release body ReleaseEquipmentRequest true "Item"
// @Success 200 {object} UnitResponse
// @Failure 404 {object} map[string]string "Unit or item not found"
// @Failure 409 {object} map[string]string "Item is not reserved"
// @Router /units/{id}/equipment/release [post]
func (h *Handler) releaseEquipment(c *gin.Context) {
	id, ok := parseID(c, "unit")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "releaseEquipment").WithField("id", id)

	var input ReleaseEquipmentRequest
	if !h.bindJSON(c, log, &input) {
		return
	}

	unit, err := h.coordinator.ReleaseEquipment(c.Request.Context(), id, input.Item)
	if err != nil {
		respondError(c, log, err, "Failed to release equipment")
		return
	}
	c.JSON(http.StatusOK, ModelToUnitResponse(unit))
}
