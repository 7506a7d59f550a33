package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary Get dispatch board summary
// @Description Counters computed from the latest change feed snapshots. Requires API key.
// @Tags Board
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} BoardResponse
// @Router /board [get]
func (h *Handler) boardSummary(c *gin.Context) {
	c.JSON(http.StatusOK, SummaryToBoardResponse(h.board.Summary()))
}

// @Summary Get incidents from the board snapshot
// @Description Filter the cached incident snapshot without reading the store. Requires API key.
// @Tags Board
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "Comma separated statuses"
// @Param priority query string false "Comma separated priorities"
// @Param q query string false "Search by reporter, address or ID"
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Number of items per page" default(10)
// @Success 200 {array} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid query"
// @Router /board/incidents [get]
func (h *Handler) boardIncidents(c *gin.Context) {
	log := h.logger.WithField("method", "boardIncidents")

	filter, err := incidentFilter(c)
	if err != nil {
		respondError(c, log, err, "Invalid board query")
		return
	}
	c.JSON(http.StatusOK, ModelsToIncidentResponses(h.board.Incidents(filter)))
}
