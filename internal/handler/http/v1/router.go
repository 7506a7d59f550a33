package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Health-check доступен без ключа
	api.GET("/system/health", h.healthCheck)

	protected := api.Group("")
	if len(h.cfg.APIKeys) > 0 {
		protected.Use(APIKeyAuthMiddleware(h.cfg, h.logger))
	}

	// Реестр инцидентов
	incidents := protected.Group("/incidents")
	{
		incidents.POST("", h.createIncident)
		incidents.GET("", h.listIncidents)
		incidents.POST("/panic", h.raisePanic)
		incidents.GET("/:id", h.getIncident)
		incidents.PATCH("/:id/status", h.setIncidentStatus)
		incidents.PATCH("/:id/priority", h.setIncidentPriority)
		incidents.POST("/:id/close", h.closeIncident)
		incidents.POST("/:id/cancel", h.cancelIncident)
		incidents.GET("/:id/dispatches", h.incidentDispatches)
	}

	// Реестр машин
	units := protected.Group("/units")
	{
		units.POST("", h.registerUnit)
		units.GET("", h.listUnits)
		units.GET("/:id", h.getUnit)
		units.PATCH("/:id", h.updateUnit)
		units.PATCH("/:id/status", h.setUnitStatus)
		units.DELETE("/:id", h.removeUnit)
		units.GET("/:id/dispatches", h.unitDispatches)
		units.POST("/:id/equipment/reserve", h.reserveEquipment)
		units.POST("/:id/equipment/release", h.releaseEquipment)
		units.POST("/:id/arrive", h.markArrived)
		units.POST("/:id/transport", h.markTransporting)
		units.POST("/:id/complete", h.completeCall)
	}

	dispatches := protected.Group("/dispatches")
	{
		dispatches.POST("", h.createDispatch)
		dispatches.GET("/:id", h.getDispatch)
		dispatches.POST("/:id/advance", h.advanceDispatch)
	}

	protected.GET("/board", h.boardSummary)
	protected.GET("/board/incidents", h.boardIncidents)
	protected.GET("/feed/:collection", h.streamFeed)
}
