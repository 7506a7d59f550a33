package v1

import (
	"time"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
	"github.com/shenikar/dispatch_coordination_system/internal/service"
)

// DTOToLocation преобразует DTO местоположения в доменную модель
func DTOToLocation(dto LocationDTO) models.Location {
	loc := models.Location{Address: dto.Address}
	if dto.Latitude != nil && dto.Longitude != nil {
		loc.Coordinates = &models.Coordinates{Latitude: *dto.Latitude, Longitude: *dto.Longitude}
	}
	return loc
}

func LocationToDTO(loc models.Location) LocationDTO {
	dto := LocationDTO{Address: loc.Address}
	if c := loc.Coordinates; c != nil {
		lat, lon := c.Latitude, c.Longitude
		dto.Latitude, dto.Longitude = &lat, &lon
	}
	return dto
}

// DTOToIncidentModel преобразует DTO создания в доменную модель
func DTOToIncidentModel(dto CreateIncidentRequest) *models.Incident {
	return &models.Incident{
		ReporterName:  dto.ReporterName,
		ReporterPhone: dto.ReporterPhone,
		ReporterAge:   dto.ReporterAge,
		Description:   dto.Description,
		Type:          dto.Type,
		Priority:      models.Priority(dto.Priority),
		Location:      DTOToLocation(dto.Location),
	}
}

func DTOToPanicSignal(dto PanicSignalRequest) models.PanicSignal {
	return models.PanicSignal{
		ReporterName:  dto.ReporterName,
		ReporterPhone: dto.ReporterPhone,
		ReporterAge:   dto.ReporterAge,
		Description:   dto.Description,
		Priority:      models.Priority(dto.Priority),
		Location:      DTOToLocation(dto.Location),
	}
}

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	return &IncidentResponse{
		ID:            model.ID,
		ReporterName:  model.ReporterName,
		ReporterPhone: model.ReporterPhone,
		ReporterAge:   model.ReporterAge,
		Description:   model.Description,
		Type:          model.Type,
		Origin:        string(model.Origin),
		Priority:      string(model.Priority),
		Status:        string(model.Status),
		Location:      LocationToDTO(model.Location),
		Version:       model.Version,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(incidents []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(incidents))
	for i, model := range incidents {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}

func DTOToUnitModel(dto RegisterUnitRequest) *models.Unit {
	unit := &models.Unit{
		CallSign:     dto.CallSign,
		VehicleClass: models.VehicleClass(dto.VehicleClass),
		Crew:         dto.Crew,
		Location:     DTOToLocation(dto.Location),
	}
	for _, name := range dto.Equipment {
		unit.Equipment = append(unit.Equipment, models.EquipmentItem{Name: name})
	}
	if dto.FuelLevel != nil {
		unit.FuelLevel = *dto.FuelLevel
	}
	return unit
}

func DTOToUnitPatch(dto UpdateUnitRequest) models.UnitPatch {
	patch := models.UnitPatch{
		CallSign:  dto.CallSign,
		Crew:      dto.Crew,
		Equipment: dto.Equipment,
		FuelLevel: dto.FuelLevel,
	}
	if dto.VehicleClass != nil {
		class := models.VehicleClass(*dto.VehicleClass)
		patch.VehicleClass = &class
	}
	if dto.Location != nil {
		loc := DTOToLocation(*dto.Location)
		patch.Location = &loc
	}
	return patch
}

func ModelToUnitResponse(model *models.Unit) *UnitResponse {
	equipment := make([]EquipmentItemResponse, len(model.Equipment))
	for i, item := range model.Equipment {
		equipment[i] = EquipmentItemResponse{Name: item.Name, ReservedFor: item.ReservedFor}
	}
	return &UnitResponse{
		ID:                model.ID,
		CallSign:          model.CallSign,
		VehicleClass:      string(model.VehicleClass),
		Crew:              model.Crew,
		Equipment:         equipment,
		FuelLevel:         model.FuelLevel,
		Location:          LocationToDTO(model.Location),
		Status:            string(model.Status),
		CurrentIncidentID: model.CurrentIncidentID,
		CallCount:         model.CallCount,
		Version:           model.Version,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
}

func ModelsToUnitResponses(units []*models.Unit) []*UnitResponse {
	responses := make([]*UnitResponse, len(units))
	for i, model := range units {
		responses[i] = ModelToUnitResponse(model)
	}
	return responses
}

// ModelToDispatchResponse преобразует назначение в DTO; ETA считается на момент now
func ModelToDispatchResponse(model *models.Dispatch, now time.Time) *DispatchResponse {
	return &DispatchResponse{
		ID:               model.ID,
		UnitID:           model.UnitID,
		IncidentID:       model.IncidentID,
		Status:           string(model.Status),
		DispatchedAt:     model.DispatchedAt,
		EstimatedArrival: model.EstimatedArrival,
		ETASeconds:       int64(service.ETA(model, now).Seconds()),
		ArrivedAt:        model.ArrivedAt,
		CompletedAt:      model.CompletedAt,
		Version:          model.Version,
	}
}

func ModelsToDispatchResponses(dispatches []*models.Dispatch, now time.Time) []*DispatchResponse {
	responses := make([]*DispatchResponse, len(dispatches))
	for i, model := range dispatches {
		responses[i] = ModelToDispatchResponse(model, now)
	}
	return responses
}

func SummaryToBoardResponse(s models.BoardSummary) *BoardResponse {
	return &BoardResponse{
		IncidentsByStatus:   s.IncidentsByStatus,
		IncidentsByPriority: s.IncidentsByPriority,
		UnitsByStatus:       s.UnitsByStatus,
		OpenDispatches:      s.OpenDispatches,
		Seq:                 s.Seq,
	}
}
