package v1

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

// LocationDTO - адрес свободным текстом и/или пара координат.
// Координаты передаются только парой (см. locationPairValidation).
// @Description Местоположение: адрес и/или координаты
type LocationDTO struct {
	Address   string   `json:"address,omitempty" validate:"max=500"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

// CreateIncidentRequest DTO для создания инцидента
// @Description DTO для создания инцидента
type CreateIncidentRequest struct {
	ReporterName  string      `json:"reporter_name" validate:"required,min=2,max=255"`
	ReporterPhone string      `json:"reporter_phone,omitempty" validate:"max=32"`
	ReporterAge   *int        `json:"reporter_age,omitempty" validate:"omitempty,min=0,max=150"`
	Description   string      `json:"description,omitempty" validate:"max=2000"`
	Type          string      `json:"type,omitempty" validate:"max=64"`
	Priority      string      `json:"priority,omitempty" validate:"omitempty,oneof=low medium high critical"`
	Location      LocationDTO `json:"location"`
}

// PanicSignalRequest DTO сигнала тревоги пациента
// @Description DTO сигнала тревоги пациента
type PanicSignalRequest struct {
	ReporterName  string      `json:"reporter_name" validate:"required,min=2,max=255"`
	ReporterPhone string      `json:"reporter_phone,omitempty" validate:"max=32"`
	ReporterAge   *int        `json:"reporter_age,omitempty" validate:"omitempty,min=0,max=150"`
	Description   string      `json:"description,omitempty" validate:"max=2000"`
	Priority      string      `json:"priority,omitempty" validate:"omitempty,oneof=low medium high critical"`
	Location      LocationDTO `json:"location"`
}

// IncidentStatusRequest DTO для смены статуса инцидента
// @Description DTO для смены статуса инцидента
type IncidentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending assigned in_progress completed cancelled"`
}

// IncidentPriorityRequest DTO для смены приоритета инцидента
// @Description DTO для смены приоритета инцидента
type IncidentPriorityRequest struct {
	Priority string `json:"priority" validate:"required,oneof=low medium high critical"`
}

// IncidentResponse DTO для ответа с информацией об инциденте
// @Description DTO для ответа с информацией об инциденте
type IncidentResponse struct {
	ID            uuid.UUID   `json:"id"`
	ReporterName  string      `json:"reporter_name"`
	ReporterPhone string      `json:"reporter_phone,omitempty"`
	ReporterAge   *int        `json:"reporter_age,omitempty"`
	Description   string      `json:"description,omitempty"`
	Type          string      `json:"type,omitempty"`
	Origin        string      `json:"origin"`
	Priority      string      `json:"priority"`
	Status        string      `json:"status"`
	Location      LocationDTO `json:"location"`
	Version       int64       `json:"version"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// RegisterUnitRequest DTO для постановки машины на учет
// @Description DTO для постановки машины на учет
type RegisterUnitRequest struct {
	CallSign     string      `json:"call_sign" validate:"required,max=32"`
	VehicleClass string      `json:"vehicle_class,omitempty" validate:"omitempty,oneof=basic advanced"`
	Crew         []string    `json:"crew" validate:"required,min=1,dive,required,max=255"`
	Equipment    []string    `json:"equipment,omitempty" validate:"dive,required,max=255"`
	FuelLevel    *int        `json:"fuel_level,omitempty" validate:"omitempty,min=0,max=100"`
	Location     LocationDTO `json:"location"`
}

// UpdateUnitRequest DTO для изменения данных машины; отсутствующие поля не меняются
// @Description DTO для изменения данных машины
type UpdateUnitRequest struct {
	CallSign     *string      `json:"call_sign,omitempty" validate:"omitempty,min=1,max=32"`
	VehicleClass *string      `json:"vehicle_class,omitempty" validate:"omitempty,oneof=basic advanced"`
	Crew         []string     `json:"crew,omitempty" validate:"omitempty,min=1,dive,required,max=255"`
	Equipment    []string     `json:"equipment,omitempty" validate:"omitempty,dive,required,max=255"`
	FuelLevel    *int         `json:"fuel_level,omitempty" validate:"omitempty,min=0,max=100"`
	Location     *LocationDTO `json:"location,omitempty"`
}

// UnitStatusRequest DTO для смены статуса машины
// @Description DTO для смены статуса машины
type UnitStatusRequest struct {
	Status     string     `json:"status" validate:"required,oneof=available dispatched on_scene transporting out_of_service"`
	IncidentID *uuid.UUID `json:"incident_id,omitempty"`
}

// ReserveEquipmentRequest DTO для резервирования оборудования
// @Description DTO для резервирования оборудования
type ReserveEquipmentRequest struct {
	Item       string    `json:"item" validate:"required,max=255"`
	IncidentID uuid.UUID `json:"incident_id" validate:"required"`
}

// ReleaseEquipmentRequest DTO для снятия резерва оборудования
// @Description DTO для снятия резерва оборудования
type ReleaseEquipmentRequest struct {
	Item string `json:"item" validate:"required,max=255"`
}

// EquipmentItemResponse - позиция оборудования машины
type EquipmentItemResponse struct {
	Name        string     `json:"name"`
	ReservedFor *uuid.UUID `json:"reserved_for,omitempty"`
}

// UnitResponse DTO для ответа с информацией о машине
// @Description DTO для ответа с информацией о машине
type UnitResponse struct {
	ID                uuid.UUID               `json:"id"`
	CallSign          string                  `json:"call_sign"`
	VehicleClass      string                  `json:"vehicle_class"`
	Crew              []string                `json:"crew"`
	Equipment         []EquipmentItemResponse `json:"equipment"`
	FuelLevel         int                     `json:"fuel_level"`
	Location          LocationDTO             `json:"location"`
	Status            string                  `json:"status"`
	CurrentIncidentID *uuid.UUID              `json:"current_incident_id,omitempty"`
	CallCount         int                     `json:"call_count"`
	Version           int64                   `json:"version"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// DispatchRequest DTO для назначения машины на инцидент
// @Description DTO для назначения машины на инцидент
type DispatchRequest struct {
	UnitID     uuid.UUID `json:"unit_id" validate:"required"`
	IncidentID uuid.UUID `json:"incident_id" validate:"required"`
}

// AdvanceDispatchRequest DTO для продвижения назначения
// @Description DTO для продвижения назначения
type AdvanceDispatchRequest struct {
	Status string `json:"status" validate:"required,oneof=en_route on_scene transporting completed"`
}

// DispatchResponse DTO для ответа с информацией о назначении
// @Description DTO для ответа с информацией о назначении
type DispatchResponse struct {
	ID               uuid.UUID  `json:"id"`
	UnitID           uuid.UUID  `json:"unit_id"`
	IncidentID       uuid.UUID  `json:"incident_id"`
	Status           string     `json:"status"`
	DispatchedAt     time.Time  `json:"dispatched_at"`
	EstimatedArrival time.Time  `json:"estimated_arrival"`
	ETASeconds       int64      `json:"eta_seconds"`
	ArrivedAt        *time.Time `json:"arrived_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Version          int64      `json:"version"`
}

// BoardResponse DTO сводки для операторов
// @Description DTO сводки для операторов
type BoardResponse struct {
	IncidentsByStatus   map[models.IncidentStatus]int `json:"incidents_by_status"`
	IncidentsByPriority map[models.Priority]int       `json:"incidents_by_priority"`
	UnitsByStatus       map[models.UnitStatus]int     `json:"units_by_status"`
	OpenDispatches      int                           `json:"open_dispatches"`
	Seq                 map[models.Collection]uint64  `json:"seq"`
}

// locationPairValidation требует обе координаты или ни одной
func locationPairValidation(sl validator.StructLevel) {
	loc := sl.Current().Interface().(LocationDTO)
	switch {
	case loc.Latitude != nil && loc.Longitude == nil:
		sl.ReportError(loc.Longitude, "Longitude", "Longitude", "required_with", "Latitude")
	case loc.Latitude == nil && loc.Longitude != nil:
		sl.ReportError(loc.Latitude, "Latitude", "Latitude", "required_with", "Longitude")
	}
}
