package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type UnitStatus string

const (
	UnitAvailable    UnitStatus = "available"
	UnitDispatched   UnitStatus = "dispatched"
	UnitOnScene      UnitStatus = "on_scene"
	UnitTransporting UnitStatus = "transporting"
	UnitOutOfService UnitStatus = "out_of_service"
)

var UnitStatuses = []UnitStatus{
	UnitAvailable, UnitDispatched, UnitOnScene, UnitTransporting, UnitOutOfService,
}

func (s UnitStatus) Valid() bool {
	for _, v := range UnitStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Busy - машина обслуживает вызов и обязана ссылаться на инцидент
func (s UnitStatus) Busy() bool {
	return s == UnitDispatched || s == UnitOnScene || s == UnitTransporting
}

// Idle - машину можно снять с учета
func (s UnitStatus) Idle() bool {
	return s == UnitAvailable || s == UnitOutOfService
}

type VehicleClass string

const (
	VehicleBasic    VehicleClass = "basic"
	VehicleAdvanced VehicleClass = "advanced"
)

func (c VehicleClass) Valid() bool {
	return c == VehicleBasic || c == VehicleAdvanced
}

// EquipmentItem - позиция оборудования машины, может быть зарезервирована под инцидент
type EquipmentItem struct {
	Name        string     `json:"name"`
	ReservedFor *uuid.UUID `json:"reserved_for,omitempty"`
}

// Unit - машина скорой помощи с экипажем и оборудованием
type Unit struct {
	ID                uuid.UUID       `json:"id"`
	CallSign          string          `json:"call_sign"`
	VehicleClass      VehicleClass    `json:"vehicle_class"`
	Crew              []string        `json:"crew"`
	Equipment         []EquipmentItem `json:"equipment"`
	FuelLevel         int             `json:"fuel_level"`
	Location          Location        `json:"location"`
	Status            UnitStatus      `json:"status"`
	CurrentIncidentID *uuid.UUID      `json:"current_incident_id,omitempty"`
	CallCount         int             `json:"call_count"`
	Version           int64           `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// CheckReference проверяет инвариант: ссылка на инцидент задана тогда и только тогда,
// когда машина занята вызовом
func (u *Unit) CheckReference() error {
	switch {
	case u.Status.Busy() && u.CurrentIncidentID == nil:
		return fmt.Errorf("%w: unit %s is %s without incident", ErrMissingReference, u.ID, u.Status)
	case !u.Status.Busy() && u.CurrentIncidentID != nil:
		return fmt.Errorf("%w: unit %s is %s but references incident %s", ErrPreconditionFailed, u.ID, u.Status, *u.CurrentIncidentID)
	}
	return nil
}

// FindEquipment возвращает индекс позиции оборудования по имени или -1
func (u *Unit) FindEquipment(name string) int {
	for i, item := range u.Equipment {
		if strings.EqualFold(item.Name, name) {
			return i
		}
	}
	return -1
}

// ReleaseEquipmentFor снимает все резервы оборудования под инцидент, возвращает число снятых
func (u *Unit) ReleaseEquipmentFor(incidentID uuid.UUID) int {
	released := 0
	for i := range u.Equipment {
		if r := u.Equipment[i].ReservedFor; r != nil && *r == incidentID {
			u.Equipment[i].ReservedFor = nil
			released++
		}
	}
	return released
}

// ReleaseAllEquipment снимает все резервы оборудования машины
func (u *Unit) ReleaseAllEquipment() int {
	released := 0
	for i := range u.Equipment {
		if u.Equipment[i].ReservedFor != nil {
			u.Equipment[i].ReservedFor = nil
			released++
		}
	}
	return released
}

// Clone возвращает глубокую копию машины
func (u *Unit) Clone() *Unit {
	out := *u
	out.Location = u.Location.Clone()
	out.Crew = append([]string(nil), u.Crew...)
	out.Equipment = make([]EquipmentItem, len(u.Equipment))
	for i, item := range u.Equipment {
		out.Equipment[i] = EquipmentItem{Name: item.Name}
		if item.ReservedFor != nil {
			id := *item.ReservedFor
			out.Equipment[i].ReservedFor = &id
		}
	}
	if u.CurrentIncidentID != nil {
		id := *u.CurrentIncidentID
		out.CurrentIncidentID = &id
	}
	return &out
}

// UnitPatch - частичное обновление данных машины; nil-поля не меняются
type UnitPatch struct {
	CallSign     *string
	VehicleClass *VehicleClass
	Crew         []string
	Equipment    []string
	FuelLevel    *int
	Location     *Location
}

// UnitFilter - фильтр списка машин
type UnitFilter struct {
	Statuses []UnitStatus
	// Search - подстрока позывного или адреса
	Search string
}

func (f UnitFilter) Match(u *Unit) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if s == u.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	q := strings.ToLower(strings.TrimSpace(f.Search))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(u.CallSign), q) ||
		strings.Contains(strings.ToLower(u.Location.Address), q) ||
		strings.Contains(u.ID.String(), q)
}

// SortUnits сортирует машины по позывному
func SortUnits(units []*Unit) {
	sort.SliceStable(units, func(a, b int) bool {
		if units[a].CallSign == units[b].CallSign {
			return units[a].ID.String() < units[b].ID.String()
		}
		return units[a].CallSign < units[b].CallSign
	})
}
