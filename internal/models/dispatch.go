package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type DispatchStatus string

const (
	DispatchEnRoute      DispatchStatus = "en_route"
	DispatchOnScene      DispatchStatus = "on_scene"
	DispatchTransporting DispatchStatus = "transporting"
	DispatchCompleted    DispatchStatus = "completed"
)

var DispatchStatuses = []DispatchStatus{
	DispatchEnRoute, DispatchOnScene, DispatchTransporting, DispatchCompleted,
}

func (s DispatchStatus) Valid() bool {
	for _, v := range DispatchStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Dispatch - назначение одной машины на один инцидент на один цикл реагирования
type Dispatch struct {
	ID               uuid.UUID      `json:"id"`
	UnitID           uuid.UUID      `json:"unit_id"`
	IncidentID       uuid.UUID      `json:"incident_id"`
	Status           DispatchStatus `json:"status"`
	DispatchedAt     time.Time      `json:"dispatched_at"`
	EstimatedArrival time.Time      `json:"estimated_arrival"`
	ArrivedAt        *time.Time     `json:"arrived_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	Version          int64          `json:"version"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Open - назначение еще не завершено
func (d *Dispatch) Open() bool {
	return d.Status != DispatchCompleted
}

func (d *Dispatch) Clone() *Dispatch {
	out := *d
	if d.ArrivedAt != nil {
		t := *d.ArrivedAt
		out.ArrivedAt = &t
	}
	if d.CompletedAt != nil {
		t := *d.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// HistoryQuery выбирает историю назначений по машине или по инциденту
type HistoryQuery struct {
	UnitID     *uuid.UUID
	IncidentID *uuid.UUID
}

func (q HistoryQuery) Match(d *Dispatch) bool {
	if q.UnitID != nil && d.UnitID != *q.UnitID {
		return false
	}
	if q.IncidentID != nil && d.IncidentID != *q.IncidentID {
		return false
	}
	return true
}

// SortDispatches сортирует назначения по времени отправки, новые первыми
func SortDispatches(dispatches []*Dispatch) {
	sort.SliceStable(dispatches, func(a, b int) bool {
		if dispatches[a].DispatchedAt.Equal(dispatches[b].DispatchedAt) {
			return dispatches[a].ID.String() < dispatches[b].ID.String()
		}
		return dispatches[a].DispatchedAt.After(dispatches[b].DispatchedAt)
	})
}
