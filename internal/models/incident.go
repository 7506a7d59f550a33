package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type IncidentStatus string

const (
	IncidentPending    IncidentStatus = "pending"
	IncidentAssigned   IncidentStatus = "assigned"
	IncidentInProgress IncidentStatus = "in_progress"
	IncidentCompleted  IncidentStatus = "completed"
	IncidentCancelled  IncidentStatus = "cancelled"
)

// IncidentStatuses - все статусы инцидента в порядке жизненного цикла
var IncidentStatuses = []IncidentStatus{
	IncidentPending, IncidentAssigned, IncidentInProgress, IncidentCompleted, IncidentCancelled,
}

func (s IncidentStatus) Valid() bool {
	for _, v := range IncidentStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal - из завершенного или отмененного статуса переходов нет
func (s IncidentStatus) Terminal() bool {
	return s == IncidentCompleted || s == IncidentCancelled
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if p == v {
			return true
		}
	}
	return false
}

// IncidentOrigin - источник, из которого был создан инцидент
type IncidentOrigin string

const (
	OriginOperator IncidentOrigin = "operator"
	OriginPanic    IncidentOrigin = "panic"
)

// Incident - экстренный вызов, объект процесса диспетчеризации
type Incident struct {
	ID            uuid.UUID      `json:"id"`
	ReporterName  string         `json:"reporter_name"`
	ReporterPhone string         `json:"reporter_phone,omitempty"`
	ReporterAge   *int           `json:"reporter_age,omitempty"`
	Description   string         `json:"description,omitempty"`
	Type          string         `json:"type,omitempty"`
	Origin        IncidentOrigin `json:"origin"`
	Priority      Priority       `json:"priority"`
	Status        IncidentStatus `json:"status"`
	Location      Location       `json:"location"`
	Version       int64          `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Clone возвращает глубокую копию инцидента
func (i *Incident) Clone() *Incident {
	out := *i
	out.Location = i.Location.Clone()
	if i.ReporterAge != nil {
		age := *i.ReporterAge
		out.ReporterAge = &age
	}
	return &out
}

// PanicSignal - сигнал тревоги от пациента, из которого создается инцидент
type PanicSignal struct {
	ReporterName  string
	ReporterPhone string
	ReporterAge   *int
	Description   string
	Priority      Priority
	Location      Location
}

// IncidentFilter - фильтр списка инцидентов
type IncidentFilter struct {
	Statuses   []IncidentStatus
	Priorities []Priority
	// Search - подстрока имени заявителя, адреса или ID (без учета регистра)
	Search string
	Limit  int
	Offset int
}

// Match проверяет инцидент на соответствие фильтру (без учета пагинации)
func (f IncidentFilter) Match(inc *Incident) bool {
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, inc.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, inc.Priority) {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Search))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(inc.ReporterName), q) ||
		strings.Contains(strings.ToLower(inc.Location.Address), q) ||
		strings.Contains(inc.ID.String(), q)
}

// Apply фильтрует, сортирует (новые первыми) и постранично режет полный снимок коллекции
func (f IncidentFilter) Apply(all []*Incident) []*Incident {
	out := make([]*Incident, 0, len(all))
	for _, inc := range all {
		if f.Match(inc) {
			out = append(out, inc)
		}
	}
	SortIncidents(out)
	return paginate(out, f.Limit, f.Offset)
}

// SortIncidents сортирует инциденты по времени создания, новые первыми
func SortIncidents(incidents []*Incident) {
	sort.SliceStable(incidents, func(a, b int) bool {
		if incidents[a].CreatedAt.Equal(incidents[b].CreatedAt) {
			return incidents[a].ID.String() < incidents[b].ID.String()
		}
		return incidents[a].CreatedAt.After(incidents[b].CreatedAt)
	})
}

func containsStatus(list []IncidentStatus, s IncidentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsPriority(list []Priority, p Priority) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
