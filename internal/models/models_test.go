package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUnitCheckReference(t *testing.T) {
	ref := uuid.New()
	tests := []struct {
		name    string
		status  UnitStatus
		ref     *uuid.UUID
		wantErr error
	}{
		{"available without reference", UnitAvailable, nil, nil},
		{"dispatched with reference", UnitDispatched, &ref, nil},
		{"on scene without reference", UnitOnScene, nil, ErrMissingReference},
		{"transporting without reference", UnitTransporting, nil, ErrMissingReference},
		{"out of service with reference", UnitOutOfService, &ref, ErrPreconditionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &Unit{ID: uuid.New(), Status: tt.status, CurrentIncidentID: tt.ref}
			err := u.CheckReference()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUnitEquipment(t *testing.T) {
	incidentID := uuid.New()
	other := uuid.New()
	u := &Unit{Equipment: []EquipmentItem{
		{Name: "Кислород", ReservedFor: &incidentID},
		{Name: "Носилки", ReservedFor: &other},
		{Name: "Шины", ReservedFor: &incidentID},
	}}

	assert.Equal(t, 1, u.FindEquipment("носилки"))
	assert.Equal(t, -1, u.FindEquipment("Дефибриллятор"))

	clone := u.Clone()
	assert.Equal(t, 2, u.ReleaseEquipmentFor(incidentID))
	assert.Nil(t, u.Equipment[0].ReservedFor)
	assert.NotNil(t, u.Equipment[1].ReservedFor)
	assert.NotNil(t, clone.Equipment[0].ReservedFor, "clone must not share reservations")
}

func TestIncidentFilterApply(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	incidents := []*Incident{
		{ID: uuid.New(), ReporterName: "Анна Смирнова", Status: IncidentPending, Priority: PriorityLow, CreatedAt: base},
		{ID: uuid.New(), ReporterName: "Петр Иванов", Status: IncidentInProgress, Priority: PriorityHigh, CreatedAt: base.Add(time.Minute),
			Location: Location{Address: "Невский пр., 1"}},
		{ID: uuid.New(), ReporterName: "Олег Кузнецов", Status: IncidentCompleted, Priority: PriorityHigh, CreatedAt: base.Add(2 * time.Minute)},
	}

	tests := []struct {
		name   string
		filter IncidentFilter
		want   []int
	}{
		{"all newest first", IncidentFilter{}, []int{2, 1, 0}},
		{"by status", IncidentFilter{Statuses: []IncidentStatus{IncidentPending, IncidentInProgress}}, []int{1, 0}},
		{"by priority", IncidentFilter{Priorities: []Priority{PriorityHigh}}, []int{2, 1}},
		{"search by address", IncidentFilter{Search: "невский"}, []int{1}},
		{"search by id", IncidentFilter{Search: incidents[0].ID.String()[:8]}, []int{0}},
		{"page", IncidentFilter{Limit: 1, Offset: 1}, []int{1}},
		{"offset past end", IncidentFilter{Offset: 5}, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(incidents)
			ids := make([]uuid.UUID, 0, len(got))
			for _, inc := range got {
				ids = append(ids, inc.ID)
			}
			want := make([]uuid.UUID, 0, len(tt.want))
			for _, i := range tt.want {
				want = append(want, incidents[i].ID)
			}
			assert.Equal(t, want, ids)
		})
	}
	assert.Equal(t, IncidentPending, incidents[0].Status, "input slice must not be reordered")
	assert.Equal(t, "Анна Смирнова", incidents[0].ReporterName)
}

func TestLocation(t *testing.T) {
	assert.True(t, Location{Address: "  "}.IsZero())
	assert.False(t, Location{Coordinates: &Coordinates{}}.IsZero())
	assert.Equal(t, "55.750000, 37.610000", Location{Coordinates: &Coordinates{Latitude: 55.75, Longitude: 37.61}}.String())
	assert.False(t, Coordinates{Latitude: -91}.Valid())
	assert.True(t, Coordinates{Latitude: -90, Longitude: 180}.Valid())
}
