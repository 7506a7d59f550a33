package service

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

func TestRegisterUnit_Defaults(t *testing.T) {
	// Подготовка
	env := newTestEnv(t, nil)
	unit := &models.Unit{
		CallSign:  "  C-300 ",
		Crew:      []string{"Игорь Павлов", " "},
		Equipment: []models.EquipmentItem{{Name: "Носилки", ReservedFor: &uuid.UUID{}}},
		Status:    models.UnitTransporting,
		Location:  models.Location{Address: "Подстанция №3"},
	}

	// Действие
	err := env.units.RegisterUnit(context.Background(), unit)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, "C-300", unit.CallSign)
	assert.Equal(t, []string{"Игорь Павлов"}, unit.Crew)
	assert.Equal(t, models.UnitAvailable, unit.Status)
	assert.Equal(t, models.VehicleBasic, unit.VehicleClass)
	assert.Equal(t, 100, unit.FuelLevel)
	assert.Nil(t, unit.Equipment[0].ReservedFor)
	assert.Equal(t, int64(1), unit.Version)
}

func TestRegisterUnit_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	valid := func() *models.Unit {
		return &models.Unit{
			CallSign: "V-1",
			Crew:     []string{"Игорь Павлов"},
			Location: models.Location{Address: "Подстанция №3"},
		}
	}

	tests := []struct {
		name   string
		mutate func(u *models.Unit)
	}{
		{"empty call sign", func(u *models.Unit) { u.CallSign = " " }},
		{"empty crew", func(u *models.Unit) { u.Crew = nil }},
		{"missing location", func(u *models.Unit) { u.Location = models.Location{} }},
		{"bad coordinates", func(u *models.Unit) {
			u.Location = models.Location{Coordinates: &models.Coordinates{Latitude: 95}}
		}},
		{"fuel out of range", func(u *models.Unit) { u.FuelLevel = 150 }},
		{"unknown vehicle class", func(u *models.Unit) { u.VehicleClass = "helicopter" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := valid()
			tt.mutate(u)
			err := env.units.RegisterUnit(context.Background(), u)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestRegisterUnit_DuplicateCallSignAccepted(t *testing.T) {
	env := newTestEnv(t, nil)
	first := env.registerUnit(t, "D-1")

	second := &models.Unit{
		CallSign: "D-1",
		Crew:     []string{"Игорь Павлов"},
		Location: models.Location{Address: "Подстанция №3"},
	}
	require.NoError(t, env.units.RegisterUnit(context.Background(), second))

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, models.UnitAvailable, env.unit(t, second.ID).Status)
}

func TestUnitSetStatus_ReferenceInvariant(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")
	unit := env.registerUnit(t, "A-101")

	t.Run("busy without reference", func(t *testing.T) {
		_, err := env.units.SetStatus(ctx, unit.ID, models.UnitDispatched, nil)
		assert.ErrorIs(t, err, models.ErrMissingReference)
		assert.Equal(t, models.UnitAvailable, env.unit(t, unit.ID).Status)
	})

	t.Run("busy with unknown incident", func(t *testing.T) {
		ref := uuid.New()
		_, err := env.units.SetStatus(ctx, unit.ID, models.UnitDispatched, &ref)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("busy with reference", func(t *testing.T) {
		u, err := env.units.SetStatus(ctx, unit.ID, models.UnitDispatched, &inc.ID)
		require.NoError(t, err)
		assert.Equal(t, models.UnitDispatched, u.Status)
		require.NotNil(t, u.CurrentIncidentID)
		assert.Equal(t, inc.ID, *u.CurrentIncidentID)
	})

	t.Run("next busy status keeps reference", func(t *testing.T) {
		u, err := env.units.SetStatus(ctx, unit.ID, models.UnitOnScene, nil)
		require.NoError(t, err)
		assert.Equal(t, inc.ID, *u.CurrentIncidentID)
	})

	t.Run("available clears reference", func(t *testing.T) {
		u, err := env.units.SetStatus(ctx, unit.ID, models.UnitAvailable, nil)
		require.NoError(t, err)
		assert.Nil(t, u.CurrentIncidentID)
	})

	t.Run("illegal transition", func(t *testing.T) {
		_, err := env.units.SetStatus(ctx, unit.ID, models.UnitTransporting, &inc.ID)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := env.units.SetStatus(ctx, unit.ID, models.UnitStatus("parked"), nil)
		assert.ErrorIs(t, err, models.ErrValidation)
	})
}

// staleUnits отдает на первом чтении устаревшую ссылку на инцидент и отвечает
// конфликтом на первую запись, как при гонке с другим оператором
type staleUnits struct {
	UnitRepository
	staleRef uuid.UUID
	reads    atomic.Int32
	writes   atomic.Int32
}

func (s *staleUnits) GetByID(ctx context.Context, id uuid.UUID) (*models.Unit, error) {
	u, err := s.UnitRepository.GetByID(ctx, id)
	if err == nil && s.reads.Add(1) == 1 {
		ref := s.staleRef
		u.CurrentIncidentID = &ref
	}
	return u, err
}

func (s *staleUnits) Update(ctx context.Context, unit *models.Unit) error {
	if s.writes.Add(1) == 1 {
		return models.ErrConflict
	}
	return s.UnitRepository.Update(ctx, unit)
}

func TestUnitSetStatus_RetryRereadsIncidentReference(t *testing.T) {
	// Подготовка
	env := newTestEnv(t, nil)
	ctx := context.Background()
	old := env.createIncident(t, "Анна Смирнова")
	current := env.createIncident(t, "Петр Иванов")
	unit := env.registerUnit(t, "A-101")
	_, err := env.units.SetStatus(ctx, unit.ID, models.UnitDispatched, &current.ID)
	require.NoError(t, err)

	stores := env.stores
	stores.Units = &staleUnits{UnitRepository: env.stores.Units, staleRef: old.ID}
	racing := env.withStores(stores)

	// Действие
	u, err := racing.units.SetStatus(ctx, unit.ID, models.UnitOnScene, nil)

	// Проверки
	require.NoError(t, err)
	require.NotNil(t, u.CurrentIncidentID)
	assert.Equal(t, current.ID, *u.CurrentIncidentID)
	stored := env.unit(t, unit.ID)
	assert.Equal(t, models.UnitOnScene, stored.Status)
	assert.Equal(t, current.ID, *stored.CurrentIncidentID)
}

func TestUnitSetStatus_OutOfServiceToggle(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	unit := env.registerUnit(t, "A-101")

	u, err := env.units.SetStatus(ctx, unit.ID, models.UnitOutOfService, nil)
	require.NoError(t, err)
	assert.Equal(t, models.UnitOutOfService, u.Status)

	_, err = env.units.SetStatus(ctx, unit.ID, models.UnitDispatched, nil)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	u, err = env.units.SetStatus(ctx, unit.ID, models.UnitAvailable, nil)
	require.NoError(t, err)
	assert.Equal(t, models.UnitAvailable, u.Status)
}

// Выход из цикла с открытым назначением идет через Coordinator.TakeOutOfService
func TestUnitSetStatus_OpenDispatchBlocksLeavingCycle(t *testing.T) {
	// Подготовка
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")
	other := env.createIncident(t, "Петр Иванов")
	unit := env.registerUnit(t, "A-101")
	_, err := env.coord.Dispatch(ctx, unit.ID, inc.ID)
	require.NoError(t, err)

	// Действие
	_, errOOS := env.units.SetStatus(ctx, unit.ID, models.UnitOutOfService, nil)
	_, errAvail := env.units.SetStatus(ctx, unit.ID, models.UnitAvailable, nil)
	_, errOther := env.units.SetStatus(ctx, unit.ID, models.UnitOnScene, &other.ID)

	// Проверки
	assert.ErrorIs(t, errOOS, models.ErrPreconditionFailed)
	assert.ErrorIs(t, errAvail, models.ErrPreconditionFailed)
	assert.ErrorIs(t, errOther, models.ErrPreconditionFailed)

	u := env.unit(t, unit.ID)
	assert.Equal(t, models.UnitDispatched, u.Status)
	assert.Equal(t, inc.ID, *u.CurrentIncidentID)
}

func TestUpdateUnit(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")
	unit := env.registerUnit(t, "A-101", "Кислород", "Носилки")
	_, err := env.coord.ReserveEquipment(ctx, unit.ID, "Кислород", inc.ID)
	require.NoError(t, err)

	t.Run("telemetry and manifest", func(t *testing.T) {
		fuel := 35
		sign := "A-111"
		u, err := env.units.UpdateUnit(ctx, unit.ID, models.UnitPatch{
			CallSign:  &sign,
			FuelLevel: &fuel,
			Equipment: []string{"Шины", "Кислород"},
			Location:  &models.Location{Address: "Садовая ул., 5"},
		})
		require.NoError(t, err)
		assert.Equal(t, "A-111", u.CallSign)
		assert.Equal(t, 35, u.FuelLevel)
		assert.Equal(t, "Садовая ул., 5", u.Location.Address)
		require.Len(t, u.Equipment, 2)
		assert.Nil(t, u.Equipment[0].ReservedFor)
		require.NotNil(t, u.Equipment[1].ReservedFor)
		assert.Equal(t, inc.ID, *u.Equipment[1].ReservedFor)
	})

	t.Run("dropping reserved item", func(t *testing.T) {
		_, err := env.units.UpdateUnit(ctx, unit.ID, models.UnitPatch{Equipment: []string{"Шины"}})
		assert.ErrorIs(t, err, models.ErrPreconditionFailed)
	})

	t.Run("invalid fuel", func(t *testing.T) {
		fuel := -1
		_, err := env.units.UpdateUnit(ctx, unit.ID, models.UnitPatch{FuelLevel: &fuel})
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("unknown unit", func(t *testing.T) {
		_, err := env.units.UpdateUnit(ctx, uuid.New(), models.UnitPatch{})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestDeregisterUnit(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	inc := env.createIncident(t, "Анна Смирнова")

	t.Run("out of service unit is removed", func(t *testing.T) {
		unit := env.registerUnit(t, "R-1")
		_, err := env.units.SetStatus(ctx, unit.ID, models.UnitOutOfService, nil)
		require.NoError(t, err)

		require.NoError(t, env.units.DeregisterUnit(ctx, unit.ID))
		_, err = env.units.GetUnit(ctx, unit.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("unit holding a reservation", func(t *testing.T) {
		unit := env.registerUnit(t, "R-2", "Кислород")
		_, err := env.coord.ReserveEquipment(ctx, unit.ID, "Кислород", inc.ID)
		require.NoError(t, err)

		err = env.units.DeregisterUnit(ctx, unit.ID)
		assert.ErrorIs(t, err, models.ErrPreconditionFailed)
	})

	t.Run("unknown unit", func(t *testing.T) {
		err := env.units.DeregisterUnit(ctx, uuid.New())
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestListUnits(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.registerUnit(t, "B-2")
	a := env.registerUnit(t, "A-1")
	_, err := env.units.SetStatus(ctx, a.ID, models.UnitOutOfService, nil)
	require.NoError(t, err)

	all, err := env.units.ListUnits(ctx, models.UnitFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A-1", all[0].CallSign)

	available, err := env.units.ListUnits(ctx, models.UnitFilter{Statuses: []models.UnitStatus{models.UnitAvailable}})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "B-2", available[0].CallSign)
}
