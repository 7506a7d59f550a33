package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

type DispatchRepository struct {
	store *Store
}

func NewDispatchRepository(store *Store) *DispatchRepository {
	return &DispatchRepository{store: store}
}

// Create сохраняет назначение. Открытых назначений на машину и на инцидент
// может быть не больше одного.
func (r *DispatchRepository) Create(ctx context.Context, d *models.Dispatch) error {
	return r.store.write(ctx, func(t *tx) error {
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		if _, ok := t.state.dispatches[d.ID]; ok {
			return fmt.Errorf("%w: dispatch %s already exists", models.ErrConflict, d.ID)
		}
		if d.Open() {
			if err := checkOpenUnique(t.state, d); err != nil {
				return err
			}
		}
		now := r.store.now()
		if d.DispatchedAt.IsZero() {
			d.DispatchedAt = now
		}
		d.UpdatedAt = now
		d.Version = 1
		t.state.dispatches[d.ID] = d.Clone()
		t.touch(models.CollectionDispatches)
		return nil
	})
}

func (r *DispatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispatch, error) {
	var out *models.Dispatch
	err := r.store.read(ctx, func(st *state) error {
		d, ok := st.dispatches[id]
		if !ok {
			return fmt.Errorf("%w: dispatch %s", models.ErrNotFound, id)
		}
		out = d.Clone()
		return nil
	})
	return out, err
}

func (r *DispatchRepository) Update(ctx context.Context, d *models.Dispatch) error {
	return r.store.write(ctx, func(t *tx) error {
		current, ok := t.state.dispatches[d.ID]
		if !ok {
			return fmt.Errorf("%w: dispatch %s", models.ErrNotFound, d.ID)
		}
		if current.Version != d.Version {
			return fmt.Errorf("%w: dispatch %s version %d, stored %d", models.ErrConflict, d.ID, d.Version, current.Version)
		}
		d.Version++
		d.UpdatedAt = r.store.now()
		t.state.dispatches[d.ID] = d.Clone()
		t.touch(models.CollectionDispatches)
		return nil
	})
}

// FindOpenByUnit возвращает незавершенное назначение машины или ErrNotFound
func (r *DispatchRepository) FindOpenByUnit(ctx context.Context, unitID uuid.UUID) (*models.Dispatch, error) {
	return r.findOpen(ctx, func(d *models.Dispatch) bool { return d.UnitID == unitID }, "unit", unitID)
}

// FindOpenByIncident возвращает незавершенное назначение на инцидент или ErrNotFound
func (r *DispatchRepository) FindOpenByIncident(ctx context.Context, incidentID uuid.UUID) (*models.Dispatch, error) {
	return r.findOpen(ctx, func(d *models.Dispatch) bool { return d.IncidentID == incidentID }, "incident", incidentID)
}

func (r *DispatchRepository) findOpen(ctx context.Context, match func(*models.Dispatch) bool, kind string, id uuid.UUID) (*models.Dispatch, error) {
	var out *models.Dispatch
	err := r.store.read(ctx, func(st *state) error {
		for _, d := range st.dispatches {
			if d.Open() && match(d) {
				out = d.Clone()
				return nil
			}
		}
		return fmt.Errorf("%w: no open dispatch for %s %s", models.ErrNotFound, kind, id)
	})
	return out, err
}

// History возвращает назначения по запросу, новые первыми
func (r *DispatchRepository) History(ctx context.Context, q models.HistoryQuery) ([]*models.Dispatch, error) {
	var out []*models.Dispatch
	err := r.store.read(ctx, func(st *state) error {
		out = make([]*models.Dispatch, 0)
		for _, d := range st.dispatches {
			if q.Match(d) {
				out = append(out, d.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	models.SortDispatches(out)
	return out, nil
}

func checkOpenUnique(st state, d *models.Dispatch) error {
	for _, other := range st.dispatches {
		if !other.Open() || other.ID == d.ID {
			continue
		}
		if other.UnitID == d.UnitID {
			return fmt.Errorf("%w: unit %s already has open dispatch %s", models.ErrConflict, d.UnitID, other.ID)
		}
		if other.IncidentID == d.IncidentID {
			return fmt.Errorf("%w: incident %s already has open dispatch %s", models.ErrConflict, d.IncidentID, other.ID)
		}
	}
	return nil
}
