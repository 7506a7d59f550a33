package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

type IncidentRepository struct {
	store *Store
}

func NewIncidentRepository(store *Store) *IncidentRepository {
	return &IncidentRepository{store: store}
}

// Create сохраняет новый инцидент с версией 1
func (r *IncidentRepository) Create(ctx context.Context, inc *models.Incident) error {
	return r.store.write(ctx, func(t *tx) error {
		if inc.ID == uuid.Nil {
			inc.ID = uuid.New()
		}
		if _, ok := t.state.incidents[inc.ID]; ok {
			return fmt.Errorf("%w: incident %s already exists", models.ErrConflict, inc.ID)
		}
		now := r.store.now()
		if inc.CreatedAt.IsZero() {
			inc.CreatedAt = now
		}
		inc.UpdatedAt = now
		inc.Version = 1
		t.state.incidents[inc.ID] = inc.Clone()
		t.touch(models.CollectionIncidents)
		return nil
	})
}

func (r *IncidentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	var out *models.Incident
	err := r.store.read(ctx, func(st *state) error {
		inc, ok := st.incidents[id]
		if !ok {
			return fmt.Errorf("%w: incident %s", models.ErrNotFound, id)
		}
		out = inc.Clone()
		return nil
	})
	return out, err
}

// Update записывает инцидент, если его версия не изменилась с момента чтения.
// При успехе inc.Version увеличивается.
func (r *IncidentRepository) Update(ctx context.Context, inc *models.Incident) error {
	return r.store.write(ctx, func(t *tx) error {
		current, ok := t.state.incidents[inc.ID]
		if !ok {
			return fmt.Errorf("%w: incident %s", models.ErrNotFound, inc.ID)
		}
		if current.Version != inc.Version {
			return fmt.Errorf("%w: incident %s version %d, stored %d", models.ErrConflict, inc.ID, inc.Version, current.Version)
		}
		inc.Version++
		inc.UpdatedAt = r.store.now()
		t.state.incidents[inc.ID] = inc.Clone()
		t.touch(models.CollectionIncidents)
		return nil
	})
}

func (r *IncidentRepository) List(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, error) {
	var all []*models.Incident
	err := r.store.read(ctx, func(st *state) error {
		all = make([]*models.Incident, 0, len(st.incidents))
		for _, inc := range st.incidents {
			all = append(all, inc.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return filter.Apply(all), nil
}
