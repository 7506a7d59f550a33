package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

type UnitRepository struct {
	store *Store
}

func NewUnitRepository(store *Store) *UnitRepository {
	return &UnitRepository{store: store}
}

func (r *UnitRepository) Create(ctx context.Context, u *models.Unit) error {
	return r.store.write(ctx, func(t *tx) error {
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		if _, ok := t.state.units[u.ID]; ok {
			return fmt.Errorf("%w: unit %s already exists", models.ErrConflict, u.ID)
		}
		now := r.store.now()
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		u.UpdatedAt = now
		u.Version = 1
		t.state.units[u.ID] = u.Clone()
		t.touch(models.CollectionUnits)
		return nil
	})
}

func (r *UnitRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Unit, error) {
	var out *models.Unit
	err := r.store.read(ctx, func(st *state) error {
		u, ok := st.units[id]
		if !ok {
			return fmt.Errorf("%w: unit %s", models.ErrNotFound, id)
		}
		out = u.Clone()
		return nil
	})
	return out, err
}

// Update записывает машину при совпадении версии и соблюдении инварианта ссылки на инцидент
func (r *UnitRepository) Update(ctx context.Context, u *models.Unit) error {
	if err := u.CheckReference(); err != nil {
		return err
	}
	return r.store.write(ctx, func(t *tx) error {
		current, ok := t.state.units[u.ID]
		if !ok {
			return fmt.Errorf("%w: unit %s", models.ErrNotFound, u.ID)
		}
		if current.Version != u.Version {
			return fmt.Errorf("%w: unit %s version %d, stored %d", models.ErrConflict, u.ID, u.Version, current.Version)
		}
		u.Version++
		u.UpdatedAt = r.store.now()
		t.state.units[u.ID] = u.Clone()
		t.touch(models.CollectionUnits)
		return nil
	})
}

func (r *UnitRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.store.write(ctx, func(t *tx) error {
		if _, ok := t.state.units[id]; !ok {
			return fmt.Errorf("%w: unit %s", models.ErrNotFound, id)
		}
		delete(t.state.units, id)
		t.touch(models.CollectionUnits)
		return nil
	})
}

func (r *UnitRepository) List(ctx context.Context, filter models.UnitFilter) ([]*models.Unit, error) {
	var out []*models.Unit
	err := r.store.read(ctx, func(st *state) error {
		out = make([]*models.Unit, 0, len(st.units))
		for _, u := range st.units {
			if filter.Match(u) {
				out = append(out, u.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	models.SortUnits(out)
	return out, nil
}
