package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
	"github.com/shenikar/dispatch_coordination_system/internal/service"
)

type UnitRepository struct {
	tm *TxManager
}

func NewUnitRepository(tm *TxManager) service.UnitRepository {
	return &UnitRepository{tm: tm}
}

const unitColumns = `id, call_sign, vehicle_class, crew, equipment, fuel_level, address, latitude, longitude,
	status, current_incident_id, call_count, version, created_at, updated_at`

func scanUnit(row pgx.Row) (*models.Unit, error) {
	unit := &models.Unit{}
	var lat, lon *float64
	err := row.Scan(
		&unit.ID,
		&unit.CallSign,
		&unit.VehicleClass,
		&unit.Crew,
		&unit.Equipment,
		&unit.FuelLevel,
		&unit.Location.Address,
		&lat,
		&lon,
		&unit.Status,
		&unit.CurrentIncidentID,
		&unit.CallCount,
		&unit.Version,
		&unit.CreatedAt,
		&unit.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	unit.Location.Coordinates = toCoordinates(lat, lon)
	if unit.Equipment == nil {
		unit.Equipment = []models.EquipmentItem{}
	}
	return unit, nil
}

// Create регистрирует машину
func (r *UnitRepository) Create(ctx context.Context, unit *models.Unit) error {
	if unit.ID == uuid.Nil {
		unit.ID = uuid.New()
	}
	if unit.Equipment == nil {
		unit.Equipment = []models.EquipmentItem{}
	}
	lat, lon := fromCoordinates(unit.Location.Coordinates)
	query := `
		INSERT INTO units (id, call_sign, vehicle_class, crew, equipment, fuel_level, address, latitude, longitude,
			status, current_incident_id, call_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING version, created_at, updated_at;
	`
	err := r.tm.conn(ctx).QueryRow(ctx, query,
		unit.ID,
		unit.CallSign,
		unit.VehicleClass,
		unit.Crew,
		unit.Equipment,
		unit.FuelLevel,
		unit.Location.Address,
		lat,
		lon,
		unit.Status,
		unit.CurrentIncidentID,
		unit.CallCount,
	).Scan(&unit.Version, &unit.CreatedAt, &unit.UpdatedAt)
	if err != nil {
		return classify("create unit", err)
	}
	r.tm.touch(ctx, models.CollectionUnits)
	return nil
}

func (r *UnitRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Unit, error) {
	query := `SELECT ` + unitColumns + ` FROM units WHERE id = $1;`
	unit, err := scanUnit(r.tm.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, classify(fmt.Sprintf("get unit %s", id), err)
	}
	return unit, nil
}

// Update сохраняет машину при совпадении версии. Инвариант ссылки на инцидент
// проверяется до записи и дублируется ограничением CHECK в схеме.
func (r *UnitRepository) Update(ctx context.Context, unit *models.Unit) error {
	if err := unit.CheckReference(); err != nil {
		return err
	}
	lat, lon := fromCoordinates(unit.Location.Coordinates)
	query := `
		UPDATE units SET
			call_sign = $1,
			vehicle_class = $2,
			crew = $3,
			equipment = $4,
			fuel_level = $5,
			address = $6,
			latitude = $7,
			longitude = $8,
			status = $9,
			current_incident_id = $10,
			call_count = $11,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $12 AND version = $13
		RETURNING version, updated_at;
	`
	err := r.tm.conn(ctx).QueryRow(ctx, query,
		unit.CallSign,
		unit.VehicleClass,
		unit.Crew,
		unit.Equipment,
		unit.FuelLevel,
		unit.Location.Address,
		lat,
		lon,
		unit.Status,
		unit.CurrentIncidentID,
		unit.CallCount,
		unit.ID,
		unit.Version,
	).Scan(&unit.Version, &unit.UpdatedAt)
	if err != nil {
		return checkVersion(ctx, r.tm.conn(ctx), "units", unit.ID, unit.Version, classify("update unit", err))
	}
	r.tm.touch(ctx, models.CollectionUnits)
	return nil
}

// Delete удаляет запись о машине; история назначений сохраняется
func (r *UnitRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.tm.conn(ctx).Exec(ctx, `DELETE FROM units WHERE id = $1;`, id)
	if err != nil {
		return classify("delete unit", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("unit %s: %w", id, models.ErrNotFound)
	}
	r.tm.touch(ctx, models.CollectionUnits)
	return nil
}

// List возвращает машины по фильтру, отсортированные по позывному
func (r *UnitRepository) List(ctx context.Context, filter models.UnitFilter) ([]*models.Unit, error) {
	where := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		args = append(args, "%"+strings.ToLower(q)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(LOWER(call_sign) LIKE $%d OR LOWER(address) LIKE $%d OR id::text LIKE $%d)", n, n, n))
	}

	query := `SELECT ` + unitColumns + ` FROM units`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY call_sign, id;`

	rows, err := r.tm.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, classify("list units", err)
	}
	defer rows.Close()

	units := make([]*models.Unit, 0)
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, classify("scan unit row", err)
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate units", err)
	}
	return units, nil
}
