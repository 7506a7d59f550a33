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

type IncidentRepository struct {
	tm *TxManager
}

func NewIncidentRepository(tm *TxManager) service.IncidentRepository {
	return &IncidentRepository{tm: tm}
}

const incidentColumns = `id, reporter_name, reporter_phone, reporter_age, description, type,
	origin, priority, status, address, latitude, longitude, version, created_at, updated_at`

func scanIncident(row pgx.Row) (*models.Incident, error) {
	incident := &models.Incident{}
	var lat, lon *float64
	err := row.Scan(
		&incident.ID,
		&incident.ReporterName,
		&incident.ReporterPhone,
		&incident.ReporterAge,
		&incident.Description,
		&incident.Type,
		&incident.Origin,
		&incident.Priority,
		&incident.Status,
		&incident.Location.Address,
		&lat,
		&lon,
		&incident.Version,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	incident.Location.Coordinates = toCoordinates(lat, lon)
	return incident, nil
}

// Create создает новую запись об инциденте в бд
func (r *IncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	if incident.ID == uuid.Nil {
		incident.ID = uuid.New()
	}
	lat, lon := fromCoordinates(incident.Location.Coordinates)
	query := `
		INSERT INTO incidents (id, reporter_name, reporter_phone, reporter_age, description, type,
			origin, priority, status, address, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING version, created_at, updated_at;
	`
	err := r.tm.conn(ctx).QueryRow(ctx, query,
		incident.ID,
		incident.ReporterName,
		incident.ReporterPhone,
		incident.ReporterAge,
		incident.Description,
		incident.Type,
		incident.Origin,
		incident.Priority,
		incident.Status,
		incident.Location.Address,
		lat,
		lon,
	).Scan(&incident.Version, &incident.CreatedAt, &incident.UpdatedAt)
	if err != nil {
		return classify("create incident", err)
	}
	r.tm.touch(ctx, models.CollectionIncidents)
	return nil
}

// GetByID возвращает инцидент по его UUID
func (r *IncidentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1;`
	incident, err := scanIncident(r.tm.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, classify(fmt.Sprintf("get incident %s", id), err)
	}
	return incident, nil
}

// Update сохраняет инцидент, если версия в бд совпадает с прочитанной
func (r *IncidentRepository) Update(ctx context.Context, incident *models.Incident) error {
	lat, lon := fromCoordinates(incident.Location.Coordinates)
	query := `
		UPDATE incidents SET
			reporter_name = $1,
			reporter_phone = $2,
			reporter_age = $3,
			description = $4,
			type = $5,
			priority = $6,
			status = $7,
			address = $8,
			latitude = $9,
			longitude = $10,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $11 AND version = $12
		RETURNING version, updated_at;
	`
	err := r.tm.conn(ctx).QueryRow(ctx, query,
		incident.ReporterName,
		incident.ReporterPhone,
		incident.ReporterAge,
		incident.Description,
		incident.Type,
		incident.Priority,
		incident.Status,
		incident.Location.Address,
		lat,
		lon,
		incident.ID,
		incident.Version,
	).Scan(&incident.Version, &incident.UpdatedAt)
	if err != nil {
		return checkVersion(ctx, r.tm.conn(ctx), "incidents", incident.ID, incident.Version, classify("update incident", err))
	}
	r.tm.touch(ctx, models.CollectionIncidents)
	return nil
}

// List возвращает инциденты по фильтру, новые первыми
func (r *IncidentRepository) List(ctx context.Context, filter models.IncidentFilter) ([]*models.Incident, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 5)

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(filter.Priorities) > 0 {
		priorities := make([]string, len(filter.Priorities))
		for i, p := range filter.Priorities {
			priorities[i] = string(p)
		}
		args = append(args, priorities)
		where = append(where, fmt.Sprintf("priority = ANY($%d)", len(args)))
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		args = append(args, "%"+strings.ToLower(q)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(LOWER(reporter_name) LIKE $%d OR LOWER(address) LIKE $%d OR id::text LIKE $%d)", n, n, n))
	}

	query := `SELECT ` + incidentColumns + ` FROM incidents`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.tm.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, classify("list incidents", err)
	}
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, classify("scan incident row", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate incidents", err)
	}
	return incidents, nil
}
