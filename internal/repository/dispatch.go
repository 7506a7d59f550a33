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

type DispatchRepository struct {
	tm *TxManager
}

func NewDispatchRepository(tm *TxManager) service.DispatchRepository {
	return &DispatchRepository{tm: tm}
}

const dispatchColumns = `id, unit_id, incident_id, status, dispatched_at, estimated_arrival,
	arrived_at, completed_at, version, updated_at`

func scanDispatch(row pgx.Row) (*models.Dispatch, error) {
	d := &models.Dispatch{}
	err := row.Scan(
		&d.ID,
		&d.UnitID,
		&d.IncidentID,
		&d.Status,
		&d.DispatchedAt,
		&d.EstimatedArrival,
		&d.ArrivedAt,
		&d.CompletedAt,
		&d.Version,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Create сохраняет назначение. Частичные уникальные индексы не допускают
// второго открытого назначения на ту же машину или инцидент.
func (r *DispatchRepository) Create(ctx context.Context, d *models.Dispatch) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	query := `
		INSERT INTO dispatches (id, unit_id, incident_id, status, dispatched_at, estimated_arrival, arrived_at, completed_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, NOW()), $6, $7, $8)
		RETURNING dispatched_at, version, updated_at;
	`
	var dispatchedAt any
	if !d.DispatchedAt.IsZero() {
		dispatchedAt = d.DispatchedAt
	}
	err := r.tm.conn(ctx).QueryRow(ctx, query,
		d.ID,
		d.UnitID,
		d.IncidentID,
		d.Status,
		dispatchedAt,
		d.EstimatedArrival,
		d.ArrivedAt,
		d.CompletedAt,
	).Scan(&d.DispatchedAt, &d.Version, &d.UpdatedAt)
	if err != nil {
		return classify("create dispatch", err)
	}
	r.tm.touch(ctx, models.CollectionDispatches)
	return nil
}

func (r *DispatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispatch, error) {
	query := `SELECT ` + dispatchColumns + ` FROM dispatches WHERE id = $1;`
	d, err := scanDispatch(r.tm.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, classify(fmt.Sprintf("get dispatch %s", id), err)
	}
	return d, nil
}

func (r *DispatchRepository) Update(ctx context.Context, d *models.Dispatch) error {
	query := `
		UPDATE dispatches SET
			status = $1,
			estimated_arrival = $2,
			arrived_at = $3,
			completed_at = $4,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $5 AND version = $6
		RETURNING version, updated_at;
	`
	err := r.tm.conn(ctx).QueryRow(ctx, query,
		d.Status,
		d.EstimatedArrival,
		d.ArrivedAt,
		d.CompletedAt,
		d.ID,
		d.Version,
	).Scan(&d.Version, &d.UpdatedAt)
	if err != nil {
		return checkVersion(ctx, r.tm.conn(ctx), "dispatches", d.ID, d.Version, classify("update dispatch", err))
	}
	r.tm.touch(ctx, models.CollectionDispatches)
	return nil
}

// FindOpenByUnit возвращает незавершенное назначение машины
func (r *DispatchRepository) FindOpenByUnit(ctx context.Context, unitID uuid.UUID) (*models.Dispatch, error) {
	query := `SELECT ` + dispatchColumns + ` FROM dispatches WHERE unit_id = $1 AND status <> 'completed';`
	d, err := scanDispatch(r.tm.conn(ctx).QueryRow(ctx, query, unitID))
	if err != nil {
		return nil, classify(fmt.Sprintf("find open dispatch for unit %s", unitID), err)
	}
	return d, nil
}

// FindOpenByIncident возвращает незавершенное назначение на инцидент
func (r *DispatchRepository) FindOpenByIncident(ctx context.Context, incidentID uuid.UUID) (*models.Dispatch, error) {
	query := `SELECT ` + dispatchColumns + ` FROM dispatches WHERE incident_id = $1 AND status <> 'completed';`
	d, err := scanDispatch(r.tm.conn(ctx).QueryRow(ctx, query, incidentID))
	if err != nil {
		return nil, classify(fmt.Sprintf("find open dispatch for incident %s", incidentID), err)
	}
	return d, nil
}

// History возвращает назначения по машине и/или инциденту, новые первыми
func (r *DispatchRepository) History(ctx context.Context, q models.HistoryQuery) ([]*models.Dispatch, error) {
	where := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if q.UnitID != nil {
		args = append(args, *q.UnitID)
		where = append(where, fmt.Sprintf("unit_id = $%d", len(args)))
	}
	if q.IncidentID != nil {
		args = append(args, *q.IncidentID)
		where = append(where, fmt.Sprintf("incident_id = $%d", len(args)))
	}
	query := `SELECT ` + dispatchColumns + ` FROM dispatches`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY dispatched_at DESC, id;`

	rows, err := r.tm.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, classify("list dispatches", err)
	}
	defer rows.Close()

	dispatches := make([]*models.Dispatch, 0)
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, classify("scan dispatch row", err)
		}
		dispatches = append(dispatches, d)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate dispatches", err)
	}
	return dispatches, nil
}
