package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

func toCoordinates(lat, lon *float64) *models.Coordinates {
	if lat == nil || lon == nil {
		return nil
	}
	return &models.Coordinates{Latitude: *lat, Longitude: *lon}
}

func fromCoordinates(c *models.Coordinates) (lat, lon *float64) {
	if c == nil {
		return nil, nil
	}
	la, lo := c.Latitude, c.Longitude
	return &la, &lo
}

// checkVersion вызывается, когда UPDATE ... WHERE version = $n не вернул строку:
// документ либо удален, либо изменен другой транзакцией
func checkVersion(ctx context.Context, q queryable, table string, id uuid.UUID, version int64, err error) error {
	if !errors.Is(err, models.ErrNotFound) {
		return err
	}
	var stored int64
	row := q.QueryRow(ctx, fmt.Sprintf("SELECT version FROM %s WHERE id = $1", table), id)
	if scanErr := row.Scan(&stored); scanErr != nil {
		return classify(fmt.Sprintf("get %s %s", table, id), scanErr)
	}
	return fmt.Errorf("%w: %s %s version %d, stored %d", models.ErrConflict, table, id, version, stored)
}
