package repository

import (
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

// classify приводит ошибку драйвера к таксономии models:
// отсутствие строки - ErrNotFound, конфликт сериализации и уникальности - ErrConflict,
// нарушение CHECK - ErrPreconditionFailed, обрыв соединения - ErrStoreUnavailable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.SerializationFailure,
			pgErr.Code == pgerrcode.DeadlockDetected,
			pgErr.Code == pgerrcode.UniqueViolation:
			return fmt.Errorf("failed to %s: %w: %w", op, models.ErrConflict, err)
		case pgErr.Code == pgerrcode.CheckViolation,
			pgErr.Code == pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("failed to %s: %w: %w", op, models.ErrPreconditionFailed, err)
		case pgerrcode.IsConnectionException(pgErr.Code),
			pgerrcode.IsInsufficientResources(pgErr.Code),
			pgErr.Code == pgerrcode.AdminShutdown,
			pgErr.Code == pgerrcode.CannotConnectNow:
			return fmt.Errorf("failed to %s: %w: %w", op, models.ErrStoreUnavailable, err)
		}
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connectErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return fmt.Errorf("failed to %s: %w: %w", op, models.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
