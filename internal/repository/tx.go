package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/dispatch_coordination_system/internal/changefeed"
	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// pool - пул соединений: *pgxpool.Pool в работе, pgxmock в тестах
type pool interface {
	queryable
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type txKey struct{}

type txState struct {
	tx      pgx.Tx
	touched map[models.Collection]struct{}
}

// TxManager открывает транзакции PostgreSQL и после фиксации публикует
// сигналы по измененным коллекциям
type TxManager struct {
	db     pool
	broker changefeed.Broker
	logger *logrus.Logger
}

func NewTxManager(db pool, broker changefeed.Broker, logger *logrus.Logger) *TxManager {
	return &TxManager{db: db, broker: broker, logger: logger}
}

// WithinTx выполняет fn в транзакции уровня REPEATABLE READ. Транзакция передается
// репозиториям через ctx, вложенный вызов присоединяется к внешней.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return classify("begin transaction", err)
	}
	st := &txState{tx: tx, touched: make(map[models.Collection]struct{})}

	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			m.logger.WithError(rbErr).Warn("Failed to rollback transaction")
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classify("commit transaction", err)
	}

	for _, c := range models.Collections {
		if _, ok := st.touched[c]; ok {
			m.publish(ctx, c)
		}
	}
	return nil
}

// conn возвращает транзакцию из ctx или пул
func (m *TxManager) conn(ctx context.Context) queryable {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return st.tx
	}
	return m.db
}

// touch отмечает коллекцию измененной. Вне транзакции сигнал уходит сразу.
func (m *TxManager) touch(ctx context.Context, c models.Collection) {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		st.touched[c] = struct{}{}
		return
	}
	m.publish(ctx, c)
}

func (m *TxManager) publish(ctx context.Context, c models.Collection) {
	if m.broker == nil {
		return
	}
	if err := m.broker.Publish(ctx, c); err != nil {
		m.logger.WithError(err).WithField("collection", c).Warn("Failed to publish change signal")
	}
}
