package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ovialab/cliniguard-server/internal/model"
)

var _ model.TxManager = (*TxManager)(nil)

type txContextKey struct{}

func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(pgx.Tx)
	return tx, ok
}

// TxManager runs functions inside a single postgres transaction. Every
// repository call made with the context it passes to fn joins the same
// transaction, so the whole unit commits or rolls back together.
type TxManager struct {
	db *Connection
}

func NewTxManager(db *Connection) *TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		// Roll back even when the caller's context is already cancelled;
		// an in-flight transaction must resolve, never stay half-applied.
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && rbErr != pgx.ErrTxClosed {
			return fmt.Errorf("failed to rollback transaction: %w (original: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
