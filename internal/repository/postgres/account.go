package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ovialab/cliniguard-server/internal/model"
)

var _ model.AccountStore = (*AccountRepository)(nil)

type AccountRepository struct {
	db *Connection
}

func NewAccountRepository(db *Connection) *AccountRepository {
	return &AccountRepository{
		db: db,
	}
}

const accountColumns = `id, email, password_hash, role, active, failed_attempts, pending_otp_code, otp_expiry, created_at, updated_at`

func scanAccount(row pgx.Row) (model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.Active, &a.FailedAttempts,
		&a.PendingOTPCode, &a.OTPExpiry, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = LOWER($1)`

	account, err := scanAccount(r.db.q(ctx).QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, model.ErrNotFound
		}
		return model.Account{}, fmt.Errorf("failed to get account by email: %w", err)
	}

	return account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.db.q(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, model.ErrNotFound
		}
		return model.Account{}, fmt.Errorf("failed to get account by id: %w", err)
	}

	return account, nil
}

func (r *AccountRepository) Create(ctx context.Context, account model.Account) (model.Account, error) {
	query := `INSERT INTO accounts (email, password_hash, role, active)
			  VALUES ($1, $2, $3, $4)
			  RETURNING ` + accountColumns

	saved, err := scanAccount(r.db.q(ctx).QueryRow(ctx, query,
		account.Email, account.PasswordHash, account.Role, account.Active,
	))
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to create account: %w", err)
	}

	return saved, nil
}

// IncrementFailedAttempts bumps the counter in a single row update so
// concurrent attempts never interleave a read-modify-write. The account is
// disabled in the same statement when the new count reaches the threshold.
func (r *AccountRepository) IncrementFailedAttempts(ctx context.Context, id int64, threshold int) (int, bool, error) {
	query := `UPDATE accounts
			  SET failed_attempts = failed_attempts + 1,
			      active = CASE WHEN failed_attempts + 1 >= $2 THEN FALSE ELSE active END,
			      updated_at = NOW()
			  WHERE id = $1
			  RETURNING failed_attempts, active`

	var attempts int
	var active bool
	err := r.db.q(ctx).QueryRow(ctx, query, id, threshold).Scan(&attempts, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, model.ErrNotFound
		}
		return 0, false, fmt.Errorf("failed to increment failed attempts: %w", err)
	}

	return attempts, !active, nil
}

// SetOTP stores the pending code with its expiry and resets the
// failed-attempt counter, all in one update.
func (r *AccountRepository) SetOTP(ctx context.Context, id int64, code string, expiry time.Time) error {
	query := `UPDATE accounts
			  SET pending_otp_code = $2, otp_expiry = $3, failed_attempts = 0, updated_at = NOW()
			  WHERE id = $1`

	cmd, err := r.db.q(ctx).Exec(ctx, query, id, code, expiry)
	if err != nil {
		return fmt.Errorf("failed to set otp: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ClearOTP removes the pending code and its expiry together so a code can
// never be replayed.
func (r *AccountRepository) ClearOTP(ctx context.Context, id int64) error {
	query := `UPDATE accounts
			  SET pending_otp_code = NULL, otp_expiry = NULL, updated_at = NOW()
			  WHERE id = $1`

	cmd, err := r.db.q(ctx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to clear otp: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	query := `UPDATE accounts
			  SET password_hash = $2, failed_attempts = 0, updated_at = NOW()
			  WHERE id = $1`

	cmd, err := r.db.q(ctx).Exec(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) SetEmail(ctx context.Context, id int64, email string) error {
	query := `UPDATE accounts SET email = $2, updated_at = NOW() WHERE id = $1`

	cmd, err := r.db.q(ctx).Exec(ctx, query, id, email)
	if err != nil {
		return fmt.Errorf("failed to set email: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) Unlock(ctx context.Context, id int64) error {
	query := `UPDATE accounts
			  SET active = TRUE, failed_attempts = 0, updated_at = NOW()
			  WHERE id = $1`

	cmd, err := r.db.q(ctx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to unlock account: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Delete removes the identity row. Clinical rows authored by the account
// keep a clinician_id reference, so those must be gone first; a remaining
// reference surfaces as a conflict.
func (r *AccountRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM accounts WHERE id = $1`

	cmd, err := r.db.q(ctx).Exec(ctx, query, id)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23503 is the foreign_key_violation SQLSTATE.
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: account is still referenced", model.ErrConflictingDependency)
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
