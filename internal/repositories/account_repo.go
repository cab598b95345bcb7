package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/livesync/internal/models"
)

var ErrNotFound = errors.New("not found")

const selectAccount = `SELECT id, email, password_hash, created_at, updated_at, deleted_at FROM accounts`

// PostgresAccountRepository stores dashboard principals. Emails are kept
// lower-case so sign-in is case-insensitive.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

func (r *PostgresAccountRepository) Create(ctx context.Context, account *models.Account) error {
	account.Email = normalizeEmail(account.Email)

	query := `INSERT INTO accounts (email, password_hash)
	          VALUES ($1, $2)
	          RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, account.Email, account.PasswordHash).
		Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, selectAccount+` WHERE id = $1 AND deleted_at IS NULL`, id))
}

func (r *PostgresAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, selectAccount+` WHERE email = $1 AND deleted_at IS NULL`, normalizeEmail(email)))
}

func (r *PostgresAccountRepository) Update(ctx context.Context, account *models.Account) error {
	account.Email = normalizeEmail(account.Email)

	query := `UPDATE accounts SET email = $1, password_hash = $2, updated_at = NOW()
	          WHERE id = $3 AND deleted_at IS NULL`

	result, err := r.pool.Exec(ctx, query, account.Email, account.PasswordHash, account.ID)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete soft-deletes the account; its rows stay until purged.
func (r *PostgresAccountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `UPDATE accounts SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(&account.ID, &account.Email, &account.PasswordHash, &account.CreatedAt, &account.UpdatedAt, &account.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
