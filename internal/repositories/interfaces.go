package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/prudhvinik1/livesync/internal/models"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) error
}

// RowRepository stores dashboard rows. Every operation is scoped to the
// owning principal.
type RowRepository interface {
	ListByOwner(ctx context.Context, table models.Table, ownerID string) ([]models.Row, error)
	GetByID(ctx context.Context, table models.Table, ownerID, id string) (models.Row, error)
	Insert(ctx context.Context, table models.Table, row models.Row) (models.Row, error)
	Update(ctx context.Context, table models.Table, ownerID, id string, fields models.Row) (models.Row, error)
	Delete(ctx context.Context, table models.Table, ownerID, id string) error
	UpdateWhere(ctx context.Context, table models.Table, ownerID string, match, fields models.Row) ([]models.Row, error)
	Count(ctx context.Context, table models.Table, ownerID string, match models.Row) (int, error)
	Upsert(ctx context.Context, table models.Table, row models.Row) (models.Row, bool, error)
}
