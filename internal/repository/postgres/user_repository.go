package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/syncboard/syncboard/internal/repository"
	"github.com/syncboard/syncboard/pkg/models"
	"github.com/syncboard/syncboard/pkg/observability"
)

type userRepository struct {
	*BaseRepository
}

// NewUserRepository creates the Postgres user store.
func NewUserRepository(db *sqlx.DB, logger observability.Logger, metrics observability.MetricsClient) repository.UserRepository {
	return &userRepository{
		BaseRepository: NewBaseRepository(db, logger, metrics, "user_repository"),
	}
}

// List returns every user in canonical order. Smart assignment relies on
// username-ascending as the deterministic tie-break order.
func (r *userRepository) List(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	err := r.execute(ctx, "list_users", func(ctx context.Context) error {
		query := `SELECT id, username, email, created_at FROM users ORDER BY username ASC`
		return r.db.SelectContext(ctx, &users, query)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}
	return users, nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.execute(ctx, "get_user", func(ctx context.Context) error {
		query := `SELECT id, username, email, created_at FROM users WHERE id = $1`
		return r.db.GetContext(ctx, &user, query, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user")
	}
	return &user, nil
}
