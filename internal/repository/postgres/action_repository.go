package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/syncboard/syncboard/internal/repository"
	"github.com/syncboard/syncboard/pkg/models"
	"github.com/syncboard/syncboard/pkg/observability"
)

type actionRepository struct {
	*BaseRepository
}

// NewActionRepository creates the Postgres activity log store.
func NewActionRepository(db *sqlx.DB, logger observability.Logger, metrics observability.MetricsClient) repository.ActionRepository {
	return &actionRepository{
		BaseRepository: NewBaseRepository(db, logger, metrics, "action_repository"),
	}
}

func (r *actionRepository) Append(ctx context.Context, action *models.Action) error {
	err := r.execute(ctx, "append_action", func(ctx context.Context) error {
		query := `
			INSERT INTO actions (id, user_id, task_id, action_type, details, timestamp)
			VALUES (:id, :user_id, :task_id, :action_type, :details, :timestamp)`
		_, err := r.db.NamedExecContext(ctx, query, action)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "failed to append action")
	}
	return nil
}

func (r *actionRepository) Recent(ctx context.Context, limit int) ([]*models.Action, error) {
	var actions []*models.Action
	err := r.execute(ctx, "recent_actions", func(ctx context.Context) error {
		query := `
			SELECT id, user_id, task_id, action_type, details, timestamp
			FROM actions
			ORDER BY timestamp DESC
			LIMIT $1`
		return r.db.SelectContext(ctx, &actions, query, limit)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load recent actions")
	}
	return actions, nil
}
