// Package postgres implements the repository contracts on PostgreSQL
// through sqlx.
package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sony/gobreaker"

	"github.com/syncboard/syncboard/pkg/observability"
)

// BaseRepository carries the shared database handle, observability hooks
// and the circuit breaker guarding every query.
type BaseRepository struct {
	db      *sqlx.DB
	logger  observability.Logger
	metrics observability.MetricsClient
	breaker *gobreaker.CircuitBreaker

	queryTimeout time.Duration
}

// NewBaseRepository wires a repository base around the given DB handle.
func NewBaseRepository(db *sqlx.DB, logger observability.Logger, metrics observability.MetricsClient, name string) *BaseRepository {
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("repository circuit breaker state change", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	}
	return &BaseRepository{
		db:           db,
		logger:       logger,
		metrics:      metrics,
		breaker:      gobreaker.NewCircuitBreaker(settings),
		queryTimeout: 30 * time.Second,
	}
}

// execute runs op behind the circuit breaker with the repository query
// timeout applied.
func (r *BaseRepository) execute(ctx context.Context, operation string, op func(ctx context.Context) error) error {
	start := time.Now()
	_, err := r.breaker.Execute(func() (interface{}, error) {
		opCtx, cancel := context.WithTimeout(ctx, r.queryTimeout)
		defer cancel()
		return nil, op(opCtx)
	})
	r.metrics.RecordLatency("repository_"+operation, time.Since(start))
	return err
}
