package district

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bidhub/procurement/internal/metrics"
)

const dbTimeout = 3 * time.Second

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository counts member districts of a cooperative.
type Repository struct {
	db rowQuerier
}

// NewRepository creates the district repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

func (r *Repository) count(ctx context.Context, query string, args ...any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	defer metrics.RecordDBOperation("count", "districts", time.Now())

	var n int
	err := r.db.QueryRow(ctx, query, args...).Scan(&n)
	return n, err
}

// CountByCooperativeID counts districts belonging to the cooperative.
func (r *Repository) CountByCooperativeID(ctx context.Context, cooperativeID int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM districts WHERE cooperative_id = $1`, cooperativeID)
}

// CountByCooperativeIDSince counts districts that joined at or after since.
func (r *Repository) CountByCooperativeIDSince(ctx context.Context, cooperativeID int64, since time.Time) (int, error) {
	return r.count(ctx, `
		SELECT COUNT(*) FROM districts
		WHERE cooperative_id = $1 AND created_at >= $2
	`, cooperativeID, since)
}
