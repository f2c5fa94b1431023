package bid

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bidhub/procurement/internal/apperr"
	"github.com/bidhub/procurement/internal/authz"
	"github.com/bidhub/procurement/internal/metrics"
)

const dbTimeout = 3 * time.Second

const bidColumns = `
	b.id, b.code, b.name, b.note, b.bid_year, b.category_id, b.status, b.award_type,
	b.start_date, b.end_date, b.anticipated_opening_date, b.award_date, b.user_id,
	b.description, b.estimated_value, b.cooperative_id, b.district_id, b.school_id,
	b.is_deleted, b.created_at, b.updated_at`

// Repository persists bids in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates the bid repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanBid(row pgx.Row) (*Bid, error) {
	var (
		b      Bid
		status string
	)
	err := row.Scan(
		&b.ID, &b.Code, &b.Name, &b.Note, &b.BidYear, &b.CategoryID, &status, &b.AwardType,
		&b.StartDate, &b.EndDate, &b.AnticipatedOpeningDate, &b.AwardDate, &b.UserID,
		&b.Description, &b.EstimatedValue, &b.CooperativeID, &b.DistrictID, &b.SchoolID,
		&b.IsDeleted, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = Status(status)
	return &b, nil
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Bid, error) {
	defer metrics.RecordDBOperation("select", "bids", time.Now())
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bids := []Bid{}
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, *b)
	}
	return bids, rows.Err()
}

func (r *Repository) count(ctx context.Context, query string, args ...any) (int, error) {
	defer metrics.RecordDBOperation("count", "bids", time.Now())
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var n int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Create inserts a bid and returns the stored row.
func (r *Repository) Create(ctx context.Context, b *Bid) (*Bid, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO bids AS b (
			code, name, note, bid_year, category_id, status, award_type,
			start_date, end_date, anticipated_opening_date, award_date, user_id,
			description, estimated_value, cooperative_id, district_id, school_id,
			is_deleted, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, FALSE, $18, $19)
		RETURNING `+bidColumns,
		b.Code, b.Name, b.Note, b.BidYear, b.CategoryID, string(b.Status), b.AwardType,
		b.StartDate, b.EndDate, b.AnticipatedOpeningDate, b.AwardDate, b.UserID,
		b.Description, b.EstimatedValue, b.CooperativeID, b.DistrictID, b.SchoolID,
		b.CreatedAt, b.UpdatedAt,
	)
	return scanBid(row)
}

// FindByID returns the bid even when soft-deleted.
func (r *Repository) FindByID(ctx context.Context, id int64) (*Bid, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `SELECT `+bidColumns+` FROM bids b WHERE b.id = $1`, id)
	b, err := scanBid(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(entityName)
	}
	return b, err
}

// FindAll lists every live bid.
func (r *Repository) FindAll(ctx context.Context) ([]Bid, error) {
	return r.list(ctx, `SELECT `+bidColumns+` FROM bids b WHERE b.is_deleted = FALSE ORDER BY b.id DESC`)
}

// FindByScope lists live bids for an organization and optional school.
func (r *Repository) FindByScope(ctx context.Context, f ScopeFilter) ([]Bid, error) {
	w := scopeWhere(f)
	return r.list(ctx, `SELECT `+bidColumns+` FROM bids b `+w.sql()+` ORDER BY b.id DESC`, w.args...)
}

// FindByBidManager unions bids owned by the user with bids the user manages.
func (r *Repository) FindByBidManager(ctx context.Context, userID int64) ([]Bid, error) {
	return r.list(ctx, `
		SELECT `+bidColumns+`
		FROM bids b
		WHERE b.is_deleted = FALSE
		  AND (b.user_id = $1 OR EXISTS (
			SELECT 1 FROM bid_managers bm WHERE bm.bid_id = b.id AND bm.user_id = $1
		  ))
		ORDER BY b.id DESC`, userID)
}

// FindByDistrictID lists live bids owned by a district.
func (r *Repository) FindByDistrictID(ctx context.Context, districtID int64) ([]Bid, error) {
	return r.list(ctx, `SELECT `+bidColumns+` FROM bids b WHERE b.is_deleted = FALSE AND b.district_id = $1 ORDER BY b.id DESC`, districtID)
}

// FindByCooperativeID lists live bids owned by a cooperative.
func (r *Repository) FindByCooperativeID(ctx context.Context, cooperativeID int64) ([]Bid, error) {
	return r.list(ctx, `SELECT `+bidColumns+` FROM bids b WHERE b.is_deleted = FALSE AND b.cooperative_id = $1 ORDER BY b.id DESC`, cooperativeID)
}

// FindPaginated returns one page of bids and the total matching rows.
func (r *Repository) FindPaginated(ctx context.Context, p PageParams) ([]Bid, int, error) {
	w := paginatedWhere(p)
	from := ` FROM bids b LEFT JOIN users u ON u.id = b.user_id ` + w.sql()

	total, err := r.count(ctx, `SELECT COUNT(*)`+from, w.args...)
	if err != nil {
		return nil, 0, err
	}

	args := append([]any{}, w.args...)
	limitArg := "$" + strconv.Itoa(len(args)+1)
	offsetArg := "$" + strconv.Itoa(len(args)+2)
	args = append(args, p.Limit, p.offset())

	bids, err := r.list(ctx, `SELECT `+bidColumns+from+` ORDER BY b.id DESC LIMIT `+limitArg+` OFFSET `+offsetArg, args...)
	if err != nil {
		return nil, 0, err
	}
	return bids, total, nil
}

// Update writes every mutable column of b.
func (r *Repository) Update(ctx context.Context, b *Bid) (*Bid, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		UPDATE bids AS b SET
			code = $2, name = $3, note = $4, bid_year = $5, category_id = $6, status = $7,
			award_type = $8, start_date = $9, end_date = $10, anticipated_opening_date = $11,
			award_date = $12, user_id = $13, description = $14, estimated_value = $15,
			cooperative_id = $16, district_id = $17, school_id = $18, updated_at = $19
		WHERE b.id = $1
		RETURNING `+bidColumns,
		b.ID, b.Code, b.Name, b.Note, b.BidYear, b.CategoryID, string(b.Status),
		b.AwardType, b.StartDate, b.EndDate, b.AnticipatedOpeningDate,
		b.AwardDate, b.UserID, b.Description, b.EstimatedValue,
		b.CooperativeID, b.DistrictID, b.SchoolID, b.UpdatedAt,
	)
	updated, err := scanBid(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(entityName)
	}
	return updated, err
}

// SoftDelete flags the bid as deleted and keeps the row.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `UPDATE bids SET is_deleted = TRUE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(entityName)
	}
	return nil
}

// Delete removes the row permanently. The service never calls it.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM bids WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(entityName)
	}
	return nil
}

const activeCondition = `b.is_deleted = FALSE AND b.status = ANY($1)`

func activeArgs() []string {
	return statusNames(ActiveStatuses)
}

// activeWhere builds the active-bid predicate, optionally windowed by
// creation time and narrowed to an organization.
func activeWhere(since *time.Time, f authz.OrganizationFilter) *where {
	w := &where{args: []any{activeArgs()}}
	w.add(activeCondition)
	if since != nil {
		w.add("b.created_at >= " + w.arg(*since))
	}
	w.organization(f)
	return w
}

func (r *Repository) countActive(ctx context.Context, w *where) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM bids b `+w.sql(), w.args...)
}

// CountActive counts active bids platform-wide.
func (r *Repository) CountActive(ctx context.Context) (int, error) {
	return r.countActive(ctx, activeWhere(nil, authz.OrganizationFilter{}))
}

// CountActiveSince counts active bids created at or after since.
func (r *Repository) CountActiveSince(ctx context.Context, since time.Time) (int, error) {
	return r.countActive(ctx, activeWhere(&since, authz.OrganizationFilter{}))
}

// CountActiveByOrganization counts active bids within an organization.
func (r *Repository) CountActiveByOrganization(ctx context.Context, f authz.OrganizationFilter) (int, error) {
	return r.countActive(ctx, activeWhere(nil, f))
}

// CountActiveSinceByOrganization combines the since window with an organization.
func (r *Repository) CountActiveSinceByOrganization(ctx context.Context, since time.Time, f authz.OrganizationFilter) (int, error) {
	return r.countActive(ctx, activeWhere(&since, f))
}
