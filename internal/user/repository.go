package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/bidhub/procurement/internal/apperr"
	"github.com/bidhub/procurement/internal/authz"
	"github.com/bidhub/procurement/internal/db"
)

const dbTimeout = 3 * time.Second

const entityName = "User"

// StatusActive is the only account status allowed to sign in.
const StatusActive = "active"

// Credentials is what login needs to verify a password.
type Credentials struct {
	ID           int64
	Email        string
	PasswordHash string
	Status       string
}

// Repository loads users and their role assignments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates the user repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetCredentials finds login data by e-mail, case-insensitively.
func (r *Repository) GetCredentials(ctx context.Context, email string) (*Credentials, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var c Credentials
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, status
		FROM users
		WHERE lower(email) = lower($1)
	`, strings.TrimSpace(email)).Scan(&c.ID, &c.Email, &c.PasswordHash, &c.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(entityName)
		}
		return nil, err
	}
	return &c, nil
}

// TouchLastLogin records a successful sign-in.
func (r *Repository) TouchLastLogin(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `UPDATE users SET last_login = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(entityName)
	}
	return nil
}

// UpdatePasswordHash replaces the stored password hash.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(entityName)
	}
	return nil
}

// GetAuthUser assembles the authorization view of a user in one read snapshot.
func (r *Repository) GetAuthUser(ctx context.Context, id int64) (*authz.User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var u *authz.User
	err := db.WithTx(ctx, r.pool, db.ReadSnapshot, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if u, err = scanUser(tx.QueryRow(ctx, `
			SELECT id, first_name, last_name, email, status, cooperative_id,
			       district_id, last_login, demo_account
			FROM users
			WHERE id = $1
		`, id)); err != nil {
			return err
		}
		if u.Roles, err = loadRoles(ctx, tx, id); err != nil {
			return err
		}
		if u.BidRoles, err = loadBidRoles(ctx, tx, id); err != nil {
			return err
		}
		u.ManagedBids, err = loadManagedBids(ctx, tx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(entityName)
		}
		return nil, err
	}
	return u, nil
}

func scanUser(row pgx.Row) (*authz.User, error) {
	var (
		u                   authz.User
		firstName, lastName string
	)
	if err := row.Scan(&u.ID, &firstName, &lastName, &u.Email, &u.Status, &u.CooperativeID,
		&u.DistrictID, &u.LastLogin, &u.DemoAccount); err != nil {
		return nil, err
	}
	u.Name = strings.TrimSpace(firstName + " " + lastName)
	return &u, nil
}

const permissionsAgg = `COALESCE(array_agg(p.name ORDER BY p.id) FILTER (WHERE p.name IS NOT NULL), '{}')`

func loadRoles(ctx context.Context, tx pgx.Tx, userID int64) ([]authz.RoleAssignment, error) {
	rows, err := tx.Query(ctx, `
		SELECT r.name, ur.scope_type, ur.scope_id, `+permissionsAgg+`
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1
		GROUP BY ur.id, r.name, ur.scope_type, ur.scope_id
		ORDER BY ur.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []authz.RoleAssignment{}
	for rows.Next() {
		var (
			name, scopeType string
			scopeID         *int64
			perms           []string
		)
		if err := rows.Scan(&name, &scopeType, &scopeID, &perms); err != nil {
			return nil, err
		}
		if ra, ok := buildAssignment(name, authz.ScopeType(scopeType), scopeID, perms); ok {
			roles = append(roles, ra)
		}
	}
	return roles, rows.Err()
}

func loadBidRoles(ctx context.Context, tx pgx.Tx, userID int64) ([]authz.RoleAssignment, error) {
	rows, err := tx.Query(ctx, `
		SELECT r.name, ubr.bid_id, `+permissionsAgg+`
		FROM user_bid_roles ubr
		JOIN roles r ON r.id = ubr.role_id
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE ubr.user_id = $1
		GROUP BY ubr.id, r.name, ubr.bid_id
		ORDER BY ubr.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []authz.RoleAssignment{}
	for rows.Next() {
		var (
			name  string
			bidID int64
			perms []string
		)
		if err := rows.Scan(&name, &bidID, &perms); err != nil {
			return nil, err
		}
		if ra, ok := buildAssignment(name, authz.ScopeBid, &bidID, perms); ok {
			roles = append(roles, ra)
		}
	}
	return roles, rows.Err()
}

func loadManagedBids(ctx context.Context, tx pgx.Tx, userID int64) ([]authz.ManagedBidRef, error) {
	rows, err := tx.Query(ctx, `
		SELECT b.id, b.code
		FROM bids b
		WHERE b.is_deleted = FALSE
		  AND (b.user_id = $1 OR EXISTS (
		      SELECT 1 FROM bid_managers bm WHERE bm.bid_id = b.id AND bm.user_id = $1))
		ORDER BY b.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := []authz.ManagedBidRef{}
	for rows.Next() {
		var ref authz.ManagedBidRef
		if err := rows.Scan(&ref.ID, &ref.Code); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// buildAssignment drops rows whose role name falls outside the closed role set
// and filters unknown permission names.
func buildAssignment(name string, scopeType authz.ScopeType, scopeID *int64, perms []string) (authz.RoleAssignment, bool) {
	role, ok := authz.ParseRoleType(name)
	if !ok {
		log.Warn().Str("role", name).Msg("ignoring unknown role")
		return authz.RoleAssignment{}, false
	}
	if !scopeType.Valid() {
		scopeType = authz.ScopePlatform
	}

	ra := authz.RoleAssignment{
		Type:        role,
		Scope:       authz.Scope{Type: scopeType, ID: scopeID},
		Permissions: make([]authz.Permission, 0, len(perms)),
	}
	for _, p := range perms {
		if perm := authz.Permission(p); perm.Valid() {
			ra.Permissions = append(ra.Permissions, perm)
		}
	}
	return ra, true
}
