package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teedineasyteam-boop/teedin-identity/internal/identity"
)

const uniqueViolation = "23505"

// pgDirectory implements Directory on Postgres via pgxpool.
type pgDirectory struct {
	pool *pgxpool.Pool
}

// NewPG connects to the directory database and verifies the connection.
func NewPG(ctx context.Context, dsn string) (Directory, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &pgDirectory{pool: pool}, nil
}

func (d *pgDirectory) GetByID(ctx context.Context, id string) (*identity.Identity, error) {
	const q = `
		SELECT id, email, role, first_name, last_name, phone, created_at, updated_at
		FROM app_user WHERE id = $1`
	return d.scanOne(d.pool.QueryRow(ctx, q, id))
}

func (d *pgDirectory) GetByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	const q = `
		SELECT id, email, role, first_name, last_name, phone, created_at, updated_at
		FROM app_user WHERE email = $1`
	return d.scanOne(d.pool.QueryRow(ctx, q, normalizeEmail(email)))
}

func (d *pgDirectory) scanOne(row pgx.Row) (*identity.Identity, error) {
	var rec identity.Identity
	var role string
	err := row.Scan(&rec.ID, &rec.Email, &role, &rec.FirstName, &rec.LastName,
		&rec.Phone, &rec.CreatedAt, &rec.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Role = identity.Role(role)
	return &rec, nil
}

func (d *pgDirectory) Insert(ctx context.Context, in NewIdentity) (*identity.Identity, error) {
	const returning = ` RETURNING id, email, role, first_name, last_name, phone, created_at, updated_at`

	var row pgx.Row
	if in.ID != "" {
		const q = `
			INSERT INTO app_user (id, email, role, first_name, last_name, phone)
			VALUES ($1, $2, $3, $4, $5, $6)` + returning
		row = d.pool.QueryRow(ctx, q, in.ID, normalizeEmail(in.Email), string(in.Role),
			in.FirstName, in.LastName, in.Phone)
	} else {
		const q = `
			INSERT INTO app_user (email, role, first_name, last_name, phone)
			VALUES ($1, $2, $3, $4, $5)` + returning
		row = d.pool.QueryRow(ctx, q, normalizeEmail(in.Email), string(in.Role),
			in.FirstName, in.LastName, in.Phone)
	}

	rec, err := d.scanOne(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return rec, nil
}

func (d *pgDirectory) Update(ctx context.Context, rec *identity.Identity) error {
	const q = `
		UPDATE app_user
		SET first_name = $2, last_name = $3, phone = $4, updated_at = now()
		WHERE id = $1`
	tag, err := d.pool.Exec(ctx, q, rec.ID, rec.FirstName, rec.LastName, rec.Phone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *pgDirectory) AuthRecord(ctx context.Context, userID string) (identity.AuthRecord, error) {
	var rec identity.AuthRecord

	var legacy *string
	err := d.pool.QueryRow(ctx,
		`SELECT provider FROM app_user WHERE id = $1`, userID).Scan(&legacy)
	if err == pgx.ErrNoRows {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, err
	}
	if legacy != nil {
		rec.LegacyProvider = identity.Provider(*legacy)
	}

	rows, err := d.pool.Query(ctx, `
		SELECT provider, provider_user_id, email, created_at
		FROM identity WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return rec, err
	}
	defer rows.Close()

	for rows.Next() {
		var li identity.LinkedIdentity
		var provider string
		if err := rows.Scan(&provider, &li.SubjectID, &li.Email, &li.CreatedAt); err != nil {
			return rec, err
		}
		li.Provider = identity.Provider(provider)
		rec.Linked = append(rec.Linked, li)
	}
	return rec, rows.Err()
}

func (d *pgDirectory) LinkIdentity(ctx context.Context, userID string, link identity.LinkedIdentity) error {
	const q = `
		INSERT INTO identity (user_id, provider, provider_user_id, email)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, provider_user_id) DO NOTHING`
	_, err := d.pool.Exec(ctx, q, userID, string(link.Provider), link.SubjectID,
		normalizeEmail(link.Email))
	return err
}

func (d *pgDirectory) CreateProfile(ctx context.Context, p identity.Profile) error {
	table := "customer"
	if p.Role == identity.RoleAgent {
		table = "agent"
	}
	// table name comes from the closed Role set above, never from input
	q := `
		INSERT INTO ` + table + ` (user_id, display_name, avatar_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING`
	_, err := d.pool.Exec(ctx, q, p.UserID, p.DisplayName, p.AvatarURL)
	return err
}

func (d *pgDirectory) GetProfile(ctx context.Context, userID string) (*identity.Profile, error) {
	// customer first, agent as fallback; one row at most exists
	for _, probe := range []struct {
		table string
		role  identity.Role
	}{
		{"customer", identity.RoleCustomer},
		{"agent", identity.RoleAgent},
	} {
		q := `SELECT user_id, display_name, avatar_url, created_at FROM ` + probe.table + ` WHERE user_id = $1`
		var p identity.Profile
		err := d.pool.QueryRow(ctx, q, userID).Scan(&p.UserID, &p.DisplayName, &p.AvatarURL, &p.CreatedAt)
		if err == pgx.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		p.Role = probe.role
		return &p, nil
	}
	return nil, ErrNotFound
}

func (d *pgDirectory) Ping(ctx context.Context) error { return d.pool.Ping(ctx) }

func (d *pgDirectory) Close() { d.pool.Close() }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
