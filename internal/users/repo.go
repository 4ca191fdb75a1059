package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("user not found")

type Repository struct {
	Pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{Pool: pool}
}

const userColumns = `id, username, email, first_name, last_name, password_hash,
	is_active, is_staff, is_superuser, last_login, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		&u.IsActive,
		&u.IsStaff,
		&u.IsSuperuser,
		&u.LastLogin,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) Create(ctx context.Context, u *User) (string, error) {
	var id string
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO users (username, email, first_name, last_name, password_hash, is_active)
		VALUES ($1, $2, $3, $4, $5, false)
		RETURNING id`,
		u.Username, u.Email, u.FirstName, u.LastName, u.PasswordHash,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (*User, error) {
	return scanUser(r.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *Repository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(r.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *Repository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var taken bool
	err := r.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&taken)
	return taken, err
}

func (r *Repository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var taken bool
	err := r.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&taken)
	return taken, err
}

// Activate flips the account to active. Returns ErrNotFound for unknown ids.
func (r *Repository) Activate(ctx context.Context, id string) error {
	tag, err := r.Pool.Exec(ctx, `UPDATE users SET is_active = true WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := r.Pool.Exec(ctx, `UPDATE users SET last_login = now() WHERE id = $1`, id)
	return err
}

func (r *Repository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	tag, err := r.Pool.Exec(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IsModerator reports membership in the Moderator group.
func (r *Repository) IsModerator(ctx context.Context, id string) (bool, error) {
	var isMod bool
	err := r.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM user_groups ug
			JOIN groups g ON g.id = ug.group_id
			WHERE ug.user_id = $1 AND g.name = $2
		)`, id, ModeratorGroup).Scan(&isMod)
	return isMod, err
}

// AddToGroup attaches the user to a named group, creating the group if needed.
func (r *Repository) AddToGroup(ctx context.Context, userID, group string) error {
	_, err := r.Pool.Exec(ctx, `
		WITH g AS (
			INSERT INTO groups (name) VALUES ($2)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		)
		INSERT INTO user_groups (user_id, group_id)
		SELECT $1, id FROM g
		ON CONFLICT DO NOTHING`, userID, group)
	return err
}

// ListOrdinary returns active accounts that are neither staff, superusers,
// moderators, nor the requester, ordered by last then first name.
func (r *Repository) ListOrdinary(ctx context.Context, requesterID string) ([]User, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users u
		WHERE u.is_active
		  AND NOT u.is_staff
		  AND NOT u.is_superuser
		  AND u.id <> $1
		  AND NOT EXISTS (
			SELECT 1
			FROM user_groups ug
			JOIN groups g ON g.id = ug.group_id
			WHERE ug.user_id = u.id AND g.name = $2
		  )
		ORDER BY u.last_name, u.first_name`, requesterID, ModeratorGroup)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}
