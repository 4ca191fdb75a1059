package expense

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("expense not found")

type Repository struct {
	Pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{Pool: pool}
}

func (r *Repository) Insert(ctx context.Context, e *Expense) (string, error) {
	var id string
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO expenses (user_id, category_id, amount_cents, spent_on)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		e.UserID, e.CategoryID, e.AmountCents, e.SpentOn,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListByUser returns the user's expenses newest date first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]Expense, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT id, user_id, category_id, amount_cents, spent_on, created_at
		FROM expenses
		WHERE user_id = $1
		ORDER BY spent_on DESC, created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Expense, 0)
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.UserID, &e.CategoryID, &e.AmountCents, &e.SpentOn, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FindForUser fetches a single expense scoped to its owner. Rows owned by
// anyone else look exactly like missing rows.
func (r *Repository) FindForUser(ctx context.Context, id, userID string) (*Expense, error) {
	var e Expense
	err := r.Pool.QueryRow(ctx, `
		SELECT id, user_id, category_id, amount_cents, spent_on, created_at
		FROM expenses
		WHERE id = $1 AND user_id = $2`, id, userID,
	).Scan(&e.ID, &e.UserID, &e.CategoryID, &e.AmountCents, &e.SpentOn, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) Update(ctx context.Context, e *Expense) error {
	tag, err := r.Pool.Exec(ctx, `
		UPDATE expenses
		SET category_id = $3, amount_cents = $4, spent_on = $5
		WHERE id = $1 AND user_id = $2`,
		e.ID, e.UserID, e.CategoryID, e.AmountCents, e.SpentOn)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.Pool.Exec(ctx,
		`DELETE FROM expenses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
