package summary

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CategoryTotal is one row of the month-to-date summary.
type CategoryTotal struct {
	Category string
	Cents    int64
}

type Repo struct {
	DB *pgxpool.Pool
}

// MonthToDate sums the user's expenses per category name from the first day
// of the month containing `today` through `today`. Categories with no
// expenses in that window do not appear.
func (r Repo) MonthToDate(ctx context.Context, userID string, today time.Time) ([]CategoryTotal, error) {
	firstOfMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	rows, err := r.DB.Query(ctx, `
		SELECT COALESCE(c.name, ''), SUM(e.amount_cents)::bigint
		FROM expenses e
		LEFT JOIN categories c ON c.id = e.category_id
		WHERE e.user_id = $1
		  AND e.spent_on BETWEEN $2 AND $3
		GROUP BY c.name
		ORDER BY c.name NULLS LAST`, userID, firstOfMonth, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CategoryTotal, 0)
	for rows.Next() {
		var t CategoryTotal
		if err := rows.Scan(&t.Category, &t.Cents); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
