// Package audit records security-relevant events (logins, moderator
// deletions) in the audit_logs table.
package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Entry struct {
	UserID     *string
	Action     string
	EntityType string
	EntityID   *string
	IP         *string
}

// Recorder persists audit entries. Handlers treat failures as non-fatal.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

type PG struct {
	Pool *pgxpool.Pool
}

func (p *PG) Record(ctx context.Context, e Entry) error {
	if p == nil || p.Pool == nil {
		return nil
	}
	_, err := p.Pool.Exec(ctx, `
INSERT INTO audit_logs (user_id, action, entity_type, entity_id, ip)
VALUES ($1, $2, $3, $4, $5)
`, e.UserID, e.Action, e.EntityType, e.EntityID, e.IP)
	return err
}

// Nop discards entries; used in tests.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }
