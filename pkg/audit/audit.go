package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iglennon-qualys/ResetAssetGroups/pkg/remediate"
)

const schema = `
CREATE TABLE IF NOT EXISTS asset_group_changes (
    id               BIGSERIAL PRIMARY KEY,
    run_id           UUID        NOT NULL,
    group_id         TEXT        NOT NULL,
    title            TEXT        NOT NULL DEFAULT '',
    previous_impact  TEXT        NOT NULL DEFAULT '',
    target_impact    TEXT        NOT NULL,
    action           TEXT        NOT NULL,
    message          TEXT        NOT NULL DEFAULT '',
    recorded_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS asset_group_changes_run_idx ON asset_group_changes (run_id);
CREATE INDEX IF NOT EXISTS asset_group_changes_group_idx ON asset_group_changes (group_id, recorded_at DESC);
`

// Store writes the change log to Postgres.
type Store struct{ Pool *pgxpool.Pool }

// Open connects to url and verifies the connection with a ping.
func Open(ctx context.Context, url string) (*Store, error) {
	p, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("audit db open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		p.Close()
		return nil, fmt.Errorf("audit db ping: %w", err)
	}
	return &Store{Pool: p}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.Pool.Close() }

// EnsureSchema creates the change table and its indexes if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schema)
	return err
}

// Change is one row of the audit trail.
type Change struct {
	RunID          string
	GroupID        string
	Title          string
	PreviousImpact string
	TargetImpact   string
	Action         string
	Message        string
	RecordedAt     time.Time
}

// ChangeFromOutcome maps a remediation outcome to an audit row.
func ChangeFromOutcome(runID string, o remediate.Outcome) Change {
	return Change{
		RunID:          runID,
		GroupID:        o.Group.ID,
		Title:          o.Group.Title,
		PreviousImpact: o.Group.BusinessImpact,
		TargetImpact:   string(o.Target),
		Action:         string(o.Action),
		Message:        o.Message,
		RecordedAt:     o.At,
	}
}

// RecordChange inserts c, stamping it with the current time if unset.
func (s *Store) RecordChange(ctx context.Context, c Change) error {
	if c.RecordedAt.IsZero() {
		c.RecordedAt = time.Now().UTC()
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO asset_group_changes
		    (run_id, group_id, title, previous_impact, target_impact, action, message, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.RunID, c.GroupID, c.Title, c.PreviousImpact, c.TargetImpact, c.Action, c.Message, c.RecordedAt)
	return err
}

// Observe implements remediate.Observer. Skipped groups are not recorded.
func (s *Store) Observe(ctx context.Context, runID string, o remediate.Outcome) error {
	if o.Action == remediate.ActionSkipped {
		return nil
	}
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.RecordChange(writeCtx, ChangeFromOutcome(runID, o))
}
