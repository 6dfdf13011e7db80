package repository

import (
	"context"

	"github.com/samber/oops"

	"authcore/backend/internal/audit/domain"
	"authcore/backend/internal/db"
)

const entryColumns = `id, event_type, account_id, session_id, reason, user_agent, network_origin, created_at`

// PostgresRepository stores the audit trail in the session_events table.
type PostgresRepository struct {
	db db.DBTX
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository returns an audit repository that uses conn for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Create persists e. The entry must have ID set. Replaying an id is a no-op.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Entry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO session_events (`+entryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, e.EventType, e.AccountID, e.SessionID, e.Reason, e.UserAgent, e.NetworkOrigin, e.CreatedAt)
	if err != nil {
		return oops.Code("AUDIT_INSERT_FAILED").With("event_id", e.ID).With("event_type", e.EventType).Wrap(err)
	}
	return nil
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int32) ([]*domain.Entry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+entryColumns+` FROM session_events
		 WHERE account_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		accountID, limit, offset)
	if err != nil {
		return nil, oops.Code("AUDIT_LIST_FAILED").With("account_id", accountID).Wrap(err)
	}
	defer rows.Close()

	var out []*domain.Entry
	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(&e.ID, &e.EventType, &e.AccountID, &e.SessionID, &e.Reason,
			&e.UserAgent, &e.NetworkOrigin, &e.CreatedAt); err != nil {
			return nil, oops.Code("AUDIT_LIST_FAILED").With("account_id", accountID).Wrap(err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("AUDIT_LIST_FAILED").With("account_id", accountID).Wrap(err)
	}
	return out, nil
}
