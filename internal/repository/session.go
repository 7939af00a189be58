package repository

import (
	"context"
	"time"

	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/cloo-solutions/ragsync/internal/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository persists conversation windows in Postgres.
type SessionRepository struct {
	db     dbtx
	tx     *TxRunner
	window int
}

func NewSessionRepository(pool *pgxpool.Pool, window int) *SessionRepository {
	if window <= 0 {
		window = 20
	}
	return &SessionRepository{db: pool, tx: NewTxRunner(pool), window: window}
}

// Append adds messages and drops the oldest beyond the window.
func (r *SessionRepository) Append(ctx context.Context, sessionID string, msgs ...domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return r.tx.WithTx(ctx, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		_, err := tx.Exec(ctx,
			`INSERT INTO chat_sessions (id, created_at, last_active) VALUES ($1, $2, $2)
			 ON CONFLICT (id) DO UPDATE SET last_active = EXCLUDED.last_active`,
			sessionID, now,
		)
		if err != nil {
			return err
		}

		for _, m := range msgs {
			createdAt := m.CreatedAt
			if createdAt.IsZero() {
				createdAt = now
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO chat_messages (session_id, role, content, created_at) VALUES ($1, $2, $3, $4)`,
				sessionID, string(m.Role), m.Content, createdAt,
			)
			if err != nil {
				return err
			}
		}

		_, err = tx.Exec(ctx,
			`DELETE FROM chat_messages
			 WHERE session_id = $1 AND id NOT IN (
			     SELECT id FROM chat_messages WHERE session_id = $1 ORDER BY id DESC LIMIT $2
			 )`,
			sessionID, r.window,
		)
		return err
	})
}

// History returns the window oldest first. Unknown sessions have no history.
func (r *SessionRepository) History(ctx context.Context, sessionID string) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT role, content, created_at FROM (
		     SELECT id, role, content, created_at FROM chat_messages
		     WHERE session_id = $1 ORDER BY id DESC LIMIT $2
		 ) recent ORDER BY id ASC`,
		sessionID, r.window,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := make([]domain.Message, 0)
	for rows.Next() {
		var m domain.Message
		var role string
		if err := rows.Scan(&role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Clear removes the session and its messages, reporting whether it existed.
func (r *SessionRepository) Clear(ctx context.Context, sessionID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, sessionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// List pages sessions by most recent activity.
func (r *SessionRepository) List(ctx context.Context, cursor string, limit int) (*pagination.PageResult[domain.SessionInfo], error) {
	limit = pagination.ClampLimit(limit)

	c, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	var rows pgx.Rows
	const base = `SELECT s.id, s.last_active, (SELECT count(*) FROM chat_messages m WHERE m.session_id = s.id)
		 FROM chat_sessions s`
	if c == nil {
		rows, err = r.db.Query(ctx, base+` ORDER BY s.last_active DESC, s.id DESC LIMIT $1`, limit+1)
	} else {
		rows, err = r.db.Query(ctx,
			base+` WHERE (s.last_active, s.id) < ($1, $2) ORDER BY s.last_active DESC, s.id DESC LIMIT $3`,
			c.Timestamp, c.LastID, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SessionInfo, 0, limit+1)
	for rows.Next() {
		var info domain.SessionInfo
		if err := rows.Scan(&info.ID, &info.LastActive, &info.MessageCount); err != nil {
			return nil, err
		}
		items = append(items, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return pagination.NewPage(items, limit,
		func(s domain.SessionInfo) string { return s.ID },
		func(s domain.SessionInfo) time.Time { return s.LastActive },
	), nil
}

// Sweep deletes sessions idle since before cutoff.
func (r *SessionRepository) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM chat_sessions WHERE last_active < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
