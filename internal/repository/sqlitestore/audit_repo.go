package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go-videotube/internal/model"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Log(ctx context.Context, entry model.AuditEntry) error {
	occurredAt, err := time.Parse(time.RFC3339Nano, entry.OccurredAt)
	if err != nil {
		occurredAt = time.Now()
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO audit_entries (action, occurred_at, user_id, actor_ip, status, detail)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Action, toMillis(occurredAt), entry.Actor.UserID, entry.Actor.IP, entry.Status, entry.Detail)
	if err != nil {
		return fmt.Errorf("log audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, error) {
	limit := query.Limit
	switch {
	case limit <= 0:
		limit = 50
	case limit > 200:
		limit = 200
	}

	where := make([]string, 0)
	args := make([]any, 0)
	if userID := strings.TrimSpace(query.UserID); userID != "" {
		where = append(where, "user_id = ?")
		args = append(args, userID)
	}
	if action := strings.TrimSpace(query.Action); action != "" {
		where = append(where, "lower(action) = lower(?)")
		args = append(args, action)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT action, occurred_at, user_id, actor_ip, status, detail
		 FROM audit_entries %s
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT ?`, whereClause), args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0)
	for rows.Next() {
		var e model.AuditEntry
		var occurredAt int64
		if err := rows.Scan(&e.Action, &occurredAt, &e.Actor.UserID, &e.Actor.IP, &e.Status, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.OccurredAt = fromMillis(occurredAt).Format(time.RFC3339Nano)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
