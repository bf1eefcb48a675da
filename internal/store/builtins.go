// ABOUTME: Persistence for the builtin capability pack: announcement rows from
// ABOUTME: mesh/broadcast and dispatch rows from mesh/dispatch.

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SaveAnnouncement persists one broadcast announcement, filling ID and
// timestamp when absent.
func (s *SQLiteStore) SaveAnnouncement(ctx context.Context, a *Announcement) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO announcements (id, identity, channel, message, priority, ttl_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID,
		a.Identity,
		a.Channel,
		a.Message,
		a.Priority,
		int64(a.TTL.Seconds()),
		a.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting announcement: %w", err)
	}
	return nil
}

// ListAnnouncements returns a channel's announcements, newest first.
func (s *SQLiteStore) ListAnnouncements(ctx context.Context, channel string, limit int) ([]Announcement, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity, channel, message, priority, ttl_seconds, created_at
		FROM announcements
		WHERE channel = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("querying announcements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Announcement
	for rows.Next() {
		var a Announcement
		var ttlSeconds int64
		var createdStr string
		if err := rows.Scan(&a.ID, &a.Identity, &a.Channel, &a.Message, &a.Priority, &ttlSeconds, &createdStr); err != nil {
			return nil, fmt.Errorf("scanning announcement: %w", err)
		}
		a.TTL = time.Duration(ttlSeconds) * time.Second
		a.CreatedAt, err = time.Parse(time.RFC3339, createdStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating announcements: %w", err)
	}
	return out, nil
}

// SaveDispatch persists one dispatch, filling ID and timestamp when absent.
func (s *SQLiteStore) SaveDispatch(ctx context.Context, d *Dispatch) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dispatches (id, identity, target, payload, mode, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		d.ID,
		d.Identity,
		d.Target,
		d.Payload,
		d.Mode,
		d.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting dispatch: %w", err)
	}
	return nil
}

// ListDispatches returns a target's dispatches, newest first.
func (s *SQLiteStore) ListDispatches(ctx context.Context, target string, limit int) ([]Dispatch, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity, target, payload, mode, created_at
		FROM dispatches
		WHERE target = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, target, limit)
	if err != nil {
		return nil, fmt.Errorf("querying dispatches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Dispatch
	for rows.Next() {
		var d Dispatch
		var createdStr string
		if err := rows.Scan(&d.ID, &d.Identity, &d.Target, &d.Payload, &d.Mode, &createdStr); err != nil {
			return nil, fmt.Errorf("scanning dispatch: %w", err)
		}
		d.CreatedAt, err = time.Parse(time.RFC3339, createdStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dispatches: %w", err)
	}
	return out, nil
}
