package notifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/handoff/internal/apperr"
	"github.com/ziadkadry99/handoff/internal/db"
)

// Store persists the notification log.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create inserts a notification. If n.ID is empty a UUID is generated.
func (s *Store) Create(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Channel == "" {
		n.Channel = ChannelLog
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, type, channel, recipient, request_id, title, message, delivered, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, string(n.Type), string(n.Channel), n.Recipient, n.RequestID,
		n.Title, n.Message, boolInt(n.Delivered), n.Error, db.FormatTime(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// GetByID retrieves a single notification.
func (s *Store) GetByID(ctx context.Context, id string) (*Notification, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM notifications WHERE id = ?`, id)
	n, err := scanInto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("notification", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification: %w", err)
	}
	return n, nil
}

const columns = `id, type, channel, recipient, request_id, title, message, delivered, error, created_at`

// List returns notifications matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Notification, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.RequestID != "" {
		clauses = append(clauses, "request_id = ?")
		args = append(args, filter.RequestID)
	}
	if filter.Delivered != nil {
		clauses = append(clauses, "delivered = ?")
		args = append(args, boolInt(*filter.Delivered))
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, db.FormatTime(filter.Since))
	}

	query := "SELECT " + columns + " FROM notifications"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	result := []Notification{}
	for rows.Next() {
		n, err := scanInto(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

// MarkDelivered sets delivered=1 and clears the recorded error.
func (s *Store) MarkDelivered(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE notifications SET delivered = 1, error = '' WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking notification delivered: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFound("notification", id)
	}
	return nil
}

// Undelivered returns every notification whose delivery failed.
func (s *Store) Undelivered(ctx context.Context) ([]Notification, error) {
	delivered := false
	return s.List(ctx, ListFilter{Delivered: &delivered})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInto(sc scanner) (*Notification, error) {
	var (
		n         Notification
		ntype     string
		channel   string
		delivered int
		ts        string
	)

	err := sc.Scan(&n.ID, &ntype, &channel, &n.Recipient, &n.RequestID,
		&n.Title, &n.Message, &delivered, &n.Error, &ts)
	if err != nil {
		return nil, err
	}

	n.Type = Type(ntype)
	n.Channel = Channel(channel)
	n.Delivered = delivered != 0
	if n.CreatedAt, err = db.ParseTime(ts); err != nil {
		return nil, err
	}
	return &n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
