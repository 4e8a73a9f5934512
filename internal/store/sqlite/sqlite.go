package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/ticketsync-server/internal/store"
	"github.com/vovakirdan/ticketsync-server/internal/ticket"
)

//go:embed schema.sql
var schema string

const dsnParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*SQLiteStore)(nil)

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// ApplySchema creates the tables if they do not exist.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ==== TicketStore implementation ====

// CreateTicket opens a ticket with status open.
func (s *SQLiteStore) CreateTicket(ctx context.Context, t store.NewTicket) (*ticket.Ticket, error) {
	if err := ticket.ValidateNew(t.StudentID, t.ComplaintType, t.Description); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	now := s.now()
	query := `
		INSERT INTO tickets (id, student_id, complaint_type, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, t.StudentID, t.ComplaintType, t.Description, string(ticket.StatusOpen), now, now); err != nil {
		return nil, fmt.Errorf("insert ticket: %w", err)
	}

	return s.GetTicket(ctx, id)
}

// GetTicket retrieves a ticket with its comments in append order.
func (s *SQLiteStore) GetTicket(ctx context.Context, id string) (*ticket.Ticket, error) {
	return getTicket(ctx, s.db, id)
}

func getTicket(ctx context.Context, q querier, id string) (*ticket.Ticket, error) {
	query := `
		SELECT id, student_id, complaint_type, description, status, created_at, updated_at
		FROM tickets
		WHERE id = ?
	`
	var t ticket.Ticket
	var status string
	err := q.QueryRowContext(ctx, query, id).Scan(
		&t.ID,
		&t.StudentID,
		&t.ComplaintType,
		&t.Description,
		&status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ticket %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query ticket: %w", err)
	}
	t.Status = ticket.Status(status)

	comments, err := listComments(ctx, q, id)
	if err != nil {
		return nil, err
	}
	t.Comments = comments

	return &t, nil
}

func listComments(ctx context.Context, q querier, ticketID string) ([]ticket.Comment, error) {
	query := `
		SELECT author_id, content, is_admin, created_at
		FROM comments
		WHERE ticket_id = ?
		ORDER BY id ASC
	`
	rows, err := q.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	comments := make([]ticket.Comment, 0)
	for rows.Next() {
		var c ticket.Comment
		if err := rows.Scan(&c.AuthorID, &c.Content, &c.IsAdminComment, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

// ListTickets lists tickets newest first. Comments are not loaded.
func (s *SQLiteStore) ListTickets(ctx context.Context, studentID string) ([]*ticket.Ticket, error) {
	query := `
		SELECT id, student_id, complaint_type, description, status, created_at, updated_at
		FROM tickets
	`
	var args []any
	if studentID != "" {
		query += ` WHERE student_id = ?`
		args = append(args, studentID)
	}
	query += ` ORDER BY created_at DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	tickets := make([]*ticket.Ticket, 0)
	for rows.Next() {
		var t ticket.Ticket
		var status string
		if err := rows.Scan(&t.ID, &t.StudentID, &t.ComplaintType, &t.Description, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		t.Status = ticket.Status(status)
		tickets = append(tickets, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	return tickets, nil
}

// UpdateTicket applies an allow-listed update in one transaction.
func (s *SQLiteStore) UpdateTicket(ctx context.Context, id string, upd ticket.Update) (*ticket.Ticket, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM tickets WHERE id = ?`, id).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ticket %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query ticket: %w", err)
	}

	now := s.now()
	sets := []string{"updated_at = ?"}
	args := []any{now}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.ComplaintType != nil {
		sets = append(sets, "complaint_type = ?")
		args = append(args, *upd.ComplaintType)
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	args = append(args, id)

	query := `UPDATE tickets SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("update ticket: %w", err)
	}

	if upd.Comment != nil {
		insert := `
			INSERT INTO comments (ticket_id, author_id, content, is_admin, created_at)
			VALUES (?, ?, ?, ?, ?)
		`
		c := upd.Comment
		if _, err := tx.ExecContext(ctx, insert, id, c.AuthorID, c.Content, c.IsAdminComment, now); err != nil {
			return nil, fmt.Errorf("insert comment: %w", err)
		}
	}

	t, err := getTicket(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

// DeleteTicket removes a ticket and its comments.
func (s *SQLiteStore) DeleteTicket(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE ticket_id = ?`, id); err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("ticket %s: %w", id, store.ErrNotFound)
	}
	return tx.Commit()
}
