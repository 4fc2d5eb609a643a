// Package store keeps an audit log of tool invocations in SQLite or Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Invocation is one recorded tool call.
type Invocation struct {
	ID        string                 `json:"id"`
	Tool      string                 `json:"tool"`
	Input     map[string]interface{} `json:"input,omitempty"`
	Result    string                 `json:"result,omitempty"`
	Status    string                 `json:"status"`
	Error     string                 `json:"error,omitempty"`
	EventID   string                 `json:"eventId,omitempty"`
	Delivered int                    `json:"delivered"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Store wraps the database used for the invocation log.
type Store struct {
	db     *sql.DB
	driver string
}

// Open initializes the datastore using the supplied DSN/file path and driver.
// It returns a nil Store for the "none" driver.
func Open(dsn string, driver string) (*Store, error) {
	if driver == "" {
		driver = DriverNone
	}
	switch driver {
	case DriverNone:
		return nil, nil
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported datastore driver: %s", driver)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("datastore DSN is required")
	}

	var (
		db  *sql.DB
		err error
	)
	if driver == DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create datastore directory: %w", err)
		}
		conn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dsn)
		db, err = sql.Open("sqlite", conn)
	} else {
		db, err = sql.Open("pgx", dsn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s datastore: %w", driver, err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS invocations (
			` + idColumn + `,
			tool TEXT NOT NULL,
			input TEXT,
			result TEXT,
			status TEXT NOT NULL,
			error TEXT,
			event_id TEXT,
			delivered INTEGER DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_tool ON invocations(tool);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("schema apply failed: %w", err)
		}
	}
	return nil
}

// Close shuts down the datastore.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AppendInvocation writes an invocation record and fills in its ID and timestamp.
func (s *Store) AppendInvocation(ctx context.Context, rec *Invocation) error {
	if rec.Tool == "" {
		return errors.New("invocation tool required")
	}
	rec.CreatedAt = time.Now().UTC()
	input, err := json.Marshal(rec.Input)
	if err != nil {
		return err
	}
	var id int64
	err = s.db.QueryRowContext(ctx, s.rebind(`INSERT INTO invocations (tool, input, result, status, error, event_id, delivered, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		rec.Tool, string(input), rec.Result, rec.Status, rec.Error, rec.EventID, rec.Delivered, rec.CreatedAt,
	).Scan(&id)
	if err != nil {
		return err
	}
	rec.ID = strconv.FormatInt(id, 10)
	return nil
}

// ListInvocations returns the newest records, optionally filtered by tool.
func (s *Store) ListInvocations(ctx context.Context, tool string, limit int) ([]Invocation, error) {
	query := `SELECT id, tool, input, result, status, error, event_id, delivered, created_at FROM invocations`
	var args []interface{}
	if tool != "" {
		query += ` WHERE tool = ?`
		args = append(args, tool)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invocation
	for rows.Next() {
		var (
			rec                             Invocation
			id                              int64
			input, result, errText, eventID sql.NullString
		)
		if err := rows.Scan(&id, &rec.Tool, &input, &result, &rec.Status, &errText, &eventID, &rec.Delivered, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.ID = strconv.FormatInt(id, 10)
		if input.Valid {
			_ = json.Unmarshal([]byte(input.String), &rec.Input)
		}
		rec.Result = result.String
		rec.Error = errText.String
		rec.EventID = eventID.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// rebind converts ? placeholders to $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
