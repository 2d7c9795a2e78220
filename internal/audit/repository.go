package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Outcome values stored in the outcome column.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Transport values stored in the transport column.
const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"
)

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Pagination bounds for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// Entry is one audited RPC call.
type Entry struct {
	ID         string          `json:"id"`
	Method     string          `json:"method"`
	Transport  string          `json:"transport"`
	RemoteAddr string          `json:"remote_addr,omitempty"`
	Params     json.RawMessage `json:"params,omitempty"`
	Outcome    string          `json:"outcome"`
	ErrorCode  int             `json:"error_code,omitempty"`
	Duration   time.Duration   `json:"duration_ms"`
	CreatedAt  time.Time       `json:"created_at"`
}

// MarshalJSON reports Duration in whole milliseconds.
func (e Entry) MarshalJSON() ([]byte, error) {
	type alias Entry
	return json.Marshal(struct {
		alias
		Duration int64 `json:"duration_ms"`
	}{alias: alias(e), Duration: e.Duration.Milliseconds()})
}

// Filter controls which entries List returns.
type Filter struct {
	Method    string // optional: canonical method name
	Transport string // optional: http or mqtt
	Outcome   string // optional: ok or error
	Limit     int    // default 50, max 200
	Offset    int
}

// ListResult is one page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores and queries audit entries.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository keeps entries in the audit_logs table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an already migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an entry. ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = "aud-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var params any
	if len(entry.Params) > 0 {
		params = string(entry.Params)
	}
	var errorCode any
	if entry.ErrorCode != 0 {
		errorCode = entry.ErrorCode
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, created_at, method, transport, remote_addr, params, outcome, error_code, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.CreatedAt.UTC().Format(timeLayout),
		entry.Method, entry.Transport, entry.RemoteAddr,
		params, entry.Outcome, errorCode,
		entry.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	return nil
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Method != "" {
		conditions = append(conditions, "method = ?")
		args = append(args, filter.Method)
	}
	if filter.Transport != "" {
		conditions = append(conditions, "transport = ?")
		args = append(args, filter.Transport)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, filter.Outcome)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM audit_logs " + where //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	query := "SELECT id, created_at, method, transport, remote_addr, params, outcome, error_code, duration_ms FROM audit_logs " + //nolint:gosec // WHERE built from parameterised conditions
		where + " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var createdAt string
		var params sql.NullString
		var errorCode sql.NullInt64
		var durationMS int64

		if err := rows.Scan(&e.ID, &createdAt, &e.Method, &e.Transport, &e.RemoteAddr,
			&params, &e.Outcome, &errorCode, &durationMS); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		if params.Valid && params.String != "" {
			e.Params = json.RawMessage(params.String)
		}
		if errorCode.Valid {
			e.ErrorCode = int(errorCode.Int64)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond

		e.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing audit timestamp %q: %w", createdAt, err)
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
