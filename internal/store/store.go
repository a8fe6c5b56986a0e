// Package store implements the Store capability from spec.md §4.1: job
// insertion, the atomic single-claim protocol, status updates, point
// reads, and keyset-paginated listing, over one of two engines selected
// by the DATABASE_URL prefix.
package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/escossio/sandbox-orchestrator/internal/model"
)

// ErrNotFound is returned by GetByID when no row matches.
var ErrNotFound = errors.New("store: job not found")

// Filter narrows a List call. Status and Query are applied only when
// non-empty; Cursor resumes from a previous page's boundary.
type Filter struct {
	Status string
	Query  string
	Limit  int
	Cursor *Cursor
}

// Cursor is the decoded form of a keyset pagination token: the
// (created_at, job_id) boundary of the last row already returned.
type Cursor struct {
	CreatedAt time.Time
	JobID     string
}

// EncodeCursor produces the base64url(utf8("<created_at ISO>|<job_id>"))
// token from spec.md §6, unpadded.
func EncodeCursor(c Cursor) string {
	raw := fmt.Sprintf("%s|%s", c.CreatedAt.UTC().Format(time.RFC3339Nano), c.JobID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor is the inverse of EncodeCursor. It tolerates both padded
// and unpadded base64url input.
func DecodeCursor(token string) (Cursor, error) {
	token = strings.TrimRight(token, "=")
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("store: malformed cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return Cursor{}, fmt.Errorf("store: malformed cursor contents")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		ts, err = time.Parse(time.RFC3339, parts[0])
		if err != nil {
			return Cursor{}, fmt.Errorf("store: malformed cursor timestamp: %w", err)
		}
	}
	return Cursor{CreatedAt: ts.UTC(), JobID: parts[1]}, nil
}

// Store is the capability spec.md §4.1 asks for: a handful of operations
// with two engine-specific implementations behind this one interface.
type Store interface {
	// InsertQueued writes a new row with status "queued".
	InsertQueued(ctx context.Context, row model.Row) error

	// ClaimOldestQueued atomically selects the oldest queued row ordered
	// by (created_at ASC, job_id ASC) and transitions it to running. ok
	// is false when no queued row exists.
	ClaimOldestQueued(ctx context.Context) (jobID, command string, ok bool, err error)

	// UpdateStatus unconditionally sets a row's status.
	UpdateStatus(ctx context.Context, jobID string, status model.Status) error

	// GetByID returns the full row, or ErrNotFound.
	GetByID(ctx context.Context, jobID string) (model.Row, error)

	// List returns up to filter.Limit rows ordered by
	// (created_at DESC, job_id DESC), plus the cursor for the next page
	// (nil when the result is the final page).
	List(ctx context.Context, filter Filter) (rows []model.Row, next *Cursor, err error)

	// Ping verifies connectivity for the health endpoint.
	Ping(ctx context.Context) error

	Close() error
}

// Open selects an engine by the DATABASE_URL prefix: "sqlite://" chooses
// the serialized engine, anything else the row-locking (Postgres) engine.
func Open(ctx context.Context, databaseURL string) (Store, error) {
	if strings.HasPrefix(databaseURL, "sqlite://") {
		return openSQLite(ctx, databaseURL)
	}
	return openPostgres(ctx, databaseURL)
}
