// Package store persists analysis run history.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ppiankov/persona/internal/model"
)

// ErrNotFound is returned when a run id is unknown
var ErrNotFound = errors.New("run not found")

// Run is one stored analysis run
type Run struct {
	ID        string
	Username  string
	Provider  string
	Model     string
	Degraded  bool
	Citations int
	Grounding int
	CreatedAt time.Time

	// Outcome is the full stored outcome; only GetRun fills it
	Outcome *model.Outcome
}

// Repository defines the interface for persisting analysis runs.
type Repository interface {
	// SaveRun stores a completed run keyed by its RunID.
	SaveRun(ctx context.Context, outcome *model.Outcome) error

	// ListRuns returns the most recent runs, newest first. An empty username
	// lists runs for every user.
	ListRuns(ctx context.Context, username string, limit int) ([]Run, error)

	// GetRun returns one run with its outcome, or ErrNotFound.
	GetRun(ctx context.Context, id string) (*Run, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
