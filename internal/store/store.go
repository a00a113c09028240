// Package store persists candidates and finished matching sessions.
package store

import (
	"context"
	"errors"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/conversation"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/directory"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/matching"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Repository defines the persistence operations used by the server and CLI.
// It also satisfies directory.Directory.
type Repository interface {
	// Candidates lists candidates of a role, newest first.
	Candidates(ctx context.Context, role conversation.Role) ([]directory.Candidate, error)

	// UpsertCandidate creates or updates a candidate by id.
	UpsertCandidate(ctx context.Context, c directory.Candidate) error

	// DeleteCandidate removes a candidate. It returns ErrNotFound when the id is unknown.
	DeleteCandidate(ctx context.Context, id string) error

	// SaveSession stores a session result, replacing any previous version.
	SaveSession(ctx context.Context, res *matching.Result) error

	// Session loads a stored session result.
	Session(ctx context.Context, id string) (*matching.Result, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// Config selects the database.
type Config struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var _ directory.Directory = Repository(nil)
