// Package backend defines the datastore contract the query session counts against.
package backend

import (
	"context"
	"errors"

	"cosyq/internal/query"
)

var (
	// ErrConnectionLost marks a transient failure: the session waits a fixed backoff
	// and returns to the prompt without retrying the command.
	ErrConnectionLost = errors.New("connection lost")

	// ErrUnknownProject is returned when a project name does not exist in the backend.
	ErrUnknownProject = errors.New("unknown project")
)

// GroupRow is one bucket of a grouped count. Values are aligned with the
// group keys of the request.
type GroupRow struct {
	Values []string `json:"values" yaml:"values"`
	Count  int64    `json:"count" yaml:"count"`
}

// Backend is the interface for the document store holding annotation projects.
type Backend interface {
	// ProjectNames lists every known project.
	ProjectNames(ctx context.Context) ([]string, error)
	// Count returns the number of documents in project matching q.
	Count(ctx context.Context, project string, q query.QuerySpec) (int64, error)
	// GroupCount filters project by q and counts documents per distinct tuple of keys.
	// Row order is backend-defined.
	GroupCount(ctx context.Context, project string, q query.QuerySpec, keys []string) ([]GroupRow, error)
	// Close releases backend resources.
	Close(ctx context.Context) error
}

// Reconnector is implemented by backends able to re-establish their connection.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

// IsTransient reports whether err should take the reconnect path.
func IsTransient(err error) bool {
	return errors.Is(err, ErrConnectionLost)
}
