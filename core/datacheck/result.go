package datacheck

import (
	"context"
	"time"

	"github.com/trezcool/alsijil/core"
)

type (
	// Result records that a specific register record currently fails a
	// specific check. At most one row exists per (check, content type,
	// object id); check runs upsert by that key and never duplicate it.
	Result struct {
		ID          string    `json:"id"`
		Check       string    `json:"check"`
		ContentType string    `json:"content_type"`
		ObjectID    string    `json:"object_id"`
		Solved      bool      `json:"solved"`
		Sent        bool      `json:"sent"`
		CreatedAt   time.Time `json:"created_at"` // UTC
	}

	// ResultFilter applies AND operation on its set fields.
	ResultFilter struct {
		Check       string
		ContentType string
		ObjectID    string
		Solved      *bool
		Sent        *bool
	}

	ResultRepository interface {
		// GetOrCreateResult returns the row matching res's
		// (check, content type, object id) key, creating it when absent.
		GetOrCreateResult(ctx context.Context, res Result, exec ...core.DBExecutor) (Result, bool, error)
		GetResult(ctx context.Context, id string, exec ...core.DBExecutor) (Result, error)
		QueryResults(ctx context.Context, filter *ResultFilter, exec ...core.DBExecutor) ([]Result, error)
		SaveResult(ctx context.Context, res Result, exec ...core.DBExecutor) (Result, error)
		DeleteResult(ctx context.Context, id string, exec ...core.DBExecutor) error
		// MarkResultsSent flips sent=true on all given rows in one update.
		MarkResultsSent(ctx context.Context, ids []string, exec ...core.DBExecutor) error
	}
)

// Pending reports whether the result still needs operator attention.
func (res Result) Pending() bool {
	return !res.Solved
}
