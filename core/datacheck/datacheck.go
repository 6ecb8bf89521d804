// Package datacheck implements the class register's data integrity checks:
// a registry of named checks run on a schedule (an external cron invokes
// RunChecks), persisting one result per violating record and offering
// named solve options to remediate them.
package datacheck

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/alsijil/core"
)

// Content types of the records a check result can reference.
const (
	ContentTypePersonalNote        = "personal_note"
	ContentTypeLessonDocumentation = "lesson_documentation"
)

// IgnoreOption is the solve option every check carries.
const IgnoreOption = "ignore"

var (
	// errors
	ErrDuplicateCheck     = errors.New("a data check with this name is already registered")
	ErrUnknownCheck       = errors.New("unknown data check")
	ErrUnknownSolveOption = errors.New("unknown solve option")
	ErrMissingIgnore      = errors.New("a data check must carry the ignore solve option")
	ErrNotFound           = errors.New("check result not found")
)

type (
	// SolveOption remediates a single check result, optionally mutating or
	// deleting the record the result points at.
	SolveOption struct {
		Name        string
		VerboseName string
		Solve       func(ctx context.Context, res Result, exec ...core.DBExecutor) error
	}

	// Check is a named data integrity check plus its solve options.
	// CheckData queries the register for violating records and upserts one
	// Result per record; it never mutates the records themselves.
	Check struct {
		Name        string
		VerboseName string
		ProblemName string
		CheckData   func(ctx context.Context, exec ...core.DBExecutor) error

		SolveOptions map[string]SolveOption
	}
)

func solveOptions(opts ...SolveOption) map[string]SolveOption {
	m := make(map[string]SolveOption, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}
