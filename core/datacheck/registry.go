package datacheck

import (
	"sync"

	"github.com/pkg/errors"
)

// Registry holds the registered data checks, preserving registration order
// so check runs stay deterministic. It is populated once at startup by
// NewService; Reset exists for tests.
type Registry struct {
	mu     sync.RWMutex
	names  []string
	checks map[string]Check
}

func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]Check)}
}

// Register adds a check under its name. Registering an existing name is an
// error: checks are never silently overwritten.
func (r *Registry) Register(check Check) error {
	if check.Name == "" {
		return errors.New("a data check must have a name")
	}
	if _, ok := check.SolveOptions[IgnoreOption]; !ok {
		return errors.Wrap(ErrMissingIgnore, check.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.checks[check.Name]; ok {
		return errors.Wrap(ErrDuplicateCheck, check.Name)
	}
	r.names = append(r.names, check.Name)
	r.checks[check.Name] = check
	return nil
}

func (r *Registry) Get(name string) (Check, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	check, ok := r.checks[name]
	if !ok {
		return Check{}, errors.Wrap(ErrUnknownCheck, name)
	}
	return check, nil
}

// All returns the registered checks in registration order.
func (r *Registry) All() []Check {
	r.mu.RLock()
	defer r.mu.RUnlock()

	checks := make([]Check, 0, len(r.names))
	for _, name := range r.names {
		checks = append(checks, r.checks[name])
	}
	return checks
}

// Reset clears the registry between test cases.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.names = nil
	r.checks = make(map[string]Check)
}
