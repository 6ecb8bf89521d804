package datacheck

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alsijil/core"
)

func newCheck(name string) Check {
	return Check{
		Name:        name,
		VerboseName: "Check " + name,
		ProblemName: "Problem " + name,
		CheckData:   func(context.Context, ...core.DBExecutor) error { return nil },
		SolveOptions: solveOptions(SolveOption{
			Name:        IgnoreOption,
			VerboseName: "Ignore problem",
			Solve:       func(context.Context, Result, ...core.DBExecutor) error { return nil },
		}),
	}
}

func TestRegistry_Register(t *testing.T) {
	t.Run("empty name", func(t *testing.T) {
		r := NewRegistry()
		assert.Error(t, r.Register(newCheck("")))
	})

	t.Run("missing ignore option", func(t *testing.T) {
		r := NewRegistry()
		check := newCheck("c1")
		check.SolveOptions = nil

		err := r.Register(check)
		assert.Equal(t, ErrMissingIgnore, errors.Cause(err))
	})

	t.Run("duplicate name", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(newCheck("c1")))

		err := r.Register(newCheck("c1"))
		assert.Equal(t, ErrDuplicateCheck, errors.Cause(err))

		// the original registration is untouched
		checks := r.All()
		require.Len(t, checks, 1)
		assert.Equal(t, "c1", checks[0].Name)
	})
}

func TestRegistry_All_order(t *testing.T) {
	r := NewRegistry()
	names := []string{"zulu", "alpha", "mike", "bravo"}
	for _, name := range names {
		require.NoError(t, r.Register(newCheck(name)))
	}

	got := make([]string, 0, len(names))
	for _, check := range r.All() {
		got = append(got, check.Name)
	}
	assert.Equal(t, names, got, "All() must preserve registration order")
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newCheck("c1")))

	check, err := r.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", check.Name)

	_, err = r.Get("nope")
	assert.Equal(t, ErrUnknownCheck, errors.Cause(err))
}

func TestRegistry_Reset(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newCheck("c1")))

	r.Reset()
	assert.Empty(t, r.All())
	require.NoError(t, r.Register(newCheck("c1")), "name is free again after Reset()")
}
