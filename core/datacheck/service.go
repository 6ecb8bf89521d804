package datacheck

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/alsijil/core"
	"github.com/trezcool/alsijil/core/register"
)

type Service struct {
	db       core.DB
	registry *Registry
	results  ResultRepository
	register register.Repository
	mailSvc  core.EmailService
	logger   core.Logger
}

// NewService wires the data checks engine and registers the known checks.
// db may be nil when the repositories are not SQL-backed (tests); Solve then
// runs without a surrounding transaction.
func NewService(
	db core.DB,
	results ResultRepository,
	registerRepo register.Repository,
	mailSvc core.EmailService,
	logger core.Logger,
) (*Service, error) {
	svc := &Service{
		db:       db,
		registry: NewRegistry(),
		results:  results,
		register: registerRepo,
		mailSvc:  mailSvc,
		logger:   logger,
	}
	if err := svc.registerChecks(); err != nil {
		return nil, errors.Wrap(err, "registering data checks")
	}
	return svc, nil
}

func (svc *Service) Registry() *Registry {
	return svc.registry
}

// GetResult returns a stored check result by ID.
func (svc *Service) GetResult(ctx context.Context, id string) (Result, error) {
	return svc.results.GetResult(ctx, id)
}

// PendingResults returns all unsolved results for operator triage.
func (svc *Service) PendingResults(ctx context.Context) ([]Result, error) {
	solved := false
	return svc.results.QueryResults(ctx, &ResultFilter{Solved: &solved})
}

// Solve remediates a stored result with one of its check's solve options,
// inside a single transaction: a failing option leaves both the result and
// the record it points at untouched.
func (svc *Service) Solve(ctx context.Context, res Result, optionName string) error {
	check, err := svc.registry.Get(res.Check)
	if err != nil {
		return err
	}
	opt, ok := check.SolveOptions[optionName]
	if !ok {
		return errors.Wrap(ErrUnknownSolveOption, optionName)
	}

	return core.Atomic(ctx, svc.db, func(exec core.DBExecutor) error {
		if exec == nil {
			return opt.Solve(ctx, res)
		}
		return opt.Solve(ctx, res, exec)
	})
}
