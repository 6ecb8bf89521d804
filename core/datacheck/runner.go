package datacheck

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/alsijil/core"
)

// RunChecks runs all registered checks in registration order. A failing
// check is logged and skipped so the remaining checks still run. When the
// send emails preference is enabled, the recipients are notified about the
// outstanding results afterwards.
//
// RunChecks is meant to be invoked by an external scheduler; overlapping
// invocations are kept harmless by the results' upsert key only.
func (svc *Service) RunChecks(ctx context.Context) error {
	for _, check := range svc.registry.All() {
		svc.logger.Info("running data check: " + check.VerboseName)
		if err := svc.runCheck(ctx, check); err != nil {
			svc.logger.Error(fmt.Sprintf("data check %s: %v", check.Name, err), err)
		}
	}

	if core.Conf.DataChecks.SendEmails {
		return svc.SendResultEmails(ctx)
	}
	return nil
}

func (svc *Service) runCheck(ctx context.Context, check Check) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return check.CheckData(ctx)
}
