package datacheck

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/alsijil/core"
)

// ResultSummary is one line of the notification email: how many records
// currently fail a check.
type ResultSummary struct {
	VerboseName string
	ProblemName string
	Count       int
}

// SendResultEmails notifies the configured recipients about unsolved
// results that have not been reported yet, one email per recipient, and
// flips sent=true on all of them in one update afterwards. Nothing is
// marked sent when a send fails, so the next run reports them again
// (at least once, never silently dropped).
func (svc *Service) SendResultEmails(ctx context.Context) error {
	unsolved, unsent := false, false
	results, err := svc.results.QueryResults(ctx, &ResultFilter{Solved: &unsolved, Sent: &unsent})
	if err != nil {
		return errors.Wrap(err, "querying unsent results")
	}
	if len(results) == 0 {
		return nil
	}

	counts := make(map[string]int, len(results))
	for _, res := range results {
		counts[res.Check]++
	}

	// summarise in registration order; results of checks that are no longer
	// registered are kept unsent and surface once the check returns
	summaries := make([]ResultSummary, 0, len(counts))
	known := make(map[string]bool, len(counts))
	for _, check := range svc.registry.All() {
		if count, ok := counts[check.Name]; ok {
			summaries = append(summaries, ResultSummary{
				VerboseName: check.VerboseName,
				ProblemName: check.ProblemName,
				Count:       count,
			})
			known[check.Name] = true
		}
	}
	if len(summaries) == 0 {
		return nil
	}

	recipients := core.Conf.DataChecksRecipients()
	if len(recipients) == 0 {
		svc.logger.Warn("data checks: no notification recipients configured")
		return nil
	}

	for _, rcpt := range recipients {
		msg := &core.EmailMessage{
			To:           []mail.Address{rcpt},
			Subject:      "Data checks",
			TemplateName: "data_checks",
			TemplateData: summaries,
		}
		if err = svc.mailSvc.Send(msg); err != nil {
			return errors.Wrap(err, "sending data checks email")
		}
	}

	ids := make([]string, 0, len(results))
	for _, res := range results {
		if known[res.Check] {
			ids = append(ids, res.ID)
		}
	}
	return errors.Wrap(svc.results.MarkResultsSent(ctx, ids), "marking results sent")
}
