package datacheck_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alsijil/core"
	"github.com/trezcool/alsijil/core/datacheck"
	"github.com/trezcool/alsijil/core/register"
	emailsvc "github.com/trezcool/alsijil/services/email"
	inmemdb "github.com/trezcool/alsijil/storage/database/inmem"
	testutil "github.com/trezcool/alsijil/tests"
)

var week = register.CalendarWeek{Year: 2021, Week: 23} // Mon 2021-06-07

type mailMock struct {
	sent []core.EmailMessage
	err  error
}

var _ core.EmailService = (*mailMock)(nil)

func (m *mailMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		_ = m.Send(msg)
	}
}

func (m *mailMock) Send(msg *core.EmailMessage) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, *msg)
	return nil
}

type env struct {
	db      *inmemdb.DB
	repo    register.Repository
	results datacheck.ResultRepository
	mail    *mailMock
	svc     *datacheck.Service
}

func setup(t *testing.T) *env {
	t.Helper()

	db, err := inmemdb.Open()
	require.NoError(t, err)

	e := &env{
		db:      db,
		repo:    inmemdb.NewRegisterRepository(db),
		results: inmemdb.NewResultRepository(db),
		mail:    &mailMock{},
	}
	e.svc, err = datacheck.NewService(nil, e.results, e.repo, e.mail, testutil.NewLogger(t))
	require.NoError(t, err)
	return e
}

func lessonPeriodRef(lpID string) register.LessonRef {
	return register.LessonRef{LessonPeriodID: lpID, Week: week.Week, Year: week.Year}
}

// note returns a well-formed note fixture that violates no check.
func note(personID, lpID string) register.PersonalNote {
	return register.PersonalNote{
		PersonID:       personID,
		LessonRef:      lessonPeriodRef(lpID),
		GroupsOfPerson: []string{"g1"},
	}
}

// seedViolations stores one violating record per registered check and
// returns the expected (check, content type) pairs.
func seedViolations(t *testing.T, e *env) map[string]string {
	t.Helper()

	e.db.AddLessonPeriod(register.LessonPeriod{ID: "lp-ok", LessonID: "l1", Weekday: 0, Period: 1})
	e.db.AddLessonPeriod(register.LessonPeriod{ID: "lp-holiday", LessonID: "l2", Weekday: 1, Period: 1})
	e.db.AddSubstitution("lp-cancelled", week, true)
	e.db.AddHoliday(register.Holiday{
		ID:        "h1",
		Name:      "Pentecost",
		DateStart: week.Day(1),
		DateEnd:   week.Day(1),
	})

	testutil.CreatePersonalNote(t, e.repo, note("p1", "lp-cancelled"))
	withoutGroups := note("p2", "lp-ok")
	withoutGroups.GroupsOfPerson = nil
	testutil.CreatePersonalNote(t, e.repo, withoutGroups)
	onHoliday := note("p3", "lp-holiday")
	onHoliday.Absent = true
	testutil.CreatePersonalNote(t, e.repo, onHoliday)
	testutil.CreateLessonDocumentation(t, e.repo, register.LessonDocumentation{
		LessonRef: lessonPeriodRef("lp-holiday"),
		Topic:     "Fractions",
	})
	excused := note("p4", "lp-ok")
	excused.Excused = true
	testutil.CreatePersonalNote(t, e.repo, excused)

	return map[string]string{
		datacheck.NoPersonalNotesInCancelledLessons:   datacheck.ContentTypePersonalNote,
		datacheck.NoGroupsOfPersonsSetInPersonalNotes: datacheck.ContentTypePersonalNote,
		datacheck.PersonalNoteOnHolidays:              datacheck.ContentTypePersonalNote,
		datacheck.LessonDocumentationOnHolidays:       datacheck.ContentTypeLessonDocumentation,
		datacheck.ExcusesWithoutAbsences:              datacheck.ContentTypePersonalNote,
	}
}

func pendingByCheck(t *testing.T, e *env) map[string][]datacheck.Result {
	t.Helper()

	results, err := e.svc.PendingResults(context.Background())
	require.NoError(t, err)

	byCheck := make(map[string][]datacheck.Result, len(results))
	for _, res := range results {
		byCheck[res.Check] = append(byCheck[res.Check], res)
	}
	return byCheck
}

func TestService_RunChecks(t *testing.T) {
	ctx := context.Background()

	t.Run("detects violations", func(t *testing.T) {
		e := setup(t)
		want := seedViolations(t, e)

		require.NoError(t, e.svc.RunChecks(ctx))

		byCheck := pendingByCheck(t, e)
		require.Len(t, byCheck, len(want))
		for check, contentType := range want {
			require.Len(t, byCheck[check], 1, check)
			assert.Equal(t, contentType, byCheck[check][0].ContentType)
			assert.NotEmpty(t, byCheck[check][0].ObjectID)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		e := setup(t)
		seedViolations(t, e)

		require.NoError(t, e.svc.RunChecks(ctx))
		first, err := e.svc.PendingResults(ctx)
		require.NoError(t, err)

		require.NoError(t, e.svc.RunChecks(ctx))
		second, err := e.svc.PendingResults(ctx)
		require.NoError(t, err)

		assert.Equal(t, first, second, "a second run must not duplicate results")
	})

	t.Run("a failing check does not stop the run", func(t *testing.T) {
		e := setup(t)
		seedViolations(t, e)

		ignore := datacheck.SolveOption{
			Name:        datacheck.IgnoreOption,
			VerboseName: "Ignore problem",
			Solve:       func(context.Context, datacheck.Result, ...core.DBExecutor) error { return nil },
		}
		require.NoError(t, e.svc.Registry().Register(datacheck.Check{
			Name:        "boom",
			VerboseName: "Always panics",
			ProblemName: "Boom.",
			CheckData: func(context.Context, ...core.DBExecutor) error {
				panic("boom")
			},
			SolveOptions: map[string]datacheck.SolveOption{datacheck.IgnoreOption: ignore},
		}))
		var ran bool
		require.NoError(t, e.svc.Registry().Register(datacheck.Check{
			Name:        "after-boom",
			VerboseName: "Runs after the panicking check",
			ProblemName: "None.",
			CheckData: func(context.Context, ...core.DBExecutor) error {
				ran = true
				return nil
			},
			SolveOptions: map[string]datacheck.SolveOption{datacheck.IgnoreOption: ignore},
		}))

		require.NoError(t, e.svc.RunChecks(ctx))
		assert.True(t, ran, "checks after a panicking one must still run")
		assert.Len(t, pendingByCheck(t, e), 5, "the earlier checks must have run")
	})
}

func TestService_Solve(t *testing.T) {
	ctx := context.Background()

	run := func(t *testing.T) (*env, map[string][]datacheck.Result) {
		e := setup(t)
		seedViolations(t, e)
		require.NoError(t, e.svc.RunChecks(ctx))
		return e, pendingByCheck(t, e)
	}

	t.Run("ignore keeps the record and the result", func(t *testing.T) {
		e, byCheck := run(t)
		res := byCheck[datacheck.ExcusesWithoutAbsences][0]

		require.NoError(t, e.svc.Solve(ctx, res, datacheck.IgnoreOption))

		solved, err := e.svc.GetResult(ctx, res.ID)
		require.NoError(t, err)
		assert.True(t, solved.Solved)
		assert.False(t, solved.Pending())

		// the note is untouched
		note, err := e.repo.GetPersonalNote(ctx, res.ObjectID)
		require.NoError(t, err)
		assert.True(t, note.Excused)

		// and no longer reported as pending
		for _, pending := range pendingByCheck(t, e)[datacheck.ExcusesWithoutAbsences] {
			assert.NotEqual(t, res.ID, pending.ID)
		}
	})

	t.Run("delete removes the record and the result", func(t *testing.T) {
		e, byCheck := run(t)
		res := byCheck[datacheck.NoPersonalNotesInCancelledLessons][0]

		require.NoError(t, e.svc.Solve(ctx, res, "delete"))

		_, err := e.repo.GetPersonalNote(ctx, res.ObjectID)
		assert.Equal(t, register.ErrNotFound, err)
		_, err = e.svc.GetResult(ctx, res.ID)
		assert.Equal(t, datacheck.ErrNotFound, err)

		// the deleted record is gone for good: another run must not report it again
		require.NoError(t, e.svc.RunChecks(ctx))
		assert.Empty(t, pendingByCheck(t, e)[datacheck.NoPersonalNotesInCancelledLessons])
	})

	t.Run("delete a lesson documentation", func(t *testing.T) {
		e, byCheck := run(t)
		res := byCheck[datacheck.LessonDocumentationOnHolidays][0]

		require.NoError(t, e.svc.Solve(ctx, res, "delete"))

		_, err := e.repo.GetLessonDocumentation(ctx, res.ObjectID)
		assert.Equal(t, register.ErrNotFound, err)

		require.NoError(t, e.svc.RunChecks(ctx))
		assert.Empty(t, pendingByCheck(t, e)[datacheck.LessonDocumentationOnHolidays])
	})

	t.Run("reset puts the note back to defaults", func(t *testing.T) {
		e, byCheck := run(t)
		res := byCheck[datacheck.ExcusesWithoutAbsences][0]

		require.NoError(t, e.svc.Solve(ctx, res, "reset_personal_note"))

		note, err := e.repo.GetPersonalNote(ctx, res.ObjectID)
		require.NoError(t, err)
		assert.False(t, note.Excused)
		assert.False(t, note.NotEmpty())

		_, err = e.svc.GetResult(ctx, res.ID)
		assert.Equal(t, datacheck.ErrNotFound, err)
	})

	t.Run("update groups from current memberships", func(t *testing.T) {
		e, byCheck := run(t)
		res := byCheck[datacheck.NoGroupsOfPersonsSetInPersonalNotes][0]

		e.db.SetPersonGroups("p2", "7a", "chess-club")
		require.NoError(t, e.svc.Solve(ctx, res, "update_groups_of_person"))

		note, err := e.repo.GetPersonalNote(ctx, res.ObjectID)
		require.NoError(t, err)
		assert.Equal(t, []string{"7a", "chess-club"}, note.GroupsOfPerson)

		_, err = e.svc.GetResult(ctx, res.ID)
		assert.Equal(t, datacheck.ErrNotFound, err)
	})

	t.Run("unknown solve option", func(t *testing.T) {
		e, byCheck := run(t)
		res := byCheck[datacheck.ExcusesWithoutAbsences][0]

		err := e.svc.Solve(ctx, res, "nope")
		assert.Equal(t, datacheck.ErrUnknownSolveOption, errors.Cause(err))
	})

	t.Run("unknown check", func(t *testing.T) {
		e, _ := run(t)

		err := e.svc.Solve(ctx, datacheck.Result{Check: "nope"}, datacheck.IgnoreOption)
		assert.Equal(t, datacheck.ErrUnknownCheck, errors.Cause(err))
	})
}

func setRecipients(t *testing.T, recipients ...string) {
	t.Helper()
	orig := core.Conf.DataChecks
	t.Cleanup(func() { core.Conf.DataChecks = orig })
	core.Conf.DataChecks.Recipients = recipients
}

func TestService_SendResultEmails(t *testing.T) {
	ctx := context.Background()

	t.Run("one email per recipient", func(t *testing.T) {
		e := setup(t)
		seedViolations(t, e)
		setRecipients(t, "Alice <alice@school.test>", "Bob <bob@school.test>")

		require.NoError(t, e.svc.RunChecks(ctx))
		require.NoError(t, e.svc.SendResultEmails(ctx))

		require.Len(t, e.mail.sent, 2)
		assert.Equal(t, "alice@school.test", e.mail.sent[0].To[0].Address)
		assert.Equal(t, "bob@school.test", e.mail.sent[1].To[0].Address)

		summaries, ok := e.mail.sent[0].TemplateData.([]datacheck.ResultSummary)
		require.True(t, ok)
		require.Len(t, summaries, 5)
		// summaries come in registration order
		assert.Equal(t, "Ensure that there are no personal notes in cancelled lessons", summaries[0].VerboseName)
		assert.Equal(t, 1, summaries[0].Count)

		// everything is marked sent: a second call reports nothing
		e.mail.sent = nil
		require.NoError(t, e.svc.SendResultEmails(ctx))
		assert.Empty(t, e.mail.sent)
	})

	t.Run("counts per check", func(t *testing.T) {
		e := setup(t)
		setRecipients(t, "Alice <alice@school.test>", "Bob <bob@school.test>")

		// three notes in a cancelled lesson, two excused without absence
		e.db.AddSubstitution("lp-cancelled", week, true)
		for n := 1; n <= 3; n++ {
			cancelled := testutil.NoteForPeriod(n, "lp-cancelled", week)
			cancelled.GroupsOfPerson = []string{"g1"}
			testutil.CreatePersonalNote(t, e.repo, cancelled)
		}
		for n := 4; n <= 5; n++ {
			excused := testutil.NoteForPeriod(n, "lp-ok", week)
			excused.GroupsOfPerson = []string{"g1"}
			excused.Excused = true
			testutil.CreatePersonalNote(t, e.repo, excused)
		}

		require.NoError(t, e.svc.RunChecks(ctx))
		require.NoError(t, e.svc.SendResultEmails(ctx))

		require.Len(t, e.mail.sent, 2)
		for _, msg := range e.mail.sent {
			summaries := msg.TemplateData.([]datacheck.ResultSummary)
			require.Len(t, summaries, 2)
			assert.Equal(t, 3, summaries[0].Count, summaries[0].VerboseName)
			assert.Equal(t, 2, summaries[1].Count, summaries[1].VerboseName)
		}

		sent, err := e.results.QueryResults(ctx, nil)
		require.NoError(t, err)
		require.Len(t, sent, 5)
		for _, res := range sent {
			assert.True(t, res.Sent)
		}
	})

	t.Run("nothing to report", func(t *testing.T) {
		e := setup(t)
		setRecipients(t, "Alice <alice@school.test>")

		require.NoError(t, e.svc.SendResultEmails(ctx))
		assert.Empty(t, e.mail.sent)
	})

	t.Run("no recipients configured", func(t *testing.T) {
		e := setup(t)
		seedViolations(t, e)
		setRecipients(t)

		require.NoError(t, e.svc.RunChecks(ctx))
		require.NoError(t, e.svc.SendResultEmails(ctx))
		assert.Empty(t, e.mail.sent)

		// results stay unsent and surface once recipients are configured
		setRecipients(t, "Alice <alice@school.test>")
		require.NoError(t, e.svc.SendResultEmails(ctx))
		assert.Len(t, e.mail.sent, 1)
	})

	t.Run("a failing send keeps results unsent", func(t *testing.T) {
		e := setup(t)
		seedViolations(t, e)
		setRecipients(t, "Alice <alice@school.test>")

		require.NoError(t, e.svc.RunChecks(ctx))

		e.mail.err = errors.New("smtp down")
		require.Error(t, e.svc.SendResultEmails(ctx))

		// the next run reports them again
		e.mail.err = nil
		require.NoError(t, e.svc.SendResultEmails(ctx))
		require.Len(t, e.mail.sent, 1)
		summaries := e.mail.sent[0].TemplateData.([]datacheck.ResultSummary)
		assert.Len(t, summaries, 5)
	})

	t.Run("solved results are not reported", func(t *testing.T) {
		e := setup(t)
		seedViolations(t, e)
		setRecipients(t, "Alice <alice@school.test>")

		require.NoError(t, e.svc.RunChecks(ctx))
		byCheck := pendingByCheck(t, e)
		require.NoError(t, e.svc.Solve(ctx, byCheck[datacheck.ExcusesWithoutAbsences][0], datacheck.IgnoreOption))

		require.NoError(t, e.svc.SendResultEmails(ctx))
		require.Len(t, e.mail.sent, 1)
		summaries := e.mail.sent[0].TemplateData.([]datacheck.ResultSummary)
		assert.Len(t, summaries, 4)
		for _, s := range summaries {
			assert.NotEqual(t, "Ensure that there are no excused personal notes without an absence", s.VerboseName)
		}
	})
}

// TestService_SendResultEmails_rendering sends through the console mock to
// exercise the embedded email templates end to end.
func TestService_SendResultEmails_rendering(t *testing.T) {
	ctx := context.Background()

	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := inmemdb.NewRegisterRepository(db)
	results := inmemdb.NewResultRepository(db)
	svc, err := datacheck.NewService(nil, results, repo, emailsvc.NewConsoleServiceMock(), testutil.NewLogger(t))
	require.NoError(t, err)

	e := &env{db: db, repo: repo, results: results, svc: svc}
	seedViolations(t, e)
	setRecipients(t, "Alice <alice@school.test>")
	emailsvc.ClearSentMessages()

	require.NoError(t, svc.RunChecks(ctx))
	require.NoError(t, svc.SendResultEmails(ctx))

	sent := emailsvc.GetSentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "1x Ensure that there are no personal notes in cancelled lessons")
	assert.Contains(t, sent[0].TextContent, "(The personal note is related to a cancelled lesson.)")
	assert.Contains(t, sent[0].HTMLContent, "<li>1x Ensure that there are no filled out personal notes on holidays")
}
