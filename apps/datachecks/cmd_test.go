package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/alsijil/core"
	"github.com/trezcool/alsijil/core/datacheck"
	"github.com/trezcool/alsijil/core/register"
	inmemdb "github.com/trezcool/alsijil/storage/database/inmem"
	testutil "github.com/trezcool/alsijil/tests"
)

func setup(t *testing.T) (*commandLine, *inmemdb.DB, register.Repository) {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	repo := inmemdb.NewRegisterRepository(db)
	svc, err := datacheck.NewService(nil, inmemdb.NewResultRepository(db), repo, &mailMock{}, testutil.NewLogger(t))
	if err != nil {
		t.Fatalf("datacheck.NewService() failed: %v", err)
	}
	return &commandLine{svc: svc}, db, repo
}

type mailMock struct{}

func (mailMock) SendMessages(...*core.EmailMessage) {}
func (mailMock) Send(*core.EmailMessage) error      { return nil }

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	var migrateUpCalled bool
	migrateUpFunc = func(db *sql.DB) error {
		migrateUpCalled = true
		return nil
	}
	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		if command == "up" && len(args) == 0 {
			return fmt.Errorf("bare up must go through the migrate helper")
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "extra_mark", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"datachecks"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}

	if !migrateUpCalled {
		t.Error("bare up did not run the full migration helper")
	}
}

func Test_commandLine_run(t *testing.T) {
	cli, db, repo := setup(t)
	ctx := context.Background()

	week := register.CalendarWeek{Year: 2021, Week: 23}
	db.AddSubstitution("lp1", week, true)
	if _, _, err := repo.GetOrCreatePersonalNote(ctx, register.PersonalNote{
		PersonID:       "p1",
		LessonRef:      register.LessonRef{LessonPeriodID: "lp1", Week: week.Week, Year: week.Year},
		GroupsOfPerson: []string{"g1"},
	}); err != nil {
		t.Fatalf("seeding note failed: %v", err)
	}

	if err := cli.run([]string{"datachecks", "run"}); err != nil {
		t.Fatalf("cli.run() unexpected error = %v", err)
	}

	results, err := cli.svc.PendingResults(ctx)
	if err != nil {
		t.Fatalf("PendingResults() failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("PendingResults() returned %d results, want 1", len(results))
	}
	if results[0].Check != datacheck.NoPersonalNotesInCancelledLessons {
		t.Errorf("result check = %s, want %s", results[0].Check, datacheck.NoPersonalNotesInCancelledLessons)
	}
}

func Test_commandLine_solve(t *testing.T) {
	cli, db, repo := setup(t)
	ctx := context.Background()

	week := register.CalendarWeek{Year: 2021, Week: 23}
	db.AddSubstitution("lp1", week, true)
	note, _, err := repo.GetOrCreatePersonalNote(ctx, register.PersonalNote{
		PersonID:       "p1",
		LessonRef:      register.LessonRef{LessonPeriodID: "lp1", Week: week.Week, Year: week.Year},
		GroupsOfPerson: []string{"g1"},
	})
	if err != nil {
		t.Fatalf("seeding note failed: %v", err)
	}
	if err = cli.run([]string{"datachecks", "run"}); err != nil {
		t.Fatalf("cli.run() unexpected error = %v", err)
	}
	results, err := cli.svc.PendingResults(ctx)
	if err != nil || len(results) != 1 {
		t.Fatalf("PendingResults() = %v, %v; want one result", results, err)
	}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"solve"}, wantErr: errHelp},
		{name: "result but no option", args: []string{"solve", "-result", results[0].ID}, wantErr: errHelp},
		{name: "result not found", args: []string{"solve", "-result", "nope", "-option", "ignore"}, wantErr: datacheck.ErrNotFound},
		{name: "unknown option", args: []string{"solve", "-result", results[0].ID, "-option", "nope"}, wantErr: datacheck.ErrUnknownSolveOption},
		{name: "delete", args: []string{"solve", "-result", results[0].ID, "-option", "delete"}},
	}
	for _, tt := range tests {
		args := append([]string{"datachecks"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err != nil {
				if errors.Cause(err) != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if tt.wantErr != nil {
				t.Errorf("cli.run() error = nil, wantErr %v", tt.wantErr)
			}
		})
	}

	if _, err = repo.GetPersonalNote(ctx, note.ID); err != register.ErrNotFound {
		t.Errorf("GetPersonalNote() after delete = %v, want %v", err, register.ErrNotFound)
	}
}

func Test_commandLine_list(t *testing.T) {
	cli, _, _ := setup(t)

	if err := cli.run([]string{"datachecks", "list"}); err != nil {
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}
