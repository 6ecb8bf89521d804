package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/trezcool/alsijil/core"
	"github.com/trezcool/alsijil/core/register"
)

// Logger routes service logs through the test so output stays attached
// to the test that produced it.
type Logger struct {
	T *testing.T
}

var _ core.Logger = (*Logger)(nil)

func NewLogger(t *testing.T) *Logger { return &Logger{T: t} }

func (l Logger) Enable(bool) {}

func (l Logger) log(level, msg string, args []interface{}) {
	l.T.Helper()
	if len(args) > 0 {
		l.T.Logf("%s: %s %v", level, msg, args)
	} else {
		l.T.Logf("%s: %s", level, msg)
	}
}

func (l Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l Logger) Fatal(msg string, args ...interface{}) {
	l.T.Helper()
	l.T.Fatalf("FATAL: %s %v", msg, args)
}

func CreatePersonalNote(t *testing.T, repo register.Repository, note register.PersonalNote) register.PersonalNote {
	t.Helper()
	created, _, err := repo.GetOrCreatePersonalNote(context.Background(), note)
	if err != nil {
		t.Fatalf("CreatePersonalNote() failed: %v", err)
	}
	return created
}

func CreateLessonDocumentation(t *testing.T, repo register.Repository, doc register.LessonDocumentation) register.LessonDocumentation {
	t.Helper()
	created, _, err := repo.GetOrCreateLessonDocumentation(context.Background(), doc)
	if err != nil {
		t.Fatalf("CreateLessonDocumentation() failed: %v", err)
	}
	return created
}

// NoteForPeriod returns a note fixture for person n in a lesson period
// occurrence; fields beyond the key are zero.
func NoteForPeriod(n int, lessonPeriodID string, week register.CalendarWeek) register.PersonalNote {
	return register.PersonalNote{
		PersonID: fmt.Sprintf("person-%d", n),
		LessonRef: register.LessonRef{
			LessonPeriodID: lessonPeriodID,
			Week:           week.Week,
			Year:           week.Year,
		},
	}
}
