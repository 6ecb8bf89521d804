package register

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/alsijil/core"
)

type (
	// LessonPeriod is the thin slice of the timetable subsystem's lesson
	// period this module needs: its position in the week.
	LessonPeriod struct {
		ID       string `json:"id"`
		LessonID string `json:"lesson_id"`
		Weekday  int    `json:"weekday"` // 0 = Monday
		Period   int    `json:"period"`
	}

	Repository interface {
		// personal notes
		GetPersonalNote(ctx context.Context, id string, exec ...core.DBExecutor) (PersonalNote, error)
		// GetOrCreatePersonalNote returns the note for note's (person, lesson ref)
		// key, creating an empty one when absent.
		GetOrCreatePersonalNote(ctx context.Context, note PersonalNote, exec ...core.DBExecutor) (PersonalNote, bool, error)
		UpdatePersonalNote(ctx context.Context, note PersonalNote, exec ...core.DBExecutor) (PersonalNote, error)
		DeletePersonalNote(ctx context.Context, id string, exec ...core.DBExecutor) error

		// lesson documentations
		GetLessonDocumentation(ctx context.Context, id string, exec ...core.DBExecutor) (LessonDocumentation, error)
		GetOrCreateLessonDocumentation(ctx context.Context, doc LessonDocumentation, exec ...core.DBExecutor) (LessonDocumentation, bool, error)
		UpdateLessonDocumentation(ctx context.Context, doc LessonDocumentation, exec ...core.DBExecutor) (LessonDocumentation, error)
		DeleteLessonDocumentation(ctx context.Context, id string, exec ...core.DBExecutor) error

		// violation candidates for the data checks
		QueryNotesInCancelledLessons(ctx context.Context, exec ...core.DBExecutor) ([]PersonalNote, error)
		QueryNotesWithoutGroups(ctx context.Context, exec ...core.DBExecutor) ([]PersonalNote, error)
		QueryNotesOnHolidays(ctx context.Context, exec ...core.DBExecutor) ([]PersonalNote, error)
		QueryDocumentationsOnHolidays(ctx context.Context, exec ...core.DBExecutor) ([]LessonDocumentation, error)
		QueryExcusesWithoutAbsences(ctx context.Context, exec ...core.DBExecutor) ([]PersonalNote, error)

		// timetable & person collaborator lookups
		LessonCancelled(ctx context.Context, lessonPeriodID string, week CalendarWeek, exec ...core.DBExecutor) (bool, error)
		// ResolveDate returns the calendar date of a lesson ref
		// (an event resolves to its start date).
		ResolveDate(ctx context.Context, ref LessonRef, exec ...core.DBExecutor) (time.Time, error)
		QueryHolidays(ctx context.Context, exec ...core.DBExecutor) ([]Holiday, error)
		GetPersonGroups(ctx context.Context, personID string, exec ...core.DBExecutor) ([]string, error)
		QueryLessonPeriodsForPersonOnDay(ctx context.Context, personID string, day time.Time, fromPeriod int, exec ...core.DBExecutor) ([]LessonPeriod, error)
		// QueryFollowingLessonPeriods returns the periods of the same lesson
		// on the same weekday after the given period, ordered by period.
		QueryFollowingLessonPeriods(ctx context.Context, lessonPeriodID string, exec ...core.DBExecutor) ([]LessonPeriod, error)

		// statistics
		GetPersonStatistics(ctx context.Context, personID string, year int, exec ...core.DBExecutor) (Statistics, error)
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// SavePersonalNote validates and upserts a personal note for its
// (person, lesson ref) key. The person's current group memberships are
// snapshotted on the note when none were recorded yet.
func (svc *Service) SavePersonalNote(ctx context.Context, note PersonalNote) (PersonalNote, error) {
	if !note.Valid() {
		return PersonalNote{}, core.NewValidationError(ErrMissingLessonRef)
	}
	if err := core.CheckStruct(note); err != nil {
		return PersonalNote{}, err
	}
	note.Normalize()

	if note.LessonPeriodID != "" && core.Conf.Register.BlockPersonalNotesForCancelled {
		cancelled, err := svc.repo.LessonCancelled(ctx, note.LessonPeriodID, note.CalendarWeek())
		if err != nil {
			return PersonalNote{}, err
		}
		if cancelled {
			return PersonalNote{}, core.NewValidationError(ErrCancelledLesson)
		}
	}
	if note.NotEmpty() && !core.Conf.Register.AllowEntriesInHolidays {
		if err := svc.checkHolidays(ctx, note.LessonRef); err != nil {
			return PersonalNote{}, err
		}
	}

	if len(note.GroupsOfPerson) == 0 {
		groups, err := svc.repo.GetPersonGroups(ctx, note.PersonID)
		if err != nil {
			return PersonalNote{}, err
		}
		note.GroupsOfPerson = groups
	}

	existing, created, err := svc.repo.GetOrCreatePersonalNote(ctx, note)
	if err != nil {
		return PersonalNote{}, err
	}
	if created {
		return existing, nil
	}

	// carry the recorded data over onto the existing note
	existing.Absent = note.Absent
	existing.Late = note.Late
	existing.Excused = note.Excused
	existing.ExcuseTypeID = note.ExcuseTypeID
	existing.Remarks = note.Remarks
	existing.ExtraMarks = note.ExtraMarks
	existing.Normalize()
	return svc.repo.UpdatePersonalNote(ctx, existing)
}

// MarkAbsent marks a person absent for all their lessons on a day,
// optionally starting at a period number, upserting one personal note
// per lesson period. Additional remarks are appended with "; ".
func (svc *Service) MarkAbsent(ctx context.Context, personID string, day time.Time, fromPeriod int, absent, excused bool, remarks string) error {
	week := CalendarWeekFromDate(day)

	periods, err := svc.repo.QueryLessonPeriodsForPersonOnDay(ctx, personID, day, fromPeriod)
	if err != nil {
		return errors.Wrap(err, "querying lesson periods")
	}

	for _, lp := range periods {
		note, _, err := svc.repo.GetOrCreatePersonalNote(ctx, PersonalNote{
			PersonID:  personID,
			LessonRef: LessonRef{LessonPeriodID: lp.ID, Week: week.Week, Year: week.Year},
		})
		if err != nil {
			return err
		}

		note.Absent = absent
		note.Excused = excused
		if remarks != "" {
			if note.Remarks != "" {
				note.Remarks += "; " + remarks
			} else {
				note.Remarks = remarks
			}
		}
		note.Normalize()
		if _, err = svc.repo.UpdatePersonalNote(ctx, note); err != nil {
			return err
		}
	}
	return nil
}

// SaveLessonDocumentation validates and upserts a lesson documentation,
// then carries its data over to the following empty periods of the same
// lesson when the carry over preference is enabled.
func (svc *Service) SaveLessonDocumentation(ctx context.Context, doc LessonDocumentation) (LessonDocumentation, error) {
	if !doc.Valid() {
		return LessonDocumentation{}, core.NewValidationError(ErrMissingLessonRef)
	}
	if err := core.CheckStruct(doc); err != nil {
		return LessonDocumentation{}, err
	}
	if doc.NotEmpty() && !core.Conf.Register.AllowEntriesInHolidays {
		if err := svc.checkHolidays(ctx, doc.LessonRef); err != nil {
			return LessonDocumentation{}, err
		}
	}

	existing, created, err := svc.repo.GetOrCreateLessonDocumentation(ctx, doc)
	if err != nil {
		return LessonDocumentation{}, err
	}
	if !created {
		existing.Topic = doc.Topic
		existing.Homework = doc.Homework
		existing.GroupNote = doc.GroupNote
		if existing, err = svc.repo.UpdateLessonDocumentation(ctx, existing); err != nil {
			return LessonDocumentation{}, err
		}
	}

	if core.Conf.Register.CarryOver && existing.NotEmpty() && existing.LessonPeriodID != "" {
		if err = svc.carryOverData(ctx, existing); err != nil {
			return LessonDocumentation{}, errors.Wrap(err, "carrying data over")
		}
	}
	return existing, nil
}

// PersonStatistics aggregates a person's absences, excuses, tardiness and
// extra marks over a school year.
func (svc *Service) PersonStatistics(ctx context.Context, personID string, year int) (Statistics, error) {
	return svc.repo.GetPersonStatistics(ctx, personID, year)
}

// carryOverData copies the documentation to directly following periods in
// this lesson if their data is not already set.
func (svc *Service) carryOverData(ctx context.Context, doc LessonDocumentation) error {
	periods, err := svc.repo.QueryFollowingLessonPeriods(ctx, doc.LessonPeriodID)
	if err != nil {
		return err
	}

	for _, lp := range periods {
		next, _, err := svc.repo.GetOrCreateLessonDocumentation(ctx, LessonDocumentation{
			LessonRef: LessonRef{LessonPeriodID: lp.ID, Week: doc.Week, Year: doc.Year},
		})
		if err != nil {
			return err
		}

		var changed bool
		if next.Topic == "" && doc.Topic != "" {
			next.Topic = doc.Topic
			changed = true
		}
		if next.Homework == "" && doc.Homework != "" {
			next.Homework = doc.Homework
			changed = true
		}
		if next.GroupNote == "" && doc.GroupNote != "" {
			next.GroupNote = doc.GroupNote
			changed = true
		}
		if changed {
			if _, err = svc.repo.UpdateLessonDocumentation(ctx, next); err != nil {
				return err
			}
		}
	}
	return nil
}

func (svc *Service) checkHolidays(ctx context.Context, ref LessonRef) error {
	day, err := svc.repo.ResolveDate(ctx, ref)
	if err != nil {
		return err
	}
	holidays, err := svc.repo.QueryHolidays(ctx)
	if err != nil {
		return err
	}
	for _, h := range holidays {
		if h.Contains(day) {
			return core.NewValidationError(ErrEntriesInHolidays)
		}
	}
	return nil
}
