package datacheck

import (
	"context"

	"github.com/trezcool/alsijil/core"
	"github.com/trezcool/alsijil/core/register"
)

// Check names, also the foreign key stored on results.
const (
	NoPersonalNotesInCancelledLessons   = "no_personal_notes_in_cancelled_lessons"
	NoGroupsOfPersonsSetInPersonalNotes = "no_groups_of_persons_set_in_personal_notes"
	PersonalNoteOnHolidays              = "personal_note_on_holidays"
	LessonDocumentationOnHolidays       = "lesson_documentation_on_holidays"
	ExcusesWithoutAbsences              = "excuses_without_absences"
)

func (svc *Service) registerChecks() error {
	checks := []Check{
		{
			Name:        NoPersonalNotesInCancelledLessons,
			VerboseName: "Ensure that there are no personal notes in cancelled lessons",
			ProblemName: "The personal note is related to a cancelled lesson.",
			CheckData:   svc.checkNotes(register.Repository.QueryNotesInCancelledLessons, NoPersonalNotesInCancelledLessons),
			SolveOptions: solveOptions(
				svc.deleteRelatedObjectOption(),
				svc.ignoreOption(),
			),
		},
		{
			Name:        NoGroupsOfPersonsSetInPersonalNotes,
			VerboseName: "Ensure that 'groups_of_person' is set for every personal note",
			ProblemName: "The personal note has no group snapshot of its person.",
			CheckData:   svc.checkNotes(register.Repository.QueryNotesWithoutGroups, NoGroupsOfPersonsSetInPersonalNotes),
			SolveOptions: solveOptions(
				svc.updateGroupsOfPersonOption(),
				svc.deleteRelatedObjectOption(),
				svc.ignoreOption(),
			),
		},
		{
			Name:        PersonalNoteOnHolidays,
			VerboseName: "Ensure that there are no filled out personal notes on holidays",
			ProblemName: "The personal note is on holidays.",
			CheckData:   svc.checkNotes(register.Repository.QueryNotesOnHolidays, PersonalNoteOnHolidays),
			SolveOptions: solveOptions(
				svc.deleteRelatedObjectOption(),
				svc.ignoreOption(),
			),
		},
		{
			Name:        LessonDocumentationOnHolidays,
			VerboseName: "Ensure that there are no filled out lesson documentations on holidays",
			ProblemName: "The lesson documentation is on holidays.",
			CheckData:   svc.checkDocumentationsOnHolidays,
			SolveOptions: solveOptions(
				svc.deleteRelatedObjectOption(),
				svc.ignoreOption(),
			),
		},
		{
			Name:        ExcusesWithoutAbsences,
			VerboseName: "Ensure that there are no excused personal notes without an absence",
			ProblemName: "The personal note is marked as excused, but not as absent.",
			CheckData:   svc.checkNotes(register.Repository.QueryExcusesWithoutAbsences, ExcusesWithoutAbsences),
			SolveOptions: solveOptions(
				svc.resetPersonalNoteOption(),
				svc.deleteRelatedObjectOption(),
				svc.ignoreOption(),
			),
		},
	}

	for _, check := range checks {
		if err := svc.registry.Register(check); err != nil {
			return err
		}
	}
	return nil
}

// checkNotes builds a CheckData func that upserts one result per personal
// note returned by the candidate query.
func (svc *Service) checkNotes(
	query func(register.Repository, context.Context, ...core.DBExecutor) ([]register.PersonalNote, error),
	checkName string,
) func(ctx context.Context, exec ...core.DBExecutor) error {
	return func(ctx context.Context, exec ...core.DBExecutor) error {
		notes, err := query(svc.register, ctx, exec...)
		if err != nil {
			return err
		}
		for _, note := range notes {
			if _, _, err = svc.results.GetOrCreateResult(ctx, Result{
				Check:       checkName,
				ContentType: ContentTypePersonalNote,
				ObjectID:    note.ID,
			}, exec...); err != nil {
				return err
			}
		}
		return nil
	}
}

func (svc *Service) checkDocumentationsOnHolidays(ctx context.Context, exec ...core.DBExecutor) error {
	docs, err := svc.register.QueryDocumentationsOnHolidays(ctx, exec...)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if _, _, err = svc.results.GetOrCreateResult(ctx, Result{
			Check:       LessonDocumentationOnHolidays,
			ContentType: ContentTypeLessonDocumentation,
			ObjectID:    doc.ID,
		}, exec...); err != nil {
			return err
		}
	}
	return nil
}
