package datacheck

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/alsijil/core"
)

// ignoreOption flips solved=true and keeps the result row; the record the
// result points at stays untouched.
func (svc *Service) ignoreOption() SolveOption {
	return SolveOption{
		Name:        IgnoreOption,
		VerboseName: "Ignore problem",
		Solve: func(ctx context.Context, res Result, exec ...core.DBExecutor) error {
			res.Solved = true
			_, err := svc.results.SaveResult(ctx, res, exec...)
			return err
		},
	}
}

// deleteRelatedObjectOption deletes the offending record, then the result
// row itself so no orphan result outlives the record.
func (svc *Service) deleteRelatedObjectOption() SolveOption {
	return SolveOption{
		Name:        "delete",
		VerboseName: "Delete object",
		Solve: func(ctx context.Context, res Result, exec ...core.DBExecutor) error {
			if err := svc.deleteRelatedObject(ctx, res, exec...); err != nil {
				return err
			}
			return svc.results.DeleteResult(ctx, res.ID, exec...)
		},
	}
}

// resetPersonalNoteOption puts the note's recorded data back to the default
// values, saves it and deletes the result.
func (svc *Service) resetPersonalNoteOption() SolveOption {
	return SolveOption{
		Name:        "reset_personal_note",
		VerboseName: "Reset personal note to defaults",
		Solve: func(ctx context.Context, res Result, exec ...core.DBExecutor) error {
			note, err := svc.register.GetPersonalNote(ctx, res.ObjectID, exec...)
			if err != nil {
				return errors.Wrap(err, "finding personal note")
			}
			note.Reset()
			if _, err = svc.register.UpdatePersonalNote(ctx, note, exec...); err != nil {
				return errors.Wrap(err, "resetting personal note")
			}
			return svc.results.DeleteResult(ctx, res.ID, exec...)
		},
	}
}

// updateGroupsOfPersonOption recomputes the note's group snapshot from the
// person's current memberships, saves it and deletes the result.
func (svc *Service) updateGroupsOfPersonOption() SolveOption {
	return SolveOption{
		Name:        "update_groups_of_person",
		VerboseName: "Update group snapshot from current memberships",
		Solve: func(ctx context.Context, res Result, exec ...core.DBExecutor) error {
			note, err := svc.register.GetPersonalNote(ctx, res.ObjectID, exec...)
			if err != nil {
				return errors.Wrap(err, "finding personal note")
			}
			groups, err := svc.register.GetPersonGroups(ctx, note.PersonID, exec...)
			if err != nil {
				return errors.Wrap(err, "querying person groups")
			}
			note.GroupsOfPerson = groups
			if _, err = svc.register.UpdatePersonalNote(ctx, note, exec...); err != nil {
				return errors.Wrap(err, "updating personal note")
			}
			return svc.results.DeleteResult(ctx, res.ID, exec...)
		},
	}
}

// deleteRelatedObject resolves the result's content type to the concrete
// register record and deletes it.
func (svc *Service) deleteRelatedObject(ctx context.Context, res Result, exec ...core.DBExecutor) error {
	switch res.ContentType {
	case ContentTypePersonalNote:
		return errors.Wrap(svc.register.DeletePersonalNote(ctx, res.ObjectID, exec...), "deleting personal note")
	case ContentTypeLessonDocumentation:
		return errors.Wrap(svc.register.DeleteLessonDocumentation(ctx, res.ObjectID, exec...), "deleting lesson documentation")
	}
	return errors.Errorf("unknown content type %q", res.ContentType)
}
