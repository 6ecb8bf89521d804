package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alsijil/core"
	"github.com/trezcool/alsijil/core/register"
)

// noteDateSQL resolves a register record's calendar date per lesson ref kind:
// the ISO week's Monday plus the period's weekday for lesson periods, the
// extra lesson's date otherwise. Events carry a date range and are matched
// on overlap instead.
const noteDateSQL = `(to_date(t.year::text || '-' || t.week::text, 'IYYY-IW') + lp.weekday)`

const personalNoteColumns = `
	t.id, t.person_id, t.week, t.year, t.lesson_period_id, t.event_id, t.extra_lesson_id,
	t.absent, t.late, t.excused, t.excuse_type_id, t.remarks, t.created_at, t.updated_at`

const lessonDocumentationColumns = `
	t.id, t.week, t.year, t.lesson_period_id, t.event_id, t.extra_lesson_id,
	t.topic, t.homework, t.group_note, t.created_at, t.updated_at`

type (
	personalNoteRow struct {
		ID             string      `db:"id"`
		PersonID       string      `db:"person_id"`
		Week           null.Int    `db:"week"`
		Year           null.Int    `db:"year"`
		LessonPeriodID null.String `db:"lesson_period_id"`
		EventID        null.String `db:"event_id"`
		ExtraLessonID  null.String `db:"extra_lesson_id"`
		Absent         bool        `db:"absent"`
		Late           int         `db:"late"`
		Excused        bool        `db:"excused"`
		ExcuseTypeID   null.String `db:"excuse_type_id"`
		Remarks        string      `db:"remarks"`
		CreatedAt      time.Time   `db:"created_at"`
		UpdatedAt      time.Time   `db:"updated_at"`
	}

	lessonDocumentationRow struct {
		ID             string      `db:"id"`
		Week           null.Int    `db:"week"`
		Year           null.Int    `db:"year"`
		LessonPeriodID null.String `db:"lesson_period_id"`
		EventID        null.String `db:"event_id"`
		ExtraLessonID  null.String `db:"extra_lesson_id"`
		Topic          string      `db:"topic"`
		Homework       string      `db:"homework"`
		GroupNote      string      `db:"group_note"`
		CreatedAt      time.Time   `db:"created_at"`
		UpdatedAt      time.Time   `db:"updated_at"`
	}

	registerRepository struct {
		exec core.DBExecutor
	}
)

var _ register.Repository = (*registerRepository)(nil) // interface compliance check

func NewRegisterRepository(exec core.DBExecutor) *registerRepository {
	return &registerRepository{exec: exec}
}

func (repo registerRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// trapNoRowsErr maps psql "no rows" err to register.ErrNotFound
func (repo registerRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return register.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo registerRepository) rowToNote(row personalNoteRow) register.PersonalNote {
	return register.PersonalNote{
		ID:       row.ID,
		PersonID: row.PersonID,
		LessonRef: register.LessonRef{
			LessonPeriodID: row.LessonPeriodID.String,
			EventID:        row.EventID.String,
			ExtraLessonID:  row.ExtraLessonID.String,
			Week:           int(row.Week.Int),
			Year:           int(row.Year.Int),
		},
		Absent:       row.Absent,
		Late:         row.Late,
		Excused:      row.Excused,
		ExcuseTypeID: row.ExcuseTypeID.String,
		Remarks:      row.Remarks,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func (repo registerRepository) rowToDoc(row lessonDocumentationRow) register.LessonDocumentation {
	return register.LessonDocumentation{
		ID: row.ID,
		LessonRef: register.LessonRef{
			LessonPeriodID: row.LessonPeriodID.String,
			EventID:        row.EventID.String,
			ExtraLessonID:  row.ExtraLessonID.String,
			Week:           int(row.Week.Int),
			Year:           int(row.Year.Int),
		},
		Topic:     row.Topic,
		Homework:  row.Homework,
		GroupNote: row.GroupNote,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func (repo registerRepository) queryNotes(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) ([]register.PersonalNote, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var noteRows []personalNoteRow
	if err = sqlx.StructScan(rows, &noteRows); err != nil {
		return nil, err
	}

	notes := make([]register.PersonalNote, 0, len(noteRows))
	for _, row := range noteRows {
		notes = append(notes, repo.rowToNote(row))
	}
	return repo.loadNoteRelations(ctx, exec, notes)
}

// loadNoteRelations attaches the group snapshots and extra marks of all
// notes in two batched queries.
func (repo registerRepository) loadNoteRelations(ctx context.Context, exec core.DBExecutor, notes []register.PersonalNote) ([]register.PersonalNote, error) {
	if len(notes) == 0 {
		return notes, nil
	}

	idx := make(map[string]int, len(notes))
	ids := make([]string, 0, len(notes))
	for i, note := range notes {
		idx[note.ID] = i
		ids = append(ids, note.ID)
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT personal_note_id, group_id FROM personal_note_groups
		WHERE personal_note_id = ANY($1) ORDER BY group_id`, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "querying note groups")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var noteID, groupID string
		if err = rows.Scan(&noteID, &groupID); err != nil {
			return nil, errors.Wrap(err, "querying note groups")
		}
		i := idx[noteID]
		notes[i].GroupsOfPerson = append(notes[i].GroupsOfPerson, groupID)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "querying note groups")
	}

	emRows, err := exec.QueryContext(ctx, `
		SELECT pnem.personal_note_id, em.id, em.short_name, em.name
		FROM personal_note_extra_marks pnem
		JOIN extra_mark em ON em.id = pnem.extra_mark_id
		WHERE pnem.personal_note_id = ANY($1) ORDER BY em.short_name`, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "querying note extra marks")
	}
	defer func() { _ = emRows.Close() }()
	for emRows.Next() {
		var noteID string
		var em register.ExtraMark
		if err = emRows.Scan(&noteID, &em.ID, &em.ShortName, &em.Name); err != nil {
			return nil, errors.Wrap(err, "querying note extra marks")
		}
		i := idx[noteID]
		notes[i].ExtraMarks = append(notes[i].ExtraMarks, em)
	}
	if err = emRows.Err(); err != nil {
		return nil, errors.Wrap(err, "querying note extra marks")
	}
	return notes, nil
}

func (repo registerRepository) saveNoteRelations(ctx context.Context, exec core.DBExecutor, note register.PersonalNote) error {
	if _, err := exec.ExecContext(ctx, `DELETE FROM personal_note_groups WHERE personal_note_id = $1`, note.ID); err != nil {
		return errors.Wrap(err, "clearing note groups")
	}
	for _, groupID := range note.GroupsOfPerson {
		if _, err := exec.ExecContext(ctx, `
			INSERT INTO personal_note_groups (personal_note_id, group_id) VALUES ($1, $2)`,
			note.ID, groupID); err != nil {
			return errors.Wrap(err, "saving note groups")
		}
	}

	if _, err := exec.ExecContext(ctx, `DELETE FROM personal_note_extra_marks WHERE personal_note_id = $1`, note.ID); err != nil {
		return errors.Wrap(err, "clearing note extra marks")
	}
	for _, em := range note.ExtraMarks {
		if _, err := exec.ExecContext(ctx, `
			INSERT INTO personal_note_extra_marks (personal_note_id, extra_mark_id) VALUES ($1, $2)`,
			note.ID, em.ID); err != nil {
			return errors.Wrap(err, "saving note extra marks")
		}
	}
	return nil
}

func (repo registerRepository) GetPersonalNote(ctx context.Context, id string, exec ...core.DBExecutor) (register.PersonalNote, error) {
	exe := repo.getExec(exec)
	notes, err := repo.queryNotes(ctx, exe, `
		SELECT `+personalNoteColumns+` FROM personal_note t WHERE t.id = $1`, id)
	if err != nil {
		return register.PersonalNote{}, errors.Wrap(err, "finding personal note")
	}
	if len(notes) == 0 {
		return register.PersonalNote{}, register.ErrNotFound
	}
	return notes[0], nil
}

func (repo registerRepository) GetOrCreatePersonalNote(ctx context.Context, note register.PersonalNote, exec ...core.DBExecutor) (register.PersonalNote, bool, error) {
	exe := repo.getExec(exec)

	var (
		query string
		args  []interface{}
	)
	switch {
	case note.LessonPeriodID != "":
		query = `SELECT ` + personalNoteColumns + ` FROM personal_note t
			WHERE t.person_id = $1 AND t.lesson_period_id = $2 AND t.week = $3 AND t.year = $4`
		args = []interface{}{note.PersonID, note.LessonPeriodID, note.Week, note.Year}
	case note.EventID != "":
		query = `SELECT ` + personalNoteColumns + ` FROM personal_note t
			WHERE t.person_id = $1 AND t.event_id = $2`
		args = []interface{}{note.PersonID, note.EventID}
	default:
		query = `SELECT ` + personalNoteColumns + ` FROM personal_note t
			WHERE t.person_id = $1 AND t.extra_lesson_id = $2`
		args = []interface{}{note.PersonID, note.ExtraLessonID}
	}

	existing, err := repo.queryNotes(ctx, exe, query, args...)
	if err != nil {
		return register.PersonalNote{}, false, errors.Wrap(err, "finding personal note")
	}
	if len(existing) > 0 {
		return existing[0], false, nil
	}

	created, err := repo.createPersonalNote(ctx, exe, note)
	return created, err == nil, err
}

func (repo registerRepository) createPersonalNote(ctx context.Context, exec core.DBExecutor, note register.PersonalNote) (register.PersonalNote, error) {
	note.ID = uuid.New().String()
	now := time.Now().UTC()
	note.CreatedAt, note.UpdatedAt = now, now

	_, err := exec.ExecContext(ctx, `
		INSERT INTO personal_note (
			id, person_id, week, year, lesson_period_id, event_id, extra_lesson_id,
			absent, late, excused, excuse_type_id, remarks, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		note.ID, note.PersonID,
		null.NewInt(note.Week, note.Week != 0), null.NewInt(note.Year, note.Year != 0),
		null.NewString(note.LessonPeriodID, note.LessonPeriodID != ""),
		null.NewString(note.EventID, note.EventID != ""),
		null.NewString(note.ExtraLessonID, note.ExtraLessonID != ""),
		note.Absent, note.Late, note.Excused,
		null.NewString(note.ExcuseTypeID, note.ExcuseTypeID != ""),
		note.Remarks, note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return register.PersonalNote{}, errors.Wrap(err, "inserting personal note")
	}
	if err = repo.saveNoteRelations(ctx, exec, note); err != nil {
		return register.PersonalNote{}, err
	}
	return note, nil
}

func (repo registerRepository) UpdatePersonalNote(ctx context.Context, note register.PersonalNote, exec ...core.DBExecutor) (register.PersonalNote, error) {
	exe := repo.getExec(exec)
	note.UpdatedAt = time.Now().UTC()

	res, err := exe.ExecContext(ctx, `
		UPDATE personal_note SET
			absent = $2, late = $3, excused = $4, excuse_type_id = $5, remarks = $6, updated_at = $7
		WHERE id = $1`,
		note.ID, note.Absent, note.Late, note.Excused,
		null.NewString(note.ExcuseTypeID, note.ExcuseTypeID != ""),
		note.Remarks, note.UpdatedAt,
	)
	if err != nil {
		return register.PersonalNote{}, errors.Wrap(err, "updating personal note")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return register.PersonalNote{}, register.ErrNotFound
	}
	if err = repo.saveNoteRelations(ctx, exe, note); err != nil {
		return register.PersonalNote{}, err
	}
	return note, nil
}

func (repo registerRepository) DeletePersonalNote(ctx context.Context, id string, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM personal_note WHERE id = $1`, id)
	return errors.Wrap(err, "deleting personal note")
}

func (repo registerRepository) queryDocs(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) ([]register.LessonDocumentation, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var docRows []lessonDocumentationRow
	if err = sqlx.StructScan(rows, &docRows); err != nil {
		return nil, err
	}

	docs := make([]register.LessonDocumentation, 0, len(docRows))
	for _, row := range docRows {
		docs = append(docs, repo.rowToDoc(row))
	}
	return docs, nil
}

func (repo registerRepository) GetLessonDocumentation(ctx context.Context, id string, exec ...core.DBExecutor) (register.LessonDocumentation, error) {
	docs, err := repo.queryDocs(ctx, repo.getExec(exec), `
		SELECT `+lessonDocumentationColumns+` FROM lesson_documentation t WHERE t.id = $1`, id)
	if err != nil {
		return register.LessonDocumentation{}, errors.Wrap(err, "finding lesson documentation")
	}
	if len(docs) == 0 {
		return register.LessonDocumentation{}, register.ErrNotFound
	}
	return docs[0], nil
}

func (repo registerRepository) GetOrCreateLessonDocumentation(ctx context.Context, doc register.LessonDocumentation, exec ...core.DBExecutor) (register.LessonDocumentation, bool, error) {
	exe := repo.getExec(exec)

	var (
		query string
		args  []interface{}
	)
	switch {
	case doc.LessonPeriodID != "":
		query = `SELECT ` + lessonDocumentationColumns + ` FROM lesson_documentation t
			WHERE t.lesson_period_id = $1 AND t.week = $2 AND t.year = $3`
		args = []interface{}{doc.LessonPeriodID, doc.Week, doc.Year}
	case doc.EventID != "":
		query = `SELECT ` + lessonDocumentationColumns + ` FROM lesson_documentation t WHERE t.event_id = $1`
		args = []interface{}{doc.EventID}
	default:
		query = `SELECT ` + lessonDocumentationColumns + ` FROM lesson_documentation t WHERE t.extra_lesson_id = $1`
		args = []interface{}{doc.ExtraLessonID}
	}

	existing, err := repo.queryDocs(ctx, exe, query, args...)
	if err != nil {
		return register.LessonDocumentation{}, false, errors.Wrap(err, "finding lesson documentation")
	}
	if len(existing) > 0 {
		return existing[0], false, nil
	}

	doc.ID = uuid.New().String()
	now := time.Now().UTC()
	doc.CreatedAt, doc.UpdatedAt = now, now

	_, err = exe.ExecContext(ctx, `
		INSERT INTO lesson_documentation (
			id, week, year, lesson_period_id, event_id, extra_lesson_id,
			topic, homework, group_note, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		doc.ID,
		null.NewInt(doc.Week, doc.Week != 0), null.NewInt(doc.Year, doc.Year != 0),
		null.NewString(doc.LessonPeriodID, doc.LessonPeriodID != ""),
		null.NewString(doc.EventID, doc.EventID != ""),
		null.NewString(doc.ExtraLessonID, doc.ExtraLessonID != ""),
		doc.Topic, doc.Homework, doc.GroupNote, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return register.LessonDocumentation{}, false, errors.Wrap(err, "inserting lesson documentation")
	}
	return doc, true, nil
}

func (repo registerRepository) UpdateLessonDocumentation(ctx context.Context, doc register.LessonDocumentation, exec ...core.DBExecutor) (register.LessonDocumentation, error) {
	doc.UpdatedAt = time.Now().UTC()

	res, err := repo.getExec(exec).ExecContext(ctx, `
		UPDATE lesson_documentation SET topic = $2, homework = $3, group_note = $4, updated_at = $5
		WHERE id = $1`,
		doc.ID, doc.Topic, doc.Homework, doc.GroupNote, doc.UpdatedAt,
	)
	if err != nil {
		return register.LessonDocumentation{}, errors.Wrap(err, "updating lesson documentation")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return register.LessonDocumentation{}, register.ErrNotFound
	}
	return doc, nil
}

func (repo registerRepository) DeleteLessonDocumentation(ctx context.Context, id string, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM lesson_documentation WHERE id = $1`, id)
	return errors.Wrap(err, "deleting lesson documentation")
}

func (repo registerRepository) QueryNotesInCancelledLessons(ctx context.Context, exec ...core.DBExecutor) ([]register.PersonalNote, error) {
	notes, err := repo.queryNotes(ctx, repo.getExec(exec), `
		SELECT DISTINCT `+personalNoteColumns+` FROM personal_note t
		JOIN substitution s ON s.lesson_period_id = t.lesson_period_id
			AND s.week = t.week AND s.year = t.year
		WHERE s.cancelled`)
	return notes, errors.Wrap(err, "querying notes in cancelled lessons")
}

func (repo registerRepository) QueryNotesWithoutGroups(ctx context.Context, exec ...core.DBExecutor) ([]register.PersonalNote, error) {
	notes, err := repo.queryNotes(ctx, repo.getExec(exec), `
		SELECT `+personalNoteColumns+` FROM personal_note t
		WHERE NOT EXISTS (
			SELECT 1 FROM personal_note_groups png WHERE png.personal_note_id = t.id
		)`)
	return notes, errors.Wrap(err, "querying notes without groups")
}

func (repo registerRepository) QueryNotesOnHolidays(ctx context.Context, exec ...core.DBExecutor) ([]register.PersonalNote, error) {
	notes, err := repo.queryNotes(ctx, repo.getExec(exec), `
		SELECT DISTINCT `+personalNoteColumns+` FROM personal_note t
		LEFT JOIN lesson_period lp ON lp.id = t.lesson_period_id
		LEFT JOIN extra_lesson el ON el.id = t.extra_lesson_id
		LEFT JOIN event ev ON ev.id = t.event_id
		JOIN holiday h ON (
			(t.lesson_period_id IS NOT NULL AND `+noteDateSQL+` BETWEEN h.date_start AND h.date_end)
			OR (t.extra_lesson_id IS NOT NULL AND el.date BETWEEN h.date_start AND h.date_end)
			OR (t.event_id IS NOT NULL AND ev.date_start <= h.date_end AND ev.date_end >= h.date_start)
		)
		WHERE t.remarks <> '' OR t.absent OR t.late <> 0 OR EXISTS (
			SELECT 1 FROM personal_note_extra_marks pnem WHERE pnem.personal_note_id = t.id
		)`)
	return notes, errors.Wrap(err, "querying notes on holidays")
}

func (repo registerRepository) QueryDocumentationsOnHolidays(ctx context.Context, exec ...core.DBExecutor) ([]register.LessonDocumentation, error) {
	docs, err := repo.queryDocs(ctx, repo.getExec(exec), `
		SELECT DISTINCT `+lessonDocumentationColumns+` FROM lesson_documentation t
		LEFT JOIN lesson_period lp ON lp.id = t.lesson_period_id
		LEFT JOIN extra_lesson el ON el.id = t.extra_lesson_id
		LEFT JOIN event ev ON ev.id = t.event_id
		JOIN holiday h ON (
			(t.lesson_period_id IS NOT NULL AND `+noteDateSQL+` BETWEEN h.date_start AND h.date_end)
			OR (t.extra_lesson_id IS NOT NULL AND el.date BETWEEN h.date_start AND h.date_end)
			OR (t.event_id IS NOT NULL AND ev.date_start <= h.date_end AND ev.date_end >= h.date_start)
		)
		WHERE t.topic <> '' OR t.homework <> '' OR t.group_note <> ''`)
	return docs, errors.Wrap(err, "querying documentations on holidays")
}

func (repo registerRepository) QueryExcusesWithoutAbsences(ctx context.Context, exec ...core.DBExecutor) ([]register.PersonalNote, error) {
	notes, err := repo.queryNotes(ctx, repo.getExec(exec), `
		SELECT `+personalNoteColumns+` FROM personal_note t
		WHERE t.excused AND NOT t.absent`)
	return notes, errors.Wrap(err, "querying excuses without absences")
}

func (repo registerRepository) LessonCancelled(ctx context.Context, lessonPeriodID string, week register.CalendarWeek, exec ...core.DBExecutor) (bool, error) {
	var cancelled bool
	err := repo.getExec(exec).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM substitution
			WHERE lesson_period_id = $1 AND week = $2 AND year = $3 AND cancelled
		)`, lessonPeriodID, week.Week, week.Year).Scan(&cancelled)
	return cancelled, errors.Wrap(err, "checking lesson cancellation")
}

func (repo registerRepository) ResolveDate(ctx context.Context, ref register.LessonRef, exec ...core.DBExecutor) (time.Time, error) {
	exe := repo.getExec(exec)

	switch {
	case ref.LessonPeriodID != "":
		var weekday int
		err := exe.QueryRowContext(ctx, `
			SELECT weekday FROM lesson_period WHERE id = $1`, ref.LessonPeriodID).Scan(&weekday)
		if err != nil {
			return time.Time{}, repo.trapNoRowsErr(err, "finding lesson period")
		}
		return ref.CalendarWeek().Day(weekday), nil
	case ref.EventID != "":
		var day time.Time
		err := exe.QueryRowContext(ctx, `
			SELECT date_start FROM event WHERE id = $1`, ref.EventID).Scan(&day)
		return day, repo.trapNoRowsErr(err, "finding event")
	case ref.ExtraLessonID != "":
		var day time.Time
		err := exe.QueryRowContext(ctx, `
			SELECT date FROM extra_lesson WHERE id = $1`, ref.ExtraLessonID).Scan(&day)
		return day, repo.trapNoRowsErr(err, "finding extra lesson")
	}
	return time.Time{}, register.ErrMissingLessonRef
}

func (repo registerRepository) QueryHolidays(ctx context.Context, exec ...core.DBExecutor) ([]register.Holiday, error) {
	rows, err := repo.getExec(exec).QueryContext(ctx, `
		SELECT id, name, date_start, date_end FROM holiday ORDER BY date_start`)
	if err != nil {
		return nil, errors.Wrap(err, "querying holidays")
	}
	defer func() { _ = rows.Close() }()

	var holidays []register.Holiday
	for rows.Next() {
		var h register.Holiday
		if err = rows.Scan(&h.ID, &h.Name, &h.DateStart, &h.DateEnd); err != nil {
			return nil, errors.Wrap(err, "querying holidays")
		}
		holidays = append(holidays, h)
	}
	return holidays, errors.Wrap(rows.Err(), "querying holidays")
}

func (repo registerRepository) GetPersonGroups(ctx context.Context, personID string, exec ...core.DBExecutor) ([]string, error) {
	rows, err := repo.getExec(exec).QueryContext(ctx, `
		SELECT group_id FROM person_group WHERE person_id = $1 ORDER BY group_id`, personID)
	if err != nil {
		return nil, errors.Wrap(err, "querying person groups")
	}
	defer func() { _ = rows.Close() }()

	var groups []string
	for rows.Next() {
		var groupID string
		if err = rows.Scan(&groupID); err != nil {
			return nil, errors.Wrap(err, "querying person groups")
		}
		groups = append(groups, groupID)
	}
	return groups, errors.Wrap(rows.Err(), "querying person groups")
}

func (repo registerRepository) queryLessonPeriods(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) ([]register.LessonPeriod, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var periods []register.LessonPeriod
	for rows.Next() {
		var lp register.LessonPeriod
		if err = rows.Scan(&lp.ID, &lp.LessonID, &lp.Weekday, &lp.Period); err != nil {
			return nil, err
		}
		periods = append(periods, lp)
	}
	return periods, rows.Err()
}

func (repo registerRepository) QueryLessonPeriodsForPersonOnDay(ctx context.Context, personID string, day time.Time, fromPeriod int, exec ...core.DBExecutor) ([]register.LessonPeriod, error) {
	weekday := (int(day.Weekday()) + 6) % 7 // 0 = Monday
	periods, err := repo.queryLessonPeriods(ctx, repo.getExec(exec), `
		SELECT lp.id, lp.lesson_id, lp.weekday, lp.period FROM lesson_period lp
		JOIN lesson_participant lpar ON lpar.lesson_id = lp.lesson_id
		WHERE lpar.person_id = $1 AND lp.weekday = $2 AND lp.period >= $3
		ORDER BY lp.period`, personID, weekday, fromPeriod)
	return periods, errors.Wrap(err, "querying person's lesson periods")
}

func (repo registerRepository) QueryFollowingLessonPeriods(ctx context.Context, lessonPeriodID string, exec ...core.DBExecutor) ([]register.LessonPeriod, error) {
	periods, err := repo.queryLessonPeriods(ctx, repo.getExec(exec), `
		SELECT lp2.id, lp2.lesson_id, lp2.weekday, lp2.period FROM lesson_period lp1
		JOIN lesson_period lp2 ON lp2.lesson_id = lp1.lesson_id
			AND lp2.weekday = lp1.weekday AND lp2.period > lp1.period
		WHERE lp1.id = $1
		ORDER BY lp2.period`, lessonPeriodID)
	return periods, errors.Wrap(err, "querying following lesson periods")
}

func (repo registerRepository) GetPersonStatistics(ctx context.Context, personID string, year int, exec ...core.DBExecutor) (register.Statistics, error) {
	exe := repo.getExec(exec)
	stats := register.Statistics{
		ExcuseTypeCounts: make(map[string]int),
		ExtraMarkCounts:  make(map[string]int),
	}

	err := exe.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE absent),
			COUNT(*) FILTER (WHERE absent AND excused),
			COUNT(*) FILTER (WHERE absent AND NOT excused),
			COALESCE(SUM(late), 0)
		FROM personal_note WHERE person_id = $1 AND year = $2`, personID, year).
		Scan(&stats.AbsencesCount, &stats.ExcusedCount, &stats.UnexcusedCount, &stats.TardinessSum)
	if err != nil {
		return register.Statistics{}, errors.Wrap(err, "aggregating person statistics")
	}

	rows, err := exe.QueryContext(ctx, `
		SELECT et.short_name, COUNT(*) FROM personal_note pn
		JOIN excuse_type et ON et.id = pn.excuse_type_id
		WHERE pn.person_id = $1 AND pn.year = $2
		GROUP BY et.short_name`, personID, year)
	if err != nil {
		return register.Statistics{}, errors.Wrap(err, "aggregating excuse types")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var shortName string
		var count int
		if err = rows.Scan(&shortName, &count); err != nil {
			return register.Statistics{}, errors.Wrap(err, "aggregating excuse types")
		}
		stats.ExcuseTypeCounts[shortName] = count
	}
	if err = rows.Err(); err != nil {
		return register.Statistics{}, errors.Wrap(err, "aggregating excuse types")
	}

	emRows, err := exe.QueryContext(ctx, `
		SELECT em.short_name, COUNT(*) FROM personal_note pn
		JOIN personal_note_extra_marks pnem ON pnem.personal_note_id = pn.id
		JOIN extra_mark em ON em.id = pnem.extra_mark_id
		WHERE pn.person_id = $1 AND pn.year = $2
		GROUP BY em.short_name`, personID, year)
	if err != nil {
		return register.Statistics{}, errors.Wrap(err, "aggregating extra marks")
	}
	defer func() { _ = emRows.Close() }()
	for emRows.Next() {
		var shortName string
		var count int
		if err = emRows.Scan(&shortName, &count); err != nil {
			return register.Statistics{}, errors.Wrap(err, "aggregating extra marks")
		}
		stats.ExtraMarkCounts[shortName] = count
	}
	return stats, errors.Wrap(emRows.Err(), "aggregating extra marks")
}
