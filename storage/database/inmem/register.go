package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/alsijil/core"
	"github.com/trezcool/alsijil/core/register"
)

type registerRepository struct {
	db *DB
}

var _ register.Repository = (*registerRepository)(nil) // interface compliance check

func NewRegisterRepository(db *DB) *registerRepository {
	return &registerRepository{db: db}
}

func copyNote(note register.PersonalNote) register.PersonalNote {
	cp := note
	cp.GroupsOfPerson = append([]string(nil), note.GroupsOfPerson...)
	cp.ExtraMarks = append([]register.ExtraMark(nil), note.ExtraMarks...)
	return cp
}

func sortNotes(notes []register.PersonalNote) []register.PersonalNote {
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].ID < notes[j].ID
		}
		return notes[i].CreatedAt.Before(notes[j].CreatedAt)
	})
	return notes
}

func sortDocs(docs []register.LessonDocumentation) []register.LessonDocumentation {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs
}

func (repo *registerRepository) queryNotes(match func(register.PersonalNote) bool) []register.PersonalNote {
	notes := make([]register.PersonalNote, 0, len(repo.db.personalNote))
	for _, note := range repo.db.personalNote {
		if match(*note) {
			notes = append(notes, copyNote(*note))
		}
	}
	return sortNotes(notes)
}

func (repo *registerRepository) queryDocs(match func(register.LessonDocumentation) bool) []register.LessonDocumentation {
	docs := make([]register.LessonDocumentation, 0, len(repo.db.lessonDoc))
	for _, doc := range repo.db.lessonDoc {
		if match(*doc) {
			docs = append(docs, *doc)
		}
	}
	return sortDocs(docs)
}

// resolveDate mirrors the date expression the sql backend computes:
// the ISO week's day for lesson periods, the recorded date otherwise.
// Events resolve to their start date.
func (repo *registerRepository) resolveDate(ref register.LessonRef) (time.Time, error) {
	switch {
	case ref.LessonPeriodID != "":
		lp, ok := repo.db.lessonPeriod[ref.LessonPeriodID]
		if !ok {
			return time.Time{}, register.ErrNotFound
		}
		return ref.CalendarWeek().Day(lp.Weekday), nil
	case ref.EventID != "":
		ev, ok := repo.db.event[ref.EventID]
		if !ok {
			return time.Time{}, register.ErrNotFound
		}
		return ev.dateStart, nil
	case ref.ExtraLessonID != "":
		date, ok := repo.db.extraLesson[ref.ExtraLessonID]
		if !ok {
			return time.Time{}, register.ErrNotFound
		}
		return date, nil
	}
	return time.Time{}, register.ErrMissingLessonRef
}

func (repo *registerRepository) onHoliday(ref register.LessonRef) bool {
	if ref.EventID != "" {
		ev, ok := repo.db.event[ref.EventID]
		if !ok {
			return false
		}
		for _, h := range repo.db.holiday {
			if !ev.dateStart.After(h.DateEnd) && !ev.dateEnd.Before(h.DateStart) {
				return true
			}
		}
		return false
	}

	day, err := repo.resolveDate(ref)
	if err != nil {
		return false
	}
	for _, h := range repo.db.holiday {
		if h.Contains(day) {
			return true
		}
	}
	return false
}

func (repo *registerRepository) GetPersonalNote(_ context.Context, id string, _ ...core.DBExecutor) (register.PersonalNote, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if note, ok := repo.db.personalNote[id]; ok {
		return copyNote(*note), nil
	}
	return register.PersonalNote{}, register.ErrNotFound
}

func (repo *registerRepository) GetOrCreatePersonalNote(_ context.Context, note register.PersonalNote, _ ...core.DBExecutor) (register.PersonalNote, bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.personalNote {
		if existing.PersonID == note.PersonID && existing.LessonRef == note.LessonRef {
			return copyNote(*existing), false, nil
		}
	}

	note.ID = uuid.New().String()
	now := time.Now().UTC()
	note.CreatedAt, note.UpdatedAt = now, now
	cp := copyNote(note)
	repo.db.personalNote[note.ID] = &cp
	return note, true, nil
}

func (repo *registerRepository) UpdatePersonalNote(_ context.Context, note register.PersonalNote, _ ...core.DBExecutor) (register.PersonalNote, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.personalNote[note.ID]
	if !ok {
		return register.PersonalNote{}, register.ErrNotFound
	}
	note.CreatedAt = orig.CreatedAt
	note.UpdatedAt = time.Now().UTC()
	cp := copyNote(note)
	repo.db.personalNote[note.ID] = &cp
	return note, nil
}

func (repo *registerRepository) DeletePersonalNote(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.personalNote, id)
	return nil
}

func (repo *registerRepository) GetLessonDocumentation(_ context.Context, id string, _ ...core.DBExecutor) (register.LessonDocumentation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if doc, ok := repo.db.lessonDoc[id]; ok {
		return *doc, nil
	}
	return register.LessonDocumentation{}, register.ErrNotFound
}

func (repo *registerRepository) GetOrCreateLessonDocumentation(_ context.Context, doc register.LessonDocumentation, _ ...core.DBExecutor) (register.LessonDocumentation, bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.lessonDoc {
		if existing.LessonRef == doc.LessonRef {
			return *existing, false, nil
		}
	}

	doc.ID = uuid.New().String()
	now := time.Now().UTC()
	doc.CreatedAt, doc.UpdatedAt = now, now
	cp := doc
	repo.db.lessonDoc[doc.ID] = &cp
	return doc, true, nil
}

func (repo *registerRepository) UpdateLessonDocumentation(_ context.Context, doc register.LessonDocumentation, _ ...core.DBExecutor) (register.LessonDocumentation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.lessonDoc[doc.ID]
	if !ok {
		return register.LessonDocumentation{}, register.ErrNotFound
	}
	doc.CreatedAt = orig.CreatedAt
	doc.UpdatedAt = time.Now().UTC()
	cp := doc
	repo.db.lessonDoc[doc.ID] = &cp
	return doc, nil
}

func (repo *registerRepository) DeleteLessonDocumentation(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.lessonDoc, id)
	return nil
}

func (repo *registerRepository) QueryNotesInCancelledLessons(_ context.Context, _ ...core.DBExecutor) ([]register.PersonalNote, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return repo.queryNotes(func(note register.PersonalNote) bool {
		if note.LessonPeriodID == "" {
			return false
		}
		for _, sub := range repo.db.substitution {
			if sub.cancelled && sub.lessonPeriodID == note.LessonPeriodID &&
				sub.week == note.Week && sub.year == note.Year {
				return true
			}
		}
		return false
	}), nil
}

func (repo *registerRepository) QueryNotesWithoutGroups(_ context.Context, _ ...core.DBExecutor) ([]register.PersonalNote, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return repo.queryNotes(func(note register.PersonalNote) bool {
		return len(note.GroupsOfPerson) == 0
	}), nil
}

func (repo *registerRepository) QueryNotesOnHolidays(_ context.Context, _ ...core.DBExecutor) ([]register.PersonalNote, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return repo.queryNotes(func(note register.PersonalNote) bool {
		return note.NotEmpty() && repo.onHoliday(note.LessonRef)
	}), nil
}

func (repo *registerRepository) QueryDocumentationsOnHolidays(_ context.Context, _ ...core.DBExecutor) ([]register.LessonDocumentation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return repo.queryDocs(func(doc register.LessonDocumentation) bool {
		return doc.NotEmpty() && repo.onHoliday(doc.LessonRef)
	}), nil
}

func (repo *registerRepository) QueryExcusesWithoutAbsences(_ context.Context, _ ...core.DBExecutor) ([]register.PersonalNote, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return repo.queryNotes(func(note register.PersonalNote) bool {
		return note.Excused && !note.Absent
	}), nil
}

func (repo *registerRepository) LessonCancelled(_ context.Context, lessonPeriodID string, week register.CalendarWeek, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sub := range repo.db.substitution {
		if sub.cancelled && sub.lessonPeriodID == lessonPeriodID &&
			sub.week == week.Week && sub.year == week.Year {
			return true, nil
		}
	}
	return false, nil
}

func (repo *registerRepository) ResolveDate(_ context.Context, ref register.LessonRef, _ ...core.DBExecutor) (time.Time, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.resolveDate(ref)
}

func (repo *registerRepository) QueryHolidays(_ context.Context, _ ...core.DBExecutor) ([]register.Holiday, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	holidays := append([]register.Holiday(nil), repo.db.holiday...)
	sort.Slice(holidays, func(i, j int) bool { return holidays[i].DateStart.Before(holidays[j].DateStart) })
	return holidays, nil
}

func (repo *registerRepository) GetPersonGroups(_ context.Context, personID string, _ ...core.DBExecutor) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	groups := append([]string(nil), repo.db.personGroup[personID]...)
	sort.Strings(groups)
	return groups, nil
}

func (repo *registerRepository) QueryLessonPeriodsForPersonOnDay(_ context.Context, personID string, day time.Time, fromPeriod int, _ ...core.DBExecutor) ([]register.LessonPeriod, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	weekday := (int(day.Weekday()) + 6) % 7 // 0 = Monday

	var periods []register.LessonPeriod
	for _, lp := range repo.db.lessonPeriod {
		if lp.Weekday != weekday || lp.Period < fromPeriod {
			continue
		}
		for _, pid := range repo.db.participant[lp.LessonID] {
			if pid == personID {
				periods = append(periods, lp)
				break
			}
		}
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Period < periods[j].Period })
	return periods, nil
}

func (repo *registerRepository) QueryFollowingLessonPeriods(_ context.Context, lessonPeriodID string, _ ...core.DBExecutor) ([]register.LessonPeriod, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	cur, ok := repo.db.lessonPeriod[lessonPeriodID]
	if !ok {
		return nil, register.ErrNotFound
	}

	var periods []register.LessonPeriod
	for _, lp := range repo.db.lessonPeriod {
		if lp.LessonID == cur.LessonID && lp.Weekday == cur.Weekday && lp.Period > cur.Period {
			periods = append(periods, lp)
		}
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Period < periods[j].Period })
	return periods, nil
}

func (repo *registerRepository) GetPersonStatistics(_ context.Context, personID string, year int, _ ...core.DBExecutor) (register.Statistics, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	stats := register.Statistics{
		ExcuseTypeCounts: make(map[string]int),
		ExtraMarkCounts:  make(map[string]int),
	}
	for _, note := range repo.db.personalNote {
		if note.PersonID != personID || note.Year != year {
			continue
		}
		if note.Absent {
			stats.AbsencesCount++
			if note.Excused {
				stats.ExcusedCount++
			} else {
				stats.UnexcusedCount++
			}
		}
		stats.TardinessSum += note.Late
		if note.ExcuseTypeID != "" {
			key := note.ExcuseTypeID
			if et, ok := repo.db.excuseType[key]; ok {
				key = et.ShortName
			}
			stats.ExcuseTypeCounts[key]++
		}
		for _, em := range note.ExtraMarks {
			stats.ExtraMarkCounts[em.ShortName]++
		}
	}
	return stats, nil
}
