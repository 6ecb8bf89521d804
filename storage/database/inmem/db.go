package inmemdb

import (
	"sync"
	"time"

	"github.com/trezcool/alsijil/core/register"
)

type (
	// DB holds all tables in memory. The register and data check tables
	// are written through the repositories; the timetable tables mirror
	// the subsystem that owns lessons, substitutions and holidays, and
	// are populated through the Add* seeding methods.
	DB struct {
		mutex sync.RWMutex

		personalNote map[string]*register.PersonalNote
		lessonDoc    map[string]*register.LessonDocumentation
		result       map[string]*resultRow

		lessonPeriod map[string]register.LessonPeriod
		substitution []substitutionRow
		event        map[string]eventRow
		extraLesson  map[string]time.Time
		holiday      []register.Holiday
		personGroup  map[string][]string
		participant  map[string][]string // lesson id -> person ids
		excuseType   map[string]register.ExcuseType
	}

	substitutionRow struct {
		lessonPeriodID string
		week, year     int
		cancelled      bool
	}

	eventRow struct {
		dateStart, dateEnd time.Time
	}
)

func Open() (*DB, error) {
	db := &DB{
		personalNote: make(map[string]*register.PersonalNote),
		lessonDoc:    make(map[string]*register.LessonDocumentation),
		result:       make(map[string]*resultRow),
		lessonPeriod: make(map[string]register.LessonPeriod),
		event:        make(map[string]eventRow),
		extraLesson:  make(map[string]time.Time),
		personGroup:  make(map[string][]string),
		participant:  make(map[string][]string),
		excuseType:   make(map[string]register.ExcuseType),
	}
	return db, nil
}

func (db *DB) AddLessonPeriod(lp register.LessonPeriod) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.lessonPeriod[lp.ID] = lp
}

func (db *DB) AddSubstitution(lessonPeriodID string, week register.CalendarWeek, cancelled bool) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.substitution = append(db.substitution, substitutionRow{
		lessonPeriodID: lessonPeriodID,
		week:           week.Week,
		year:           week.Year,
		cancelled:      cancelled,
	})
}

func (db *DB) AddEvent(id string, dateStart, dateEnd time.Time) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.event[id] = eventRow{dateStart: dateStart, dateEnd: dateEnd}
}

func (db *DB) AddExtraLesson(id string, date time.Time) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.extraLesson[id] = date
}

func (db *DB) AddHoliday(h register.Holiday) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.holiday = append(db.holiday, h)
}

func (db *DB) SetPersonGroups(personID string, groupIDs ...string) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.personGroup[personID] = groupIDs
}

func (db *DB) AddExcuseType(et register.ExcuseType) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.excuseType[et.ID] = et
}

func (db *DB) AddLessonParticipant(lessonID, personID string) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.participant[lessonID] = append(db.participant[lessonID], personID)
}
