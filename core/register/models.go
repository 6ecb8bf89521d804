package register

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound          = errors.New("record not found")
	ErrMissingLessonRef  = errors.New("a personal note or documentation must relate to exactly one register object")
	ErrEntriesInHolidays = errors.New("adding data for lessons in holidays is not allowed")
	ErrCancelledLesson   = errors.New("adding personal notes for cancelled lessons is not allowed")
)

// ExcuseType is a type of excuse.
//
// Can be used to count different types of absences separately.
type ExcuseType struct {
	ID        string `json:"id"`
	ShortName string `json:"short_name" validate:"required,max=255"`
	Name      string `json:"name" validate:"required,max=255"`
}

func (et ExcuseType) String() string {
	return fmt.Sprintf("%s (%s)", et.Name, et.ShortName)
}

func (et ExcuseType) CountLabel() string {
	return et.ShortName + "_count"
}

// ExtraMark is used for lesson-based counting of things (like forgotten homework).
type ExtraMark struct {
	ID        string `json:"id"`
	ShortName string `json:"short_name" validate:"required,max=255"`
	Name      string `json:"name" validate:"required,max=255"`
}

func (em ExtraMark) String() string {
	return em.Name
}

func (em ExtraMark) CountLabel() string {
	return em.ShortName + "_count"
}

// Holiday is a named date range during which no lessons take place.
// Both endpoints belong to the holiday.
type Holiday struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	DateStart time.Time `json:"date_start"`
	DateEnd   time.Time `json:"date_end"`
}

// Contains reports whether day falls within the holiday, endpoints included.
func (h Holiday) Contains(day time.Time) bool {
	d := day.Truncate(24 * time.Hour)
	return !d.Before(h.DateStart) && !d.After(h.DateEnd)
}

// LessonRef relates a register record to exactly one timetable object:
// a regular lesson period in a concrete week, a calendar event or an
// extra lesson. The timetable subsystem owns the referenced objects.
type LessonRef struct {
	LessonPeriodID string `json:"lesson_period_id,omitempty"`
	EventID        string `json:"event_id,omitempty"`
	ExtraLessonID  string `json:"extra_lesson_id,omitempty"`

	// Week and Year pin a lesson period occurrence; unset for events and extra lessons.
	Week int `json:"week,omitempty"`
	Year int `json:"year,omitempty"`
}

// Valid reports whether exactly one timetable object is referenced,
// with week/year if and only if it is a lesson period.
func (ref LessonRef) Valid() bool {
	switch {
	case ref.LessonPeriodID != "":
		return ref.EventID == "" && ref.ExtraLessonID == "" && ref.Week != 0 && ref.Year != 0
	case ref.EventID != "":
		return ref.ExtraLessonID == "" && ref.Week == 0 && ref.Year == 0
	case ref.ExtraLessonID != "":
		return ref.Week == 0 && ref.Year == 0
	}
	return false
}

func (ref LessonRef) CalendarWeek() CalendarWeek {
	return CalendarWeek{Year: ref.Year, Week: ref.Week}
}

// PersonalNote is a note about a single person in a single lesson:
// absence, lateness, excuse and free-text remarks.
type PersonalNote struct {
	ID       string `json:"id"`
	PersonID string `json:"person_id" validate:"required"`
	LessonRef

	// GroupsOfPerson is a snapshot of the person's group memberships at note time.
	GroupsOfPerson []string `json:"groups_of_person"`

	Absent       bool        `json:"absent"`
	Late         int         `json:"late" validate:"min=0"` // minutes
	Excused      bool        `json:"excused"`
	ExcuseTypeID string      `json:"excuse_type_id,omitempty"`
	Remarks      string      `json:"remarks" validate:"max=200"`
	ExtraMarks   []ExtraMark `json:"extra_marks"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// personalNoteDefaults are the canonical default field values a note is
// reset to when remediating inconsistent data.
var personalNoteDefaults = PersonalNote{
	Absent:       false,
	Late:         0,
	Excused:      false,
	ExcuseTypeID: "",
	Remarks:      "",
}

// NotEmpty reports whether the note carries any recorded data.
func (n PersonalNote) NotEmpty() bool {
	return n.Remarks != "" || n.Absent || n.Late != 0 || len(n.ExtraMarks) > 0
}

// Normalize enforces the field invariants before saving:
// an excuse type implies excused, and only absences can be excused.
func (n *PersonalNote) Normalize() {
	if n.ExcuseTypeID != "" {
		n.Excused = true
	}
	if !n.Absent {
		n.Excused = false
		n.ExcuseTypeID = ""
	}
}

// Reset puts all recorded data back to the default values.
// It does not save the note.
func (n *PersonalNote) Reset() {
	n.Absent = personalNoteDefaults.Absent
	n.Late = personalNoteDefaults.Late
	n.Excused = personalNoteDefaults.Excused
	n.ExcuseTypeID = personalNoteDefaults.ExcuseTypeID
	n.Remarks = personalNoteDefaults.Remarks
	n.ExtraMarks = nil
}

func (n PersonalNote) String() string {
	return fmt.Sprintf("%s, %s", n.CalendarWeek(), n.PersonID)
}

// LessonDocumentation documents a single lesson: topic, homework and a group note.
type LessonDocumentation struct {
	ID string `json:"id"`
	LessonRef

	Topic     string `json:"topic" validate:"max=200"`
	Homework  string `json:"homework" validate:"max=200"`
	GroupNote string `json:"group_note" validate:"max=200"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NotEmpty reports whether the documentation carries any recorded data.
func (d LessonDocumentation) NotEmpty() bool {
	return d.Topic != "" || d.Homework != "" || d.GroupNote != ""
}

// Statistics aggregates a person's register entries over a school year.
type Statistics struct {
	AbsencesCount  int `json:"absences_count"`
	ExcusedCount   int `json:"excused_count"`
	UnexcusedCount int `json:"unexcused_count"`
	TardinessSum   int `json:"tardiness_sum"` // minutes
	// counts keyed by ExcuseType.ShortName and ExtraMark.ShortName
	ExcuseTypeCounts map[string]int `json:"excuse_type_counts"`
	ExtraMarkCounts  map[string]int `json:"extra_mark_counts"`
}
