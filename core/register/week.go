package register

import (
	"fmt"
	"time"
)

// CalendarWeek is an ISO 8601 calendar week.
type CalendarWeek struct {
	Year int `json:"year"`
	Week int `json:"week"`
}

// CalendarWeekFromDate returns the calendar week containing day.
func CalendarWeekFromDate(day time.Time) CalendarWeek {
	year, week := day.ISOWeek()
	return CalendarWeek{Year: year, Week: week}
}

// Monday returns the first day of the week.
func (cw CalendarWeek) Monday() time.Time {
	// ISO 8601: week 1 is the week containing January 4th.
	jan4 := time.Date(cw.Year, time.January, 4, 0, 0, 0, 0, time.UTC)
	monday := jan4.AddDate(0, 0, -(int(jan4.Weekday())+6)%7)
	return monday.AddDate(0, 0, (cw.Week-1)*7)
}

// Day returns the week's day at the given weekday offset (0 = Monday).
func (cw CalendarWeek) Day(weekday int) time.Time {
	return cw.Monday().AddDate(0, 0, weekday)
}

func (cw CalendarWeek) IsZero() bool {
	return cw.Year == 0 && cw.Week == 0
}

func (cw CalendarWeek) String() string {
	return fmt.Sprintf("CW %d/%d", cw.Week, cw.Year)
}
