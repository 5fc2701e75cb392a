// Copyright (c) 2025 - The Habitkit authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package habitkit

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// TimeOfDayLayout is the wire format for wall clock times of day.
const TimeOfDayLayout = "15:04"

// Date is a calendar date in ISO "YYYY-MM-DD" form, without time of day or
// time zone. The string form orders lexicographically in calendar order, so
// dates can be compared with the builtin comparison operators.
type Date string

// ParseDate parses a date in ISO "YYYY-MM-DD" form, or returns an error.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", fmt.Errorf("could not parse date %q: %w", s, err)
	}

	return Date(s), nil
}

// DateOf returns the calendar date of a point in time, in the time's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// Today returns the current calendar date according to the clock.
func Today(c Clock) Date {
	return DateOf(c.Now())
}

// String implements the fmt.Stringer interface.
func (d Date) String() string {
	return string(d)
}

// IsZero returns true for the unset date.
func (d Date) IsZero() bool {
	return d == ""
}

// Time returns the date as a point in time at midnight UTC. Invalid dates
// return the zero time.
func (d Date) Time() time.Time {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}
	}

	return t
}

// AddDays returns the date n calendar days after d (before, for negative n).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Prev returns the previous calendar day.
func (d Date) Prev() Date {
	return d.AddDays(-1)
}

// DaysUntil returns the number of whole calendar days from d until other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time().Sub(d.Time()) / (24 * time.Hour))
}

// ParseTimeOfDay validates a wall clock time in "HH:MM" form.
func ParseTimeOfDay(s string) error {
	if _, err := time.Parse(TimeOfDayLayout, s); err != nil {
		return fmt.Errorf("could not parse time of day %q: %w", s, err)
	}

	return nil
}

// TimeOfDay returns the "HH:MM" wall clock time of a point in time.
func TimeOfDay(t time.Time) string {
	return t.Format(TimeOfDayLayout)
}
