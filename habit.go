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
	"strconv"
	"strings"
	"time"

	"github.com/habitkit/habitkit/uuid"
)

// DefaultTargetCompletions is the completion goal used when a form leaves the
// target blank.
const DefaultTargetCompletions = 21

// LogEntry is a single day's completion record for a habit. There is at most
// one entry per date in a habit's log; logging the same date again replaces
// the entry.
type LogEntry struct {
	Date      Date   `json:"date"`
	Completed bool   `json:"completed"`
	Time      string `json:"time,omitempty"`
	Mood      string `json:"mood,omitempty"`
}

// Habit is a user defined recurring activity tracked for completion.
//
// CompletedDays, CompletionRate and Streak are derived from Logs and are
// recomputed by the progress engine after every log mutation; they are never
// set directly.
type Habit struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	Description       string     `json:"description,omitempty"`
	TargetCompletions int        `json:"targetCompletions"`
	Timeframe         *int       `json:"timeframe,omitempty"`
	TrackStreak       bool       `json:"trackStreak"`
	TargetTime        string     `json:"targetTime,omitempty"`
	StartDate         Date       `json:"startDate"`
	CreatedAt         time.Time  `json:"createdAt"`
	Logs              []LogEntry `json:"logs"`
	CompletedDays     int        `json:"completedDays"`
	CompletionRate    int        `json:"completionRate"`
	Streak            int        `json:"streak"`
}

// Log returns the log entry for a date, if there is one.
func (h *Habit) Log(d Date) (LogEntry, bool) {
	for _, e := range h.Logs {
		if e.Date == d {
			return e, true
		}
	}

	return LogEntry{}, false
}

// Form is the user supplied configuration of a habit, as entered in a create
// or edit form. Numeric fields are strings on purpose: coercion with defaults
// is part of the validation contract.
type Form struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	TargetCompletions string `json:"targetCompletions"`
	Timeframe         string `json:"timeframe,omitempty"`
	TrackStreak       bool   `json:"trackStreak"`
	TargetTime        string `json:"targetTime,omitempty"`
}

// Apply validates the form and overlays its configuration fields on a habit.
// Identity, start date, logs and derived fields are left untouched. On a
// validation failure the habit is not modified.
func (f Form) Apply(h *Habit) error {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return &ValidationError{Field: "name", Err: ErrMissingHabitName}
	}

	target := DefaultTargetCompletions

	if s := strings.TrimSpace(f.TargetCompletions); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return &ValidationError{Field: "targetCompletions", Err: ErrInvalidTargetCompletions}
		}

		target = n
	}

	var timeframe *int

	if s := strings.TrimSpace(f.Timeframe); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return &ValidationError{Field: "timeframe", Err: ErrInvalidTimeframe}
		}

		timeframe = &n
	}

	if f.TargetTime != "" {
		if err := ParseTimeOfDay(f.TargetTime); err != nil {
			return &ValidationError{Field: "targetTime", Err: ErrInvalidTargetTime}
		}
	}

	h.Name = name
	h.Description = f.Description
	h.TargetCompletions = target
	h.Timeframe = timeframe
	h.TrackStreak = f.TrackStreak
	h.TargetTime = f.TargetTime

	return nil
}
