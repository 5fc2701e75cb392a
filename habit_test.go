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
	"errors"
	"testing"
)

func TestFormApply(t *testing.T) {
	h := &Habit{}

	err := Form{
		Name:              "  Drink water  ",
		Description:       "Eight glasses",
		TargetCompletions: "8",
		Timeframe:         "30",
		TrackStreak:       true,
		TargetTime:        "08:00",
	}.Apply(h)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if h.Name != "Drink water" {
		t.Error("the name should be trimmed:", h.Name)
	}

	if h.TargetCompletions != 8 {
		t.Error("the target completions should be correct:", h.TargetCompletions)
	}

	if h.Timeframe == nil || *h.Timeframe != 30 {
		t.Error("the timeframe should be correct:", h.Timeframe)
	}

	if !h.TrackStreak {
		t.Error("the streak tracking should be set")
	}

	if h.TargetTime != "08:00" {
		t.Error("the target time should be correct:", h.TargetTime)
	}
}

func TestFormApplyDefaults(t *testing.T) {
	h := &Habit{}

	if err := (Form{Name: "Read"}).Apply(h); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if h.TargetCompletions != DefaultTargetCompletions {
		t.Error("the default target completions should be used:", h.TargetCompletions)
	}

	if h.Timeframe != nil {
		t.Error("there should be no timeframe:", h.Timeframe)
	}

	// Whitespace only counts as blank.
	h = &Habit{}
	if err := (Form{Name: "Read", TargetCompletions: "  "}).Apply(h); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if h.TargetCompletions != DefaultTargetCompletions {
		t.Error("the default target completions should be used:", h.TargetCompletions)
	}
}

func TestFormApplyValidation(t *testing.T) {
	cases := map[string]struct {
		form  Form
		field string
		err   error
	}{
		"missing name": {
			Form{Name: ""},
			"name", ErrMissingHabitName,
		},
		"blank name": {
			Form{Name: "   "},
			"name", ErrMissingHabitName,
		},
		"non numeric target": {
			Form{Name: "Read", TargetCompletions: "three"},
			"targetCompletions", ErrInvalidTargetCompletions,
		},
		"zero target": {
			Form{Name: "Read", TargetCompletions: "0"},
			"targetCompletions", ErrInvalidTargetCompletions,
		},
		"negative target": {
			Form{Name: "Read", TargetCompletions: "-3"},
			"targetCompletions", ErrInvalidTargetCompletions,
		},
		"non numeric timeframe": {
			Form{Name: "Read", Timeframe: "month"},
			"timeframe", ErrInvalidTimeframe,
		},
		"zero timeframe": {
			Form{Name: "Read", Timeframe: "0"},
			"timeframe", ErrInvalidTimeframe,
		},
		"bad target time": {
			Form{Name: "Read", TargetTime: "25:61"},
			"targetTime", ErrInvalidTargetTime,
		},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			h := &Habit{Name: "untouched"}

			err := c.form.Apply(h)
			if !errors.Is(err, c.err) {
				t.Error("the error should be correct:", err)
			}

			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatal("the error should be a validation error:", err)
			}

			if validationErr.Field != c.field {
				t.Error("the field should be correct:", validationErr.Field)
			}

			// A failed apply leaves the habit untouched.
			if h.Name != "untouched" {
				t.Error("the habit should not be modified:", h.Name)
			}
		})
	}
}

func TestHabitLog(t *testing.T) {
	h := &Habit{
		Logs: []LogEntry{
			{Date: "2025-06-14", Completed: true},
			{Date: "2025-06-15", Completed: false},
		},
	}

	entry, ok := h.Log("2025-06-14")
	if !ok {
		t.Fatal("there should be a log entry")
	}

	if !entry.Completed {
		t.Error("the entry should be completed")
	}

	if _, ok := h.Log("2025-06-13"); ok {
		t.Error("there should be no log entry")
	}
}
