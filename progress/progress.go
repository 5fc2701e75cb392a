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

// Package progress is the pure computation engine for habit logs: the upsert
// rule for log collections and the derivation of streak, completion rate and
// completed day counts. It performs no I/O and never mutates its inputs;
// "today" is always an explicit argument.
package progress

import (
	"math"

	hk "github.com/habitkit/habitkit"
)

// UpsertLog returns a new log collection where the entry for its date is
// replaced if present, else appended. The relative order of all other entries
// is preserved, and no two entries ever share a date.
func UpsertLog(logs []hk.LogEntry, entry hk.LogEntry) []hk.LogEntry {
	result := make([]hk.LogEntry, len(logs))
	copy(result, logs)

	for i, e := range result {
		if e.Date == entry.Date {
			result[i] = entry

			return result
		}
	}

	return append(result, entry)
}

// CompletedDays returns the number of log entries marked completed.
func CompletedDays(logs []hk.LogEntry) int {
	days := 0

	for _, e := range logs {
		if e.Completed {
			days++
		}
	}

	return days
}

// CompletionRate returns the percentage of logged days marked completed,
// rounded to the nearest integer. Empty logs rate as 0.
func CompletionRate(logs []hk.LogEntry) int {
	if len(logs) == 0 {
		return 0
	}

	return int(math.Round(100 * float64(CompletedDays(logs)) / float64(len(logs))))
}

// Streak returns the number of consecutive completed days ending at today.
// The walk starts at today and moves backward one calendar day at a time; a
// missing date or an uncompleted entry anywhere in the walk, including at
// today itself, terminates the count. A streak that ended yesterday counts
// as 0: only a streak active as of today is credited.
func Streak(logs []hk.LogEntry, today hk.Date) int {
	byDate := make(map[hk.Date]bool, len(logs))
	for _, e := range logs {
		byDate[e.Date] = e.Completed
	}

	streak := 0

	for d := today; byDate[d]; d = d.Prev() {
		streak++
	}

	return streak
}

// Recompute sets a habit's derived fields from its logs. The streak is held
// at 0 for habits that do not track streaks.
func Recompute(h *hk.Habit, today hk.Date) {
	h.CompletedDays = CompletedDays(h.Logs)
	h.CompletionRate = CompletionRate(h.Logs)

	if h.TrackStreak {
		h.Streak = Streak(h.Logs, today)
	} else {
		h.Streak = 0
	}
}
