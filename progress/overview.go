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

package progress

import (
	hk "github.com/habitkit/habitkit"
)

// DaysElapsed returns the number of whole days from a habit's start date
// until today. Never negative.
func DaysElapsed(start, today hk.Date) int {
	days := start.DaysUntil(today)
	if days < 0 {
		return 0
	}

	return days
}

// Goal is a habit's standing against its completion target.
type Goal struct {
	// CompletionsRemaining is the number of completed days still needed to
	// reach the target.
	CompletionsRemaining int
	// Percent is the progress toward the target in percent, capped at 100.
	Percent int
	// DaysElapsed is the number of days since the habit's start date.
	DaysElapsed int
	// TimeframeDaysRemaining is the number of days left in the habit's
	// timeframe. Nil for habits without a timeframe.
	TimeframeDaysRemaining *int
}

// GoalProgress derives a habit's standing against its completion target.
func GoalProgress(h *hk.Habit, today hk.Date) Goal {
	g := Goal{
		DaysElapsed: DaysElapsed(h.StartDate, today),
	}

	if remaining := h.TargetCompletions - h.CompletedDays; remaining > 0 {
		g.CompletionsRemaining = remaining
	}

	if h.TargetCompletions > 0 {
		percent := 100 * h.CompletedDays / h.TargetCompletions
		if percent > 100 {
			percent = 100
		}

		g.Percent = percent
	}

	if h.Timeframe != nil {
		left := *h.Timeframe - g.DaysElapsed
		if left < 0 {
			left = 0
		}

		g.TimeframeDaysRemaining = &left
	}

	return g
}

// Overview is an aggregate view over all of a user's habits.
type Overview struct {
	// TotalHabits is the number of habits.
	TotalHabits int
	// ActiveHabits is the number of habits with a live streak.
	ActiveHabits int
	// AverageStreak is the mean streak over all habits.
	AverageStreak float64
	// AverageCompletionRate is the mean completion rate over all habits.
	AverageCompletionRate float64
}

// Summarize computes an overview over a set of habits.
func Summarize(habits []*hk.Habit) Overview {
	o := Overview{
		TotalHabits: len(habits),
	}

	if len(habits) == 0 {
		return o
	}

	streaks, rates := 0, 0

	for _, h := range habits {
		if h.Streak > 0 {
			o.ActiveHabits++
		}

		streaks += h.Streak
		rates += h.CompletionRate
	}

	o.AverageStreak = float64(streaks) / float64(len(habits))
	o.AverageCompletionRate = float64(rates) / float64(len(habits))

	return o
}
