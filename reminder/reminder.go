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

// Package reminder triggers daily reminders for habits at their target
// time. It uses the cron syntax from https://github.com/gorhill/cronexpr.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorhill/cronexpr"

	hk "github.com/habitkit/habitkit"
	"github.com/habitkit/habitkit/uuid"
)

// ErrNoTargetTime is when a habit without a target time is scheduled.
var ErrNoTargetTime = errors.New("habit has no target time")

// Reminder is a due notification for a habit at its target time.
type Reminder struct {
	// HabitID is the habit the reminder is for.
	HabitID uuid.UUID
	// Name is the habit's name at scheduling time.
	Name string
	// User is the user scope the habit was scheduled in.
	User string
	// At is the time the reminder was due.
	At time.Time
}

// Handler is a handler of due reminders.
type Handler interface {
	// HandleReminder handles a due reminder.
	HandleReminder(ctx context.Context, r Reminder) error
}

// HandlerFunc is a func adapter that can be used as a reminder handler.
type HandlerFunc func(ctx context.Context, r Reminder) error

// HandleReminder implements the HandleReminder method of the Handler interface.
func (f HandlerFunc) HandleReminder(ctx context.Context, r Reminder) error {
	return f(ctx, r)
}

// CronLine returns the daily crontab line for a "HH:MM" target time.
func CronLine(targetTime string) (string, error) {
	if targetTime == "" {
		return "", ErrNoTargetTime
	}

	t, err := time.Parse(hk.TimeOfDayLayout, targetTime)
	if err != nil {
		return "", fmt.Errorf("%w: %s", hk.ErrInvalidTargetTime, targetTime)
	}

	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

// Next returns the first trigger time for a "HH:MM" target time after the
// given time.
func Next(targetTime string, after time.Time) (time.Time, error) {
	line, err := CronLine(targetTime)
	if err != nil {
		return time.Time{}, err
	}

	expr, err := cronexpr.Parse(line)
	if err != nil {
		return time.Time{}, err
	}

	return expr.Next(after), nil
}

// Scheduler triggers a reminder every day at each scheduled habit's target
// time and hands it to the handler.
type Scheduler struct {
	handler     Handler
	clock       hk.Clock
	remindersCh chan data
	errCh       chan error
}

type data struct {
	ctx      context.Context
	reminder Reminder
}

// NewScheduler creates a new Scheduler with a handler for due reminders.
func NewScheduler(h Handler) *Scheduler {
	s := &Scheduler{
		handler:     h,
		clock:       hk.RealClock,
		remindersCh: make(chan data),
		errCh:       make(chan error, 1),
	}

	go s.run()

	return s
}

// ScheduleHabit schedules a daily reminder at the habit's target time.
// Cancelling the context stops the reminders. A habit without a target
// time cannot be scheduled.
func (s *Scheduler) ScheduleHabit(ctx context.Context, habit *hk.Habit) error {
	line, err := CronLine(habit.TargetTime)
	if err != nil {
		return err
	}

	expr, err := cronexpr.Parse(line)
	if err != nil {
		return err
	}

	reminder := Reminder{
		HabitID: habit.ID,
		Name:    habit.Name,
		User:    hk.UserFromContext(ctx),
	}

	go func() {
		for {
			nextTime := expr.Next(s.clock.Now())
			select {
			case <-time.After(time.Until(nextTime)):
				r := reminder
				r.At = nextTime

				s.remindersCh <- data{ctx, r}
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Errors returns the error channel.
func (s *Scheduler) Errors() <-chan error {
	return s.errCh
}

func (s *Scheduler) run() {
	for data := range s.remindersCh {
		if err := s.handler.HandleReminder(data.ctx, data.reminder); err != nil {
			select {
			case s.errCh <- err:
			default:
			}
		}
	}
}
