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

// Package tracker provides the habit tracker, the single entry point for
// creating, editing, logging, deleting and observing habits.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	hk "github.com/habitkit/habitkit"
	"github.com/habitkit/habitkit/lock"
	"github.com/habitkit/habitkit/progress"
	"github.com/habitkit/habitkit/uuid"
)

// Tracker coordinates habit mutations: it validates forms, recomputes
// derived progress after every log, guards each habit against concurrent
// mutations and publishes a change on the feed after every successful
// store write.
type Tracker struct {
	store hk.Store
	lock  lock.Lock
	clock hk.Clock
	feed  hk.ChangeFeed
}

// NewTracker creates a new Tracker, with optional settings.
func NewTracker(store hk.Store, options ...Option) (*Tracker, error) {
	if store == nil {
		return nil, fmt.Errorf("missing store")
	}

	t := &Tracker{
		store: store,
		lock:  lock.NewLocalLock(),
		clock: hk.RealClock,
	}

	for _, option := range options {
		if err := option(t); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	return t, nil
}

// Option is an option setter used to configure creation.
type Option func(*Tracker) error

// WithLock uses a lock other than the default local one as the per-habit
// in-flight guard, for example a distributed lock.
func WithLock(l lock.Lock) Option {
	return func(t *Tracker) error {
		if l == nil {
			return fmt.Errorf("missing lock")
		}

		t.lock = l

		return nil
	}
}

// WithClock uses a clock other than the wall clock to provide "today",
// which also makes date handling across timezones an explicit choice of
// the caller.
func WithClock(c hk.Clock) Option {
	return func(t *Tracker) error {
		if c == nil {
			return fmt.Errorf("missing clock")
		}

		t.clock = c

		return nil
	}
}

// WithFeed publishes a change on the feed after every successful mutation.
func WithFeed(f hk.ChangeFeed) Option {
	return func(t *Tracker) error {
		if f == nil {
			return fmt.Errorf("missing feed")
		}

		t.feed = f

		return nil
	}
}

// Create validates the form and stores a new habit. The habit starts
// today with an empty log and a zero streak.
func (t *Tracker) Create(ctx context.Context, form hk.Form) (*hk.Habit, error) {
	now := t.clock.Now()

	habit := &hk.Habit{
		StartDate: hk.DateOf(now),
		CreatedAt: now,
		Logs:      []hk.LogEntry{},
	}

	if err := form.Apply(habit); err != nil {
		return nil, err
	}

	if err := t.store.Save(ctx, habit); err != nil {
		return nil, err
	}

	t.publish(ctx, hk.HabitCreated, habit)

	return habit, nil
}

// Update validates the form and overlays its configuration on an existing
// habit. The habit's identity, start date, logs and derived progress are
// kept as they are.
func (t *Tracker) Update(ctx context.Context, id uuid.UUID, form hk.Form) (*hk.Habit, error) {
	if err := t.guard(id); err != nil {
		return nil, err
	}
	defer t.unguard(id)

	habit, err := t.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := form.Apply(habit); err != nil {
		return nil, err
	}

	if err := t.store.Save(ctx, habit); err != nil {
		return nil, err
	}

	t.publish(ctx, hk.HabitUpdated, habit)

	return habit, nil
}

// LogOption is an option setter used to configure a progress log.
type LogOption func(*logEntry)

type logEntry struct {
	date    hk.Date
	time    string
	timeSet bool
	mood    string
}

// WithDate logs progress for a date other than today. The date must not
// be in the future or before the habit's start date.
func WithDate(d hk.Date) LogOption {
	return func(e *logEntry) {
		e.date = d
	}
}

// WithTime records the time of day of the completion, instead of the
// current time.
func WithTime(timeOfDay string) LogOption {
	return func(e *logEntry) {
		e.time = timeOfDay
		e.timeSet = true
	}
}

// WithMood records the mood of the completion.
func WithMood(mood string) LogOption {
	return func(e *logEntry) {
		e.mood = mood
	}
}

// LogProgress records a completion state for a habit and date, today if
// not set otherwise. Logging a date that already has an entry replaces
// the entry. The habit's derived progress is recomputed and stored in
// the same write.
func (t *Tracker) LogProgress(ctx context.Context, id uuid.UUID, completed bool, options ...LogOption) (*hk.Habit, error) {
	if err := t.guard(id); err != nil {
		return nil, err
	}
	defer t.unguard(id)

	now := t.clock.Now()
	today := hk.DateOf(now)

	e := &logEntry{
		date: today,
	}

	for _, option := range options {
		option(e)
	}

	if _, err := hk.ParseDate(e.date.String()); err != nil {
		return nil, fmt.Errorf("%w: %w", hk.ErrInvalidLogDate, err)
	}

	habit, err := t.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if e.date > today || e.date < habit.StartDate {
		return nil, hk.ErrInvalidLogDate
	}

	if !e.timeSet {
		e.time = hk.TimeOfDay(now)
	}

	habit.Logs = progress.UpsertLog(habit.Logs, hk.LogEntry{
		Date:      e.date,
		Completed: completed,
		Time:      e.time,
		Mood:      e.mood,
	})

	progress.Recompute(habit, today)

	if err := t.store.Save(ctx, habit); err != nil {
		return nil, err
	}

	t.publish(ctx, hk.HabitLogged, habit)

	return habit, nil
}

// Delete removes a habit and its logs.
func (t *Tracker) Delete(ctx context.Context, id uuid.UUID) error {
	if err := t.guard(id); err != nil {
		return err
	}
	defer t.unguard(id)

	if err := t.store.Remove(ctx, id); err != nil {
		return err
	}

	t.publishChange(ctx, hk.Change{
		Op:      hk.HabitDeleted,
		HabitID: id,
		User:    hk.UserFromContext(ctx),
		At:      t.clock.Now(),
	})

	return nil
}

// List returns the user's habits in insertion order. Habits that share an
// ID are collapsed into one: the first occurrence keeps its position, the
// last occurrence wins on content.
func (t *Tracker) List(ctx context.Context) ([]*hk.Habit, error) {
	habits, err := t.store.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	return dedupe(habits), nil
}

// Overview returns aggregate progress over all of the user's habits.
func (t *Tracker) Overview(ctx context.Context) (progress.Overview, error) {
	habits, err := t.List(ctx)
	if err != nil {
		return progress.Overview{}, err
	}

	return progress.Summarize(habits), nil
}

// Subscribe returns a watch that delivers a full snapshot of the user's
// habits on every change, deduplicated like List. The store must support
// watching.
func (t *Tracker) Subscribe(ctx context.Context) (hk.Watch, error) {
	watchable, ok := t.store.(hk.WatchableStore)
	if !ok {
		return nil, &hk.StoreError{
			Err:  hk.ErrWatchNotSupported,
			Op:   hk.StoreOpWatch,
			User: hk.UserFromContext(ctx),
		}
	}

	inner, err := watchable.Watch(ctx)
	if err != nil {
		return nil, err
	}

	w := &subscription{
		inner:     inner,
		snapshots: make(chan []*hk.Habit),
	}

	go w.run()

	return w, nil
}

// guard takes the habit's in-flight lock. A habit that is already being
// mutated declines the second operation instead of queueing it.
func (t *Tracker) guard(id uuid.UUID) error {
	if err := t.lock.Lock(id.String()); err != nil {
		if errors.Is(err, lock.ErrLockExists) {
			return fmt.Errorf("%w: %s", hk.ErrHabitBusy, id)
		}

		return err
	}

	return nil
}

func (t *Tracker) unguard(id uuid.UUID) {
	if err := t.lock.Unlock(id.String()); err != nil {
		log.Printf("habitkit: could not unlock habit %s: %s", id, err)
	}
}

func (t *Tracker) publish(ctx context.Context, op hk.ChangeOp, habit *hk.Habit) {
	t.publishChange(ctx, hk.Change{
		Op:      op,
		HabitID: habit.ID,
		Habit:   habit,
		User:    hk.UserFromContext(ctx),
		At:      t.clock.Now(),
	})
}

// publishChange publishes on the feed if there is one. A feed failure is
// logged but does not fail the mutation, the store write has already
// succeeded.
func (t *Tracker) publishChange(ctx context.Context, change hk.Change) {
	if t.feed == nil {
		return
	}

	if err := t.feed.PublishChange(ctx, change); err != nil {
		log.Printf("habitkit: could not publish change: %s", err)
	}
}

// dedupe collapses habits that share an ID: first occurrence keeps its
// position, last occurrence wins on content.
func dedupe(habits []*hk.Habit) []*hk.Habit {
	seen := map[uuid.UUID]int{}
	result := []*hk.Habit{}

	for _, habit := range habits {
		if i, ok := seen[habit.ID]; ok {
			result[i] = habit

			continue
		}

		seen[habit.ID] = len(result)
		result = append(result, habit)
	}

	return result
}

// subscription wraps a store watch and deduplicates every snapshot.
type subscription struct {
	inner     hk.Watch
	snapshots chan []*hk.Habit
	closeOnce sync.Once
}

func (w *subscription) Snapshots() <-chan []*hk.Habit {
	return w.snapshots
}

func (w *subscription) Errors() <-chan error {
	return w.inner.Errors()
}

func (w *subscription) Close() error {
	var err error

	w.closeOnce.Do(func() {
		err = w.inner.Close()

		// Drain until the inner snapshot channel closes, which ends run().
		for range w.snapshots {
		}
	})

	return err
}

func (w *subscription) run() {
	defer close(w.snapshots)

	for snapshot := range w.inner.Snapshots() {
		w.snapshots <- dedupe(snapshot)
	}
}
