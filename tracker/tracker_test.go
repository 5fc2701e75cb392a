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

package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hk "github.com/habitkit/habitkit"
	"github.com/habitkit/habitkit/lock"
	"github.com/habitkit/habitkit/mocks"
	"github.com/habitkit/habitkit/store/memory"
	"github.com/habitkit/habitkit/uuid"
)

func newTestTracker(t *testing.T, date string) (*Tracker, *mocks.Store, *mocks.ChangeFeed) {
	t.Helper()

	store := mocks.NewStore()
	feed := &mocks.ChangeFeed{}

	tr, err := NewTracker(store,
		WithClock(mocks.ClockAt(date)),
		WithFeed(feed),
	)
	require.NoError(t, err)

	return tr, store, feed
}

func TestNewTracker(t *testing.T) {
	_, err := NewTracker(nil)
	assert.Error(t, err)

	_, err = NewTracker(mocks.NewStore(), WithClock(nil))
	assert.Error(t, err)

	_, err = NewTracker(mocks.NewStore(), WithLock(nil))
	assert.Error(t, err)

	_, err = NewTracker(mocks.NewStore(), WithFeed(nil))
	assert.Error(t, err)
}

func TestCreate(t *testing.T) {
	tr, store, feed := newTestTracker(t, "2025-06-15")
	ctx := context.Background()

	habit, err := tr.Create(ctx, hk.Form{
		Name:              "Drink water",
		Description:       "Eight glasses",
		TargetCompletions: "8",
		Timeframe:         "30",
		TrackStreak:       true,
		TargetTime:        "08:00",
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, habit.ID)
	assert.Equal(t, "Drink water", habit.Name)
	assert.Equal(t, 8, habit.TargetCompletions)
	require.NotNil(t, habit.Timeframe)
	assert.Equal(t, 30, *habit.Timeframe)
	assert.Equal(t, hk.Date("2025-06-15"), habit.StartDate)
	assert.Empty(t, habit.Logs)
	assert.Zero(t, habit.CompletedDays)
	assert.Zero(t, habit.Streak)

	assert.Len(t, store.Habits, 1)

	changes := feed.Published()
	require.Len(t, changes, 1)
	assert.Equal(t, hk.HabitCreated, changes[0].Op)
	assert.Equal(t, habit.ID, changes[0].HabitID)
	assert.Equal(t, hk.DefaultUser, changes[0].User)
}

func TestCreateDefaults(t *testing.T) {
	tr, _, _ := newTestTracker(t, "2025-06-15")

	habit, err := tr.Create(context.Background(), hk.Form{Name: "Read"})
	require.NoError(t, err)

	assert.Equal(t, hk.DefaultTargetCompletions, habit.TargetCompletions)
	assert.Nil(t, habit.Timeframe)
	assert.False(t, habit.TrackStreak)
}

func TestCreateValidation(t *testing.T) {
	tr, store, feed := newTestTracker(t, "2025-06-15")
	ctx := context.Background()

	_, err := tr.Create(ctx, hk.Form{Name: "   "})
	assert.ErrorIs(t, err, hk.ErrMissingHabitName)

	_, err = tr.Create(ctx, hk.Form{Name: "Read", TargetCompletions: "zero"})
	assert.ErrorIs(t, err, hk.ErrInvalidTargetCompletions)

	_, err = tr.Create(ctx, hk.Form{Name: "Read", TargetCompletions: "-1"})
	assert.ErrorIs(t, err, hk.ErrInvalidTargetCompletions)

	_, err = tr.Create(ctx, hk.Form{Name: "Read", Timeframe: "0"})
	assert.ErrorIs(t, err, hk.ErrInvalidTimeframe)

	_, err = tr.Create(ctx, hk.Form{Name: "Read", TargetTime: "25:00"})
	assert.ErrorIs(t, err, hk.ErrInvalidTargetTime)

	// Nothing was stored or published.
	assert.Empty(t, store.Habits)
	assert.Empty(t, feed.Published())
}

func TestUpdate(t *testing.T) {
	tr, _, feed := newTestTracker(t, "2025-06-15")
	ctx := context.Background()

	habit, err := tr.Create(ctx, hk.Form{Name: "Run", TargetCompletions: "10"})
	require.NoError(t, err)

	// Give the habit some progress to check that it survives the edit.
	habit, err = tr.LogProgress(ctx, habit.ID, true)
	require.NoError(t, err)

	updated, err := tr.Update(ctx, habit.ID, hk.Form{
		Name:              "Run farther",
		TargetCompletions: "20",
		TrackStreak:       true,
	})
	require.NoError(t, err)

	assert.Equal(t, habit.ID, updated.ID)
	assert.Equal(t, "Run farther", updated.Name)
	assert.Equal(t, 20, updated.TargetCompletions)
	assert.Equal(t, habit.StartDate, updated.StartDate)
	assert.Equal(t, habit.Logs, updated.Logs)
	assert.Equal(t, 1, updated.CompletedDays)

	changes := feed.Published()
	require.Len(t, changes, 3)
	assert.Equal(t, hk.HabitUpdated, changes[2].Op)
}

func TestUpdateNotFound(t *testing.T) {
	tr, _, _ := newTestTracker(t, "2025-06-15")

	_, err := tr.Update(context.Background(), uuid.New(), hk.Form{Name: "Run"})
	assert.ErrorIs(t, err, hk.ErrHabitNotFound)
}

func TestUpdateValidation(t *testing.T) {
	tr, _, _ := newTestTracker(t, "2025-06-15")
	ctx := context.Background()

	habit, err := tr.Create(ctx, hk.Form{Name: "Run"})
	require.NoError(t, err)

	_, err = tr.Update(ctx, habit.ID, hk.Form{Name: ""})
	assert.ErrorIs(t, err, hk.ErrMissingHabitName)

	// The stored habit is unchanged.
	found, err := tr.store.Find(ctx, habit.ID)
	require.NoError(t, err)
	assert.Equal(t, "Run", found.Name)
}

func TestLogProgress(t *testing.T) {
	tr, _, feed := newTestTracker(t, "2025-06-15")
	ctx := context.Background()

	habit, err := tr.Create(ctx, hk.Form{Name: "Meditate", TrackStreak: true})
	require.NoError(t, err)

	habit, err = tr.LogProgress(ctx, habit.ID, true, WithMood("calm"))
	require.NoError(t, err)

	require.Len(t, habit.Logs, 1)
	assert.Equal(t, hk.Date("2025-06-15"), habit.Logs[0].Date)
	assert.True(t, habit.Logs[0].Completed)
	assert.Equal(t, "12:00", habit.Logs[0].Time)
	assert.Equal(t, "calm", habit.Logs[0].Mood)

	assert.Equal(t, 1, habit.CompletedDays)
	assert.Equal(t, 100, habit.CompletionRate)
	assert.Equal(t, 1, habit.Streak)

	changes := feed.Published()
	require.Len(t, changes, 2)
	assert.Equal(t, hk.HabitLogged, changes[1].Op)
}

func TestLogProgressReplacesEntry(t *testing.T) {
	tr, _, _ := newTestTracker(t, "2025-06-15")
	ctx := context.Background()

	habit, err := tr.Create(ctx, hk.Form{Name: "Meditate", TrackStreak: true})
	require.NoError(t, err)

	_, err = tr.LogProgress(ctx, habit.ID, true)
	require.NoError(t, err)

	// Logging the same date again replaces the entry instead of adding one.
	habit, err = tr.LogProgress(ctx, habit.ID, false)
	require.NoError(t, err)

	require.Len(t, habit.Logs, 1)
	assert.False(t, habit.Logs[0].Completed)
	assert.Zero(t, habit.CompletedDays)
	assert.Zero(t, habit.CompletionRate)
	assert.Zero(t, habit.Streak)
}

func TestLogProgressStampsTime(t *testing.T) {
	tr, _, _ := newTestTracker(t, "2025-06-15")
	ctx := context.Background()

	habit, err := tr.Create(ctx, hk.Form{Name: "Meditate"})
	require.NoError(t, err)

	// Every log records the time of day, also an uncompleted one.
	habit, err = tr.LogProgress(ctx, habit.ID, false)
	require.NoError(t, err)

	require.Len(t, habit.Logs, 1)
	assert.Equal(t, "12:00", habit.Logs[0].Time)

	habit, err = tr.LogProgress(ctx, habit.ID, false, WithTime("08:30"))
	require.NoError(t, err)

	require.Len(t, habit.Logs, 1)
	assert.Equal(t, "08:30", habit.Logs[0].Time)
}

func TestLogProgressBackdated(t *testing.T) {
	tr, store, _ := newTestTracker(t, "2025-06-15")
	ctx := context.Background()

	// A habit that started two weeks ago.
	habit := &hk.Habit{
		Name:              "Stretch",
		TargetCompletions: 21,
		TrackStreak:       true,
		StartDate:         "2025-06-01",
		CreatedAt:         time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC),
		Logs:              []hk.LogEntry{},
	}
	require.NoError(t, store.Save(ctx, habit))

	habit, err := tr.LogProgress(ctx, habit.ID, true, WithDate("2025-06-14"), WithTime("21:30"))
	require.NoError(t, err)

	require.Len(t, habit.Logs, 1)
	assert.Equal(t, hk.Date("2025-06-14"), habit.Logs[0].Date)
	assert.Equal(t, "21:30", habit.Logs[0].Time)

	// Yesterday alone is not a streak reaching today.
	assert.Equal(t, 1, habit.CompletedDays)
	assert.Zero(t, habit.Streak)

	// Completing today as well connects the streak.
	habit, err = tr.LogProgress(ctx, habit.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, habit.Streak)
}

func TestLogProgressDateWindow(t *testing.T) {
	tr, store, _ := newTestTracker(t, "2025-06-15")
	ctx := context.Background()

	habit := &hk.Habit{
		Name:      "Stretch",
		StartDate: "2025-06-10",
		Logs:      []hk.LogEntry{},
	}
	require.NoError(t, store.Save(ctx, habit))

	_, err := tr.LogProgress(ctx, habit.ID, true, WithDate("2025-06-16"))
	assert.ErrorIs(t, err, hk.ErrInvalidLogDate)

	_, err = tr.LogProgress(ctx, habit.ID, true, WithDate("2025-06-09"))
	assert.ErrorIs(t, err, hk.ErrInvalidLogDate)

	_, err = tr.LogProgress(ctx, habit.ID, true, WithDate("not-a-date"))
	assert.ErrorIs(t, err, hk.ErrInvalidLogDate)

	// The boundaries themselves are loggable.
	_, err = tr.LogProgress(ctx, habit.ID, true, WithDate("2025-06-10"))
	assert.NoError(t, err)

	_, err = tr.LogProgress(ctx, habit.ID, true, WithDate("2025-06-15"))
	assert.NoError(t, err)
}

func TestDelete(t *testing.T) {
	tr, _, feed := newTestTracker(t, "2025-06-15")
	ctx := context.Background()

	habit, err := tr.Create(ctx, hk.Form{Name: "Run"})
	require.NoError(t, err)

	require.NoError(t, tr.Delete(ctx, habit.ID))

	_, err = tr.store.Find(ctx, habit.ID)
	assert.ErrorIs(t, err, hk.ErrHabitNotFound)

	changes := feed.Published()
	require.Len(t, changes, 2)
	assert.Equal(t, hk.HabitDeleted, changes[1].Op)
	assert.Equal(t, habit.ID, changes[1].HabitID)
	assert.Nil(t, changes[1].Habit)
}

func TestDeleteNotFound(t *testing.T) {
	tr, _, feed := newTestTracker(t, "2025-06-15")

	err := tr.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, hk.ErrHabitNotFound)
	assert.Empty(t, feed.Published())
}

func TestBusyHabit(t *testing.T) {
	l := lock.NewLocalLock()

	tr, err := NewTracker(mocks.NewStore(),
		WithClock(mocks.ClockAt("2025-06-15")),
		WithLock(l),
	)
	require.NoError(t, err)

	ctx := context.Background()

	habit, err := tr.Create(ctx, hk.Form{Name: "Run"})
	require.NoError(t, err)

	// Simulate an operation in flight for the habit.
	require.NoError(t, l.Lock(habit.ID.String()))

	_, err = tr.Update(ctx, habit.ID, hk.Form{Name: "Walk"})
	assert.ErrorIs(t, err, hk.ErrHabitBusy)

	_, err = tr.LogProgress(ctx, habit.ID, true)
	assert.ErrorIs(t, err, hk.ErrHabitBusy)

	err = tr.Delete(ctx, habit.ID)
	assert.ErrorIs(t, err, hk.ErrHabitBusy)

	// Another habit is not affected by the busy one.
	other, err := tr.Create(ctx, hk.Form{Name: "Read"})
	require.NoError(t, err)

	_, err = tr.LogProgress(ctx, other.ID, true)
	assert.NoError(t, err)

	// Releasing the guard lets operations through again.
	require.NoError(t, l.Unlock(habit.ID.String()))

	_, err = tr.Update(ctx, habit.ID, hk.Form{Name: "Walk"})
	assert.NoError(t, err)
}

func TestList(t *testing.T) {
	tr, _, _ := newTestTracker(t, "2025-06-15")
	ctx := context.Background()

	first, err := tr.Create(ctx, hk.Form{Name: "Run"})
	require.NoError(t, err)

	second, err := tr.Create(ctx, hk.Form{Name: "Read"})
	require.NoError(t, err)

	habits, err := tr.List(ctx)
	require.NoError(t, err)

	require.Len(t, habits, 2)
	assert.Equal(t, first.ID, habits[0].ID)
	assert.Equal(t, second.ID, habits[1].ID)
}

func TestListDeduplicates(t *testing.T) {
	id1 := uuid.New()
	id2 := uuid.New()

	store := &duplicatingStore{habits: []*hk.Habit{
		{ID: id1, Name: "Run"},
		{ID: id2, Name: "Read"},
		{ID: id1, Name: "Run again"},
	}}

	tr, err := NewTracker(store, WithClock(mocks.ClockAt("2025-06-15")))
	require.NoError(t, err)

	habits, err := tr.List(context.Background())
	require.NoError(t, err)

	// The first occurrence keeps its position, the last one wins.
	require.Len(t, habits, 2)
	assert.Equal(t, id1, habits[0].ID)
	assert.Equal(t, "Run again", habits[0].Name)
	assert.Equal(t, id2, habits[1].ID)
}

func TestOverview(t *testing.T) {
	tr, store, _ := newTestTracker(t, "2025-06-15")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &hk.Habit{
		Name: "Run", StartDate: "2025-06-01",
		CompletionRate: 100, Streak: 4,
	}))
	require.NoError(t, store.Save(ctx, &hk.Habit{
		Name: "Read", StartDate: "2025-06-01",
		CompletionRate: 50, Streak: 0,
	}))

	overview, err := tr.Overview(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, overview.TotalHabits)
	assert.Equal(t, 1, overview.ActiveHabits)
	assert.Equal(t, 2.0, overview.AverageStreak)
	assert.Equal(t, 75.0, overview.AverageCompletionRate)
}

func TestSubscribe(t *testing.T) {
	tr, err := NewTracker(memory.NewStore(), WithClock(mocks.ClockAt("2025-06-15")))
	require.NoError(t, err)

	ctx := hk.NewContextWithUser(context.Background(), "subscribe-user")

	w, err := tr.Subscribe(ctx)
	require.NoError(t, err)
	defer w.Close()

	assert.Empty(t, nextSnapshot(t, w))

	habit, err := tr.Create(ctx, hk.Form{Name: "Run"})
	require.NoError(t, err)

	snapshot := nextSnapshot(t, w)
	require.Len(t, snapshot, 1)
	assert.Equal(t, habit.ID, snapshot[0].ID)

	require.NoError(t, tr.Delete(ctx, habit.ID))
	assert.Empty(t, nextSnapshot(t, w))
}

func TestSubscribeNotSupported(t *testing.T) {
	tr, err := NewTracker(mocks.NewStore(), WithClock(mocks.ClockAt("2025-06-15")))
	require.NoError(t, err)

	_, err = tr.Subscribe(context.Background())
	assert.ErrorIs(t, err, hk.ErrWatchNotSupported)
}

func nextSnapshot(t *testing.T, w hk.Watch) []*hk.Habit {
	t.Helper()

	select {
	case snapshot := <-w.Snapshots():
		return snapshot
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for snapshot")

		return nil
	}
}

// duplicatingStore returns a fixed habit list with duplicated IDs, which a
// real store cannot produce but a raw document sync can.
type duplicatingStore struct {
	hk.Store
	habits []*hk.Habit
}

func (s *duplicatingStore) FindAll(ctx context.Context) ([]*hk.Habit, error) {
	return s.habits, nil
}
