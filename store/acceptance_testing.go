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

// Package store contains the acceptance tests that all habit store
// implementations should pass.
package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kr/pretty"

	hk "github.com/habitkit/habitkit"
	"github.com/habitkit/habitkit/uuid"
)

// AcceptanceTest is the acceptance test that all implementations of Store
// should pass. It should manually be called from a test case in each
// implementation:
//
//	func TestStore(t *testing.T) {
//	    s := NewStore()
//	    store.AcceptanceTest(t, context.Background(), s)
//	}
func AcceptanceTest(t *testing.T, ctx context.Context, s hk.Store) {
	// Find a non-existing habit.
	habit, err := s.Find(ctx, uuid.New())
	if !errors.Is(err, hk.ErrHabitNotFound) {
		t.Error("there should be a habit not found error:", err)
	}

	if habit != nil {
		t.Error("there should be no habit:", habit)
	}

	// FindAll with no habits.
	result, err := s.FindAll(ctx)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if len(result) != 0 {
		t.Error("there should be no habits:", len(result))
	}

	// Save a new habit without an ID; the store assigns one.
	habit1 := testHabit("Drink water")
	if err := s.Save(ctx, habit1); err != nil {
		t.Error("there should be no error:", err)
	}

	if habit1.ID == uuid.Nil {
		t.Error("the habit should have been assigned an ID")
	}

	habit, err = s.Find(ctx, habit1.ID)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if !reflect.DeepEqual(habit, habit1) {
		t.Error("the habit should be correct:")
		t.Log(pretty.Diff(habit, habit1))
	}

	// Save and overwrite with the same ID.
	habit1Alt := testHabit("Drink more water")
	habit1Alt.ID = habit1.ID
	habit1Alt.Logs = append(habit1Alt.Logs, hk.LogEntry{Date: "2025-06-15", Completed: true, Time: "08:30"})
	habit1Alt.CompletedDays = 2
	habit1Alt.CompletionRate = 100
	habit1Alt.Streak = 2

	if err := s.Save(ctx, habit1Alt); err != nil {
		t.Error("there should be no error:", err)
	}

	habit, err = s.Find(ctx, habit1Alt.ID)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if !reflect.DeepEqual(habit, habit1Alt) {
		t.Error("the habit should be correct:")
		t.Log(pretty.Diff(habit, habit1Alt))
	}

	// Save with another ID.
	habit2 := testHabit("Read")
	habit2.ID = uuid.New()

	if err := s.Save(ctx, habit2); err != nil {
		t.Error("there should be no error:", err)
	}

	// FindAll with two habits, in insertion order.
	result, err = s.FindAll(ctx)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if len(result) != 2 {
		t.Error("there should be two habits:", len(result))
	}

	if !reflect.DeepEqual(result, []*hk.Habit{habit1Alt, habit2}) &&
		!reflect.DeepEqual(result, []*hk.Habit{habit2, habit1Alt}) {
		t.Error("the habits should be correct:")
		t.Log(pretty.Sprint(result))
	}

	// Habits of other users are not visible.
	otherCtx := hk.NewContextWithUser(ctx, "acceptance-other-user")

	result, err = s.FindAll(otherCtx)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if len(result) != 0 {
		t.Error("there should be no habits for another user:", len(result))
	}

	if _, err := s.Find(otherCtx, habit1.ID); !errors.Is(err, hk.ErrHabitNotFound) {
		t.Error("there should be a habit not found error:", err)
	}

	// Remove a habit.
	if err := s.Remove(ctx, habit1Alt.ID); err != nil {
		t.Error("there should be no error:", err)
	}

	habit, err = s.Find(ctx, habit1Alt.ID)
	if !errors.Is(err, hk.ErrHabitNotFound) {
		t.Error("there should be a habit not found error:", err)
	}

	if habit != nil {
		t.Error("there should be no habit:", habit)
	}

	// Remove a non-existing habit.
	if err := s.Remove(ctx, habit1Alt.ID); !errors.Is(err, hk.ErrHabitNotFound) {
		t.Error("there should be a habit not found error:", err)
	}

	// Clean up the remaining habit.
	if err := s.Remove(ctx, habit2.ID); err != nil {
		t.Error("there should be no error:", err)
	}
}

// WatchAcceptanceTest is the acceptance test that all implementations of
// WatchableStore should pass, in addition to AcceptanceTest.
func WatchAcceptanceTest(t *testing.T, ctx context.Context, s hk.WatchableStore) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := s.Watch(ctx)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	defer w.Close()

	go func() {
		for err := range w.Errors() {
			t.Error("there should be no watch error:", err)
		}
	}()

	// An initial snapshot is delivered after the watch starts.
	snapshot := nextSnapshot(t, w)
	if len(snapshot) != 0 {
		t.Error("the initial snapshot should be empty:", len(snapshot))
	}

	// A save is seen as a snapshot containing the habit.
	habit := testHabit("Meditate")
	if err := s.Save(ctx, habit); err != nil {
		t.Error("there should be no error:", err)
	}

	snapshot = waitForSnapshot(t, w, func(habits []*hk.Habit) bool {
		return len(habits) == 1 && habits[0].ID == habit.ID
	})
	if !reflect.DeepEqual(snapshot, []*hk.Habit{habit}) {
		t.Error("the snapshot should contain the habit:")
		t.Log(pretty.Sprint(snapshot))
	}

	// A removal is seen as a snapshot without the habit.
	if err := s.Remove(ctx, habit.ID); err != nil {
		t.Error("there should be no error:", err)
	}

	waitForSnapshot(t, w, func(habits []*hk.Habit) bool {
		return len(habits) == 0
	})
}

func nextSnapshot(t *testing.T, w hk.Watch) []*hk.Habit {
	t.Helper()

	select {
	case snapshot, ok := <-w.Snapshots():
		if !ok {
			t.Fatal("the snapshot channel should be open")
		}

		return snapshot
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for snapshot")
	}

	return nil
}

func waitForSnapshot(t *testing.T, w hk.Watch, match func([]*hk.Habit) bool) []*hk.Habit {
	t.Helper()

	deadline := time.After(10 * time.Second)

	for {
		select {
		case snapshot, ok := <-w.Snapshots():
			if !ok {
				t.Fatal("the snapshot channel should be open")
			}

			if match(snapshot) {
				return snapshot
			}
		case <-deadline:
			t.Fatal("timeout waiting for matching snapshot")

			return nil
		}
	}
}

func testHabit(name string) *hk.Habit {
	timeframe := 30

	return &hk.Habit{
		Name:              name,
		Description:       "acceptance test habit",
		TargetCompletions: 21,
		Timeframe:         &timeframe,
		TrackStreak:       true,
		TargetTime:        "08:00",
		StartDate:         "2025-06-01",
		CreatedAt:         time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC),
		Logs: []hk.LogEntry{
			{Date: "2025-06-14", Completed: true, Time: "09:15", Mood: "good"},
		},
		CompletedDays:  1,
		CompletionRate: 100,
		Streak:         1,
	}
}
