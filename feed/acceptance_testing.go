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

// Package feed contains the acceptance tests that all change feed
// implementations should pass.
package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kr/pretty"

	hk "github.com/habitkit/habitkit"
	"github.com/habitkit/habitkit/mocks"
	"github.com/habitkit/habitkit/uuid"
)

// AcceptanceTest is the acceptance test that all implementations of
// ChangeFeed should pass. It should manually be called from a test case in
// each implementation:
//
//	func TestChangeFeed(t *testing.T) {
//	    feed1 := NewChangeFeed()
//	    feed2 := NewChangeFeed()
//	    feed.AcceptanceTest(t, feed1, feed2, time.Second)
//	}
//
// The two feeds should be connected to the same transport, so that handlers
// of the same type on both feeds share the work.
func AcceptanceTest(t *testing.T, feed1, feed2 hk.ChangeFeed, timeout time.Duration) {
	ctx := hk.NewContextWithUser(context.Background(), "feed-user")

	// Error on nil matcher.
	if err := feed1.AddHandler(ctx, nil, mocks.NewChangeHandler("no-matcher")); !errors.Is(err, hk.ErrMissingMatcher) {
		t.Error("there should be a missing matcher error:", err)
	}

	// Error on nil handler.
	if err := feed1.AddHandler(ctx, hk.MatchAny(), nil); !errors.Is(err, hk.ErrMissingChangeHandler) {
		t.Error("there should be a missing change handler error:", err)
	}

	// Error on multiple registrations of the same handler type.
	if err := feed1.AddHandler(ctx, hk.MatchAny(), mocks.NewChangeHandler("multi")); err != nil {
		t.Error("there should be no error:", err)
	}

	if err := feed1.AddHandler(ctx, hk.MatchAny(), mocks.NewChangeHandler("multi")); !errors.Is(err, hk.ErrHandlerAlreadyAdded) {
		t.Error("there should be a handler already added error:", err)
	}

	habit := &hk.Habit{
		ID:                uuid.MustParse("752ae89f-2d3b-42d1-a2bf-9b1b1f22855b"),
		Name:              "Drink water",
		TargetCompletions: 8,
		TrackStreak:       true,
		StartDate:         "2025-06-01",
		CreatedAt:         time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC),
		Logs: []hk.LogEntry{
			{Date: "2025-06-14", Completed: true, Time: "09:15", Mood: "good"},
		},
		CompletedDays:  1,
		CompletionRate: 100,
		Streak:         1,
	}

	change := hk.Change{
		Op:      hk.HabitLogged,
		HabitID: habit.ID,
		Habit:   habit,
		User:    "feed-user",
		At:      time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC),
	}

	// Publishing without a matching handler should not fail.
	if err := feed1.PublishChange(ctx, change); err != nil {
		t.Error("there should be no error:", err)
	}

	// Handlers of the same type on both feeds share the work, other types
	// get their own deliveries.
	handlerFeed1 := mocks.NewChangeHandler("handler")
	handlerFeed2 := mocks.NewChangeHandler("handler")
	anotherHandlerFeed2 := mocks.NewChangeHandler("another-handler")
	deletedHandlerFeed1 := mocks.NewChangeHandler("deleted-handler")

	if err := feed1.AddHandler(ctx, hk.MatchAny(), handlerFeed1); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := feed2.AddHandler(ctx, hk.MatchAny(), handlerFeed2); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := feed2.AddHandler(ctx, hk.MatchAny(), anotherHandlerFeed2); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := feed1.AddHandler(ctx, hk.MatchOp(hk.HabitDeleted), deletedHandlerFeed1); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := feed1.PublishChange(ctx, change); err != nil {
		t.Error("there should be no error:", err)
	}

	// Exactly one of the same-type handlers receives the change.
	received, ok := waitForEither(handlerFeed1, handlerFeed2, timeout)
	if !ok {
		t.Fatal("did not receive change in time")
	}

	if !equalChanges(received, change) {
		t.Error("the change should be correct:")
		t.Log(pretty.Diff(received, change))
	}

	select {
	case extra := <-handlerFeed1.Recv:
		t.Error("the change should only be received once:", extra)
	case extra := <-handlerFeed2.Recv:
		t.Error("the change should only be received once:", extra)
	case <-time.After(timeout):
	}

	// The other handler type receives it as well.
	received, ok = waitFor(anotherHandlerFeed2, timeout)
	if !ok {
		t.Fatal("did not receive change in time")
	}

	if !equalChanges(received, change) {
		t.Error("the change should be correct:")
		t.Log(pretty.Diff(received, change))
	}

	// The context user survives the transport.
	if user := hk.UserFromContext(anotherHandlerFeed2.Context); user != "feed-user" {
		t.Error("the context user should be correct:", user)
	}

	// A handler with a non-matching matcher receives nothing.
	select {
	case extra := <-deletedHandlerFeed1.Recv:
		t.Error("the change should not match the handler:", extra)
	case <-time.After(timeout):
	}
}

func waitFor(h *mocks.ChangeHandler, timeout time.Duration) (hk.Change, bool) {
	select {
	case change := <-h.Recv:
		return change, true
	case <-time.After(timeout):
		return hk.Change{}, false
	}
}

func waitForEither(h1, h2 *mocks.ChangeHandler, timeout time.Duration) (hk.Change, bool) {
	select {
	case change := <-h1.Recv:
		return change, true
	case change := <-h2.Recv:
		return change, true
	case <-time.After(timeout):
		return hk.Change{}, false
	}
}

// equalChanges compares changes by value, following the habit pointer.
func equalChanges(a, b hk.Change) bool {
	if a.Op != b.Op || a.HabitID != b.HabitID || a.User != b.User || !a.At.Equal(b.At) {
		return false
	}

	if (a.Habit == nil) != (b.Habit == nil) {
		return false
	}

	if a.Habit == nil {
		return true
	}

	return len(pretty.Diff(a.Habit, b.Habit)) == 0
}
