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
	"context"
	"errors"
	"time"

	"github.com/habitkit/habitkit/uuid"
)

// ChangeOp is the kind of mutation a change describes.
type ChangeOp string

const (
	// HabitCreated is published when a habit is created.
	HabitCreated = ChangeOp("created")
	// HabitUpdated is published when a habit's configuration is edited.
	HabitUpdated = ChangeOp("updated")
	// HabitLogged is published when progress is logged for a habit.
	HabitLogged = ChangeOp("logged")
	// HabitDeleted is published when a habit is deleted.
	HabitDeleted = ChangeOp("deleted")
)

// Change is a notification of a persisted habit mutation, published on a
// change feed after the store write has succeeded.
type Change struct {
	// Op is the kind of mutation.
	Op ChangeOp
	// HabitID is the mutated habit.
	HabitID uuid.UUID
	// Habit is the habit after the mutation. Nil for deletions.
	Habit *Habit
	// User is the user scope of the mutation.
	User string
	// At is the time the change was published.
	At time.Time
}

// ChangeHandlerType is the type of a change handler, used as a subscription
// group key by feeds.
type ChangeHandlerType string

// String implements the fmt.Stringer interface.
func (t ChangeHandlerType) String() string {
	return string(t)
}

// ChangeHandler is a handler of habit changes delivered by a feed.
type ChangeHandler interface {
	// HandlerType returns the type of the handler.
	HandlerType() ChangeHandlerType

	// HandleChange handles a habit change.
	HandleChange(ctx context.Context, change Change) error
}

// ChangeHandlerFunc is a func adapter that can be used as a change handler.
type ChangeHandlerFunc func(ctx context.Context, change Change) error

// HandlerType implements the HandlerType method of the ChangeHandler interface.
func (f ChangeHandlerFunc) HandlerType() ChangeHandlerType {
	return "handler-func"
}

// HandleChange implements the HandleChange method of the ChangeHandler interface.
func (f ChangeHandlerFunc) HandleChange(ctx context.Context, change Change) error {
	return f(ctx, change)
}

var (
	// ErrMissingMatcher is when a feed is given a nil matcher.
	ErrMissingMatcher = errors.New("missing matcher")
	// ErrMissingChangeHandler is when a feed is given a nil handler.
	ErrMissingChangeHandler = errors.New("missing change handler")
	// ErrHandlerAlreadyAdded is when a handler type is added to a feed twice.
	ErrHandlerAlreadyAdded = errors.New("handler already added")
)

// FeedError is an async error from a change feed, with the change if available.
type FeedError struct {
	// Err is the error.
	Err error
	// Ctx is the context of the change, if available.
	Ctx context.Context
	// Change is the change for the error, if available.
	Change Change
}

// Error implements the Error method of the error interface.
func (e *FeedError) Error() string {
	str := "change feed: "

	if e.Err != nil {
		str += e.Err.Error()
	} else {
		str += "unknown error"
	}

	if e.Change.HabitID != uuid.Nil {
		str += " (" + string(e.Change.Op) + " " + e.Change.HabitID.String() + ")"
	}

	return str
}

// Unwrap implements the errors.Unwrap interface.
func (e *FeedError) Unwrap() error {
	return e.Err
}

// ChangeFeed is a feed of habit change notifications with pluggable
// transports; the explicit notification channel of the tracker.
type ChangeFeed interface {
	// PublishChange publishes a change to all feed subscribers.
	PublishChange(ctx context.Context, change Change) error

	// AddHandler adds a handler for changes matching the matcher. Delivery
	// runs until the context is cancelled or the feed is closed.
	AddHandler(ctx context.Context, m ChangeMatcher, h ChangeHandler) error

	// Errors returns the channel for asynchronous feed errors.
	Errors() <-chan *FeedError

	// Close closes the feed and waits for handling to finish.
	Close() error
}
