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

	"github.com/habitkit/habitkit/uuid"
)

var (
	// ErrHabitNotFound is when a habit could not be found.
	ErrHabitNotFound = errors.New("could not find habit")
	// ErrCouldNotSaveHabit is when a habit could not be saved.
	ErrCouldNotSaveHabit = errors.New("could not save habit")
	// ErrMissingHabitID is when a habit is missing an ID where one is needed.
	ErrMissingHabitID = errors.New("missing habit ID")
	// ErrWatchNotSupported is when a store cannot deliver live snapshots.
	ErrWatchNotSupported = errors.New("store does not support watching")
)

// StoreOp is a store operation, used in errors.
type StoreOp string

const (
	// StoreOpFind is the operation of finding a habit by ID.
	StoreOpFind = StoreOp("find")
	// StoreOpFindAll is the operation of listing all habits of a user.
	StoreOpFindAll = StoreOp("findAll")
	// StoreOpSave is the operation of adding or updating a habit.
	StoreOpSave = StoreOp("save")
	// StoreOpRemove is the operation of removing a habit by ID.
	StoreOpRemove = StoreOp("remove")
	// StoreOpWatch is the operation of watching a user's habits for changes.
	StoreOpWatch = StoreOp("watch")
)

// StoreError is an error in a habit store.
type StoreError struct {
	// Err is the error.
	Err error
	// BaseErr is an optional underlying error, for example from the driver.
	BaseErr error
	// Op is the operation for the error.
	Op StoreOp
	// HabitID is the habit for the error, if applicable.
	HabitID uuid.UUID
	// User is the user scope of the operation.
	User string
}

// Error implements the Error method of the error interface.
func (e *StoreError) Error() string {
	str := "habit store: "

	if e.Op != "" {
		str += string(e.Op) + ": "
	}

	if e.Err != nil {
		str += e.Err.Error()
	} else {
		str += "unknown error"
	}

	if e.BaseErr != nil {
		str += ": " + e.BaseErr.Error()
	}

	if e.HabitID != uuid.Nil {
		str += " (" + e.HabitID.String() + ")"
	}

	if e.User != "" {
		str += " [" + e.User + "]"
	}

	return str
}

// Unwrap implements the errors.Unwrap interface.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// ReadStore is a read access habit store.
type ReadStore interface {
	// InnerStore returns the wrapped store, if there is one. Useful for
	// unwrapping a decorated set of stores to get to a specific one.
	InnerStore() ReadStore

	// Find returns the habit with the ID, within the user scope of the
	// context, or a StoreError wrapping ErrHabitNotFound.
	Find(ctx context.Context, id uuid.UUID) (*Habit, error)

	// FindAll returns all habits within the user scope of the context, in
	// insertion order where the store supports it.
	FindAll(ctx context.Context) ([]*Habit, error)
}

// WriteStore is a write access habit store.
type WriteStore interface {
	// Save adds or fully replaces a habit within the user scope of the
	// context. A habit with a nil ID is assigned a new one by the store.
	Save(ctx context.Context, habit *Habit) error

	// Remove removes the habit with the ID from the store permanently.
	Remove(ctx context.Context, id uuid.UUID) error
}

// Store is a combined read and write habit store.
type Store interface {
	ReadStore
	WriteStore
}

// Watch is a handle for a live stream of habit collection snapshots.
type Watch interface {
	// Snapshots returns the channel on which full snapshots of the watched
	// user's habits are delivered. The channel is closed when the watch is
	// closed.
	Snapshots() <-chan []*Habit

	// Errors returns the channel for asynchronous watch errors.
	Errors() <-chan error

	// Close stops the watch and releases its resources.
	Close() error
}

// WatchableStore is a store that can deliver live snapshots of a user's
// habits, in the manner of a document database change feed.
type WatchableStore interface {
	Store

	// Watch starts a watch on the user scope of the context. An initial
	// snapshot is delivered after every successful Watch call.
	Watch(ctx context.Context) (Watch, error)
}
