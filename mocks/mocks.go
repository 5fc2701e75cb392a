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

// Package mocks contains mocked implementations of habitkit interfaces,
// useful in testing.
package mocks

import (
	"context"
	"sync"
	"testing"
	"time"

	hk "github.com/habitkit/habitkit"
	"github.com/habitkit/habitkit/uuid"
)

// Clock is a fixed clock, useful for deterministic streak and date tests.
type Clock struct {
	// T is the time returned by Now.
	T time.Time
}

// Now implements the Now method of the habitkit.Clock interface.
func (c *Clock) Now() time.Time {
	return c.T
}

// ClockAt creates a fixed Clock at noon on the given ISO date.
func ClockAt(date string) *Clock {
	t, err := time.Parse("2006-01-02 15:04", date+" 12:00")
	if err != nil {
		panic(err)
	}

	return &Clock{T: t}
}

// Store is a mocked habitkit.Store, useful in testing. Errors can be injected
// per operation to simulate store failures.
type Store struct {
	// Habits holds the stored habits by ID, ignoring user scopes.
	Habits map[uuid.UUID]*hk.Habit
	// IDs holds the insertion order of the habits.
	IDs []uuid.UUID
	// Context is the context of the last operation.
	Context context.Context

	// LoadErr is returned from Find and FindAll when set.
	LoadErr error
	// SaveErr is returned from Save when set.
	SaveErr error
	// RemoveErr is returned from Remove when set.
	RemoveErr error

	mu sync.Mutex
}

// NewStore creates a new Store.
func NewStore() *Store {
	return &Store{
		Habits: map[uuid.UUID]*hk.Habit{},
	}
}

// InnerStore implements the InnerStore method of the habitkit.ReadStore interface.
func (s *Store) InnerStore() hk.ReadStore {
	return nil
}

// Find implements the Find method of the habitkit.ReadStore interface.
func (s *Store) Find(ctx context.Context, id uuid.UUID) (*hk.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Context = ctx

	if s.LoadErr != nil {
		return nil, s.LoadErr
	}

	habit, ok := s.Habits[id]
	if !ok {
		return nil, &hk.StoreError{
			Err:     hk.ErrHabitNotFound,
			Op:      hk.StoreOpFind,
			HabitID: id,
			User:    hk.UserFromContext(ctx),
		}
	}

	return habit, nil
}

// FindAll implements the FindAll method of the habitkit.ReadStore interface.
func (s *Store) FindAll(ctx context.Context) ([]*hk.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Context = ctx

	if s.LoadErr != nil {
		return nil, s.LoadErr
	}

	all := []*hk.Habit{}
	for _, id := range s.IDs {
		if h, ok := s.Habits[id]; ok {
			all = append(all, h)
		}
	}

	return all, nil
}

// Save implements the Save method of the habitkit.WriteStore interface.
func (s *Store) Save(ctx context.Context, habit *hk.Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Context = ctx

	if s.SaveErr != nil {
		return s.SaveErr
	}

	if habit.ID == uuid.Nil {
		habit.ID = uuid.New()
	}

	if _, ok := s.Habits[habit.ID]; !ok {
		s.IDs = append(s.IDs, habit.ID)
	}

	s.Habits[habit.ID] = habit

	return nil
}

// Remove implements the Remove method of the habitkit.WriteStore interface.
func (s *Store) Remove(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Context = ctx

	if s.RemoveErr != nil {
		return s.RemoveErr
	}

	if _, ok := s.Habits[id]; !ok {
		return &hk.StoreError{
			Err:     hk.ErrHabitNotFound,
			Op:      hk.StoreOpRemove,
			HabitID: id,
			User:    hk.UserFromContext(ctx),
		}
	}

	delete(s.Habits, id)

	for i, d := range s.IDs {
		if d == id {
			s.IDs = append(s.IDs[:i], s.IDs[i+1:]...)

			break
		}
	}

	return nil
}

// ChangeHandler is a mocked habitkit.ChangeHandler, useful in testing.
type ChangeHandler struct {
	Type    hk.ChangeHandlerType
	Changes []hk.Change
	Context context.Context
	Recv    chan hk.Change
	// Err is returned from HandleChange when set.
	Err error

	mu sync.RWMutex
}

// NewChangeHandler creates a new ChangeHandler.
func NewChangeHandler(handlerType hk.ChangeHandlerType) *ChangeHandler {
	return &ChangeHandler{
		Type: handlerType,
		Recv: make(chan hk.Change, 10),
	}
}

// HandlerType implements the HandlerType method of the habitkit.ChangeHandler interface.
func (m *ChangeHandler) HandlerType() hk.ChangeHandlerType {
	return m.Type
}

// HandleChange implements the HandleChange method of the habitkit.ChangeHandler interface.
func (m *ChangeHandler) HandleChange(ctx context.Context, change hk.Change) error {
	if m.Err != nil {
		return m.Err
	}

	m.mu.Lock()
	m.Changes = append(m.Changes, change)
	m.Context = ctx
	m.mu.Unlock()

	m.Recv <- change

	return nil
}

// WaitForChange waits for a change to be handled, or fails the test after a
// timeout.
func (m *ChangeHandler) WaitForChange(t *testing.T) hk.Change {
	t.Helper()

	select {
	case change := <-m.Recv:
		return change
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for change")

		return hk.Change{}
	}
}

// ChangeFeed is a mocked habitkit.ChangeFeed, useful in testing.
type ChangeFeed struct {
	Changes []hk.Change
	Context context.Context
	// Err is returned from PublishChange when set.
	Err error

	mu sync.RWMutex
}

// PublishChange implements the PublishChange method of the habitkit.ChangeFeed interface.
func (m *ChangeFeed) PublishChange(ctx context.Context, change hk.Change) error {
	if m.Err != nil {
		return m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Changes = append(m.Changes, change)
	m.Context = ctx

	return nil
}

// AddHandler implements the AddHandler method of the habitkit.ChangeFeed interface.
func (m *ChangeFeed) AddHandler(ctx context.Context, matcher hk.ChangeMatcher, h hk.ChangeHandler) error {
	return nil
}

// Errors implements the Errors method of the habitkit.ChangeFeed interface.
func (m *ChangeFeed) Errors() <-chan *hk.FeedError {
	return nil
}

// Close implements the Close method of the habitkit.ChangeFeed interface.
func (m *ChangeFeed) Close() error {
	return nil
}

// Published returns the published changes.
func (m *ChangeFeed) Published() []hk.Change {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]hk.Change{}, m.Changes...)
}
