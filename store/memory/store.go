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

package memory

import (
	"context"
	"sync"

	"github.com/jinzhu/copier"

	hk "github.com/habitkit/habitkit"
	"github.com/habitkit/habitkit/uuid"
)

// Store is an in-memory habit store, useful for testing and local use.
// Habits are kept per user, in insertion order.
type Store struct {
	db        map[string]*bucket
	dbMu      sync.RWMutex
	watchers  []*watch
	watcherMu sync.Mutex
}

// bucket holds the habits of a single user.
type bucket struct {
	habits map[uuid.UUID]*hk.Habit
	ids    []uuid.UUID
}

// NewStore creates a new Store.
func NewStore() *Store {
	return &Store{
		db: map[string]*bucket{},
	}
}

// InnerStore implements the InnerStore method of the habitkit.Store interface.
func (s *Store) InnerStore() hk.ReadStore {
	return nil
}

// Find implements the Find method of the habitkit.Store interface.
func (s *Store) Find(ctx context.Context, id uuid.UUID) (*hk.Habit, error) {
	s.dbMu.RLock()
	defer s.dbMu.RUnlock()

	b, ok := s.db[hk.UserFromContext(ctx)]
	if !ok {
		return nil, &hk.StoreError{
			Err:     hk.ErrHabitNotFound,
			Op:      hk.StoreOpFind,
			HabitID: id,
			User:    hk.UserFromContext(ctx),
		}
	}

	habit, ok := b.habits[id]
	if !ok {
		return nil, &hk.StoreError{
			Err:     hk.ErrHabitNotFound,
			Op:      hk.StoreOpFind,
			HabitID: id,
			User:    hk.UserFromContext(ctx),
		}
	}

	return copyHabit(habit), nil
}

// FindAll implements the FindAll method of the habitkit.Store interface.
func (s *Store) FindAll(ctx context.Context) ([]*hk.Habit, error) {
	s.dbMu.RLock()
	defer s.dbMu.RUnlock()

	return s.all(hk.UserFromContext(ctx)), nil
}

// Save implements the Save method of the habitkit.Store interface.
// Habits without an ID are assigned one.
func (s *Store) Save(ctx context.Context, habit *hk.Habit) error {
	user := hk.UserFromContext(ctx)

	if habit.ID == uuid.Nil {
		habit.ID = uuid.New()
	}

	s.dbMu.Lock()

	b, ok := s.db[user]
	if !ok {
		b = &bucket{habits: map[uuid.UUID]*hk.Habit{}}
		s.db[user] = b
	}

	if _, ok := b.habits[habit.ID]; !ok {
		b.ids = append(b.ids, habit.ID)
	}

	b.habits[habit.ID] = copyHabit(habit)

	snapshot := s.all(user)

	s.dbMu.Unlock()

	s.publish(user, snapshot)

	return nil
}

// Remove implements the Remove method of the habitkit.Store interface.
func (s *Store) Remove(ctx context.Context, id uuid.UUID) error {
	user := hk.UserFromContext(ctx)

	s.dbMu.Lock()

	b, ok := s.db[user]
	if !ok || b.habits[id] == nil {
		s.dbMu.Unlock()

		return &hk.StoreError{
			Err:     hk.ErrHabitNotFound,
			Op:      hk.StoreOpRemove,
			HabitID: id,
			User:    user,
		}
	}

	delete(b.habits, id)

	for i, hid := range b.ids {
		if hid == id {
			b.ids = append(b.ids[:i], b.ids[i+1:]...)

			break
		}
	}

	snapshot := s.all(user)

	s.dbMu.Unlock()

	s.publish(user, snapshot)

	return nil
}

// Watch implements the Watch method of the habitkit.WatchableStore interface.
// The first snapshot is delivered shortly after the watch is created.
func (s *Store) Watch(ctx context.Context) (hk.Watch, error) {
	user := hk.UserFromContext(ctx)

	w := &watch{
		store:     s,
		user:      user,
		snapshots: make(chan []*hk.Habit, 16),
		errs:      make(chan error, 1),
	}

	s.watcherMu.Lock()
	s.watchers = append(s.watchers, w)
	s.watcherMu.Unlock()

	s.dbMu.RLock()
	snapshot := s.all(user)
	s.dbMu.RUnlock()

	w.send(snapshot)

	return w, nil
}

// all returns a deep copy of the user's habits in insertion order.
// Callers must hold at least a read lock on dbMu.
func (s *Store) all(user string) []*hk.Habit {
	habits := []*hk.Habit{}

	b, ok := s.db[user]
	if !ok {
		return habits
	}

	for _, id := range b.ids {
		habits = append(habits, copyHabit(b.habits[id]))
	}

	return habits
}

func (s *Store) publish(user string, snapshot []*hk.Habit) {
	s.watcherMu.Lock()
	defer s.watcherMu.Unlock()

	for _, w := range s.watchers {
		if w.user == user {
			w.send(snapshot)
		}
	}
}

func (s *Store) removeWatcher(w *watch) {
	s.watcherMu.Lock()
	defer s.watcherMu.Unlock()

	for i, other := range s.watchers {
		if other == w {
			s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)

			break
		}
	}
}

// watch delivers habit snapshots for a single user.
type watch struct {
	store     *Store
	user      string
	snapshots chan []*hk.Habit
	errs      chan error
	closeOnce sync.Once
}

func (w *watch) Snapshots() <-chan []*hk.Habit {
	return w.snapshots
}

func (w *watch) Errors() <-chan error {
	return w.errs
}

func (w *watch) Close() error {
	w.closeOnce.Do(func() {
		w.store.removeWatcher(w)
		close(w.snapshots)
		close(w.errs)
	})

	return nil
}

// send delivers a snapshot without blocking. If the watcher does not keep
// up the oldest buffered snapshot is dropped, later snapshots supersede it.
func (w *watch) send(snapshot []*hk.Habit) {
	for {
		select {
		case w.snapshots <- snapshot:
			return
		default:
			select {
			case <-w.snapshots:
			default:
			}
		}
	}
}

func copyHabit(habit *hk.Habit) *hk.Habit {
	c := &hk.Habit{}
	if err := copier.CopyWithOption(c, habit, copier.Option{DeepCopy: true}); err != nil {
		// The habit struct contains only copyable fields.
		panic(err)
	}

	return c
}
