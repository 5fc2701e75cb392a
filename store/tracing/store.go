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

package tracing

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"

	hk "github.com/habitkit/habitkit"
	"github.com/habitkit/habitkit/uuid"
)

// Store is a habit store wrapper that adds tracing with the opentracing
// library to all store operations.
type Store struct {
	hk.Store
}

// NewStore creates a new Store.
func NewStore(store hk.Store) *Store {
	return &Store{
		Store: store,
	}
}

// InnerStore implements the InnerStore method of the habitkit.Store interface.
func (s *Store) InnerStore() hk.ReadStore {
	return s.Store
}

// Find implements the Find method of the habitkit.Store interface.
func (s *Store) Find(ctx context.Context, id uuid.UUID) (*hk.Habit, error) {
	sp, ctx := opentracing.StartSpanFromContext(ctx, "Store.Find")
	habit, err := s.Store.Find(ctx, id)
	sp.SetTag("hk.habit_id", id.String())
	sp.SetTag("hk.user", hk.UserFromContext(ctx))

	if err != nil {
		ext.LogError(sp, err)
	}

	sp.Finish()

	return habit, err
}

// FindAll implements the FindAll method of the habitkit.Store interface.
func (s *Store) FindAll(ctx context.Context) ([]*hk.Habit, error) {
	sp, ctx := opentracing.StartSpanFromContext(ctx, "Store.FindAll")
	habits, err := s.Store.FindAll(ctx)
	sp.SetTag("hk.user", hk.UserFromContext(ctx))

	if err != nil {
		ext.LogError(sp, err)
	}

	sp.Finish()

	return habits, err
}

// Save implements the Save method of the habitkit.Store interface.
func (s *Store) Save(ctx context.Context, habit *hk.Habit) error {
	sp, ctx := opentracing.StartSpanFromContext(ctx, "Store.Save")
	err := s.Store.Save(ctx, habit)
	sp.SetTag("hk.habit_id", habit.ID.String())
	sp.SetTag("hk.user", hk.UserFromContext(ctx))

	if err != nil {
		ext.LogError(sp, err)
	}

	sp.Finish()

	return err
}

// Remove implements the Remove method of the habitkit.Store interface.
func (s *Store) Remove(ctx context.Context, id uuid.UUID) error {
	sp, ctx := opentracing.StartSpanFromContext(ctx, "Store.Remove")
	err := s.Store.Remove(ctx, id)
	sp.SetTag("hk.habit_id", id.String())
	sp.SetTag("hk.user", hk.UserFromContext(ctx))

	if err != nil {
		ext.LogError(sp, err)
	}

	sp.Finish()

	return err
}

// Watch implements the Watch method of the habitkit.WatchableStore
// interface, when the wrapped store supports watching.
func (s *Store) Watch(ctx context.Context) (hk.Watch, error) {
	watchable, ok := s.Store.(hk.WatchableStore)
	if !ok {
		return nil, &hk.StoreError{
			Err:  hk.ErrWatchNotSupported,
			Op:   hk.StoreOpWatch,
			User: hk.UserFromContext(ctx),
		}
	}

	sp, ctx := opentracing.StartSpanFromContext(ctx, "Store.Watch")
	w, err := watchable.Watch(ctx)
	sp.SetTag("hk.user", hk.UserFromContext(ctx))

	if err != nil {
		ext.LogError(sp, err)
	}

	sp.Finish()

	return w, err
}
