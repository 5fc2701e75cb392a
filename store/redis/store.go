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

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-redis/redis/v8"

	hk "github.com/habitkit/habitkit"
	"github.com/habitkit/habitkit/uuid"
)

// Store is a Redis habit store. Each user's habits live in a hash keyed
// by habit ID, and every change is published on a per-user channel so
// that watches can re-read and deliver fresh snapshots.
type Store struct {
	client *redis.Client
	appID  string
}

// habitDoc is the stored form of a habit. The sequence number is assigned
// on first insert and keeps the user's habits in insertion order.
type habitDoc struct {
	Seq   int64     `json:"seq"`
	Habit *hk.Habit `json:"habit"`
}

// NewStore creates a new Store, with optional settings.
func NewStore(addr, appID string, options ...Option) (*Store, error) {
	s := &Store{
		appID: appID,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	opt := &redis.Options{
		Addr: addr,
	}

	s.client = redis.NewClient(opt)

	if res := s.client.Ping(context.Background()); res.Err() != nil {
		return nil, fmt.Errorf("could not check Redis server: %w", res.Err())
	}

	return s, nil
}

// Option is an option setter used to configure creation.
type Option func(*Store) error

// InnerStore implements the InnerStore method of the habitkit.Store interface.
func (s *Store) InnerStore() hk.ReadStore {
	return nil
}

// Find implements the Find method of the habitkit.Store interface.
func (s *Store) Find(ctx context.Context, id uuid.UUID) (*hk.Habit, error) {
	user := hk.UserFromContext(ctx)

	data, err := s.client.HGet(ctx, s.habitsKey(user), id.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			err = hk.ErrHabitNotFound
		}

		return nil, &hk.StoreError{
			Err:     err,
			Op:      hk.StoreOpFind,
			HabitID: id,
			User:    user,
		}
	}

	var doc habitDoc
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, &hk.StoreError{
			Err:     fmt.Errorf("could not unmarshal habit: %w", err),
			Op:      hk.StoreOpFind,
			HabitID: id,
			User:    user,
		}
	}

	return doc.Habit, nil
}

// FindAll implements the FindAll method of the habitkit.Store interface.
func (s *Store) FindAll(ctx context.Context) ([]*hk.Habit, error) {
	user := hk.UserFromContext(ctx)

	data, err := s.client.HGetAll(ctx, s.habitsKey(user)).Result()
	if err != nil {
		return nil, &hk.StoreError{
			Err:  err,
			Op:   hk.StoreOpFindAll,
			User: user,
		}
	}

	docs := make([]habitDoc, 0, len(data))

	for _, item := range data {
		var doc habitDoc
		if err := json.Unmarshal([]byte(item), &doc); err != nil {
			return nil, &hk.StoreError{
				Err:  fmt.Errorf("could not unmarshal habit: %w", err),
				Op:   hk.StoreOpFindAll,
				User: user,
			}
		}

		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].Seq < docs[j].Seq
	})

	habits := []*hk.Habit{}
	for _, doc := range docs {
		habits = append(habits, doc.Habit)
	}

	return habits, nil
}

// Save implements the Save method of the habitkit.Store interface.
// Habits without an ID are assigned one.
func (s *Store) Save(ctx context.Context, habit *hk.Habit) error {
	user := hk.UserFromContext(ctx)

	if habit.ID == uuid.Nil {
		habit.ID = uuid.New()
	}

	storeErr := func(err error, baseErr error) error {
		return &hk.StoreError{
			Err:     err,
			BaseErr: baseErr,
			Op:      hk.StoreOpSave,
			HabitID: habit.ID,
			User:    user,
		}
	}

	doc := habitDoc{Habit: habit}

	// Keep the sequence number of an already stored habit so that
	// updates do not change its position.
	if data, err := s.client.HGet(ctx, s.habitsKey(user), habit.ID.String()).Result(); err == nil {
		var old habitDoc
		if err := json.Unmarshal([]byte(data), &old); err != nil {
			return storeErr(fmt.Errorf("could not unmarshal habit: %w", err), nil)
		}

		doc.Seq = old.Seq
	} else if errors.Is(err, redis.Nil) {
		seq, err := s.client.Incr(ctx, s.seqKey(user)).Result()
		if err != nil {
			return storeErr(hk.ErrCouldNotSaveHabit, err)
		}

		doc.Seq = seq
	} else {
		return storeErr(hk.ErrCouldNotSaveHabit, err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return storeErr(fmt.Errorf("could not marshal habit: %w", err), nil)
	}

	if err := s.client.HSet(ctx, s.habitsKey(user), habit.ID.String(), data).Err(); err != nil {
		return storeErr(hk.ErrCouldNotSaveHabit, err)
	}

	if err := s.client.Publish(ctx, s.changesKey(user), habit.ID.String()).Err(); err != nil {
		return storeErr(hk.ErrCouldNotSaveHabit, err)
	}

	return nil
}

// Remove implements the Remove method of the habitkit.Store interface.
func (s *Store) Remove(ctx context.Context, id uuid.UUID) error {
	user := hk.UserFromContext(ctx)

	n, err := s.client.HDel(ctx, s.habitsKey(user), id.String()).Result()
	if err != nil {
		return &hk.StoreError{
			Err:     err,
			Op:      hk.StoreOpRemove,
			HabitID: id,
			User:    user,
		}
	}

	if n == 0 {
		return &hk.StoreError{
			Err:     hk.ErrHabitNotFound,
			Op:      hk.StoreOpRemove,
			HabitID: id,
			User:    user,
		}
	}

	if err := s.client.Publish(ctx, s.changesKey(user), id.String()).Err(); err != nil {
		return &hk.StoreError{
			Err:     err,
			Op:      hk.StoreOpRemove,
			HabitID: id,
			User:    user,
		}
	}

	return nil
}

// Watch implements the Watch method of the habitkit.WatchableStore interface.
// It subscribes to the user's change channel and re-reads the habits on
// every published change.
func (s *Store) Watch(ctx context.Context) (hk.Watch, error) {
	user := hk.UserFromContext(ctx)

	pubsub := s.client.Subscribe(context.Background(), s.changesKey(user))

	// Wait for the subscription to be active before the first snapshot,
	// so that no change between snapshot and subscribe is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()

		return nil, &hk.StoreError{
			Err:  fmt.Errorf("could not subscribe: %w", err),
			Op:   hk.StoreOpWatch,
			User: user,
		}
	}

	watchCtx, cancel := context.WithCancel(context.Background())

	w := &watch{
		snapshots: make(chan []*hk.Habit, 16),
		errs:      make(chan error, 16),
		pubsub:    pubsub,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	go w.run(watchCtx, s, user)

	return w, nil
}

// Close implements the Close method of the habitkit.Store interface.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) habitsKey(user string) string {
	return fmt.Sprintf("%s:habits:%s", s.appID, user)
}

func (s *Store) seqKey(user string) string {
	return fmt.Sprintf("%s:habits_seq:%s", s.appID, user)
}

func (s *Store) changesKey(user string) string {
	return fmt.Sprintf("%s:changes:%s", s.appID, user)
}

// watch follows a pub/sub channel and delivers per-user habit snapshots.
type watch struct {
	snapshots chan []*hk.Habit
	errs      chan error
	pubsub    *redis.PubSub
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func (w *watch) Snapshots() <-chan []*hk.Habit {
	return w.snapshots
}

func (w *watch) Errors() <-chan error {
	return w.errs
}

func (w *watch) Close() error {
	w.cancel()

	err := w.pubsub.Close()

	<-w.done

	return err
}

func (w *watch) run(ctx context.Context, s *Store, user string) {
	defer func() {
		w.closeOnce.Do(func() {
			close(w.snapshots)
			close(w.errs)
			close(w.done)
		})
	}()

	if !w.emit(ctx, s, user) {
		return
	}

	ch := w.pubsub.Channel()

	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}

			if !w.emit(ctx, s, user) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// emit sends a fresh snapshot. It reports false when the watch is canceled.
func (w *watch) emit(ctx context.Context, s *Store, user string) bool {
	habits, err := s.FindAll(hk.NewContextWithUser(ctx, user))
	if err != nil {
		if ctx.Err() != nil {
			return false
		}

		select {
		case w.errs <- err:
		default:
			// The error channel is full, drop the error.
		}

		return true
	}

	select {
	case w.snapshots <- habits:
	case <-ctx.Done():
		return false
	}

	return true
}
