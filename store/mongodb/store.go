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

package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readconcern"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	hk "github.com/habitkit/habitkit"
	"github.com/habitkit/habitkit/uuid"
)

// Store is a MongoDB habit store. All habits live in a single collection,
// scoped per user with a user field. Insertion order is kept with a
// sequence number assigned on first insert.
type Store struct {
	client    *mongo.Client
	habits    *mongo.Collection
	ownClient bool
}

// habitDoc is the stored form of a habit. The ID is kept as a string to
// avoid binary UUID codec concerns, and the habit itself is embedded.
type habitDoc struct {
	ID    string    `bson:"_id"`
	User  string    `bson:"user"`
	Seq   int64     `bson:"seq"`
	Habit *hk.Habit `bson:"habit"`
}

// NewStore creates a new Store with a MongoDB URI: `mongodb://hostname`.
func NewStore(uri, db string, opts ...Option) (*Store, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetWriteConcern(writeconcern.Majority()).
		SetReadConcern(readconcern.Majority())

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("could not connect to DB: %w", err)
	}

	return newStoreWithClient(client, true, db, opts...)
}

// NewStoreWithClient creates a new Store with an existing client.
func NewStoreWithClient(client *mongo.Client, db string, opts ...Option) (*Store, error) {
	return newStoreWithClient(client, false, db, opts...)
}

func newStoreWithClient(client *mongo.Client, ownClient bool, db string, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("missing DB client")
	}

	s := &Store{
		client:    client,
		habits:    client.Database(db).Collection("habits"),
		ownClient: ownClient,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	return s, nil
}

// Option is an option setter used to configure creation.
type Option func(*Store) error

// WithCollectionName uses a different collection name than the default "habits".
func WithCollectionName(name string) Option {
	return func(s *Store) error {
		if name == "" {
			return fmt.Errorf("missing collection name")
		}

		s.habits = s.habits.Database().Collection(name)

		return nil
	}
}

// InnerStore implements the InnerStore method of the habitkit.Store interface.
func (s *Store) InnerStore() hk.ReadStore {
	return nil
}

// Find implements the Find method of the habitkit.Store interface.
func (s *Store) Find(ctx context.Context, id uuid.UUID) (*hk.Habit, error) {
	user := hk.UserFromContext(ctx)

	var doc habitDoc
	if err := s.habits.FindOne(ctx, bson.M{
		"_id":  id.String(),
		"user": user,
	}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			err = hk.ErrHabitNotFound
		}

		return nil, &hk.StoreError{
			Err:     err,
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

	storeErr := func(err error) error {
		return &hk.StoreError{
			Err:  err,
			Op:   hk.StoreOpFindAll,
			User: user,
		}
	}

	cursor, err := s.habits.Find(ctx, bson.M{"user": user},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, storeErr(err)
	}

	habits := []*hk.Habit{}

	for cursor.Next(ctx) {
		var doc habitDoc
		if err := cursor.Decode(&doc); err != nil {
			_ = cursor.Close(ctx)

			return nil, storeErr(err)
		}

		habits = append(habits, doc.Habit)
	}

	if err := cursor.Close(ctx); err != nil {
		return nil, storeErr(err)
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

	if _, err := s.habits.UpdateOne(ctx,
		bson.M{
			"_id":  habit.ID.String(),
			"user": user,
		},
		bson.M{
			"$set":         bson.M{"habit": habit},
			"$setOnInsert": bson.M{"seq": time.Now().UnixNano()},
		},
		options.UpdateOne().SetUpsert(true),
	); err != nil {
		return &hk.StoreError{
			Err:     hk.ErrCouldNotSaveHabit,
			BaseErr: err,
			Op:      hk.StoreOpSave,
			HabitID: habit.ID,
			User:    user,
		}
	}

	return nil
}

// Remove implements the Remove method of the habitkit.Store interface.
func (s *Store) Remove(ctx context.Context, id uuid.UUID) error {
	user := hk.UserFromContext(ctx)

	r, err := s.habits.DeleteOne(ctx, bson.M{
		"_id":  id.String(),
		"user": user,
	})
	if err != nil {
		return &hk.StoreError{
			Err:     err,
			Op:      hk.StoreOpRemove,
			HabitID: id,
			User:    user,
		}
	}

	if r.DeletedCount == 0 {
		return &hk.StoreError{
			Err:     hk.ErrHabitNotFound,
			Op:      hk.StoreOpRemove,
			HabitID: id,
			User:    user,
		}
	}

	return nil
}

// Watch implements the Watch method of the habitkit.WatchableStore interface.
// It uses a change stream on the habit collection and re-reads the user's
// habits on every change, which requires MongoDB to run as a replica set.
func (s *Store) Watch(ctx context.Context) (hk.Watch, error) {
	user := hk.UserFromContext(ctx)

	watchCtx, cancel := context.WithCancel(context.Background())

	w := &watch{
		snapshots: make(chan []*hk.Habit, 16),
		errs:      make(chan error, 16),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	go w.run(watchCtx, s, user)

	return w, nil
}

// Clear clears the habit collection.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.habits.Drop(ctx); err != nil {
		return &hk.StoreError{
			Err:  fmt.Errorf("could not clear collection: %w", err),
			Op:   hk.StoreOpRemove,
			User: hk.UserFromContext(ctx),
		}
	}

	return nil
}

// Close implements the Close method of the habitkit.Store interface.
// The client is only disconnected if it was created by the store.
func (s *Store) Close() error {
	if !s.ownClient {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.client.Disconnect(ctx)
}

// watchPipeline filters the change stream to one user's habits. Delete
// events carry no full document, so they pass the filter as a whole;
// over-delivery is fine since every event triggers a full re-read of the
// user's habits.
func watchPipeline(user string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"fullDocument.user": user},
			bson.M{"operationType": "delete"},
		}}}},
	}
}

// watch follows a change stream and delivers per-user habit snapshots.
type watch struct {
	snapshots chan []*hk.Habit
	errs      chan error
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
	<-w.done

	return nil
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

	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
	}

	var resumeToken bson.Raw

	for {
		if ctx.Err() != nil {
			return
		}

		opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
		if resumeToken != nil {
			opts = opts.SetResumeAfter(resumeToken)
		}

		stream, err := s.habits.Watch(ctx, watchPipeline(user), opts)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			w.err(ctx, fmt.Errorf("could not open change stream: %w", err))

			select {
			case <-time.After(b.Duration()):
			case <-ctx.Done():
				return
			}

			continue
		}

		b.Reset()

		for stream.Next(ctx) {
			resumeToken = stream.ResumeToken()

			if !w.emit(ctx, s, user) {
				_ = stream.Close(context.Background())

				return
			}
		}

		if err := stream.Err(); err != nil && ctx.Err() == nil {
			w.err(ctx, fmt.Errorf("change stream error: %w", err))
		}

		_ = stream.Close(context.Background())
	}
}

// emit sends a fresh snapshot. It reports false when the watch is canceled.
func (w *watch) emit(ctx context.Context, s *Store, user string) bool {
	habits, err := s.FindAll(hk.NewContextWithUser(ctx, user))
	if err != nil {
		if ctx.Err() != nil {
			return false
		}

		w.err(ctx, err)

		return true
	}

	select {
	case w.snapshots <- habits:
	case <-ctx.Done():
		return false
	}

	return true
}

func (w *watch) err(ctx context.Context, err error) {
	select {
	case w.errs <- err:
	default:
		// The error channel is full, drop the error.
	}
}
