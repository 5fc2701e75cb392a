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

package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/jinzhu/copier"

	hk "github.com/habitkit/habitkit"
)

// DefaultQueueSize is the default queue size per handler for published changes.
var DefaultQueueSize = 10

// ChangeFeed is a local change feed that delegates handling of published
// changes to all matching registered handlers, in order of registration.
type ChangeFeed struct {
	group        *Group
	registered   map[hk.ChangeHandlerType]struct{}
	registeredMu sync.RWMutex
	errCh        chan *hk.FeedError
	wg           sync.WaitGroup
	closed       bool
	closedMu     sync.RWMutex
}

// NewChangeFeed creates a ChangeFeed within a group, or its own group if nil.
func NewChangeFeed(g *Group) *ChangeFeed {
	if g == nil {
		g = NewGroup()
	}

	return &ChangeFeed{
		group:      g,
		registered: map[hk.ChangeHandlerType]struct{}{},
		errCh:      make(chan *hk.FeedError, 100),
	}
}

// PublishChange implements the PublishChange method of the
// habitkit.ChangeFeed interface.
func (f *ChangeFeed) PublishChange(ctx context.Context, change hk.Change) error {
	return f.group.publish(ctx, change)
}

// AddHandler implements the AddHandler method of the habitkit.ChangeFeed
// interface.
func (f *ChangeFeed) AddHandler(ctx context.Context, m hk.ChangeMatcher, h hk.ChangeHandler) error {
	if m == nil {
		return hk.ErrMissingMatcher
	}

	if h == nil {
		return hk.ErrMissingChangeHandler
	}

	f.registeredMu.Lock()
	defer f.registeredMu.Unlock()

	if _, ok := f.registered[h.HandlerType()]; ok {
		return hk.ErrHandlerAlreadyAdded
	}

	// Get or create the group channel for the handler type.
	ch := f.group.channel(h.HandlerType().String())

	f.registered[h.HandlerType()] = struct{}{}

	f.wg.Add(1)

	go f.handle(ctx, m, h, ch)

	return nil
}

// Errors implements the Errors method of the habitkit.ChangeFeed interface.
func (f *ChangeFeed) Errors() <-chan *hk.FeedError {
	return f.errCh
}

// Close implements the Close method of the habitkit.ChangeFeed interface.
func (f *ChangeFeed) Close() error {
	f.closedMu.Lock()

	if f.closed {
		f.closedMu.Unlock()

		return nil
	}

	f.closed = true
	f.closedMu.Unlock()

	f.group.close()
	f.wg.Wait()

	return nil
}

// handle delivers all changes coming in on the channel.
func (f *ChangeFeed) handle(ctx context.Context, m hk.ChangeMatcher, h hk.ChangeHandler, ch <-chan change) {
	defer f.wg.Done()

	for c := range ch {
		if !m(c.change) {
			continue
		}

		if err := h.HandleChange(c.ctx, c.change); err != nil {
			err = fmt.Errorf("could not handle change (%s): %w", h.HandlerType(), err)
			select {
			case f.errCh <- &hk.FeedError{Err: err, Ctx: c.ctx, Change: c.change}:
			default:
				// The error channel is full, drop the error.
			}
		}
	}
}

// Group is a change transport shared by multiple local feeds, so that
// handlers of the same type on different feeds share one queue.
type Group struct {
	queues   map[string]chan change
	queuesMu sync.RWMutex
	closed   bool
}

// NewGroup creates a Group.
func NewGroup() *Group {
	return &Group{
		queues: map[string]chan change{},
	}
}

type change struct {
	ctx    context.Context
	change hk.Change
}

func (g *Group) channel(id string) <-chan change {
	g.queuesMu.Lock()
	defer g.queuesMu.Unlock()

	if ch, ok := g.queues[id]; ok {
		return ch
	}

	ch := make(chan change, DefaultQueueSize)
	g.queues[id] = ch

	return ch
}

func (g *Group) publish(ctx context.Context, c hk.Change) error {
	g.queuesMu.RLock()
	defer g.queuesMu.RUnlock()

	for _, ch := range g.queues {
		// Deliver a deep copy so that handlers cannot affect each other
		// through the habit.
		toPublish := c

		if c.Habit != nil {
			habit := &hk.Habit{}
			if err := copier.CopyWithOption(habit, c.Habit, copier.Option{DeepCopy: true}); err != nil {
				return fmt.Errorf("could not copy habit: %w", err)
			}

			toPublish.Habit = habit
		}

		select {
		case ch <- change{ctx, toPublish}:
		default:
			// The handler queue is full, drop the change. Snapshots are
			// re-read from the store, so a slow handler only misses a
			// notification, not data.
		}
	}

	return nil
}

func (g *Group) close() {
	g.queuesMu.Lock()
	defer g.queuesMu.Unlock()

	if g.closed {
		return
	}

	g.closed = true

	for _, ch := range g.queues {
		close(ch)
	}

	g.queues = nil
}
