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

package nats

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/nats-io/nats.go"

	hk "github.com/habitkit/habitkit"
	"github.com/habitkit/habitkit/codec/json"
)

// ChangeFeed is a NATS change feed that delivers published changes to all
// matching registered handlers. Handlers of the same type share a queue
// group, also across processes.
type ChangeFeed struct {
	appID        string
	conn         *nats.Conn
	connOpts     []nats.Option
	subject      string
	registered   map[hk.ChangeHandlerType]struct{}
	registeredMu sync.RWMutex
	subs         []*nats.Subscription
	errCh        chan *hk.FeedError
	codec        hk.ChangeCodec
}

// NewChangeFeed creates a ChangeFeed, with optional settings.
func NewChangeFeed(url, appID string, options ...Option) (*ChangeFeed, error) {
	f := &ChangeFeed{
		appID:      appID,
		subject:    appID + "_changes",
		registered: map[hk.ChangeHandlerType]struct{}{},
		errCh:      make(chan *hk.FeedError, 100),
		codec:      &json.ChangeCodec{},
	}

	for _, option := range options {
		if err := option(f); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	var err error

	f.conn, err = nats.Connect(url, f.connOpts...)
	if err != nil {
		return nil, fmt.Errorf("could not connect to NATS: %w", err)
	}

	return f, nil
}

// Option is an option setter used to configure creation.
type Option func(*ChangeFeed) error

// WithCodec uses the specified codec for encoding changes.
func WithCodec(codec hk.ChangeCodec) Option {
	return func(f *ChangeFeed) error {
		f.codec = codec

		return nil
	}
}

// WithNATSOptions adds the NATS options to the underlying client.
func WithNATSOptions(opts ...nats.Option) Option {
	return func(f *ChangeFeed) error {
		f.connOpts = opts

		return nil
	}
}

// PublishChange implements the PublishChange method of the
// habitkit.ChangeFeed interface.
func (f *ChangeFeed) PublishChange(ctx context.Context, change hk.Change) error {
	data, err := f.codec.MarshalChange(ctx, change)
	if err != nil {
		return fmt.Errorf("could not marshal change: %w", err)
	}

	if err := f.conn.Publish(f.subject, data); err != nil {
		return fmt.Errorf("could not publish change: %w", err)
	}

	return nil
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

	// Handlers of the same type share a queue group so that only one of
	// them handles each change.
	queueGroup := fmt.Sprintf("%s_%s", f.appID, h.HandlerType())

	sub, err := f.conn.QueueSubscribe(f.subject, queueGroup, f.handler(ctx, m, h))
	if err != nil {
		return fmt.Errorf("could not subscribe to queue: %w", err)
	}

	f.registered[h.HandlerType()] = struct{}{}
	f.subs = append(f.subs, sub)

	return nil
}

// Errors implements the Errors method of the habitkit.ChangeFeed interface.
func (f *ChangeFeed) Errors() <-chan *hk.FeedError {
	return f.errCh
}

// Close implements the Close method of the habitkit.ChangeFeed interface.
func (f *ChangeFeed) Close() error {
	f.registeredMu.Lock()
	defer f.registeredMu.Unlock()

	for _, sub := range f.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Printf("habitkit: could not unsubscribe from NATS: %s", err)
		}
	}

	f.subs = nil

	f.conn.Close()

	return nil
}

func (f *ChangeFeed) handler(ctx context.Context, m hk.ChangeMatcher, h hk.ChangeHandler) func(msg *nats.Msg) {
	return func(msg *nats.Msg) {
		change, ctx, err := f.codec.UnmarshalChange(ctx, msg.Data)
		if err != nil {
			f.err(&hk.FeedError{Err: fmt.Errorf("could not unmarshal change: %w", err), Ctx: ctx})

			return
		}

		if !m(change) {
			return
		}

		if err := h.HandleChange(ctx, change); err != nil {
			err = fmt.Errorf("could not handle change (%s): %w", h.HandlerType(), err)
			f.err(&hk.FeedError{Err: err, Ctx: ctx, Change: change})
		}
	}
}

func (f *ChangeFeed) err(err *hk.FeedError) {
	select {
	case f.errCh <- err:
	default:
		log.Printf("habitkit: missed error in NATS change feed: %s", err)
	}
}
