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

package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	hk "github.com/habitkit/habitkit"
	"github.com/habitkit/habitkit/codec/json"
)

// ChangeFeed is a Kafka change feed that delivers published changes to all
// matching registered handlers. Handlers of the same type share a consumer
// group, also across processes.
type ChangeFeed struct {
	// TODO: Support multiple brokers.
	addr         string
	appID        string
	topic        string
	writer       *kafka.Writer
	registered   map[hk.ChangeHandlerType]struct{}
	registeredMu sync.RWMutex
	errCh        chan *hk.FeedError
	cancel       context.CancelFunc
	handlingCtx  context.Context
	wg           sync.WaitGroup
	codec        hk.ChangeCodec
}

// NewChangeFeed creates a ChangeFeed, with optional settings. The topic is
// created if it does not exist.
func NewChangeFeed(addr, appID string, options ...Option) (*ChangeFeed, error) {
	handlingCtx, cancel := context.WithCancel(context.Background())

	f := &ChangeFeed{
		addr:        addr,
		appID:       appID,
		topic:       appID + "_changes",
		registered:  map[hk.ChangeHandlerType]struct{}{},
		errCh:       make(chan *hk.FeedError, 100),
		cancel:      cancel,
		handlingCtx: handlingCtx,
		codec:       &json.ChangeCodec{},
	}

	for _, option := range options {
		if err := option(f); err != nil {
			cancel()

			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	// Get or create the topic.
	client := &kafka.Client{
		Addr: kafka.TCP(addr),
	}

	var (
		resp *kafka.CreateTopicsResponse
		err  error
	)

	for i := 0; i < 10; i++ {
		resp, err = client.CreateTopics(context.Background(), &kafka.CreateTopicsRequest{
			Topics: []kafka.TopicConfig{{
				Topic:             f.topic,
				NumPartitions:     1,
				ReplicationFactor: 1,
			}},
		})
		if errors.Is(err, kafka.BrokerNotAvailable) {
			time.Sleep(5 * time.Second)

			continue
		} else if err != nil {
			cancel()

			return nil, fmt.Errorf("error creating Kafka topic: %w", err)
		}

		break
	}

	if resp == nil {
		cancel()

		return nil, fmt.Errorf("could not get/create Kafka topic in time: %w", err)
	}

	if topicErr, ok := resp.Errors[f.topic]; ok && topicErr != nil {
		if !errors.Is(topicErr, kafka.TopicAlreadyExists) {
			cancel()

			return nil, fmt.Errorf("invalid Kafka topic: %w", topicErr)
		}
	}

	f.writer = &kafka.Writer{
		Addr:         kafka.TCP(addr),
		Topic:        f.topic,
		BatchSize:    1,                // Write every change without delay.
		RequiredAcks: kafka.RequireOne, // Stronger consistency.
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

const (
	opHeader   = "change_op"
	userHeader = "change_user"
)

// PublishChange implements the PublishChange method of the
// habitkit.ChangeFeed interface.
func (f *ChangeFeed) PublishChange(ctx context.Context, change hk.Change) error {
	data, err := f.codec.MarshalChange(ctx, change)
	if err != nil {
		return fmt.Errorf("could not marshal change: %w", err)
	}

	if err := f.writer.WriteMessages(ctx, kafka.Message{
		Value: data,
		Headers: []kafka.Header{
			{
				Key:   opHeader,
				Value: []byte(change.Op),
			},
			{
				Key:   userHeader,
				Value: []byte(change.User),
			},
		},
	}); err != nil {
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

	// Get or create the subscription.
	joined := make(chan struct{})
	groupID := f.appID + "_" + h.HandlerType().String()
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:                []string{f.addr},
		Topic:                  f.topic,
		GroupID:                groupID,     // Send messages to only one subscriber per group.
		MaxBytes:               100e3,       // 100KB
		MaxWait:                time.Second, // Allow to exit readloop in max 1s.
		PartitionWatchInterval: time.Second,
		WatchPartitionChanges:  true,
		StartOffset:            kafka.LastOffset, // Don't read old messages.
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			// NOTE: Hacky way to use logger to find out when the reader is ready.
			if strings.HasPrefix(msg, "Joined group") {
				select {
				case <-joined:
				default:
					close(joined) // Close once.
				}
			}
		}),
	})

	select {
	case <-joined:
	case <-time.After(10 * time.Second):
		return fmt.Errorf("did not join group in time")
	}

	f.registered[h.HandlerType()] = struct{}{}

	// Handle until the feed is closed.
	f.wg.Add(1)

	go f.handle(f.handlingCtx, m, h, r)

	return nil
}

// Errors implements the Errors method of the habitkit.ChangeFeed interface.
func (f *ChangeFeed) Errors() <-chan *hk.FeedError {
	return f.errCh
}

// Close implements the Close method of the habitkit.ChangeFeed interface.
func (f *ChangeFeed) Close() error {
	f.cancel()
	f.wg.Wait()

	if err := f.writer.Close(); err != nil {
		return fmt.Errorf("could not close Kafka writer: %w", err)
	}

	return nil
}

// handle delivers all changes fetched by the reader.
func (f *ChangeFeed) handle(ctx context.Context, m hk.ChangeMatcher, h hk.ChangeHandler, r *kafka.Reader) {
	defer f.wg.Done()

	handler := f.handler(m, h, r)

	for {
		msg, err := r.FetchMessage(ctx)
		if errors.Is(err, context.Canceled) {
			break
		}

		if err != nil {
			f.err(&hk.FeedError{Err: fmt.Errorf("could not receive: %w", err), Ctx: ctx})

			// Retry the receive loop if there was an error.
			time.Sleep(time.Second)

			continue
		}

		handler(ctx, msg)
	}

	if err := r.Close(); err != nil {
		log.Printf("habitkit: failed to close Kafka reader: %s", err)
	}
}

func (f *ChangeFeed) handler(m hk.ChangeMatcher, h hk.ChangeHandler, r *kafka.Reader) func(ctx context.Context, msg kafka.Message) {
	return func(ctx context.Context, msg kafka.Message) {
		change, ctx, err := f.codec.UnmarshalChange(ctx, msg.Value)
		if err != nil {
			f.err(&hk.FeedError{Err: fmt.Errorf("could not unmarshal change: %w", err), Ctx: ctx})

			return
		}

		// Ignore non-matching changes.
		if !m(change) {
			if err := r.CommitMessages(ctx, msg); err != nil {
				f.err(&hk.FeedError{Err: fmt.Errorf("could not commit message: %w", err), Ctx: ctx})
			}

			return
		}

		if err := h.HandleChange(ctx, change); err != nil {
			err = fmt.Errorf("could not handle change (%s): %w", h.HandlerType(), err)
			f.err(&hk.FeedError{Err: err, Ctx: ctx, Change: change})

			return
		}

		if err := r.CommitMessages(ctx, msg); err != nil {
			f.err(&hk.FeedError{Err: fmt.Errorf("could not commit message: %w", err), Ctx: ctx})
		}
	}
}

func (f *ChangeFeed) err(err *hk.FeedError) {
	select {
	case f.errCh <- err:
	default:
		log.Printf("habitkit: missed error in Kafka change feed: %s", err)
	}
}
