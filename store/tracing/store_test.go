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
	"errors"
	"testing"

	hk "github.com/habitkit/habitkit"
	"github.com/habitkit/habitkit/store"
	"github.com/habitkit/habitkit/store/memory"
)

func TestStore(t *testing.T) {
	inner := memory.NewStore()

	s := NewStore(inner)
	if s == nil {
		t.Fatal("there should be a store")
	}

	if s.InnerStore() != inner {
		t.Error("the inner store should be correct")
	}

	ctx := hk.NewContextWithUser(context.Background(), "tracing-test-user")

	store.AcceptanceTest(t, ctx, s)
}

func TestStoreWatch(t *testing.T) {
	s := NewStore(memory.NewStore())

	ctx := hk.NewContextWithUser(context.Background(), "tracing-watch-user")

	store.WatchAcceptanceTest(t, ctx, s)
}

func TestStoreWatchNotSupported(t *testing.T) {
	s := NewStore(&unwatchableStore{memory.NewStore()})

	_, err := s.Watch(context.Background())
	if !errors.Is(err, hk.ErrWatchNotSupported) {
		t.Error("there should be a watch not supported error:", err)
	}
}

// unwatchableStore hides the Watch method of the wrapped store.
type unwatchableStore struct {
	hk.Store
}
