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
	"sync"
)

// DefaultUser is the user scope to use if not set in the context.
const DefaultUser = "default"

func init() {
	// Register the user scope context.
	RegisterContextMarshaler(func(ctx context.Context, vals map[string]interface{}) {
		if user, ok := ctx.Value(userKey).(string); ok {
			vals[userKeyStr] = user
		}
	})
	RegisterContextUnmarshaler(func(ctx context.Context, vals map[string]interface{}) context.Context {
		if user, ok := vals[userKeyStr].(string); ok {
			return NewContextWithUser(ctx, user)
		}

		return ctx
	})
}

type contextKey int

const (
	userKey contextKey = iota
)

// Strings used to marshal context values.
const (
	userKeyStr = "habitkit_user"
)

// UserFromContext returns the user scope from the context, or the default
// user. Habit collections are kept per user ("users/{userId}/habits" in the
// stores); authentication of the user is out of scope.
func UserFromContext(ctx context.Context) string {
	if user, ok := ctx.Value(userKey).(string); ok {
		return user
	}

	return DefaultUser
}

// NewContextWithUser sets the user scope to use in the context. The user
// scope determines which habit collection is read and written.
func NewContextWithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// Private context marshaling funcs.
var (
	contextMarshalFuncs   = []ContextMarshalFunc{}
	contextMarshalFuncsMu = sync.RWMutex{}

	contextUnmarshalFuncs   = []ContextUnmarshalFunc{}
	contextUnmarshalFuncsMu = sync.RWMutex{}
)

// ContextMarshalFunc is a function that marshals any context values to a map,
// used for sending context on the wire.
type ContextMarshalFunc func(context.Context, map[string]interface{})

// ContextUnmarshalFunc is a function that unmarshals any context values from
// a map, used for receiving context from the wire.
type ContextUnmarshalFunc func(context.Context, map[string]interface{}) context.Context

// RegisterContextMarshaler registers a marshaler func. Marshalers are run in
// order of registration when marshaling a context.
func RegisterContextMarshaler(f ContextMarshalFunc) {
	contextMarshalFuncsMu.Lock()
	defer contextMarshalFuncsMu.Unlock()

	contextMarshalFuncs = append(contextMarshalFuncs, f)
}

// RegisterContextUnmarshaler registers an unmarshaler func. Unmarshalers are
// run in order of registration when unmarshaling a context.
func RegisterContextUnmarshaler(f ContextUnmarshalFunc) {
	contextUnmarshalFuncsMu.Lock()
	defer contextUnmarshalFuncsMu.Unlock()

	contextUnmarshalFuncs = append(contextUnmarshalFuncs, f)
}

// MarshalContext marshals a context into a map.
func MarshalContext(ctx context.Context) map[string]interface{} {
	contextMarshalFuncsMu.RLock()
	defer contextMarshalFuncsMu.RUnlock()

	vals := map[string]interface{}{}
	for _, f := range contextMarshalFuncs {
		f(ctx, vals)
	}

	return vals
}

// UnmarshalContext unmarshals a context from a map.
func UnmarshalContext(ctx context.Context, vals map[string]interface{}) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	if vals == nil {
		return ctx
	}

	contextUnmarshalFuncsMu.RLock()
	defer contextUnmarshalFuncsMu.RUnlock()

	for _, f := range contextUnmarshalFuncs {
		ctx = f(ctx, vals)
	}

	return ctx
}
