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
	"testing"
)

func TestUserContext(t *testing.T) {
	ctx := context.Background()

	if user := UserFromContext(ctx); user != DefaultUser {
		t.Error("the default user should be used:", user)
	}

	ctx = NewContextWithUser(ctx, "alice")

	if user := UserFromContext(ctx); user != "alice" {
		t.Error("the user should be correct:", user)
	}
}

func TestContextMarshaling(t *testing.T) {
	ctx := NewContextWithUser(context.Background(), "alice")

	vals := MarshalContext(ctx)

	ctx = UnmarshalContext(context.Background(), vals)

	if user := UserFromContext(ctx); user != "alice" {
		t.Error("the user should survive marshaling:", user)
	}
}

func TestContextMarshalingDefaultUser(t *testing.T) {
	vals := MarshalContext(context.Background())

	ctx := UnmarshalContext(context.Background(), vals)

	if user := UserFromContext(ctx); user != DefaultUser {
		t.Error("the default user should be used:", user)
	}
}
