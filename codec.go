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

import "context"

// ChangeCodec is a codec for marshaling and unmarshaling changes to and
// from bytes, together with the values of their context.
type ChangeCodec interface {
	// MarshalChange marshals a change and the supported values of its context
	// into bytes.
	MarshalChange(ctx context.Context, change Change) ([]byte, error)

	// UnmarshalChange unmarshals a change and a context with its supported
	// values from bytes.
	UnmarshalChange(ctx context.Context, b []byte) (Change, context.Context, error)
}
