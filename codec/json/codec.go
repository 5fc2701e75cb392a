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

package json

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	hk "github.com/habitkit/habitkit"
	"github.com/habitkit/habitkit/uuid"
)

// ChangeCodec is a codec for marshaling and unmarshaling changes to and
// from bytes in JSON format.
type ChangeCodec struct{}

// changeRecord is the JSON transport format of a change and its context.
type changeRecord struct {
	Op      hk.ChangeOp            `json:"op"`
	HabitID uuid.UUID              `json:"habit_id"`
	Habit   *hk.Habit              `json:"habit,omitempty"`
	User    string                 `json:"user"`
	At      time.Time              `json:"at"`
	Context map[string]interface{} `json:"context"`
}

// MarshalChange marshals a change into bytes in JSON format.
func (c *ChangeCodec) MarshalChange(ctx context.Context, change hk.Change) ([]byte, error) {
	record := changeRecord{
		Op:      change.Op,
		HabitID: change.HabitID,
		Habit:   change.Habit,
		User:    change.User,
		At:      change.At,
		Context: hk.MarshalContext(ctx),
	}

	b, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("could not marshal change record: %w", err)
	}

	return b, nil
}

// UnmarshalChange unmarshals a change from bytes in JSON format.
func (c *ChangeCodec) UnmarshalChange(ctx context.Context, b []byte) (hk.Change, context.Context, error) {
	var record changeRecord
	if err := json.Unmarshal(b, &record); err != nil {
		return hk.Change{}, nil, fmt.Errorf("could not unmarshal change record: %w", err)
	}

	change := hk.Change{
		Op:      record.Op,
		HabitID: record.HabitID,
		Habit:   record.Habit,
		User:    record.User,
		At:      record.At,
	}

	return change, hk.UnmarshalContext(ctx, record.Context), nil
}
