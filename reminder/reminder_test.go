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

package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hk "github.com/habitkit/habitkit"
)

func TestCronLine(t *testing.T) {
	line, err := CronLine("08:30")
	require.NoError(t, err)
	assert.Equal(t, "30 8 * * *", line)

	line, err = CronLine("23:05")
	require.NoError(t, err)
	assert.Equal(t, "5 23 * * *", line)

	_, err = CronLine("")
	assert.ErrorIs(t, err, ErrNoTargetTime)

	_, err = CronLine("25:00")
	assert.ErrorIs(t, err, hk.ErrInvalidTargetTime)

	_, err = CronLine("8am")
	assert.ErrorIs(t, err, hk.ErrInvalidTargetTime)
}

func TestNext(t *testing.T) {
	after := time.Date(2025, time.June, 15, 7, 0, 0, 0, time.UTC)

	// Later the same day.
	next, err := Next("08:30", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.June, 15, 8, 30, 0, 0, time.UTC), next)

	// Already passed today, so tomorrow.
	next, err = Next("06:00", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.June, 16, 6, 0, 0, 0, time.UTC), next)

	// Exactly now goes to the next day.
	next, err = Next("07:00", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.June, 16, 7, 0, 0, 0, time.UTC), next)
}

func TestScheduleHabit(t *testing.T) {
	s := NewScheduler(HandlerFunc(func(ctx context.Context, r Reminder) error {
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := s.ScheduleHabit(ctx, &hk.Habit{Name: "Meditate"})
	assert.ErrorIs(t, err, ErrNoTargetTime)

	err = s.ScheduleHabit(ctx, &hk.Habit{Name: "Meditate", TargetTime: "24:30"})
	assert.ErrorIs(t, err, hk.ErrInvalidTargetTime)

	err = s.ScheduleHabit(ctx, &hk.Habit{Name: "Meditate", TargetTime: "08:30"})
	assert.NoError(t, err)
}

func TestSchedulerDelivery(t *testing.T) {
	received := make(chan Reminder, 1)

	s := NewScheduler(HandlerFunc(func(ctx context.Context, r Reminder) error {
		received <- r

		return nil
	}))

	ctx := hk.NewContextWithUser(context.Background(), "reminder-user")
	due := time.Date(2025, time.June, 15, 8, 30, 0, 0, time.UTC)

	// Feed a due reminder directly into the delivery loop.
	s.remindersCh <- data{ctx, Reminder{Name: "Meditate", User: "reminder-user", At: due}}

	select {
	case r := <-received:
		assert.Equal(t, "Meditate", r.Name)
		assert.Equal(t, "reminder-user", r.User)
		assert.Equal(t, due, r.At)
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for reminder")
	}
}
