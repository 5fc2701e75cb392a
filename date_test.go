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
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-15")
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if d != "2025-06-15" {
		t.Error("the date should be correct:", d)
	}

	if _, err := ParseDate("2025-6-15"); err == nil {
		t.Error("there should be an error")
	}

	if _, err := ParseDate("15/06/2025"); err == nil {
		t.Error("there should be an error")
	}

	if _, err := ParseDate(""); err == nil {
		t.Error("there should be an error")
	}
}

func TestDateOrdering(t *testing.T) {
	// ISO dates compare correctly as strings.
	if !(Date("2025-06-14") < Date("2025-06-15")) {
		t.Error("the earlier date should be less")
	}

	if !(Date("2025-06-30") < Date("2025-07-01")) {
		t.Error("the earlier date should be less across months")
	}

	if !(Date("2024-12-31") < Date("2025-01-01")) {
		t.Error("the earlier date should be less across years")
	}
}

func TestDateArithmetic(t *testing.T) {
	d := Date("2025-03-01")

	if prev := d.Prev(); prev != "2025-02-28" {
		t.Error("the previous date should be correct:", prev)
	}

	if next := d.AddDays(1); next != "2025-03-02" {
		t.Error("the next date should be correct:", next)
	}

	// Leap year.
	if prev := Date("2024-03-01").Prev(); prev != "2024-02-29" {
		t.Error("the previous date should be correct:", prev)
	}

	if days := Date("2025-06-01").DaysUntil("2025-06-15"); days != 14 {
		t.Error("the day count should be correct:", days)
	}

	if days := Date("2025-06-15").DaysUntil("2025-06-15"); days != 0 {
		t.Error("the day count should be correct:", days)
	}
}

func TestToday(t *testing.T) {
	clock := ClockFunc(func() time.Time {
		return time.Date(2025, time.June, 15, 23, 59, 0, 0, time.UTC)
	})

	if today := Today(clock); today != "2025-06-15" {
		t.Error("today should be correct:", today)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	if err := ParseTimeOfDay("08:30"); err != nil {
		t.Error("there should be no error:", err)
	}

	if err := ParseTimeOfDay("23:59"); err != nil {
		t.Error("there should be no error:", err)
	}

	if err := ParseTimeOfDay("24:00"); err == nil {
		t.Error("there should be an error")
	}

	if err := ParseTimeOfDay("8:30"); err == nil {
		t.Error("there should be an error")
	}

	if err := ParseTimeOfDay("morning"); err == nil {
		t.Error("there should be an error")
	}
}
