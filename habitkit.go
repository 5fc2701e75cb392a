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

// Package habitkit is a habit tracking toolkit: a progress and streak engine
// with pluggable document stores and change feeds.
package habitkit

import "time"

// Clock provides the current time. It is injected wherever "today" matters so
// that streak and date-window computations are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc is a func adapter for the Clock interface.
type ClockFunc func() time.Time

// Now implements the Now method of the Clock interface.
func (f ClockFunc) Now() time.Time {
	return f()
}

// RealClock is a Clock using the system wall clock in the local time zone.
var RealClock Clock = ClockFunc(time.Now)
