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

import "github.com/habitkit/habitkit/uuid"

// ChangeMatcher is a func that can match changes to a criteria.
type ChangeMatcher func(Change) bool

// MatchAny matches any change.
func MatchAny() ChangeMatcher {
	return func(Change) bool {
		return true
	}
}

// MatchOp matches a specific kind of mutation.
func MatchOp(op ChangeOp) ChangeMatcher {
	return func(c Change) bool {
		return c.Op == op
	}
}

// MatchAnyOpOf matches any of several kinds of mutation.
func MatchAnyOpOf(ops ...ChangeOp) ChangeMatcher {
	return func(c Change) bool {
		for _, op := range ops {
			if c.Op == op {
				return true
			}
		}

		return false
	}
}

// MatchHabit matches changes of a specific habit.
func MatchHabit(id uuid.UUID) ChangeMatcher {
	return func(c Change) bool {
		return c.HabitID == id
	}
}

// MatchUser matches changes within a specific user scope.
func MatchUser(user string) ChangeMatcher {
	return func(c Change) bool {
		return c.User == user
	}
}

// MatchAnyOf matches if any of several matchers matches.
func MatchAnyOf(matchers ...ChangeMatcher) ChangeMatcher {
	return func(c Change) bool {
		for _, m := range matchers {
			if m(c) {
				return true
			}
		}

		return false
	}
}
