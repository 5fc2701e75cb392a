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

import "errors"

var (
	// ErrMissingHabitName is when a form has an empty name.
	ErrMissingHabitName = errors.New("missing habit name")
	// ErrInvalidTargetCompletions is when a form's completion target is not a
	// positive integer.
	ErrInvalidTargetCompletions = errors.New("invalid target completions")
	// ErrInvalidTimeframe is when a form's timeframe is not a positive integer.
	ErrInvalidTimeframe = errors.New("invalid timeframe")
	// ErrInvalidTargetTime is when a form's target time is not a "HH:MM" time.
	ErrInvalidTargetTime = errors.New("invalid target time")
)

// ErrInvalidLogDate is when a log date is in the future or before the habit's
// start date.
var ErrInvalidLogDate = errors.New("log date outside of habit date range")

// ErrHabitBusy is when another operation is already in flight for the same
// habit. The second caller is declined, not queued.
var ErrHabitBusy = errors.New("habit operation already in flight")

// ValidationError is an error in a habit form field.
type ValidationError struct {
	// Field is the form field that failed validation.
	Field string
	// Err is the validation failure.
	Err error
}

// Error implements the Error method of the error interface.
func (e *ValidationError) Error() string {
	return "invalid habit form field " + e.Field + ": " + e.Err.Error()
}

// Unwrap implements the errors.Unwrap interface.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
