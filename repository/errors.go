/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"errors"
	"fmt"

	"github.com/tomoncle/tabula/types"
)

// Object names what a NotFound error refers to.
const (
	ObjectTable = "table"
	ObjectRow   = "row"
)

// Error is returned by every operation of this package. Kind decides how a
// caller reports it; Err carries the store error for Internal failures.
type Error struct {
	Kind    types.ErrorKind
	Object  string
	Message string
	Err     error
}

var (
	ErrInvalidRequest = &Error{Kind: types.InvalidRequest}
	ErrNotFound       = &Error{Kind: types.NotFound}
	ErrNoPrimaryKey   = &Error{Kind: types.NoPrimaryKey}
	ErrNoValidColumns = &Error{Kind: types.NoValidColumns}
	ErrInternal       = &Error{Kind: types.Internal}
)

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return e.Kind.Desc()
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	default:
		return e.Message + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind, and on Object when the target sets one, so that
// errors.Is(err, ErrNotFound) holds for any NotFound error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Object == "" || t.Object == e.Object)
}

// Cause is the message of the underlying store error, or the error's own
// message when there is none.
func (e *Error) Cause() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Error()
}

// KindOf reports the kind of err. Errors from outside this package are
// Internal.
func KindOf(err error) types.ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return types.Internal
}

func invalidRequest(format string, args ...interface{}) error {
	return &Error{Kind: types.InvalidRequest, Message: fmt.Sprintf(format, args...)}
}

func tableNotFound(format string, args ...interface{}) error {
	return &Error{Kind: types.NotFound, Object: ObjectTable, Message: fmt.Sprintf(format, args...)}
}

func rowNotFound(table string, id interface{}) error {
	return &Error{Kind: types.NotFound, Object: ObjectRow, Message: fmt.Sprintf("Record not found: %s/%v", table, id)}
}

func noPrimaryKey(table string) error {
	return &Error{Kind: types.NoPrimaryKey, Message: fmt.Sprintf("Table has no primary key: %s", table)}
}

func noValidColumns(table string) error {
	return &Error{Kind: types.NoValidColumns, Message: fmt.Sprintf("No valid columns provided for %s", table)}
}

func internal(err error, format string, args ...interface{}) error {
	return &Error{Kind: types.Internal, Message: fmt.Sprintf(format, args...), Err: err}
}
