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

package types

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract used by domain types.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// ErrorKind classifies failures of table operations.
type ErrorKind int

const (
	InvalidRequest ErrorKind = iota + 1
	NotFound
	NoPrimaryKey
	NoValidColumns
	Internal
)

var _ BaseEnum = ErrorKind(0)

var errorKindNames = map[ErrorKind][2]string{
	InvalidRequest: {"InvalidRequest", "the request is missing required input"},
	NotFound:       {"NotFound", "the table, view or row does not exist"},
	NoPrimaryKey:   {"NoPrimaryKey", "the operation needs a primary key and the table has none"},
	NoValidColumns: {"NoValidColumns", "the payload contains no writable column of the table"},
	Internal:       {"Internal", "the store failed to execute the statement"},
}

func (k ErrorKind) IsValid() bool {
	_, ok := errorKindNames[k]
	return ok
}

func (k ErrorKind) Number() int {
	if !k.IsValid() {
		return IllegalValue
	}
	return int(k)
}

func (k ErrorKind) String() string { return k.Name() }

func (k ErrorKind) Name() string {
	if v, ok := errorKindNames[k]; ok {
		return v[0]
	}
	return IllegalName
}

func (k ErrorKind) Desc() string {
	if v, ok := errorKindNames[k]; ok {
		return v[1]
	}
	return IllegalDesc
}
