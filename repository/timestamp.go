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
	"time"

	"github.com/tomoncle/tabula/types"
)

// Conventional column names filled in by the server.
const (
	CreatedOnColumn    = "createdon"
	ModifiedOnColumn   = "modifiedon"
	ModifiedTimeColumn = "modifiedtime"

	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Stamper adds creation and modification timestamps to write payloads.
// A column is only stamped when the table has it and the caller did not
// supply it.
type Stamper struct {
	now func() time.Time
}

// NewStamper uses now as its clock; nil means time.Now.
func NewStamper(now func() time.Time) *Stamper {
	if now == nil {
		now = time.Now
	}
	return &Stamper{now: now}
}

// OnCreate returns values plus createdon, modifiedon and modifiedtime where
// eligible. values is not modified.
func (s *Stamper) OnCreate(rec *Record, values types.Row) types.Row {
	now := s.now()
	out := values.Clone()
	s.fill(rec, out, CreatedOnColumn, now.Format(DateLayout))
	s.fill(rec, out, ModifiedOnColumn, now.Format(DateLayout))
	s.fill(rec, out, ModifiedTimeColumn, now.Format(TimeLayout))
	return out
}

// OnUpdate is OnCreate without createdon.
func (s *Stamper) OnUpdate(rec *Record, values types.Row) types.Row {
	now := s.now()
	out := values.Clone()
	s.fill(rec, out, ModifiedOnColumn, now.Format(DateLayout))
	s.fill(rec, out, ModifiedTimeColumn, now.Format(TimeLayout))
	return out
}

func (s *Stamper) fill(rec *Record, values types.Row, column, value string) {
	if !rec.HasColumn(column) || column == rec.PrimaryKey {
		return
	}
	if _, ok := values[column]; ok {
		return
	}
	values[column] = value
}
