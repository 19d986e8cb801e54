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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tomoncle/tabula/types"
)

func TestStamper(t *testing.T) {
	now := time.Date(2025, 3, 4, 9, 8, 7, 0, time.Local)
	s := NewStamper(func() time.Time { return now })
	rec := &Record{
		Table:      "okr",
		Columns:    []string{"id", "objective", "createdon", "modifiedon", "modifiedtime"},
		PrimaryKey: "id",
	}

	t.Run("create fills all three", func(t *testing.T) {
		in := types.Row{"objective": "x"}
		out := s.OnCreate(rec, in)
		assert.Equal(t, types.Row{
			"objective":    "x",
			"createdon":    "2025-03-04",
			"modifiedon":   "2025-03-04",
			"modifiedtime": "09:08:07",
		}, out)
		assert.Len(t, in, 1, "input must not be modified")
	})

	t.Run("update never touches createdon", func(t *testing.T) {
		out := s.OnUpdate(rec, types.Row{"objective": "x"})
		assert.Equal(t, types.Row{
			"objective":    "x",
			"modifiedon":   "2025-03-04",
			"modifiedtime": "09:08:07",
		}, out)
	})

	t.Run("caller value wins", func(t *testing.T) {
		out := s.OnCreate(rec, types.Row{"createdon": "2000-01-01"})
		assert.Equal(t, "2000-01-01", out["createdon"])
		assert.Equal(t, "2025-03-04", out["modifiedon"])
	})

	t.Run("only existing columns", func(t *testing.T) {
		partial := &Record{Table: "t", Columns: []string{"id", "name", "modifiedon"}, PrimaryKey: "id"}
		out := s.OnCreate(partial, types.Row{"name": "n"})
		assert.Equal(t, types.Row{"name": "n", "modifiedon": "2025-03-04"}, out)
	})
}

func TestStamperDefaultClock(t *testing.T) {
	s := NewStamper(nil)
	rec := &Record{Table: "t", Columns: []string{"id", "createdon"}, PrimaryKey: "id"}
	out := s.OnCreate(rec, types.Row{})
	_, err := time.Parse(DateLayout, out["createdon"].(string))
	assert.NoError(t, err)
}
