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
	"context"
	"encoding/json"
	"strings"

	"github.com/tomoncle/tabula/database"
	"github.com/tomoncle/tabula/types"
)

// Record describes a table or view: its columns in catalog order and the
// column that addresses a single row. PrimaryKey is empty when the table
// has none.
type Record struct {
	Table      string
	Columns    []string
	PrimaryKey string
}

type recordJSON struct {
	Columns    []string `json:"columns"`
	PrimaryKey *string  `json:"primaryKey"`
}

// MarshalJSON renders {"columns": [...], "primaryKey": "id"|null}.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{Columns: r.Columns}
	if r.HasPrimaryKey() {
		pk := r.PrimaryKey
		out.PrimaryKey = &pk
	}
	return json.Marshal(out)
}

func (r *Record) HasPrimaryKey() bool { return r.PrimaryKey != "" }

func (r *Record) HasColumn(name string) bool {
	for _, c := range r.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Writable returns the payload entries whose key is a column of the table
// other than the primary key. Unknown keys are dropped.
func (r *Record) Writable(payload types.Row) types.Row {
	out := make(types.Row, len(payload))
	for _, c := range r.Columns {
		if c == r.PrimaryKey {
			continue
		}
		if v, ok := payload[c]; ok {
			out[c] = v
		}
	}
	return out
}

// RequireWritable is Writable failing with NoValidColumns when nothing is
// left.
func (r *Record) RequireWritable(payload types.Row) (types.Row, error) {
	out := r.Writable(payload)
	if len(out) == 0 {
		return nil, noValidColumns(r.Table)
	}
	return out, nil
}

// RequirePrimaryKey fails with NoPrimaryKey for keyless tables.
func (r *Record) RequirePrimaryKey() error {
	if !r.HasPrimaryKey() {
		return noPrimaryKey(r.Table)
	}
	return nil
}

// Catalog is the schema lookup a Resolver needs. *database.Catalog
// implements it.
type Catalog interface {
	RelationExists(ctx context.Context, name string) (bool, error)
	Columns(ctx context.Context, name string) ([]database.ColumnInfo, error)
}

// Resolver produces the Record of a table or view.
type Resolver interface {
	Resolve(ctx context.Context, table string) (*Record, error)
}

type catalogResolver struct {
	catalog Catalog
}

// NewResolver returns a Resolver that consults catalog on every call.
func NewResolver(catalog Catalog) Resolver {
	return &catalogResolver{catalog: catalog}
}

func (r *catalogResolver) Resolve(ctx context.Context, table string) (*Record, error) {
	if strings.TrimSpace(table) == "" {
		return nil, invalidRequest("Table name is required")
	}

	exists, err := r.catalog.RelationExists(ctx, table)
	if err != nil {
		return nil, internal(err, "failed to look up %s", table)
	}
	if !exists {
		return nil, tableNotFound("Table or view not found: %s", table)
	}

	infos, err := r.catalog.Columns(ctx, table)
	if err != nil {
		return nil, internal(err, "failed to introspect %s", table)
	}
	if len(infos) == 0 {
		return nil, tableNotFound("No columns found for %s", table)
	}

	columns := make([]string, len(infos))
	for i, info := range infos {
		columns[i] = info.Name
	}
	return &Record{Table: table, Columns: columns, PrimaryKey: derivePrimaryKey(infos)}, nil
}

// derivePrimaryKey picks the single flagged key column, else a column named
// "id", else the first column.
func derivePrimaryKey(infos []database.ColumnInfo) string {
	if len(infos) == 0 {
		return ""
	}
	flagged := ""
	count := 0
	for _, info := range infos {
		if info.PrimaryKey != 0 {
			flagged = info.Name
			count++
		}
	}
	if count == 1 {
		return flagged
	}
	for _, info := range infos {
		if info.Name == "id" {
			return info.Name
		}
	}
	return infos[0].Name
}
