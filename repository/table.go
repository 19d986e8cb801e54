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
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/tomoncle/tabula/database"
	"github.com/tomoncle/tabula/types"
)

// TableRepository executes Builder statements for any resolved table.
type TableRepository struct {
	runner  *database.StatementRunner
	builder *Builder
}

func NewTableRepository(runner *database.StatementRunner, syntax Syntax) *TableRepository {
	return &TableRepository{runner: runner, builder: NewBuilder(syntax)}
}

func (r *TableRepository) List(ctx context.Context, rec *Record, page *types.PageRequest) ([]types.Row, error) {
	stmt := r.builder.List(rec, page)
	rows, err := r.query(ctx, stmt)
	if err != nil {
		return nil, internal(err, "failed to list %s", rec.Table)
	}
	return rows, nil
}

func (r *TableRepository) Search(ctx context.Context, rec *Record, q string) ([]types.Row, error) {
	stmt := r.builder.Search(rec, q)
	rows, err := r.query(ctx, stmt)
	if err != nil {
		return nil, internal(err, "failed to search %s", rec.Table)
	}
	return rows, nil
}

func (r *TableRepository) Get(ctx context.Context, rec *Record, id interface{}) (types.Row, error) {
	stmt, err := r.builder.Get(rec, id)
	if err != nil {
		return nil, err
	}
	rows, err := r.query(ctx, stmt)
	if err != nil {
		return nil, internal(err, "failed to get %s/%v", rec.Table, id)
	}
	if len(rows) == 0 {
		return nil, rowNotFound(rec.Table, id)
	}
	return rows[0], nil
}

// Insert writes values and returns the primary key the store assigned, or
// nil when the table has no primary key.
func (r *TableRepository) Insert(ctx context.Context, rec *Record, values types.Row) (interface{}, error) {
	stmt, err := r.builder.Insert(rec, values)
	if err != nil {
		return nil, err
	}

	if r.builder.syntax.returning && rec.HasPrimaryKey() {
		rows, err := r.query(ctx, stmt)
		if err != nil {
			return nil, internal(err, "failed to insert into %s", rec.Table)
		}
		if len(rows) == 0 {
			return nil, nil
		}
		return rows[0][rec.PrimaryKey], nil
	}

	res, err := r.runner.Exec(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return nil, internal(err, "failed to insert into %s", rec.Table)
	}
	if !rec.HasPrimaryKey() {
		return nil, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		r.runner.LogFailure(stmt.Query, stmt.Args, fmt.Errorf("last insert id unavailable: %w", err))
		return nil, nil
	}
	return id, nil
}

// Update returns a row NotFound error when no row has the given key.
func (r *TableRepository) Update(ctx context.Context, rec *Record, id interface{}, values types.Row) error {
	stmt, err := r.builder.Update(rec, id, values)
	if err != nil {
		return err
	}
	return r.execOne(ctx, rec, id, stmt, "failed to update %s/%v")
}

// Delete returns a row NotFound error when no row has the given key.
func (r *TableRepository) Delete(ctx context.Context, rec *Record, id interface{}) error {
	stmt, err := r.builder.Delete(rec, id)
	if err != nil {
		return err
	}
	return r.execOne(ctx, rec, id, stmt, "failed to delete %s/%v")
}

func (r *TableRepository) execOne(ctx context.Context, rec *Record, id interface{}, stmt Statement, format string) error {
	res, err := r.runner.Exec(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return internal(err, format, rec.Table, id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		r.runner.LogFailure(stmt.Query, stmt.Args, err)
		return internal(err, format, rec.Table, id)
	}
	if n == 0 {
		return rowNotFound(rec.Table, id)
	}
	return nil
}

func (r *TableRepository) query(ctx context.Context, stmt Statement) ([]types.Row, error) {
	rows, err := r.runner.Query(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		r.runner.LogFailure(stmt.Query, stmt.Args, err)
		return nil, err
	}
	return result, nil
}

func scanRows(rows *sql.Rows) ([]types.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	result := make([]types.Row, 0)
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(types.Row, len(cols))
		for i, col := range cols {
			var dbType string
			if i < len(colTypes) && colTypes[i] != nil {
				dbType = colTypes[i].DatabaseTypeName()
			}
			row[col] = normalizeValue(values[i], dbType)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// normalizeValue turns driver byte slices into strings, or numbers when the
// column type is numeric.
func normalizeValue(v interface{}, dbType string) interface{} {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	s := string(b)
	switch strings.ToUpper(dbType) {
	case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT", "MEDIUMINT", "INT2", "INT4", "INT8",
		"UNSIGNED INT", "UNSIGNED BIGINT", "UNSIGNED SMALLINT", "UNSIGNED TINYINT", "UNSIGNED MEDIUMINT":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case "DECIMAL", "NUMERIC", "FLOAT", "DOUBLE", "REAL", "FLOAT4", "FLOAT8":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}
