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

package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// ColumnInfo is one column as reported by the store's schema catalog.
// PrimaryKey is non-zero when the column is part of the primary key.
type ColumnInfo struct {
	Name       string `bun:"name"`
	PrimaryKey int    `bun:"is_pk"`
}

// DBSource hands out the current connection. Manager implements it and
// returns the replacement handle after a Reconnect.
type DBSource interface {
	GetDB() *bun.DB
}

// Catalog answers schema questions about tables and views. Names are only
// ever passed as query values, never spliced into the statement text.
type Catalog struct {
	src DBSource
}

func NewCatalog(src DBSource) *Catalog {
	return &Catalog{src: src}
}

func (c *Catalog) conn() (*bun.DB, error) {
	db := c.src.GetDB()
	if db == nil {
		return nil, errNotConnected
	}
	return db, nil
}

// Dialect returns the dialect of the underlying store, or dialect.Invalid
// while disconnected.
func (c *Catalog) Dialect() dialect.Name {
	db := c.src.GetDB()
	if db == nil {
		return dialect.Invalid
	}
	return db.Dialect().Name()
}

// RelationExists reports whether a table or view called name exists.
func (c *Catalog) RelationExists(ctx context.Context, name string) (bool, error) {
	db, err := c.conn()
	if err != nil {
		return false, fmt.Errorf("failed to look up relation %s: %w", name, err)
	}
	var query string
	switch db.Dialect().Name() {
	case dialect.PG:
		query = `SELECT COUNT(*) FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = ?`
	case dialect.MySQL:
		query = `SELECT COUNT(*) FROM information_schema.TABLES
			WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?`
	default:
		query = `SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`
	}
	var n int
	if err := db.NewRaw(query, name).Scan(ctx, &n); err != nil {
		return false, fmt.Errorf("failed to look up relation %s: %w", name, err)
	}
	return n > 0, nil
}

// Columns lists the columns of name in definition order.
func (c *Catalog) Columns(ctx context.Context, name string) ([]ColumnInfo, error) {
	db, err := c.conn()
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", name, err)
	}
	var q *bun.RawQuery
	switch db.Dialect().Name() {
	case dialect.PG:
		q = db.NewRaw(`SELECT c.column_name AS name,
				CASE WHEN k.column_name IS NULL THEN 0 ELSE 1 END AS is_pk
			FROM information_schema.columns c
			LEFT JOIN (
				SELECT kcu.column_name
				FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
					ON tc.constraint_name = kcu.constraint_name
					AND tc.table_schema = kcu.table_schema
					AND tc.table_name = kcu.table_name
				WHERE tc.constraint_type = 'PRIMARY KEY'
					AND tc.table_schema = current_schema()
					AND tc.table_name = ?
			) k ON k.column_name = c.column_name
			WHERE c.table_schema = current_schema() AND c.table_name = ?
			ORDER BY c.ordinal_position`, name, name)
	case dialect.MySQL:
		q = db.NewRaw(`SELECT COLUMN_NAME AS name,
				CASE WHEN COLUMN_KEY = 'PRI' THEN 1 ELSE 0 END AS is_pk
			FROM information_schema.COLUMNS
			WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
			ORDER BY ORDINAL_POSITION`, name)
	default:
		q = db.NewRaw(`SELECT name, pk AS is_pk FROM pragma_table_info(?) ORDER BY cid`, name)
	}

	cols := make([]ColumnInfo, 0)
	if err := q.Scan(ctx, &cols); err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", name, err)
	}
	return cols, nil
}
