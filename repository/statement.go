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
	"strings"

	"github.com/tomoncle/tabula/types"
)

// Statement is statement text plus its bound argument values.
type Statement struct {
	Query string
	Args  []interface{}
}

// Builder renders statements from a Record. Only the Record's table and
// column names are written into the text; every value becomes an argument.
type Builder struct {
	syntax Syntax
}

func NewBuilder(syntax Syntax) *Builder {
	return &Builder{syntax: syntax}
}

type argList struct {
	syntax Syntax
	args   []interface{}
}

func (a *argList) bind(v interface{}) string {
	a.args = append(a.args, v)
	return a.syntax.Placeholder(len(a.args))
}

func (b *Builder) newArgs() *argList {
	return &argList{syntax: b.syntax}
}

// List selects every row, newest key first when the table has a primary
// key. A non-nil page adds LIMIT and OFFSET.
func (b *Builder) List(rec *Record, page *types.PageRequest) Statement {
	args := b.newArgs()
	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(b.syntax.QuoteIdent(rec.Table))
	if rec.HasPrimaryKey() {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(b.syntax.QuoteIdent(rec.PrimaryKey))
		sb.WriteString(" DESC")
	}
	if page != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(args.bind(page.GetPageSize()))
		sb.WriteString(" OFFSET ")
		sb.WriteString(args.bind(page.GetOffset()))
	}
	return Statement{Query: sb.String(), Args: args.args}
}

// Get selects the row whose primary key equals id.
func (b *Builder) Get(rec *Record, id interface{}) (Statement, error) {
	if !rec.HasPrimaryKey() {
		return Statement{}, noPrimaryKey(rec.Table)
	}
	args := b.newArgs()
	query := "SELECT * FROM " + b.syntax.QuoteIdent(rec.Table) +
		" WHERE " + b.syntax.QuoteIdent(rec.PrimaryKey) + " = " + args.bind(id)
	return Statement{Query: query, Args: args.args}, nil
}

// Insert writes the writable columns of values in catalog order. On stores
// without a last-insert id the statement returns the primary key.
func (b *Builder) Insert(rec *Record, values types.Row) (Statement, error) {
	cols := b.writableColumns(rec, values)
	if len(cols) == 0 {
		return Statement{}, noValidColumns(rec.Table)
	}
	args := b.newArgs()
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = b.syntax.QuoteIdent(c)
		marks[i] = args.bind(values[c])
	}
	query := "INSERT INTO " + b.syntax.QuoteIdent(rec.Table) +
		" (" + strings.Join(names, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
	if b.syntax.returning && rec.HasPrimaryKey() {
		query += " RETURNING " + b.syntax.QuoteIdent(rec.PrimaryKey)
	}
	return Statement{Query: query, Args: args.args}, nil
}

// Update sets the writable columns of values on the row addressed by id.
func (b *Builder) Update(rec *Record, id interface{}, values types.Row) (Statement, error) {
	if !rec.HasPrimaryKey() {
		return Statement{}, noPrimaryKey(rec.Table)
	}
	cols := b.writableColumns(rec, values)
	if len(cols) == 0 {
		return Statement{}, noValidColumns(rec.Table)
	}
	args := b.newArgs()
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = b.syntax.QuoteIdent(c) + " = " + args.bind(values[c])
	}
	query := "UPDATE " + b.syntax.QuoteIdent(rec.Table) + " SET " + strings.Join(sets, ", ") +
		" WHERE " + b.syntax.QuoteIdent(rec.PrimaryKey) + " = " + args.bind(id)
	return Statement{Query: query, Args: args.args}, nil
}

// Delete removes the row addressed by id.
func (b *Builder) Delete(rec *Record, id interface{}) (Statement, error) {
	if !rec.HasPrimaryKey() {
		return Statement{}, noPrimaryKey(rec.Table)
	}
	args := b.newArgs()
	query := "DELETE FROM " + b.syntax.QuoteIdent(rec.Table) +
		" WHERE " + b.syntax.QuoteIdent(rec.PrimaryKey) + " = " + args.bind(id)
	return Statement{Query: query, Args: args.args}, nil
}

// Search matches rows where any column, cast to text, contains q. Case
// sensitivity and NULL handling follow the store's LIKE.
func (b *Builder) Search(rec *Record, q string) Statement {
	args := b.newArgs()
	pattern := "%" + q + "%"
	clauses := make([]string, len(rec.Columns))
	for i, c := range rec.Columns {
		clauses[i] = "(CAST(" + b.syntax.QuoteIdent(c) + " AS " + b.syntax.textType + ") LIKE " + args.bind(pattern) + ")"
	}
	query := "SELECT * FROM " + b.syntax.QuoteIdent(rec.Table)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " OR ")
	}
	return Statement{Query: query, Args: args.args}
}

func (b *Builder) writableColumns(rec *Record, values types.Row) []string {
	cols := make([]string, 0, len(values))
	for _, c := range rec.Columns {
		if c == rec.PrimaryKey {
			continue
		}
		if _, ok := values[c]; ok {
			cols = append(cols, c)
		}
	}
	return cols
}
