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
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Querier is the subset of *sql.DB used to run row statements. Values are
// always passed as driver-bound arguments.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// StatementObserver is notified after every statement with its leading
// keyword (SELECT, INSERT, ...), elapsed time and error.
type StatementObserver func(operation string, elapsed time.Duration, err error)

// StatementRunner executes statements on a Querier, logging the statement
// and its argument values whenever the store rejects it.
type StatementRunner struct {
	conn     func() (Querier, error)
	logger   Logger
	slowTime time.Duration
	observer StatementObserver
}

// NewStatementRunner wraps a fixed db. A nil logger uses GetLogger().
func NewStatementRunner(db Querier, logger Logger, slowTime time.Duration) *StatementRunner {
	return newStatementRunner(func() (Querier, error) { return db, nil }, logger, slowTime)
}

// NewSourceStatementRunner looks the connection up from src on every
// statement, so it keeps working after the source reconnects.
func NewSourceStatementRunner(src DBSource, logger Logger, slowTime time.Duration) *StatementRunner {
	return newStatementRunner(func() (Querier, error) {
		db := src.GetDB()
		if db == nil {
			return nil, errNotConnected
		}
		return db.DB, nil
	}, logger, slowTime)
}

func newStatementRunner(conn func() (Querier, error), logger Logger, slowTime time.Duration) *StatementRunner {
	if logger == nil {
		logger = GetLogger()
	}
	return &StatementRunner{conn: conn, logger: logger, slowTime: slowTime}
}

// SetObserver installs fn to be called after each statement.
func (r *StatementRunner) SetObserver(fn StatementObserver) {
	r.observer = fn
}

func (r *StatementRunner) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := time.Now()
	db, err := r.conn()
	if err != nil {
		r.after(query, args, start, err)
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	r.after(query, args, start, err)
	return rows, err
}

func (r *StatementRunner) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	db, err := r.conn()
	if err != nil {
		r.after(query, args, start, err)
		return nil, err
	}
	res, err := db.ExecContext(ctx, query, args...)
	r.after(query, args, start, err)
	return res, err
}

// LogFailure reports a failure that surfaced after the statement returned,
// e.g. while scanning rows.
func (r *StatementRunner) LogFailure(query string, args []interface{}, err error) {
	_, kind := IsSqlError(err)
	r.logger.Error("Statement failed",
		"statement", query,
		"args", fmt.Sprintf("%v", args),
		"sql_error", kind.String(),
		"error", err,
	)
}

func (r *StatementRunner) after(query string, args []interface{}, start time.Time, err error) {
	elapsed := time.Since(start)
	if r.observer != nil {
		r.observer(statementOperation(query), elapsed, err)
	}
	if err != nil {
		r.LogFailure(query, args, err)
		return
	}
	if r.slowTime > 0 && elapsed > r.slowTime {
		r.logger.Warn("Database slow query detected",
			"duration", elapsed.Round(time.Microsecond),
			"slow_threshold", r.slowTime,
			"statement", query,
		)
	}
}

func statementOperation(query string) string {
	query = strings.TrimSpace(query)
	if i := strings.IndexAny(query, " \t\n"); i > 0 {
		return strings.ToUpper(query[:i])
	}
	return strings.ToUpper(query)
}
