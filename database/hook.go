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
	"errors"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

var failedQuery = color.New(color.FgRed, color.Bold).SprintFunc()

// QueryHook logs failing and slow queries issued through bun. Catalog
// lookups go through bun; row statements go through StatementRunner which
// reports the same way.
type QueryHook struct {
	logger   Logger
	slowTime time.Duration
}

var _ bun.QueryHook = (*QueryHook)(nil)

// NewQueryHook returns a hook logging to logger. slowTime <= 0 disables
// slow-query warnings.
func NewQueryHook(logger Logger, slowTime time.Duration) *QueryHook {
	if logger == nil {
		logger = GetLogger()
	}
	return &QueryHook{logger: logger, slowTime: slowTime}
}

func (h *QueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	duration := time.Since(event.StartTime)
	switch {
	case event.Err == nil:
	case errors.Is(event.Err, sql.ErrNoRows), errors.Is(event.Err, sql.ErrTxDone):
		return
	default:
		_, kind := IsSqlError(event.Err)
		h.logger.Error("Query failed",
			"operation", event.Operation(),
			"query", failedQuery(event.Query),
			"sql_error", kind.String(),
			"error", event.Err,
		)
		return
	}

	if h.slowTime > 0 && duration > h.slowTime {
		h.logger.Warn("Database slow query detected",
			"duration", duration.Round(time.Microsecond),
			"slow_threshold", h.slowTime,
			"query", event.Query,
		)
	}
}
