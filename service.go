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

package tabula

import (
	"context"
	"time"

	"github.com/tomoncle/tabula/database"
	"github.com/tomoncle/tabula/repository"
	"github.com/tomoncle/tabula/types"
)

// Service serves list, get, create, update, delete, search and metadata
// requests for any table or view of the store. Every call resolves the
// table through the metadata cache first.
type Service struct {
	cache   *repository.Cache
	repo    *repository.TableRepository
	stamper *repository.Stamper
	logger  database.Logger
}

type options struct {
	logger   database.Logger
	now      func() time.Time
	slowTime time.Duration
	observer database.StatementObserver
}

type Option func(*options)

// WithLogger sets the logger for failed operations and statements.
func WithLogger(logger database.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock sets the clock used for createdon/modifiedon/modifiedtime.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSlowQueryTime logs statements slower than d.
func WithSlowQueryTime(d time.Duration) Option {
	return func(o *options) { o.slowTime = d }
}

// WithStatementObserver reports every executed statement to fn.
func WithStatementObserver(fn database.StatementObserver) Option {
	return func(o *options) { o.observer = fn }
}

// New builds a Service over the connection src hands out. The connection
// is looked up per call, so a Manager may Reconnect underneath it. Schema
// lookups go through bun; row statements run on the underlying *sql.DB
// with driver-bound arguments.
func New(src database.DBSource, opts ...Option) *Service {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = database.GetLogger()
	}

	runner := database.NewSourceStatementRunner(src, o.logger, o.slowTime)
	if o.observer != nil {
		runner.SetObserver(o.observer)
	}
	catalog := database.NewCatalog(src)
	cache := repository.NewCache(repository.NewResolver(catalog))
	repo := repository.NewTableRepository(runner, repository.SyntaxFor(catalog.Dialect()))

	return NewService(cache, repo, repository.NewStamper(o.now), o.logger)
}

// NewService assembles a Service from its parts. A nil stamper uses the
// wall clock and a nil logger uses database.GetLogger().
func NewService(cache *repository.Cache, repo *repository.TableRepository, stamper *repository.Stamper, logger database.Logger) *Service {
	if stamper == nil {
		stamper = repository.NewStamper(nil)
	}
	if logger == nil {
		logger = database.GetLogger()
	}
	return &Service{cache: cache, repo: repo, stamper: stamper, logger: logger}
}

// Tables lists the tables whose metadata is cached.
func (s *Service) Tables() []string {
	return s.cache.Tables()
}

// Meta returns the columns and primary key of table.
func (s *Service) Meta(ctx context.Context, table string) (*repository.Record, error) {
	rec, err := s.cache.Get(ctx, table)
	if err != nil {
		return nil, s.fail("meta", table, err)
	}
	return rec, nil
}

// List returns all rows of table, or one page of them when page is set.
func (s *Service) List(ctx context.Context, table string, page *types.PageRequest) ([]types.Row, error) {
	rec, err := s.cache.Get(ctx, table)
	if err != nil {
		return nil, s.fail("list", table, err)
	}
	rows, err := s.repo.List(ctx, rec, page)
	if err != nil {
		return nil, s.fail("list", table, err)
	}
	return rows, nil
}

// Get returns the row of table whose primary key is id.
func (s *Service) Get(ctx context.Context, table, id string) (types.Row, error) {
	rec, err := s.cache.Get(ctx, table)
	if err != nil {
		return nil, s.fail("get", table, err)
	}
	row, err := s.repo.Get(ctx, rec, id)
	if err != nil {
		return nil, s.fail("get", table, err)
	}
	return row, nil
}

// Create inserts the recognized fields of payload plus server timestamps
// and returns them together with the assigned primary key.
func (s *Service) Create(ctx context.Context, table string, payload types.Row) (types.Row, error) {
	rec, err := s.cache.Get(ctx, table)
	if err != nil {
		return nil, s.fail("create", table, err)
	}
	fields, err := rec.RequireWritable(payload)
	if err != nil {
		return nil, s.fail("create", table, err)
	}

	values := s.stamper.OnCreate(rec, fields)
	id, err := s.repo.Insert(ctx, rec, values)
	if err != nil {
		return nil, s.fail("create", table, err)
	}

	result := values.Clone()
	if rec.HasPrimaryKey() && id != nil {
		result.Merge(types.Row{rec.PrimaryKey: id})
	}
	return result, nil
}

// Update writes the recognized fields of payload plus modification
// timestamps to the row addressed by id.
func (s *Service) Update(ctx context.Context, table, id string, payload types.Row) (types.Row, error) {
	rec, err := s.cache.Get(ctx, table)
	if err != nil {
		return nil, s.fail("update", table, err)
	}
	if err := rec.RequirePrimaryKey(); err != nil {
		return nil, s.fail("update", table, err)
	}
	fields, err := rec.RequireWritable(payload)
	if err != nil {
		return nil, s.fail("update", table, err)
	}

	values := s.stamper.OnUpdate(rec, fields)
	if err := s.repo.Update(ctx, rec, id, values); err != nil {
		return nil, s.fail("update", table, err)
	}

	return values.Clone().Merge(types.Row{rec.PrimaryKey: id}), nil
}

// Delete removes the row addressed by id.
func (s *Service) Delete(ctx context.Context, table, id string) error {
	rec, err := s.cache.Get(ctx, table)
	if err != nil {
		return s.fail("delete", table, err)
	}
	if err := s.repo.Delete(ctx, rec, id); err != nil {
		return s.fail("delete", table, err)
	}
	return nil
}

// Search returns the rows of table in which any column contains q.
func (s *Service) Search(ctx context.Context, table, q string) ([]types.Row, error) {
	rec, err := s.cache.Get(ctx, table)
	if err != nil {
		return nil, s.fail("search", table, err)
	}
	rows, err := s.repo.Search(ctx, rec, q)
	if err != nil {
		return nil, s.fail("search", table, err)
	}
	return rows, nil
}

func (s *Service) fail(operation, table string, err error) error {
	if repository.KindOf(err) == types.Internal {
		s.logger.Error("Table operation failed", "operation", operation, "table", table, "error", err)
	} else {
		s.logger.Debug("Table operation rejected", "operation", operation, "table", table, "error", err)
	}
	return err
}
