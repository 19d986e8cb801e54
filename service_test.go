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
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/tomoncle/tabula/database"
	"github.com/tomoncle/tabula/repository"
	"github.com/tomoncle/tabula/types"
)

const okrDDL = `CREATE TABLE okr (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	objective TEXT,
	keyreesulttext TEXT,
	keyresultmetric INTEGER,
	unit TEXT,
	targetdate TEXT,
	createdon TEXT,
	modifiedon TEXT,
	modifiedtime TEXT
)`

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func openTestManager(t *testing.T) database.Manager {
	t.Helper()
	manager := openEmptyManager(t)
	_, err := manager.GetDB().ExecContext(context.Background(), okrDDL)
	require.NoError(t, err)
	return manager
}

func openEmptyManager(t *testing.T) database.Manager {
	t.Helper()
	cfg := database.DefaultConnectionConfig()
	cfg.DBName = filepath.Join(t.TempDir(), "tabula")
	cfg.HealthCheckInterval = 0
	cfg.EnableReconnect = false

	manager := database.NewManager(cfg)
	require.NoError(t, manager.Connect(context.Background()))
	t.Cleanup(func() { _ = manager.Disconnect() })
	return manager
}

func newTestService(t *testing.T, clock *testClock) (*Service, *bun.DB) {
	t.Helper()
	manager := openTestManager(t)
	return New(manager, WithClock(clock.Now)), manager.GetDB()
}

func countRows(t *testing.T, db *bun.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.NewRaw("SELECT COUNT(*) FROM ?", bun.Ident(table)).Scan(context.Background(), &n))
	return n
}

func TestServiceRoundTrip(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 6, 1, 10, 30, 0, 0, time.Local)}
	svc, db := newTestService(t, clock)
	ctx := context.Background()

	created, err := svc.Create(ctx, "okr", types.Row{
		"objective":       "Grow revenue",
		"keyreesulttext":  "Increase sales",
		"keyresultmetric": 10,
		"unit":            "percent",
		"targetdate":      "2025-12-31",
	})
	require.NoError(t, err)
	assert.Equal(t, types.Row{
		"id":              int64(1),
		"objective":       "Grow revenue",
		"keyreesulttext":  "Increase sales",
		"keyresultmetric": 10,
		"unit":            "percent",
		"targetdate":      "2025-12-31",
		"createdon":       "2025-06-01",
		"modifiedon":      "2025-06-01",
		"modifiedtime":    "10:30:00",
	}, created)

	clock.Set(time.Date(2025, 6, 2, 11, 45, 30, 0, time.Local))
	updated, err := svc.Update(ctx, "okr", "1", types.Row{"objective": "Grow revenue faster"})
	require.NoError(t, err)
	assert.Equal(t, types.Row{
		"id":           "1",
		"objective":    "Grow revenue faster",
		"modifiedon":   "2025-06-02",
		"modifiedtime": "11:45:30",
	}, updated)

	row, err := svc.Get(ctx, "okr", "1")
	require.NoError(t, err)
	assert.Equal(t, "Grow revenue faster", row["objective"])
	assert.Equal(t, "2025-06-01", row["createdon"])
	assert.Equal(t, "2025-06-02", row["modifiedon"])
	assert.Equal(t, "11:45:30", row["modifiedtime"])
	assert.Equal(t, "Increase sales", row["keyreesulttext"])
	assert.Equal(t, int64(10), row["keyresultmetric"])
	assert.Equal(t, "percent", row["unit"])

	err = svc.Delete(ctx, "okr", "99999")
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, 1, countRows(t, db, "okr"))

	require.NoError(t, svc.Delete(ctx, "okr", "1"))
	_, err = svc.Get(ctx, "okr", "1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestServiceSearch(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 6, 1, 10, 30, 0, 0, time.Local)}
	svc, _ := newTestService(t, clock)
	ctx := context.Background()

	for _, unit := range []string{"percent", "units", "percentage points"} {
		_, err := svc.Create(ctx, "okr", types.Row{"objective": "o", "unit": unit})
		require.NoError(t, err)
	}

	rows, err := svc.Search(ctx, "okr", "percent")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Contains(t, row["unit"], "percent")
	}

	rows, err = svc.Search(ctx, "okr", "2025-06-01")
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = svc.Search(ctx, "okr", "nothing matches this")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestServiceList(t *testing.T) {
	clock := &testClock{now: time.Now()}
	svc, _ := newTestService(t, clock)
	ctx := context.Background()

	for _, o := range []string{"a", "b", "c"} {
		_, err := svc.Create(ctx, "okr", types.Row{"objective": o})
		require.NoError(t, err)
	}

	rows, err := svc.List(ctx, "okr", nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "c", rows[0]["objective"])
	assert.Equal(t, "a", rows[2]["objective"])

	rows, err = svc.List(ctx, "okr", types.NewPageRequest(2, 2))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0]["objective"])
}

func TestServiceRejections(t *testing.T) {
	svc, db := newTestService(t, &testClock{now: time.Now()})
	ctx := context.Background()

	_, err := svc.Meta(ctx, "bogus")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, types.NotFound, repository.KindOf(err))

	_, err = svc.Meta(ctx, "")
	assert.ErrorIs(t, err, repository.ErrInvalidRequest)

	_, err = svc.Create(ctx, "okr", types.Row{"nonexistent_field": "x"})
	assert.ErrorIs(t, err, repository.ErrNoValidColumns)
	assert.Equal(t, 0, countRows(t, db, "okr"))

	_, err = svc.Create(ctx, "okr", types.Row{"id": 5})
	assert.ErrorIs(t, err, repository.ErrNoValidColumns)

	_, err = svc.Update(ctx, "okr", "1", types.Row{})
	assert.ErrorIs(t, err, repository.ErrNoValidColumns)

	_, err = svc.Update(ctx, "okr", "1", types.Row{"objective": "x"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.List(ctx, "bogus", nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestServiceMetaIsCached(t *testing.T) {
	svc, db := newTestService(t, &testClock{now: time.Now()})
	ctx := context.Background()

	first, err := svc.Meta(ctx, "okr")
	require.NoError(t, err)
	assert.Equal(t, "id", first.PrimaryKey)
	assert.Equal(t, []string{
		"id", "objective", "keyreesulttext", "keyresultmetric", "unit",
		"targetdate", "createdon", "modifiedon", "modifiedtime",
	}, first.Columns)

	// a schema change after the first lookup is not observed
	_, err = db.ExecContext(ctx, "ALTER TABLE okr ADD COLUMN extra TEXT")
	require.NoError(t, err)

	second, err := svc.Meta(ctx, "okr")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, []string{"okr"}, svc.Tables())
}

func TestServiceView(t *testing.T) {
	svc, db := newTestService(t, &testClock{now: time.Now()})
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "CREATE VIEW okr_units AS SELECT unit, objective FROM okr")
	require.NoError(t, err)

	rec, err := svc.Meta(ctx, "okr_units")
	require.NoError(t, err)
	assert.Equal(t, []string{"unit", "objective"}, rec.Columns)
	assert.Equal(t, "unit", rec.PrimaryKey)

	rows, err := svc.List(ctx, "okr_units", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestServiceQuotedNames(t *testing.T) {
	svc, db := newTestService(t, &testClock{now: time.Now()})
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `CREATE TABLE "odd ""name""" ("the id" INTEGER PRIMARY KEY, "la""bel" TEXT)`)
	require.NoError(t, err)

	created, err := svc.Create(ctx, `odd "name"`, types.Row{`la"bel`: "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created["the id"])

	row, err := svc.Get(ctx, `odd "name"`, "1")
	require.NoError(t, err)
	assert.Equal(t, "x", row[`la"bel`])
}

func TestServiceTextPrimaryKey(t *testing.T) {
	svc, db := newTestService(t, &testClock{now: time.Now()})
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `CREATE TABLE codes (code TEXT PRIMARY KEY, label TEXT)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO codes (code, label) VALUES ('007', 'bond'), ('7', 'seven')`)
	require.NoError(t, err)

	row, err := svc.Get(ctx, "codes", "007")
	require.NoError(t, err)
	assert.Equal(t, types.Row{"code": "007", "label": "bond"}, row)

	updated, err := svc.Update(ctx, "codes", "007", types.Row{"label": "james"})
	require.NoError(t, err)
	assert.Equal(t, types.Row{"code": "007", "label": "james"}, updated)

	row, err = svc.Get(ctx, "codes", "7")
	require.NoError(t, err)
	assert.Equal(t, "seven", row["label"])

	require.NoError(t, svc.Delete(ctx, "codes", "007"))
	_, err = svc.Get(ctx, "codes", "007")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, 1, countRows(t, db, "codes"))
}

func TestServiceSurvivesReconnect(t *testing.T) {
	manager := openTestManager(t)
	svc := New(manager)
	ctx := context.Background()

	_, err := svc.Create(ctx, "okr", types.Row{"objective": "before"})
	require.NoError(t, err)

	require.NoError(t, manager.Reconnect(ctx))

	rows, err := svc.List(ctx, "okr", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "before", rows[0]["objective"])

	_, err = svc.Update(ctx, "okr", "1", types.Row{"objective": "after"})
	require.NoError(t, err)
	row, err := svc.Get(ctx, "okr", "1")
	require.NoError(t, err)
	assert.Equal(t, "after", row["objective"])

	_, err = svc.Meta(ctx, "okr_missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, manager.Disconnect())
	_, err = svc.List(ctx, "okr", nil)
	assert.ErrorIs(t, err, repository.ErrInternal)
}

func TestServiceOverShippedSeed(t *testing.T) {
	manager := openEmptyManager(t)
	ctx := context.Background()
	require.NoError(t, database.NewDirSeeder(manager.GetDB(), filepath.Join("configs", "sql"), "dev").Run(ctx))

	clock := &testClock{now: time.Date(2025, 6, 1, 10, 30, 0, 0, time.Local)}
	svc := New(manager, WithClock(clock.Now))

	rec, err := svc.Meta(ctx, "okr")
	require.NoError(t, err)
	assert.Equal(t, "id", rec.PrimaryKey)
	assert.Equal(t, []string{
		"id", "objective", "keyreesulttext", "keyresultmetric", "unit",
		"targetdate", "createdon", "modifiedon", "modifiedtime",
	}, rec.Columns)

	created, err := svc.Create(ctx, "okr", types.Row{
		"objective":       "Grow revenue",
		"keyreesulttext":  "Increase sales",
		"keyresultmetric": int64(10),
		"unit":            "percent",
		"targetdate":      "2025-12-31",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), created["id"])
	assert.Equal(t, "2025-06-01", created["createdon"])

	summary, err := svc.List(ctx, "okr_summary", nil)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, "Grow revenue", summary[0]["objective"])

	row, err := svc.Get(ctx, "okr_summary", "1")
	require.NoError(t, err)
	assert.Equal(t, types.Row{
		"id":              int64(1),
		"objective":       "Ship v1",
		"keyresultmetric": int64(40),
		"unit":            "percent",
		"targetdate":      "2025-06-30",
	}, row)
}
