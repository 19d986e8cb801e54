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
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func openTestManager(t *testing.T) Manager {
	t.Helper()
	cfg := DefaultConnectionConfig()
	cfg.DBName = filepath.Join(t.TempDir(), "test")
	cfg.HealthCheckInterval = 0
	cfg.EnableReconnect = false

	manager := NewManager(cfg)
	require.NoError(t, manager.Connect(context.Background()))
	t.Cleanup(func() { _ = manager.Disconnect() })
	return manager
}

func writeSeedFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func tableCount(t *testing.T, db *bun.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.NewRaw("SELECT COUNT(*) FROM ?", bun.Ident(table)).Scan(context.Background(), &n))
	return n
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements(`
-- schema
CREATE TABLE a (
  id INTEGER PRIMARY KEY
);

INSERT INTO a (id) VALUES (1);
INSERT INTO a (id) VALUES (2)
`)
	require.Len(t, stmts, 3)
	assert.Equal(t, "CREATE TABLE a ( id INTEGER PRIMARY KEY );", stmts[0])
	assert.Equal(t, "INSERT INTO a (id) VALUES (1);", stmts[1])
	assert.Equal(t, "INSERT INTO a (id) VALUES (2)", stmts[2])

	assert.Empty(t, splitStatements("-- only a comment\n\n"))
}

func TestSeedOrder(t *testing.T) {
	assert.Equal(t, 1, seedOrder("001_schema.sql"))
	assert.Equal(t, 20, seedOrder("20_data.sql"))
	assert.Equal(t, unorderedSeed, seedOrder("schema.sql"))
}

func TestSeederFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"common/010_views.sql":            {Data: []byte("SELECT 1;")},
		"common/002_data.sql":             {Data: []byte("SELECT 1;")},
		"common/schema.sql":               {Data: []byte("SELECT 1;")},
		"common/001_schema.SQL":           {Data: []byte("SELECT 1;")},
		"common/readme.txt":               {Data: []byte("not sql")},
		"environments/dev/001_dev.sql":    {Data: []byte("SELECT 1;")},
		"environments/prod/001_prod.sql":  {Data: []byte("SELECT 1;")},
		"environments/dev/nested/5_x.sql": {Data: []byte("SELECT 1;")},
	}

	files, err := NewSeeder(nil, fsys, "dev").Files()
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		names = append(names, f.Environment+"/"+f.Name)
	}
	assert.Equal(t, []string{
		"common/001_schema.SQL",
		"common/002_data.sql",
		"common/010_views.sql",
		"common/schema.sql",
		"dev/001_dev.sql",
		"dev/5_x.sql",
	}, names)

	files, err = NewSeeder(nil, fstest.MapFS{}, "dev").Files()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestSeederRun(t *testing.T) {
	root := t.TempDir()
	writeSeedFile(t, root, "common/002_data.sql", "INSERT INTO okr (objective) VALUES ('common');")
	writeSeedFile(t, root, "common/001_schema.sql", "CREATE TABLE okr (id INTEGER PRIMARY KEY AUTOINCREMENT, objective TEXT);")
	writeSeedFile(t, root, "environments/dev/001_dev.sql", "INSERT INTO okr (objective) VALUES ('dev');")
	writeSeedFile(t, root, "environments/prod/001_prod.sql", "INSERT INTO okr (objective) VALUES ('prod');")

	manager := openTestManager(t)
	require.NoError(t, NewDirSeeder(manager.GetDB(), root, "dev").Run(context.Background()))

	var objectives []string
	require.NoError(t, manager.GetDB().NewRaw("SELECT objective FROM okr ORDER BY id").Scan(context.Background(), &objectives))
	assert.Equal(t, []string{"common", "dev"}, objectives)
}

func TestSeederRollsBackFailingFile(t *testing.T) {
	root := t.TempDir()
	writeSeedFile(t, root, "common/001_schema.sql", "CREATE TABLE t (id INTEGER PRIMARY KEY);")
	writeSeedFile(t, root, "common/002_bad.sql", "INSERT INTO t (id) VALUES (1);\nINSERT INTO missing (id) VALUES (1);")

	manager := openTestManager(t)
	err := NewDirSeeder(manager.GetDB(), root, "").Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "002_bad.sql")
	assert.Equal(t, 0, tableCount(t, manager.GetDB(), "t"))
}

func TestManagerSeed(t *testing.T) {
	root := t.TempDir()
	writeSeedFile(t, root, "common/001_schema.sql", "CREATE TABLE t (id INTEGER PRIMARY KEY);")

	manager := openTestManager(t)
	require.NoError(t, manager.Seed(context.Background(), &SeedConfig{Enabled: false, Path: root}))
	exists, err := NewCatalog(manager).RelationExists(context.Background(), "t")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, manager.Seed(context.Background(), &SeedConfig{Enabled: true, Path: root}))
	exists, err = NewCatalog(manager).RelationExists(context.Background(), "t")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSeederMissingRoot(t *testing.T) {
	manager := openTestManager(t)
	seeder := NewDirSeeder(manager.GetDB(), filepath.Join(t.TempDir(), "absent"), "dev")
	assert.NoError(t, seeder.Run(context.Background()))
}
