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
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

const (
	// DefaultSeedPath is used when SeedConfig.Path is empty.
	DefaultSeedPath = "configs/sql"

	commonSeedDir = "common"
	unorderedSeed = 999
)

var seedOrderPattern = regexp.MustCompile(`^(\d+)_`)

// SeedFile is one .sql file found by a Seeder.
type SeedFile struct {
	Path        string
	Name        string
	Order       int
	Environment string
}

// Seeder runs the .sql files of a seed tree against the store. Files under
// common/ run first, then environments/<env>/; inside a directory they run in
// the order of their "NNN_" prefix, unprefixed files last.
type Seeder struct {
	db          *bun.DB
	fsys        fs.FS
	environment string
	logger      Logger
}

// NewSeeder reads the seed tree from fsys.
func NewSeeder(db *bun.DB, fsys fs.FS, environment string) *Seeder {
	return &Seeder{db: db, fsys: fsys, environment: environment, logger: GetLogger()}
}

// NewDirSeeder reads the seed tree from the directory root.
func NewDirSeeder(db *bun.DB, root, environment string) *Seeder {
	if root == "" {
		root = DefaultSeedPath
	}
	return NewSeeder(db, os.DirFS(root), environment)
}

func (s *Seeder) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Run executes every seed file, each in its own transaction, and stops at the
// first file that fails. A missing seed tree is not an error.
func (s *Seeder) Run(ctx context.Context) error {
	files, err := s.Files()
	if err != nil {
		return fmt.Errorf("failed to list seed files: %w", err)
	}
	if len(files) == 0 {
		s.logger.Info("No seed files found", "environment", s.environment)
		return nil
	}

	for _, f := range files {
		start := time.Now()
		rows, err := s.apply(ctx, f)
		if err != nil {
			s.logger.Error("Seed file failed", "file", f.Path, "error", err)
			return fmt.Errorf("seed file %s failed: %w", f.Path, err)
		}
		s.logger.Info("Seed file applied", "file", f.Path, "duration", time.Since(start).String(), "rows_affected", rows)
	}
	s.logger.Info("Seeding completed", "files", len(files), "environment", s.environment)
	return nil
}

// Files lists the seed files in execution order.
func (s *Seeder) Files() ([]SeedFile, error) {
	files, err := s.scan(commonSeedDir, commonSeedDir)
	if err != nil {
		return nil, err
	}
	if s.environment != "" {
		envFiles, err := s.scan(path.Join("environments", s.environment), s.environment)
		if err != nil {
			return nil, err
		}
		files = append(files, envFiles...)
	}
	return files, nil
}

func (s *Seeder) scan(dir, environment string) ([]SeedFile, error) {
	var files []SeedFile
	err := fs.WalkDir(s.fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(path.Ext(d.Name()), ".sql") {
			return nil
		}
		files = append(files, SeedFile{Path: p, Name: d.Name(), Order: seedOrder(d.Name()), Environment: environment})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Order != files[j].Order {
			return files[i].Order < files[j].Order
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

func (s *Seeder) apply(ctx context.Context, f SeedFile) (int64, error) {
	content, err := fs.ReadFile(s.fsys, f.Path)
	if err != nil {
		return 0, err
	}
	statements := splitStatements(string(content))
	if len(statements) == 0 {
		return 0, nil
	}

	var total int64
	err = s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, stmt := range statements {
			res, err := tx.ExecContext(ctx, stmt)
			if err != nil {
				return fmt.Errorf("statement %q: %w", stmt, err)
			}
			if n, err := res.RowsAffected(); err == nil {
				total += n
			}
		}
		return nil
	})
	return total, err
}

// seedOrder reads the numeric prefix of "012_name.sql".
func seedOrder(name string) int {
	m := seedOrderPattern.FindStringSubmatch(name)
	if len(m) < 2 {
		return unorderedSeed
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return unorderedSeed
	}
	return n
}

// splitStatements splits on lines ending with ';' and drops "--" comment
// lines. Statements must not put a ';' at the end of a line inside a string.
func splitStatements(content string) []string {
	var (
		out     []string
		current strings.Builder
	)
	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			out = append(out, stmt)
		}
		current.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteByte(' ')
		if strings.HasSuffix(line, ";") {
			flush()
		}
	}
	flush()
	return out
}
