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
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
)

var errNotConnected = errors.New("database not connected")

// driver knows how to reach one kind of store.
type driver struct {
	sqlName string
	dsn     func(cfg *ConnectionConfig) string
	dialect func() schema.Dialect
}

var (
	mysqlDriver    = driver{sqlName: "mysql", dsn: mysqlDSN, dialect: func() schema.Dialect { return mysqldialect.New() }}
	postgresDriver = driver{sqlName: "postgres", dsn: postgresDSN, dialect: func() schema.Dialect { return pgdialect.New() }}
	sqliteDriver   = driver{sqlName: sqliteshim.ShimName, dsn: func(cfg *ConnectionConfig) string { return sqliteDSN(cfg.DBName) }, dialect: func() schema.Dialect { return sqlitedialect.New() }}
)

var drivers = map[string]driver{
	"mysql":      mysqlDriver,
	"postgres":   postgresDriver,
	"postgresql": postgresDriver,
	"sqlite":     sqliteDriver,
	"sqlite3":    sqliteDriver,
}

func lookupDriver(typ string) (driver, error) {
	d, ok := drivers[strings.ToLower(typ)]
	if !ok {
		return driver{}, fmt.Errorf("unsupported database type: %s", typ)
	}
	return d, nil
}

// mysqlDSN sets clientFoundRows so UPDATE reports matched rather than
// changed rows.
func mysqlDSN(cfg *ConnectionConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.DBName
	mc.Params = map[string]string{"charset": "utf8mb4"}
	mc.Loc = time.Local
	mc.ClientFoundRows = true
	mc.Timeout = cfg.ConnectTimeout
	mc.ReadTimeout = cfg.ReadTimeout
	mc.WriteTimeout = cfg.WriteTimeout
	return mc.FormatDSN()
}

func postgresDSN(cfg *ConnectionConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	if cfg.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func sqliteDSN(name string) string {
	switch {
	case name == ":memory:":
		return "file::memory:?cache=shared"
	case strings.HasPrefix(name, "file:"), strings.HasSuffix(name, ".db"), strings.HasSuffix(name, ".sqlite"):
		return name
	default:
		return name + ".db"
	}
}

type manager struct {
	config *ConnectionConfig
	logger Logger

	mu        sync.RWMutex
	db        *bun.DB
	lastError error

	reconnectTries int
	stopProbe      chan struct{}
	probeDone      chan struct{}
}

// NewManager returns a Manager for cfg. A nil cfg means the sqlite default.
// The store type is checked on Connect.
func NewManager(cfg *ConnectionConfig) Manager {
	if cfg == nil {
		cfg = DefaultConnectionConfig()
	}
	return &manager{config: cfg, logger: GetLogger()}
}

func (m *manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		return nil
	}

	db, err := m.open()
	if err != nil {
		m.lastError = err
		return fmt.Errorf("failed to create database connection: %w", err)
	}

	timeout := m.config.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		m.lastError = err
		_ = db.Close()
		return fmt.Errorf("database connection test failed: %w", err)
	}

	m.db = db
	m.lastError = nil
	m.reconnectTries = 0
	if m.config.HealthCheckInterval > 0 && m.stopProbe == nil {
		m.stopProbe = make(chan struct{})
		m.probeDone = make(chan struct{})
		go m.probe(m.stopProbe, m.probeDone)
	}

	m.logger.Info("Database connected", "type", m.config.Type, "host", m.config.Host, "dbname", m.config.DBName)
	return nil
}

func (m *manager) open() (*bun.DB, error) {
	d, err := lookupDriver(m.config.Type)
	if err != nil {
		return nil, err
	}

	dsn := d.dsn(m.config)
	sqlDB, err := sql.Open(d.sqlName, dsn)
	if err != nil {
		return nil, err
	}

	maxOpen, maxIdle := m.config.MaxOpenConns, m.config.MaxIdleConns
	lifetime, idleTime := m.config.ConnMaxLifetime, m.config.ConnMaxIdleTime
	if strings.Contains(dsn, ":memory:") {
		// each pooled connection would see its own empty database
		maxOpen, maxIdle, lifetime, idleTime = 1, 1, 0, 0
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(lifetime)
	sqlDB.SetConnMaxIdleTime(idleTime)

	db := bun.NewDB(sqlDB, d.dialect())
	db.AddQueryHook(NewQueryHook(m.logger, m.config.SlowQueryTime))
	if m.config.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true), bundebug.FromEnv("BUNDEBUG")))
	}
	return db, nil
}

func (m *manager) Disconnect() error {
	m.mu.Lock()
	stop, done := m.stopProbe, m.probeDone
	m.stopProbe, m.probeDone = nil, nil
	db := m.db
	m.db = nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		m.logger.Error("Failed to close database connection", "error", err)
		return err
	}
	m.logger.Info("Database connection closed")
	return nil
}

func (m *manager) Reconnect(ctx context.Context) error {
	m.logger.Info("Reconnecting to the database")
	m.mu.Lock()
	db := m.db
	m.db = nil
	m.mu.Unlock()
	if db != nil {
		if err := db.Close(); err != nil {
			m.logger.Warn("Error closing previous connection", "error", err)
		}
	}
	return m.Connect(ctx)
}

func (m *manager) Ping(ctx context.Context) error {
	db := m.GetDB()
	if db == nil {
		return errNotConnected
	}
	return db.PingContext(ctx)
}

func (m *manager) GetDB() *bun.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

func (m *manager) HealthCheck(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{LastCheckTime: start}

	db := m.GetDB()
	if db == nil {
		status.LastError = errNotConnected.Error()
		return status
	}
	status.Dialect = db.Dialect().Name().String()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := db.PingContext(pingCtx)
	status.ResponseTime = time.Since(start)
	status.Pool = m.Stats()

	m.mu.Lock()
	m.lastError = err
	m.mu.Unlock()
	if err != nil {
		status.LastError = err.Error()
		return status
	}
	status.Healthy = true
	status.Connected = true
	return status
}

// probe runs HealthCheck every HealthCheckInterval until stop is closed and
// reconnects when the store stops answering.
func (m *manager) probe(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			status := m.HealthCheck(ctx)
			cancel()
			if !status.Healthy && m.config.EnableReconnect {
				m.reconnect(stop)
			}
		}
	}
}

func (m *manager) reconnect(stop <-chan struct{}) {
	if m.reconnectTries >= m.config.MaxReconnectTries {
		m.logger.Error("Max reconnect attempts reached", "tries", m.reconnectTries)
		return
	}
	m.reconnectTries++

	select {
	case <-stop:
		return
	case <-time.After(m.config.ReconnectInterval):
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.config.ConnectTimeout)
	defer cancel()
	if err := m.Reconnect(ctx); err != nil {
		m.logger.Error("Reconnect failed", "error", err, "try", m.reconnectTries)
		return
	}
	m.logger.Info("Reconnect succeeded")
}

func (m *manager) Stats() DBStats {
	db := m.GetDB()
	if db == nil {
		return DBStats{}
	}
	s := db.DB.Stats()
	return DBStats{
		MaxOpenConns:      s.MaxOpenConnections,
		OpenConns:         s.OpenConnections,
		InUse:             s.InUse,
		Idle:              s.Idle,
		WaitCount:         s.WaitCount,
		WaitDuration:      s.WaitDuration,
		MaxIdleClosed:     s.MaxIdleClosed,
		MaxLifetimeClosed: s.MaxLifetimeClosed,
	}
}

func (m *manager) Seed(ctx context.Context, cfg *SeedConfig) error {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	db := m.GetDB()
	if db == nil {
		return errNotConnected
	}
	seeder := NewDirSeeder(db, cfg.Path, cfg.Environment)
	seeder.SetLogger(m.logger)
	return seeder.Run(ctx)
}

func (m *manager) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	m.mu.Lock()
	m.logger = logger
	m.mu.Unlock()
}
