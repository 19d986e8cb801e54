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

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tomoncle/tabula/database"
)

// EnvPrefix prefixes environment overrides, e.g. TABULA_SERVER_PORT.
const EnvPrefix = "TABULA"

// Config is the complete runtime configuration of the server.
type Config struct {
	Server   ServerConfig              `json:"server" yaml:"server" mapstructure:"server"`
	Database database.ConnectionConfig `json:"database" yaml:"database" mapstructure:"database"`
	Seed     database.SeedConfig       `json:"seed" yaml:"seed" mapstructure:"seed"`
	Log      LogConfig                 `json:"log" yaml:"log" mapstructure:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `json:"host" yaml:"host" mapstructure:"host"`
	Port            int           `json:"port" yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"min=0"`
	EnableMetrics   bool          `json:"enable_metrics" yaml:"enable_metrics" mapstructure:"enable_metrics"`
}

// Address is host:port for the listener.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig controls the logrus loggers.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal"`
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"oneof=text json"`
	File   string `json:"file" yaml:"file" mapstructure:"file"`
	JSON   bool   `json:"json" yaml:"json" mapstructure:"json"`
}

// DatabaseConfig returns the part of the configuration used to open the
// store.
func (c *Config) DatabaseConfig() *database.Config {
	return &database.Config{ConnectionConfig: c.Database, SeedConfig: c.Seed}
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// YAML renders the configuration with the database password masked.
func (c *Config) YAML() ([]byte, error) {
	redacted := *c
	if redacted.Database.Password != "" {
		redacted.Database.Password = "******"
	}
	return yaml.Marshal(&redacted)
}

// Load reads tabula.yaml from path (a file, or a directory to search; empty
// means the working directory and ./configs), then TABULA_* environment
// variables, then validates the result. A missing config file is not an
// error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if ext := filepath.Ext(path); ext == ".yaml" || ext == ".yml" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tabula")
		v.SetConfigType("yaml")
		if path != "" {
			v.AddConfigPath(path)
		}
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.enable_metrics", true)

	db := database.DefaultConnectionConfig()
	v.SetDefault("database.type", db.Type)
	v.SetDefault("database.host", db.Host)
	v.SetDefault("database.port", db.Port)
	v.SetDefault("database.username", db.Username)
	v.SetDefault("database.password", db.Password)
	v.SetDefault("database.dbname", db.DBName)
	v.SetDefault("database.sslmode", db.SSLMode)
	v.SetDefault("database.max_idle_conns", db.MaxIdleConns)
	v.SetDefault("database.max_open_conns", db.MaxOpenConns)
	v.SetDefault("database.conn_max_lifetime", db.ConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", db.ConnMaxIdleTime)
	v.SetDefault("database.connect_timeout", db.ConnectTimeout)
	v.SetDefault("database.read_timeout", db.ReadTimeout)
	v.SetDefault("database.write_timeout", db.WriteTimeout)
	v.SetDefault("database.enable_reconnect", db.EnableReconnect)
	v.SetDefault("database.reconnect_interval", db.ReconnectInterval)
	v.SetDefault("database.max_reconnect_tries", db.MaxReconnectTries)
	v.SetDefault("database.health_check_interval", db.HealthCheckInterval)
	v.SetDefault("database.enable_query_log", db.EnableQueryLog)
	v.SetDefault("database.slow_query_time", db.SlowQueryTime)

	v.SetDefault("seed.enabled", true)
	v.SetDefault("seed.path", database.DefaultSeedPath)
	v.SetDefault("seed.environment", "dev")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.json", false)
}
