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

package main

import (
	"context"
	"fmt"

	"github.com/tomoncle/tabula"
	"github.com/tomoncle/tabula/config"
	"github.com/tomoncle/tabula/database"
	"github.com/tomoncle/tabula/utils"
)

// loadConfig reads the configuration and applies its log settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	utils.ConfigureConsoleLogFormat(cfg.Log.Format)
	utils.ConfigureLogLevel(cfg.Log.Level)
	if err := utils.ConfigureFileLog(cfg.Log.File, cfg.Log.JSON); err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return cfg, nil
}

// openService connects to the store and builds the table service over it.
func openService(ctx context.Context, cfg *config.Config, opts ...tabula.Option) (database.Manager, *tabula.Service, error) {
	manager, err := database.Open(ctx, cfg.DatabaseConfig())
	if err != nil {
		return nil, nil, err
	}
	opts = append([]tabula.Option{tabula.WithSlowQueryTime(cfg.Database.SlowQueryTime)}, opts...)
	return manager, tabula.New(manager, opts...), nil
}
