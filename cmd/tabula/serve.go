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
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/tomoncle/tabula"
	"github.com/tomoncle/tabula/handler"
	"github.com/tomoncle/tabula/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := utils.NewLogger("SERVER")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var metrics *handler.Metrics
		var opts []tabula.Option
		if cfg.Server.EnableMetrics {
			metrics = handler.NewMetrics("tabula")
			opts = append(opts, tabula.WithStatementObserver(metrics.ObserveStatement))
		}

		manager, svc, err := openService(ctx, cfg, opts...)
		if err != nil {
			return err
		}
		defer func() {
			if err := manager.Disconnect(); err != nil {
				log.WithError(err).Warn("Failed to close database")
			}
		}()

		e := echo.New()
		e.HideBanner = true
		e.HidePort = true
		e.Server.ReadTimeout = cfg.Server.ReadTimeout
		e.Server.WriteTimeout = cfg.Server.WriteTimeout
		handler.SetupRoutes(e, handler.NewTableHandler(svc, manager), metrics)

		errCh := make(chan error, 1)
		go func() {
			log.Infof("Listening on %s", cfg.Server.Address())
			if err := e.Start(cfg.Server.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	},
}
