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

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupRoutes registers the table API, /health and, when m is not nil,
// /metrics.
func SetupRoutes(e *echo.Echo, h *TableHandler, m *Metrics) {
	// Middleware
	e.Use(middleware.Recover())
	e.Use(RequestID())
	e.Use(RequestLogger(h.logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
	}))
	if m != nil {
		e.Use(m.Middleware())
		e.GET("/metrics", m.Handler())
	}

	e.GET("/health", h.HealthCheck)

	// API routes
	api := e.Group("/api")
	api.GET("/:table/meta", h.Meta)
	api.GET("/:table/search/:q", h.Search)
	api.GET("/:table", h.List)
	api.POST("/:table", h.Create)
	api.GET("/:table/:id", h.Get)
	api.PUT("/:table/:id", h.Update)
	api.DELETE("/:table/:id", h.Delete)

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
	}))
}
