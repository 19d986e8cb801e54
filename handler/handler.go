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

// Package handler exposes table operations over HTTP with echo.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/tomoncle/tabula/database"
	"github.com/tomoncle/tabula/repository"
	"github.com/tomoncle/tabula/types"
	"github.com/tomoncle/tabula/utils"
)

// TableService is implemented by *tabula.Service.
type TableService interface {
	Meta(ctx context.Context, table string) (*repository.Record, error)
	List(ctx context.Context, table string, page *types.PageRequest) ([]types.Row, error)
	Get(ctx context.Context, table, id string) (types.Row, error)
	Create(ctx context.Context, table string, payload types.Row) (types.Row, error)
	Update(ctx context.Context, table, id string, payload types.Row) (types.Row, error)
	Delete(ctx context.Context, table, id string) error
	Search(ctx context.Context, table, q string) ([]types.Row, error)
}

// HealthChecker reports store health. database.Manager implements it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) *database.HealthStatus
}

// TableHandler serves the /api/{table} routes.
type TableHandler struct {
	svc    TableService
	health HealthChecker
	logger *logrus.Logger
}

// NewTableHandler creates a handler. health may be nil, in which case
// /health always reports ok.
func NewTableHandler(svc TableService, health HealthChecker) *TableHandler {
	return &TableHandler{svc: svc, health: health, logger: utils.NewLogger("HTTP")}
}

// Meta handles GET /api/:table/meta
func (h *TableHandler) Meta(c echo.Context) error {
	rec, err := h.svc.Meta(c.Request().Context(), c.Param("table"))
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// List handles GET /api/:table with optional page and page_size.
func (h *TableHandler) List(c echo.Context) error {
	page, err := pageRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	}
	rows, err := h.svc.List(c.Request().Context(), c.Param("table"), page)
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}

// Get handles GET /api/:table/:id
func (h *TableHandler) Get(c echo.Context) error {
	row, err := h.svc.Get(c.Request().Context(), c.Param("table"), c.Param("id"))
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(http.StatusOK, row)
}

// Create handles POST /api/:table
func (h *TableHandler) Create(c echo.Context) error {
	payload, err := decodeRow(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid request body: "+err.Error()))
	}
	row, err := h.svc.Create(c.Request().Context(), c.Param("table"), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(http.StatusCreated, row)
}

// Update handles PUT /api/:table/:id
func (h *TableHandler) Update(c echo.Context) error {
	payload, err := decodeRow(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid request body: "+err.Error()))
	}
	row, err := h.svc.Update(c.Request().Context(), c.Param("table"), c.Param("id"), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(http.StatusOK, row)
}

// Delete handles DELETE /api/:table/:id
func (h *TableHandler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("table"), c.Param("id")); err != nil {
		return h.handleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Search handles GET /api/:table/search/:q
func (h *TableHandler) Search(c echo.Context) error {
	rows, err := h.svc.Search(c.Request().Context(), c.Param("table"), c.Param("q"))
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}

// HealthCheck handles GET /health
func (h *TableHandler) HealthCheck(c echo.Context) error {
	if h.health == nil {
		return c.JSON(http.StatusOK, map[string]bool{"healthy": true})
	}
	status := h.health.HealthCheck(c.Request().Context())
	if status == nil || !status.Healthy {
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	return c.JSON(http.StatusOK, status)
}

// decodeRow keeps JSON numbers exact: integers bind as int64 and only
// fractional or exponent forms become float64.
func decodeRow(c echo.Context) (types.Row, error) {
	var payload types.Row
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return types.Row{}, nil
	}
	for k, v := range payload {
		if n, ok := v.(json.Number); ok {
			payload[k] = numberValue(n)
		}
	}
	return payload, nil
}

func numberValue(n json.Number) interface{} {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func pageRequest(c echo.Context) (*types.PageRequest, error) {
	pageStr := c.QueryParam("page")
	if pageStr == "" {
		return nil, nil
	}
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		return nil, errors.New("Invalid page")
	}
	size := 0
	if sizeStr := c.QueryParam("page_size"); sizeStr != "" {
		size, err = strconv.Atoi(sizeStr)
		if err != nil || size < 1 || size > 1000 {
			return nil, errors.New("Invalid page_size (must be 1-1000)")
		}
	}
	return types.NewPageRequest(page, size), nil
}
