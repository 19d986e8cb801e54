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
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/tomoncle/tabula/repository"
	"github.com/tomoncle/tabula/types"
)

var errRowNotFound = &repository.Error{Kind: types.NotFound, Object: repository.ObjectRow}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) ErrorResponse {
	return ErrorResponse{Error: msg}
}

// StatusCode maps a table operation error to its HTTP status. A missing
// table is a bad request; only a missing row is 404.
func StatusCode(err error) int {
	switch repository.KindOf(err) {
	case types.InvalidRequest, types.NoPrimaryKey, types.NoValidColumns:
		return http.StatusBadRequest
	case types.NotFound:
		if errors.Is(err, errRowNotFound) {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *TableHandler) handleError(c echo.Context, err error) error {
	code := StatusCode(err)
	if code != http.StatusInternalServerError {
		return c.JSON(code, errorBody(err.Error()))
	}

	msg := err.Error()
	var re *repository.Error
	if errors.As(err, &re) {
		msg = re.Cause()
	}
	h.logger.WithFields(logrus.Fields{
		"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
		"req_uri":    c.Request().RequestURI,
	}).WithError(err).Error("Request failed")
	return c.JSON(code, errorBody("Internal server error: "+msg))
}
