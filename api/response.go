// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/blinklabs-io/vedao/governance"
)

type ErrorBody struct {
	Kind     string `json:"kind"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type HealthResponse struct {
	IsHealthy bool `json:"is_healthy"`
}

type TreasuryResponse struct {
	Account       string `json:"account"`
	Balance       uint64 `json:"balance"`
	TotalDeposits uint64 `json:"totalDeposits"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind string, category string, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorBody{
			Kind:     kind,
			Category: category,
			Message:  message,
		},
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, "BadRequest", string(governance.CategoryValidation), message)
}

// statusOf maps a governance error to its HTTP status
func statusOf(err error) int {
	switch {
	case errors.Is(err, governance.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, governance.ErrProposalNotFound),
		errors.Is(err, governance.ErrNotInitialized),
		errors.Is(err, governance.ErrNoEscrow),
		errors.Is(err, governance.ErrVoteRecordNotFound):
		return http.StatusNotFound
	}
	switch governance.CategoryOf(err) {
	case governance.CategoryValidation:
		return http.StatusBadRequest
	case governance.CategoryAuthorization:
		return http.StatusForbidden
	case governance.CategoryState:
		return http.StatusConflict
	case governance.CategoryResource, governance.CategoryArithmetic:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeEngineError renders err. Internal errors are logged and their text is
// not returned to the client
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error(
			"request failed",
			"component", "api",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		message = "internal error"
	}
	writeError(w, status, governance.KindOf(err), string(governance.CategoryOf(err)), message)
}
