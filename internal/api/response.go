// SchoolFin Sync - Realtime user and school synchronization client
// Copyright 2026 SchoolFin Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/schoolfin/syncd

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/schoolfin/syncd/internal/logging"
	"github.com/schoolfin/syncd/internal/models"
)

// newResponse builds a success envelope for r.
func newResponse(r *http.Request, data interface{}) *models.APIResponse {
	return &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:     time.Now(),
			CorrelationID: logging.CorrelationIDFromContext(r.Context()),
		},
	}
}

// respondJSON writes response with an ETag. Status bodies change from one
// request to the next, so they are never cached.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", generateETag(data))

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// generateETag creates a simple ETag from data using FNV-1a hash
func generateETag(data []byte) string {
	hash := uint32(2166136261)
	for _, b := range data {
		hash ^= uint32(b)
		hash *= 16777619
	}
	return strconv.FormatUint(uint64(hash), 16)
}

// respondError writes an error envelope. err is logged, never returned to
// the caller.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		logging.Ctx(r.Context()).Error().
			Str("code", code).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API Error")
	}

	resp := newResponse(r, nil)
	resp.Status = "error"
	resp.Error = &models.APIError{
		Code:    code,
		Message: message,
	}
	respondJSON(w, status, resp)
}

// sanitizeLogValue strips line breaks so backend error text cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}
