// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-json-experiment/json"

	"github.com/go-a2a/agentd/approval"
)

// Resolver is the gate entry point used by [Handler].
type Resolver interface {
	ResolveDecision(id string, d approval.Decision) bool
}

type resolveRequest struct {
	Decision string `json:"decision"`
}

type resolveResponse struct {
	ApprovalID string `json:"approvalId"`
	Decision   string `json:"decision,omitzero"`
	Resolved   bool   `json:"resolved"`
	Error      string `json:"error,omitzero"`
}

// Handler resolves the approval named by the {id} route parameter.
//
// The decision comes from a JSON body {"decision": "..."} or, for link-style
// buttons, from the "decision" query parameter. Unknown or already consumed
// ids answer 404 and change nothing.
func Handler(r Resolver, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")

		raw := req.URL.Query().Get("decision")
		if raw == "" {
			var body resolveRequest
			data, err := io.ReadAll(io.LimitReader(req.Body, 4<<10))
			if err == nil && len(data) > 0 {
				err = json.Unmarshal(data, &body)
			}
			if err != nil {
				writeJSON(w, http.StatusBadRequest, resolveResponse{ApprovalID: id, Error: "malformed body"})
				return
			}
			raw = body.Decision
		}

		d, err := approval.ParseDecision(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, resolveResponse{ApprovalID: id, Error: err.Error()})
			return
		}

		if !r.ResolveDecision(id, d) {
			writeJSON(w, http.StatusNotFound, resolveResponse{ApprovalID: id, Error: "approval not found or already resolved"})
			return
		}
		logger.InfoContext(req.Context(), "approval resolved via webhook", "approval_id", id, "decision", d)
		writeJSON(w, http.StatusOK, resolveResponse{ApprovalID: id, Decision: string(d), Resolved: true})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.MarshalWrite(w, v)
}
