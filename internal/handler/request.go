package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ranirkini2004/Open-Hub-API/internal/service"
)

// RequestHandler serves the join-request workflow.
type RequestHandler struct {
	collab *service.CollabService
	logger *slog.Logger
}

func NewRequestHandler(collab *service.CollabService, logger *slog.Logger) *RequestHandler {
	return &RequestHandler{collab: collab, logger: logger}
}

// Send handles POST /projects/request  {"project_id": "..."}
func (h *RequestHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var body struct {
		ProjectID string `json:"project_id"`
	}
	if err := readJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	req, err := h.collab.SendJoinRequest(r.Context(), userID, body.ProjectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// Pending handles GET /projects/requests/pending: the requests waiting on
// the caller's projects.
func (h *RequestHandler) Pending(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	pending, err := h.collab.ListPendingRequestsForOwner(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

// Update handles PUT /projects/requests/{id}  {"status": "accepted"}
func (h *RequestHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := readJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	req, err := h.collab.UpdateRequestStatus(r.Context(), userID, chi.URLParam(r, "id"), body.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
