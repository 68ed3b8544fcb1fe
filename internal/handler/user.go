package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ranirkini2004/Open-Hub-API/internal/model"
	"github.com/ranirkini2004/Open-Hub-API/internal/service"
)

type UserHandler struct {
	users  *service.UserService
	collab *service.CollabService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, collab *service.CollabService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, collab: collab, logger: logger}
}

// Get handles GET /users/{username}. It is public, so only the public
// profile is returned.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetProfile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user.PublicProfile())
}

// Joined handles GET /users/{username}/joined. Unknown users get [].
func (h *UserHandler) Joined(w http.ResponseWriter, r *http.Request) {
	projects, err := h.collab.ListJoinedProjects(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// UpdateMe handles PUT /users/profile/me with a partial profile body.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var update model.ProfileUpdate
	if err := readJSON(w, r, &update); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), userID, update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
