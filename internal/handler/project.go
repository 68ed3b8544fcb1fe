package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ranirkini2004/Open-Hub-API/internal/service"
)

// ProjectHandler serves the project catalog.
type ProjectHandler struct {
	projects *service.ProjectService
	collab   *service.CollabService
	logger   *slog.Logger
}

func NewProjectHandler(projects *service.ProjectService, collab *service.CollabService, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, collab: collab, logger: logger}
}

// List handles GET /projects?search=
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// Create handles POST /projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var in service.ProjectInput
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	project, err := h.projects.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// Owned handles GET /projects/owned
func (h *ProjectHandler) Owned(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	projects, err := h.projects.ListOwned(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// Joined handles GET /projects/joined
func (h *ProjectHandler) Joined(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	projects, err := h.collab.ListJoinedProjectsForUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// GitHubRepos handles GET /projects/github/repos?github_username=
//
// The caller may pass its GitHub access token in X-GitHub-Token to lift the
// anonymous rate limit.
func (h *ProjectHandler) GitHubRepos(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	repos, err := h.projects.ListGitHubRepos(r.Context(),
		userID,
		r.URL.Query().Get("github_username"),
		r.Header.Get("X-GitHub-Token"),
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repos)
}

// Get handles GET /projects/{id} and includes the team.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.collab.GetProjectDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Delete handles DELETE /projects/{id}
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.projects.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
