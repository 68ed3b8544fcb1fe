package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ranirkini2004/Open-Hub-API/internal/apperror"
	"github.com/ranirkini2004/Open-Hub-API/internal/model"
	"github.com/ranirkini2004/Open-Hub-API/internal/repository"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
)

// RepoLister lists a GitHub user's repositories. *auth.GitHubProvider
// satisfies it.
type RepoLister interface {
	ListRepos(ctx context.Context, username, accessToken string) ([]model.RepoCandidate, error)
}

// ProjectInput is the client-supplied part of a new project.
type ProjectInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	RepoURL     string `json:"repo_url"`
	Language    string `json:"language"`
	Stars       int    `json:"stars"`
}

// ProjectService manages the project catalog.
type ProjectService struct {
	users    repository.UserRepository
	projects repository.ProjectRepository
	repos    RepoLister
	logger   *slog.Logger
}

// NewProjectService creates a ProjectService. repos may be nil, in which case
// ListGitHubRepos reports a configuration error.
func NewProjectService(
	users repository.UserRepository,
	projects repository.ProjectRepository,
	repos RepoLister,
	logger *slog.Logger,
) *ProjectService {
	return &ProjectService{
		users:    users,
		projects: projects,
		repos:    repos,
		logger:   logger,
	}
}

// Create imports a repository as a project owned by ownerID.
// A repository URL can be imported once across the whole catalog.
func (s *ProjectService) Create(ctx context.Context, ownerID string, in ProjectInput) (*model.Project, error) {
	// === VALIDATION ===
	in.Title = strings.TrimSpace(in.Title)
	in.RepoURL = strings.TrimSpace(in.RepoURL)

	if in.Title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if len(in.Title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title", "title is too long")
	}
	if len(in.Description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description", "description is too long")
	}
	if err := validateRepoURL(in.RepoURL); err != nil {
		return nil, err
	}
	if in.Stars < 0 {
		return nil, apperror.ValidationFailed("stars", "stars cannot be negative")
	}

	owner, err := s.users.GetUserByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	_, err = s.projects.GetProjectByRepoURL(ctx, in.RepoURL)
	switch {
	case err == nil:
		return nil, &apperror.AppError{
			Err:     apperror.ErrConflict,
			Message: "project already imported",
			Field:   "repo_url",
		}
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, err
	}

	project := &model.Project{
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		RepoURL:     in.RepoURL,
		Language:    strings.TrimSpace(in.Language),
		Stars:       in.Stars,
		OwnerID:     owner.ID,
	}
	if err := s.projects.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	summary := owner.Summary()
	project.Owner = &summary

	s.logger.Info("project created",
		slog.String("id", project.ID),
		slog.String("owner", owner.Username),
		slog.String("repo_url", project.RepoURL),
	)
	return project, nil
}

func validateRepoURL(raw string) error {
	if raw == "" {
		return apperror.ValidationFailed("repo_url", "repo_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperror.ValidationFailed("repo_url", "repo_url must be an http(s) URL")
	}
	return nil
}

// List returns every project with its owner, or only those whose title or
// language contains search (case-insensitive).
func (s *ProjectService) List(ctx context.Context, search string) ([]model.Project, error) {
	return s.projects.ListProjects(ctx, repository.ProjectFilter{Search: search})
}

// ListOwned returns the projects owned by ownerID.
func (s *ProjectService) ListOwned(ctx context.Context, ownerID string) ([]model.Project, error) {
	owner, err := s.users.GetUserByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.projects.ListProjects(ctx, repository.ProjectFilter{OwnerID: owner.ID})
}

// Delete removes a project and all of its requests. Only the owner may
// delete.
func (s *ProjectService) Delete(ctx context.Context, projectID, actorID string) error {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if project.OwnerID != actorID {
		return apperror.Forbidden("only the project owner can delete this project")
	}

	if err := s.projects.DeleteProject(ctx, project.ID); err != nil {
		return err
	}

	s.logger.Info("project deleted",
		slog.String("id", project.ID),
		slog.String("repo_url", project.RepoURL),
	)
	return nil
}

// ListGitHubRepos lists import candidates from GitHub. An empty
// githubUsername means the caller's own username.
func (s *ProjectService) ListGitHubRepos(ctx context.Context, actorID, githubUsername, githubToken string) ([]model.RepoCandidate, error) {
	if s.repos == nil {
		return nil, apperror.Config("GitHub client")
	}

	githubUsername = strings.TrimSpace(githubUsername)
	if githubUsername == "" {
		actor, err := s.users.GetUserByID(ctx, actorID)
		if err != nil {
			return nil, err
		}
		githubUsername = actor.Username
	}

	return s.repos.ListRepos(ctx, githubUsername, githubToken)
}
