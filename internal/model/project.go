package model

import "time"

// Project is an imported repository owned by one user.
// RepoURL is unique across the catalog.
type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	RepoURL     string    `json:"repo_url"`
	Language    string    `json:"language"`
	Stars       int       `json:"stars"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`

	// Owner is populated by listing queries that join users.
	Owner *UserSummary `json:"owner,omitempty"`
}

// ProjectDetail is a project plus its team, computed at read time from
// accepted join requests.
type ProjectDetail struct {
	Project
	Team []UserSummary `json:"team"`
}

// RepoCandidate is a GitHub repository offered for import.
type RepoCandidate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	RepoURL     string `json:"repo_url"`
	Language    string `json:"language"`
	Stars       int    `json:"stars"`
}
