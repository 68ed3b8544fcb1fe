package model

import (
	"fmt"
	"time"
)

// RequestStatus is the lifecycle state of a join request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
	StatusRejected RequestStatus = "rejected"
)

// ParseRequestStatus accepts only the three known statuses.
func ParseRequestStatus(s string) (RequestStatus, error) {
	switch st := RequestStatus(s); st {
	case StatusPending, StatusAccepted, StatusRejected:
		return st, nil
	default:
		return "", fmt.Errorf("unknown request status %q", s)
	}
}

func (s RequestStatus) String() string { return string(s) }

// CollabRequest links a sender to a project. At most one exists per
// (SenderID, ProjectID) pair, whatever its status.
type CollabRequest struct {
	ID        string        `json:"id"`
	SenderID  string        `json:"sender_id"`
	ProjectID string        `json:"project_id"`
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// PendingRequest is the owner's inbox row: a request joined with its project
// and sender.
type PendingRequest struct {
	ID             string        `json:"id"`
	ProjectID      string        `json:"project_id"`
	ProjectTitle   string        `json:"project_title"`
	ProjectRepoURL string        `json:"project_repo_url"`
	SenderUsername string        `json:"sender_username"`
	SenderAvatar   string        `json:"sender_avatar"`
	Status         RequestStatus `json:"status"`
}
