// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a member of the directory.
//
// Users arrive through GitHub OAuth (GitHubID set) or explicit registration
// (PasswordHash set). Username is unique across both populations. GitHubID is
// zero for registered users and stored as NULL so the UNIQUE index ignores it.
type User struct {
	ID           string `json:"id"`
	GitHubID     int64  `json:"github_id,omitempty"`
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"` // empty when hidden on GitHub
	AvatarURL    string `json:"avatar_url"`
	PasswordHash string `json:"-"`

	Bio           string `json:"bio"`
	Skills        string `json:"skills"`
	LinkedIn      string `json:"linkedin"`
	FullName      string `json:"full_name"`
	Department    string `json:"department"`
	Year          string `json:"year"`
	DiscordHandle string `json:"discord_handle"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary is the public projection embedded in project listings and teams.
func (u *User) Summary() UserSummary {
	return UserSummary{Username: u.Username, AvatarURL: u.AvatarURL}
}

// UserSummary is the owner/teammate shape returned to clients.
type UserSummary struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// PublicProfile is what anyone may see of a user. Email and the GitHub ID
// stay private.
type PublicProfile struct {
	Username      string `json:"username"`
	AvatarURL     string `json:"avatar_url"`
	Bio           string `json:"bio"`
	Skills        string `json:"skills"`
	LinkedIn      string `json:"linkedin"`
	FullName      string `json:"full_name"`
	Department    string `json:"department"`
	Year          string `json:"year"`
	DiscordHandle string `json:"discord_handle"`
}

func (u *User) PublicProfile() PublicProfile {
	return PublicProfile{
		Username:      u.Username,
		AvatarURL:     u.AvatarURL,
		Bio:           u.Bio,
		Skills:        u.Skills,
		LinkedIn:      u.LinkedIn,
		FullName:      u.FullName,
		Department:    u.Department,
		Year:          u.Year,
		DiscordHandle: u.DiscordHandle,
	}
}

// ProfileUpdate is a partial update of the free-text profile fields.
//
// A nil pointer means "leave unchanged". JSON decoding leaves omitted keys and
// explicit nulls as nil, so neither clears a stored value; an empty string
// does.
type ProfileUpdate struct {
	Bio           *string `json:"bio"`
	Skills        *string `json:"skills"`
	LinkedIn      *string `json:"linkedin"`
	FullName      *string `json:"full_name"`
	Department    *string `json:"department"`
	Year          *string `json:"year"`
	DiscordHandle *string `json:"discord_handle"`
}

// Apply copies every non-nil field onto u.
func (p ProfileUpdate) Apply(u *User) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&u.Bio, p.Bio)
	set(&u.Skills, p.Skills)
	set(&u.LinkedIn, p.LinkedIn)
	set(&u.FullName, p.FullName)
	set(&u.Department, p.Department)
	set(&u.Year, p.Year)
	set(&u.DiscordHandle, p.DiscordHandle)
}
