package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v61/github"
	"golang.org/x/oauth2"
	githubendpoint "golang.org/x/oauth2/github"

	"github.com/ranirkini2004/Open-Hub-API/internal/apperror"
	"github.com/ranirkini2004/Open-Hub-API/internal/model"
)

// GitHubUser is the part of the authenticated GitHub profile the directory
// stores.
type GitHubUser struct {
	ID        int64
	Login     string
	Email     string
	AvatarURL string
}

// GitHubProvider runs the GitHub Authorization Code flow and reads profiles
// and repositories over the REST API.
//
// Every remote failure is reported as apperror.ErrUpstreamAuth. Nothing here
// retries: a code is single-use, and the caller decides what a failed
// listing means.
type GitHubProvider struct {
	config     *oauth2.Config
	apiBaseURL string
}

// GitHubOption customises a GitHubProvider.
type GitHubOption func(*GitHubProvider)

// WithEndpoint replaces the GitHub OAuth endpoints, for tests and GitHub
// Enterprise.
func WithEndpoint(ep oauth2.Endpoint) GitHubOption {
	return func(p *GitHubProvider) { p.config.Endpoint = ep }
}

// WithAPIBaseURL points the REST client at another API root, e.g. an
// httptest server.
func WithAPIBaseURL(base string) GitHubOption {
	return func(p *GitHubProvider) {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		p.apiBaseURL = base
	}
}

// NewGitHubProvider creates a provider for the OAuth app with the given
// credentials. callbackURL must match the app's registered callback exactly.
//
// Missing credentials are not an error here; ExchangeCode reports them as
// apperror.ErrConfig so the rest of the API keeps working.
func NewGitHubProvider(clientID, clientSecret, callbackURL string, opts ...GitHubOption) *GitHubProvider {
	p := &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     githubendpoint.Endpoint,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Configured reports whether client credentials were supplied.
func (p *GitHubProvider) Configured() bool {
	return p.config.ClientID != "" && p.config.ClientSecret != ""
}

// AuthURL returns the GitHub authorization URL carrying state.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// ExchangeCode trades a single-use authorization code for an access token.
// GitHub answers a bad code with 200 and an "error" field; oauth2 surfaces
// that as an error too.
func (p *GitHubProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	if !p.Configured() {
		return nil, apperror.Config("GitHub OAuth client")
	}
	if strings.TrimSpace(code) == "" {
		return nil, apperror.ValidationFailed("code", "authorization code is required")
	}

	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.UpstreamAuth("invalid GitHub code", err)
	}
	return tok, nil
}

// FetchProfile reads the authenticated user's profile with tok.
func (p *GitHubProvider) FetchProfile(ctx context.Context, tok *oauth2.Token) (*GitHubUser, error) {
	client, err := p.client(oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok)))
	if err != nil {
		return nil, err
	}

	u, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, apperror.UpstreamAuth("fetching GitHub profile failed", err)
	}
	if u.GetID() == 0 || u.GetLogin() == "" {
		return nil, apperror.UpstreamAuth("GitHub returned an incomplete profile", nil)
	}

	return &GitHubUser{
		ID:        u.GetID(),
		Login:     u.GetLogin(),
		Email:     u.GetEmail(),
		AvatarURL: u.GetAvatarURL(),
	}, nil
}

// ListRepos returns the public repositories of username as import
// candidates. accessToken is optional and only raises the rate limit.
func (p *GitHubProvider) ListRepos(ctx context.Context, username, accessToken string) ([]model.RepoCandidate, error) {
	if strings.TrimSpace(username) == "" {
		return nil, apperror.ValidationFailed("github_username", "GitHub username is required")
	}

	httpClient := oauth2.NewClient(ctx, nil)
	if accessToken != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	}
	client, err := p.client(httpClient)
	if err != nil {
		return nil, err
	}

	opt := &github.RepositoryListOptions{
		Type:        "owner",
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	candidates := []model.RepoCandidate{}
	for {
		repos, resp, err := client.Repositories.List(ctx, username, opt)
		if err != nil {
			return nil, apperror.UpstreamAuth("failed to fetch repos from GitHub", err)
		}
		for _, r := range repos {
			candidates = append(candidates, model.RepoCandidate{
				Title:       r.GetName(),
				Description: r.GetDescription(),
				RepoURL:     r.GetHTMLURL(),
				Language:    r.GetLanguage(),
				Stars:       r.GetStargazersCount(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return candidates, nil
}

func (p *GitHubProvider) client(httpClient *http.Client) (*github.Client, error) {
	client := github.NewClient(httpClient)
	if p.apiBaseURL != "" {
		u, err := url.Parse(p.apiBaseURL)
		if err != nil {
			return nil, fmt.Errorf("auth: parsing GitHub API base URL: %w", err)
		}
		client.BaseURL = u
	}
	return client, nil
}
