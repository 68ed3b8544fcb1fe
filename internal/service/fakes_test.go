package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/ranirkini2004/Open-Hub-API/internal/apperror"
	"github.com/ranirkini2004/Open-Hub-API/internal/auth"
	"github.com/ranirkini2004/Open-Hub-API/internal/model"
	"github.com/ranirkini2004/Open-Hub-API/internal/notify"
	"github.com/ranirkini2004/Open-Hub-API/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================

// fakeStore is an in-memory implementation of all three repository
// interfaces. It enforces the same uniqueness rules as the SQL schema and
// keeps insertion order for listings.
type fakeStore struct {
	mu sync.Mutex

	users    map[string]*model.User
	projects map[string]*model.Project
	requests map[string]*model.CollabRequest

	projectOrder []string
	requestOrder []string
	seq          int
}

var (
	_ repository.UserRepository    = (*fakeStore)(nil)
	_ repository.ProjectRepository = (*fakeStore)(nil)
	_ repository.CollabRepository  = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]*model.User),
		projects: make(map[string]*model.Project),
		requests: make(map[string]*model.CollabRequest),
	}
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeStore) usernameTaken(username, exceptID string) bool {
	for _, u := range f.users {
		if u.Username == username && u.ID != exceptID {
			return true
		}
	}
	return false
}

func (f *fakeStore) UpsertGitHub(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.GitHubID == user.GitHubID {
			if f.usernameTaken(user.Username, u.ID) {
				return apperror.Conflict("user", user.Username)
			}
			u.Username = user.Username
			u.Email = user.Email
			u.AvatarURL = user.AvatarURL
			u.UpdatedAt = time.Now()
			*user = *u
			return nil
		}
	}
	if f.usernameTaken(user.Username, "") {
		return apperror.Conflict("user", user.Username)
	}
	user.ID = f.nextID("user")
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.usernameTaken(user.Username, "") {
		return apperror.Conflict("user", user.Username)
	}
	user.ID = f.nextID("user")
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (f *fakeStore) UpdateProfile(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[user.ID]; !ok {
		return apperror.NotFound("user", user.ID)
	}
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeStore) withOwner(p *model.Project) *model.Project {
	cp := *p
	if owner, ok := f.users[p.OwnerID]; ok {
		s := owner.Summary()
		cp.Owner = &s
	}
	return &cp
}

func (f *fakeStore) CreateProject(_ context.Context, p *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.projects {
		if existing.RepoURL == p.RepoURL {
			return apperror.Conflict("project", p.RepoURL)
		}
	}
	p.ID = f.nextID("project")
	p.CreatedAt = time.Now()
	stored := *p
	f.projects[p.ID] = &stored
	f.projectOrder = append(f.projectOrder, p.ID)
	return nil
}

func (f *fakeStore) GetProject(_ context.Context, id string) (*model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.projects[id]
	if !ok {
		return nil, apperror.NotFound("project", id)
	}
	return f.withOwner(p), nil
}

func (f *fakeStore) GetProjectByRepoURL(_ context.Context, repoURL string) (*model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.projects {
		if p.RepoURL == repoURL {
			return f.withOwner(p), nil
		}
	}
	return nil, apperror.NotFound("project", repoURL)
}

func (f *fakeStore) ListProjects(_ context.Context, filter repository.ProjectFilter) ([]model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := []model.Project{}
	for _, id := range f.projectOrder {
		p, ok := f.projects[id]
		if !ok {
			continue
		}
		if filter.OwnerID != "" && p.OwnerID != filter.OwnerID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Title), search) &&
			!strings.Contains(strings.ToLower(p.Language), search) {
			continue
		}
		out = append(out, *f.withOwner(p))
	}
	return out, nil
}

func (f *fakeStore) DeleteProject(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.projects[id]; !ok {
		return apperror.NotFound("project", id)
	}
	for rid, r := range f.requests {
		if r.ProjectID == id {
			delete(f.requests, rid)
		}
	}
	delete(f.projects, id)
	return nil
}

func (f *fakeStore) CreateRequest(_ context.Context, r *model.CollabRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.requests {
		if existing.SenderID == r.SenderID && existing.ProjectID == r.ProjectID {
			return apperror.Conflict("request", r.SenderID+"/"+r.ProjectID)
		}
	}
	r.ID = f.nextID("request")
	if r.Status == "" {
		r.Status = model.StatusPending
	}
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	stored := *r
	f.requests[r.ID] = &stored
	f.requestOrder = append(f.requestOrder, r.ID)
	return nil
}

func (f *fakeStore) GetRequest(_ context.Context, id string) (*model.CollabRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.requests[id]
	if !ok {
		return nil, apperror.NotFound("request", id)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) FindRequest(_ context.Context, senderID, projectID string) (*model.CollabRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range f.requests {
		if r.SenderID == senderID && r.ProjectID == projectID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("request", senderID+"/"+projectID)
}

func (f *fakeStore) UpdateRequestStatus(_ context.Context, id string, status model.RequestStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.requests[id]
	if !ok {
		return apperror.NotFound("request", id)
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	return nil
}

func (f *fakeStore) ListPendingForOwner(_ context.Context, ownerID string) ([]model.PendingRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []model.PendingRequest{}
	for _, id := range f.requestOrder {
		r, ok := f.requests[id]
		if !ok || r.Status != model.StatusPending {
			continue
		}
		p := f.projects[r.ProjectID]
		if p == nil || p.OwnerID != ownerID {
			continue
		}
		sender := f.users[r.SenderID]
		out = append(out, model.PendingRequest{
			ID:             r.ID,
			ProjectID:      p.ID,
			ProjectTitle:   p.Title,
			ProjectRepoURL: p.RepoURL,
			SenderUsername: sender.Username,
			SenderAvatar:   sender.AvatarURL,
			Status:         r.Status,
		})
	}
	return out, nil
}

func (f *fakeStore) ListAcceptedProjects(_ context.Context, senderID string) ([]model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []model.Project{}
	for _, id := range f.requestOrder {
		r, ok := f.requests[id]
		if !ok || r.SenderID != senderID || r.Status != model.StatusAccepted {
			continue
		}
		if p, ok := f.projects[r.ProjectID]; ok {
			out = append(out, *f.withOwner(p))
		}
	}
	return out, nil
}

func (f *fakeStore) ListTeam(_ context.Context, projectID string) ([]model.UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	team := []model.UserSummary{}
	for _, id := range f.requestOrder {
		r, ok := f.requests[id]
		if !ok || r.ProjectID != projectID || r.Status != model.StatusAccepted {
			continue
		}
		team = append(team, f.users[r.SenderID].Summary())
	}
	return team, nil
}

// =========================================================================
// OTHER FAKES
// =========================================================================

// fakeNotifier records every acceptance email handed to it.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.AcceptanceEmail
}

func (n *fakeNotifier) Enqueue(msg notify.AcceptanceEmail) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return true
}

func (n *fakeNotifier) messages() []notify.AcceptanceEmail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.AcceptanceEmail(nil), n.sent...)
}

// fakeProvider stands in for GitHub. Codes map to profiles.
type fakeProvider struct {
	profiles    map[string]*auth.GitHubUser
	exchangeErr error
}

func (p *fakeProvider) ExchangeCode(_ context.Context, code string) (*oauth2.Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	if _, ok := p.profiles[code]; !ok {
		return nil, apperror.UpstreamAuth("invalid GitHub code", nil)
	}
	return &oauth2.Token{AccessToken: code}, nil
}

func (p *fakeProvider) FetchProfile(_ context.Context, tok *oauth2.Token) (*auth.GitHubUser, error) {
	u, ok := p.profiles[tok.AccessToken]
	if !ok {
		return nil, apperror.UpstreamAuth("fetching GitHub profile failed", nil)
	}
	return u, nil
}

// fakeRepoLister returns canned repositories and records the last query.
type fakeRepoLister struct {
	repos    []model.RepoCandidate
	err      error
	gotUser  string
	gotToken string
}

func (l *fakeRepoLister) ListRepos(_ context.Context, username, token string) ([]model.RepoCandidate, error) {
	l.gotUser, l.gotToken = username, token
	return l.repos, l.err
}

// =========================================================================
// HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedUser(t *testing.T, store *fakeStore, username, email string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Email: email, AvatarURL: "https://avatars.example/" + username}
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}

func seedProject(t *testing.T, store *fakeStore, owner *model.User, title string) *model.Project {
	t.Helper()
	p := &model.Project{
		Title:    title,
		RepoURL:  "https://github.com/" + owner.Username + "/" + title,
		Language: "Go",
		OwnerID:  owner.ID,
	}
	require.NoError(t, store.CreateProject(context.Background(), p))
	return p
}
