package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"yatube/internal/models"
	"yatube/internal/notifications"
	"yatube/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	listFn    func(context.Context, repository.PostFilter, int, int) ([]models.Post, error)
	countFn   func(context.Context, repository.PostFilter) (int64, error)
	getByIDFn func(context.Context, uint) (*models.Post, error)
	createFn  func(context.Context, *models.Post) error
	updateFn  func(context.Context, *models.Post) error
}

func (s *postRepoStub) List(ctx context.Context, f repository.PostFilter, limit, offset int) ([]models.Post, error) {
	return s.listFn(ctx, f, limit, offset)
}
func (s *postRepoStub) Count(ctx context.Context, f repository.PostFilter) (int64, error) {
	return s.countFn(ctx, f)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		listFn:    func(context.Context, repository.PostFilter, int, int) ([]models.Post, error) { return nil, nil },
		countFn:   func(context.Context, repository.PostFilter) (int64, error) { return 0, nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) { return &models.Post{ID: id, AuthorID: 1}, nil },
		createFn: func(_ context.Context, p *models.Post) error {
			p.ID = 1
			return nil
		},
		updateFn: func(context.Context, *models.Post) error { return nil },
	}
}

// groupRepoStub is a stub for repository.GroupRepository.
type groupRepoStub struct {
	bySlug map[string]*models.Group
}

func (s *groupRepoStub) GetByID(_ context.Context, id uint) (*models.Group, error) {
	for _, g := range s.bySlug {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, models.NewNotFoundError("Group", id)
}
func (s *groupRepoStub) GetBySlug(_ context.Context, slug string) (*models.Group, error) {
	if g, ok := s.bySlug[slug]; ok {
		return g, nil
	}
	return nil, models.NewNotFoundError("Group", slug)
}
func (s *groupRepoStub) List(context.Context) ([]models.Group, error) {
	out := make([]models.Group, 0, len(s.bySlug))
	for _, g := range s.bySlug {
		out = append(out, *g)
	}
	return out, nil
}
func (s *groupRepoStub) Upsert(context.Context, *models.Group) error { return nil }
func (s *groupRepoStub) Delete(context.Context, uint) error          { return nil }

func newGroupRepo(groups ...*models.Group) *groupRepoStub {
	s := &groupRepoStub{bySlug: map[string]*models.Group{}}
	for _, g := range groups {
		s.bySlug[g.Slug] = g
	}
	return s
}

// userRepoStub is an in-memory repository.UserRepository.
type userRepoStub struct {
	users     map[string]*models.User
	createErr error
}

func newUserRepo(users ...*models.User) *userRepoStub {
	s := &userRepoStub{users: map[string]*models.User{}}
	for _, u := range users {
		s.users[u.Username] = u
	}
	return s
}

func (s *userRepoStub) GetByID(_ context.Context, id uint) (*models.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, models.NewNotFoundError("User", id)
}
func (s *userRepoStub) GetByUsername(_ context.Context, username string) (*models.User, error) {
	if u, ok := s.users[username]; ok {
		return u, nil
	}
	return nil, models.NewNotFoundError("User", username)
}
func (s *userRepoStub) Create(_ context.Context, user *models.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	user.ID = uint(len(s.users) + 1)
	s.users[user.Username] = user
	return nil
}
func (s *userRepoStub) Delete(context.Context, uint) error { return nil }
func (s *userRepoStub) List(context.Context, int, int) ([]models.User, error) {
	return nil, nil
}

type edge struct{ user, author uint }

// followRepoStub is an in-memory repository.FollowRepository.
type followRepoStub struct {
	edges   map[edge]bool
	creates int
	deletes int
}

func newFollowRepo() *followRepoStub {
	return &followRepoStub{edges: map[edge]bool{}}
}

func (s *followRepoStub) Create(_ context.Context, userID, authorID uint) (bool, error) {
	s.creates++
	if userID == authorID {
		return false, models.NewValidationError("users cannot follow themselves")
	}
	e := edge{userID, authorID}
	if s.edges[e] {
		return false, nil
	}
	s.edges[e] = true
	return true, nil
}
func (s *followRepoStub) Delete(_ context.Context, userID, authorID uint) (bool, error) {
	s.deletes++
	e := edge{userID, authorID}
	existed := s.edges[e]
	delete(s.edges, e)
	return existed, nil
}
func (s *followRepoStub) Exists(_ context.Context, userID, authorID uint) (bool, error) {
	return s.edges[edge{userID, authorID}], nil
}
func (s *followRepoStub) CountFollowers(_ context.Context, authorID uint) (int64, error) {
	var n int64
	for e := range s.edges {
		if e.author == authorID {
			n++
		}
	}
	return n, nil
}
func (s *followRepoStub) CountFollowing(_ context.Context, userID uint) (int64, error) {
	var n int64
	for e := range s.edges {
		if e.user == userID {
			n++
		}
	}
	return n, nil
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	created []models.Comment
	list    []models.Comment
}

func (s *commentRepoStub) Create(_ context.Context, c *models.Comment) error {
	c.ID = uint(len(s.created) + 1)
	s.created = append(s.created, *c)
	return nil
}
func (s *commentRepoStub) ListByPost(context.Context, uint) ([]models.Comment, error) {
	return s.list, nil
}

// publisherStub records published events.
type publisherStub struct {
	mu        sync.Mutex
	user      map[uint][]notifications.Event
	broadcast []notifications.Event
	err       error
}

func newPublisher() *publisherStub {
	return &publisherStub{user: map[uint][]notifications.Event{}}
}

func (p *publisherStub) PublishUser(_ context.Context, userID uint, event notifications.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.user[userID] = append(p.user[userID], event)
	return p.err
}
func (p *publisherStub) PublishBroadcast(_ context.Context, event notifications.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcast = append(p.broadcast, event)
	return p.err
}

// imageStoreStub returns a fixed path and records removals.
type imageStoreStub struct {
	calls   []UploadImageInput
	removed []string
	err     error
}

func (s *imageStoreStub) Remove(_ context.Context, path string) error {
	s.removed = append(s.removed, path)
	return nil
}

func (s *imageStoreStub) Store(_ context.Context, in UploadImageInput) (string, error) {
	s.calls = append(s.calls, in)
	if s.err != nil {
		return "", s.err
	}
	return "posts/stub/master.jpg", nil
}

// assertCode asserts that err is an AppError with the given code.
func assertCode(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}
