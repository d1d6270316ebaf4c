package service

import (
	"context"
	"fmt"
	"testing"

	"yatube/internal/models"
	"yatube/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePosts serves n posts per filter with the requested window.
func fakePosts(totals map[repository.PostFilter]int64) *postRepoStub {
	repo := noopPostRepo()
	repo.countFn = func(_ context.Context, f repository.PostFilter) (int64, error) {
		return totals[f], nil
	}
	repo.listFn = func(_ context.Context, f repository.PostFilter, limit, offset int) ([]models.Post, error) {
		var out []models.Post
		for i := offset; i < offset+limit && int64(i) < totals[f]; i++ {
			out = append(out, models.Post{ID: uint(i + 1), Text: fmt.Sprintf("post %d", i)})
		}
		return out, nil
	}
	return repo
}

func newFeed(posts *postRepoStub, users *userRepoStub, follows *followRepoStub) *FeedService {
	return NewFeedService(posts, newGroupRepo(&models.Group{ID: 3, Slug: "cats", Title: "Cats"}),
		users, follows, &commentRepoStub{}, 10)
}

func TestFeedService_GlobalPagination(t *testing.T) {
	t.Parallel()

	svc := newFeed(fakePosts(map[repository.PostFilter]int64{{}: 15}), newUserRepo(), newFollowRepo())
	ctx := context.Background()

	tests := []struct {
		requested string
		number    int
		size      int
	}{
		{"", 1, 10},
		{"1", 1, 10},
		{"2", 2, 5},
		{"3", 2, 5},
		{"0", 1, 10},
		{"abc", 1, 10},
	}
	for _, tc := range tests {
		tc := tc
		t.Run("page="+tc.requested, func(t *testing.T) {
			t.Parallel()
			feed, err := svc.Global(ctx, tc.requested)
			require.NoError(t, err)
			assert.Equal(t, tc.number, feed.Page.Number)
			assert.Len(t, feed.Posts, tc.size)
			assert.Equal(t, 2, feed.Page.NumPages)
		})
	}
}

func TestFeedService_EmptyFeedHasOnePage(t *testing.T) {
	repo := fakePosts(nil)
	repo.listFn = func(context.Context, repository.PostFilter, int, int) ([]models.Post, error) {
		t.Fatal("List must not be called for an empty feed")
		return nil, nil
	}
	svc := newFeed(repo, newUserRepo(), newFollowRepo())

	feed, err := svc.Global(context.Background(), "5")
	require.NoError(t, err)
	assert.Empty(t, feed.Posts)
	assert.Equal(t, 1, feed.Page.Number)
	assert.Equal(t, 1, feed.Page.NumPages)
}

func TestFeedService_Group(t *testing.T) {
	svc := newFeed(fakePosts(map[repository.PostFilter]int64{{GroupID: 3}: 4}), newUserRepo(), newFollowRepo())
	ctx := context.Background()

	group, feed, err := svc.Group(ctx, "cats", "")
	require.NoError(t, err)
	assert.Equal(t, "Cats", group.Title)
	assert.Len(t, feed.Posts, 4)

	_, _, err = svc.Group(ctx, "dogs", "")
	assertCode(t, err, models.CodeNotFound)
}

func TestFeedService_Profile(t *testing.T) {
	author := &models.User{ID: 1, Username: "leo"}
	reader := &models.User{ID: 2, Username: "reader"}
	follows := newFollowRepo()
	svc := newFeed(fakePosts(map[repository.PostFilter]int64{{AuthorID: 1}: 12}), newUserRepo(author, reader), follows)
	ctx := context.Background()

	tests := []struct {
		name      string
		viewerID  uint
		follow    bool
		following bool
	}{
		{"anonymous", 0, false, false},
		{"self", 1, false, false},
		{"not following", 2, false, false},
		{"following", 2, true, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.follow {
				_, err := follows.Create(ctx, tc.viewerID, author.ID)
				require.NoError(t, err)
			}
			profile, err := svc.Profile(ctx, "leo", tc.viewerID, "2")
			require.NoError(t, err)
			assert.Equal(t, author.ID, profile.Author.ID)
			assert.Equal(t, int64(12), profile.PostsCount)
			assert.Len(t, profile.Posts, 2)
			assert.Equal(t, tc.following, profile.Following)
		})
	}

	profile, err := svc.Profile(ctx, "leo", 0, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), profile.FollowersCount)
	assert.Equal(t, int64(0), profile.FollowingCount)

	_, err = svc.Profile(ctx, "ghost", 0, "")
	assertCode(t, err, models.CodeNotFound)
}

func TestFeedService_Following(t *testing.T) {
	svc := newFeed(fakePosts(map[repository.PostFilter]int64{{FollowerID: 2}: 3}), newUserRepo(), newFollowRepo())
	ctx := context.Background()

	feed, err := svc.Following(ctx, 2, "")
	require.NoError(t, err)
	assert.Len(t, feed.Posts, 3)

	feed, err = svc.Following(ctx, 5, "")
	require.NoError(t, err)
	assert.Empty(t, feed.Posts)

	_, err = svc.Following(ctx, 0, "")
	assertCode(t, err, models.CodeValidation)
}

func TestFeedService_PostDetail(t *testing.T) {
	posts := fakePosts(map[repository.PostFilter]int64{{AuthorID: 1}: 7})
	posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		if id != 5 {
			return nil, models.NewNotFoundError("Post", id)
		}
		return &models.Post{ID: 5, AuthorID: 1, Text: "hello"}, nil
	}
	comments := &commentRepoStub{list: []models.Comment{{ID: 2, Text: "newer"}, {ID: 1, Text: "older"}}}
	svc := NewFeedService(posts, newGroupRepo(), newUserRepo(), newFollowRepo(), comments, 0)
	assert.Equal(t, DefaultPostsPerPage, svc.PerPage())

	detail, err := svc.PostDetail(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", detail.Post.Text)
	assert.Equal(t, int64(7), detail.AuthorPostsCount)
	require.Len(t, detail.Comments, 2)
	assert.Equal(t, "newer", detail.Comments[0].Text)

	_, err = svc.PostDetail(context.Background(), 6)
	assertCode(t, err, models.CodeNotFound)
}
