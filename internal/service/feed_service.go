// Package service holds the domain logic between the HTTP boundary and the repositories.
package service

import (
	"context"

	"yatube/internal/models"
	"yatube/internal/pagination"
	"yatube/internal/repository"
)

// DefaultPostsPerPage is used when the configured page size is not positive.
const DefaultPostsPerPage = 10

// FeedPage is one page of a post listing.
type FeedPage struct {
	Posts []models.Post
	Page  pagination.Page
}

// ProfileFeed is an author's page of posts plus the viewer's relation to them.
type ProfileFeed struct {
	Author     *models.User
	Posts      []models.Post
	Page       pagination.Page
	PostsCount int64
	// Following is true when the viewer follows Author. Always false for anonymous viewers and self.
	Following      bool
	FollowersCount int64
	FollowingCount int64
}

// PostDetail is a single post with its comments, newest first.
type PostDetail struct {
	Post             *models.Post
	Comments         []models.Comment
	AuthorPostsCount int64
}

// FeedService composes the post listings.
type FeedService struct {
	posts    repository.PostRepository
	groups   repository.GroupRepository
	users    repository.UserRepository
	follows  repository.FollowRepository
	comments repository.CommentRepository
	perPage  int
}

func NewFeedService(
	posts repository.PostRepository,
	groups repository.GroupRepository,
	users repository.UserRepository,
	follows repository.FollowRepository,
	comments repository.CommentRepository,
	perPage int,
) *FeedService {
	if perPage <= 0 {
		perPage = DefaultPostsPerPage
	}
	return &FeedService{
		posts:    posts,
		groups:   groups,
		users:    users,
		follows:  follows,
		comments: comments,
		perPage:  perPage,
	}
}

// PerPage returns the page size shared by every listing.
func (s *FeedService) PerPage() int {
	return s.perPage
}

// Global lists every post.
func (s *FeedService) Global(ctx context.Context, page string) (*FeedPage, error) {
	return s.list(ctx, repository.PostFilter{}, page)
}

// Group lists the posts filed under the group with slug.
func (s *FeedService) Group(ctx context.Context, slug, page string) (*models.Group, *FeedPage, error) {
	group, err := s.groups.GetBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	feed, err := s.list(ctx, repository.PostFilter{GroupID: group.ID}, page)
	if err != nil {
		return nil, nil, err
	}
	return group, feed, nil
}

// Profile lists an author's posts. viewerID is 0 for anonymous viewers.
func (s *FeedService) Profile(ctx context.Context, username string, viewerID uint, page string) (*ProfileFeed, error) {
	author, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	feed, err := s.list(ctx, repository.PostFilter{AuthorID: author.ID}, page)
	if err != nil {
		return nil, err
	}

	out := &ProfileFeed{
		Author:     author,
		Posts:      feed.Posts,
		Page:       feed.Page,
		PostsCount: feed.Page.Count,
	}
	if viewerID != 0 && viewerID != author.ID {
		if out.Following, err = s.follows.Exists(ctx, viewerID, author.ID); err != nil {
			return nil, err
		}
	}
	if out.FollowersCount, err = s.follows.CountFollowers(ctx, author.ID); err != nil {
		return nil, err
	}
	if out.FollowingCount, err = s.follows.CountFollowing(ctx, author.ID); err != nil {
		return nil, err
	}
	return out, nil
}

// Following lists posts by the authors viewerID follows.
func (s *FeedService) Following(ctx context.Context, viewerID uint, page string) (*FeedPage, error) {
	if viewerID == 0 {
		return nil, models.NewValidationError("A viewer is required for the following feed")
	}
	return s.list(ctx, repository.PostFilter{FollowerID: viewerID}, page)
}

// PostDetail returns a post, its comments and the author's total post count.
func (s *FeedService) PostDetail(ctx context.Context, postID uint) (*PostDetail, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByPost(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	count, err := s.posts.Count(ctx, repository.PostFilter{AuthorID: post.AuthorID})
	if err != nil {
		return nil, err
	}
	return &PostDetail{Post: post, Comments: comments, AuthorPostsCount: count}, nil
}

func (s *FeedService) list(ctx context.Context, filter repository.PostFilter, requested string) (*FeedPage, error) {
	total, err := s.posts.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := pagination.New(total, s.perPage, requested)
	if total == 0 {
		return &FeedPage{Posts: []models.Post{}, Page: page}, nil
	}
	posts, err := s.posts.List(ctx, filter, page.Limit(), page.Offset())
	if err != nil {
		return nil, err
	}
	return &FeedPage{Posts: posts, Page: page}, nil
}
