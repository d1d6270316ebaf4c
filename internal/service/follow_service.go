package service

import (
	"context"

	"yatube/internal/featureflags"
	"yatube/internal/models"
	"yatube/internal/notifications"
	"yatube/internal/observability"
	"yatube/internal/repository"
)

// FollowedPayload is the payload of a user_followed event.
type FollowedPayload struct {
	FollowerID uint `json:"follower_id"`
	AuthorID   uint `json:"author_id"`
}

type FollowService struct {
	users    repository.UserRepository
	follows  repository.FollowRepository
	notifier notifications.Publisher
	flags    *featureflags.Manager
}

func NewFollowService(
	users repository.UserRepository,
	follows repository.FollowRepository,
	notifier notifications.Publisher,
	flags *featureflags.Manager,
) *FollowService {
	return &FollowService{users: users, follows: follows, notifier: notifier, flags: flags}
}

// Follow makes viewerID follow the author named authorUsername. Following yourself
// and repeating a follow are both no-ops. The resolved author is returned.
func (s *FollowService) Follow(ctx context.Context, authorUsername string, viewerID uint) (*models.User, error) {
	if viewerID == 0 {
		return nil, models.NewUnauthorizedError("Login required")
	}
	author, err := s.users.GetByUsername(ctx, authorUsername)
	if err != nil {
		return nil, err
	}
	if author.ID == viewerID {
		return author, nil
	}

	created, err := s.follows.Create(ctx, viewerID, author.ID)
	if err != nil {
		return nil, err
	}
	if created && s.notifier != nil && s.flags.Enabled(featureflags.FollowNotifications, author.ID) {
		event := notifications.Event{
			Type:    notifications.EventUserFollowed,
			Payload: FollowedPayload{FollowerID: viewerID, AuthorID: author.ID},
		}
		if err := s.notifier.PublishUser(ctx, author.ID, event); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "failed to publish follow event",
				"author_id", author.ID, "error", err)
		}
	}
	return author, nil
}

// Unfollow removes the edge if present. A missing edge is not an error.
func (s *FollowService) Unfollow(ctx context.Context, authorUsername string, viewerID uint) (*models.User, error) {
	if viewerID == 0 {
		return nil, models.NewUnauthorizedError("Login required")
	}
	author, err := s.users.GetByUsername(ctx, authorUsername)
	if err != nil {
		return nil, err
	}
	if author.ID == viewerID {
		return author, nil
	}
	if _, err := s.follows.Delete(ctx, viewerID, author.ID); err != nil {
		return nil, err
	}
	return author, nil
}
