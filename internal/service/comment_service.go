package service

import (
	"context"
	"strings"

	"yatube/internal/featureflags"
	"yatube/internal/models"
	"yatube/internal/notifications"
	"yatube/internal/observability"
	"yatube/internal/repository"
)

// CommentPayload is the payload of a comment_created event.
type CommentPayload struct {
	PostID    uint `json:"post_id"`
	CommentID uint `json:"comment_id"`
	AuthorID  uint `json:"author_id"`
}

type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	notifier notifications.Publisher
	flags    *featureflags.Manager
}

type CreateCommentInput struct {
	PostID uint
	UserID uint
	Text   string
}

func NewCommentService(
	comments repository.CommentRepository,
	posts repository.PostRepository,
	notifier notifications.Publisher,
	flags *featureflags.Manager,
) *CommentService {
	return &CommentService{comments: comments, posts: posts, notifier: notifier, flags: flags}
}

// AddComment attaches a comment by UserID to the post. Invalid input never writes.
func (s *CommentService) AddComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("Login required")
	}
	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	form := CommentForm{Text: strings.TrimSpace(in.Text)}
	if err := validateForm(form); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID:   post.ID,
		AuthorID: in.UserID,
		Text:     form.Text,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	if post.AuthorID != in.UserID && s.notifier != nil && s.flags.Enabled(featureflags.CommentNotifications, post.AuthorID) {
		event := notifications.Event{
			Type:    notifications.EventCommentCreated,
			Payload: CommentPayload{PostID: post.ID, CommentID: comment.ID, AuthorID: in.UserID},
		}
		if err := s.notifier.PublishUser(ctx, post.AuthorID, event); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "failed to publish comment event",
				"post_id", post.ID, "error", err)
		}
	}
	return comment, nil
}
