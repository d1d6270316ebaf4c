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

// PostCreatedPayload is the payload of a post_created broadcast.
type PostCreatedPayload struct {
	PostID   uint   `json:"post_id"`
	AuthorID uint   `json:"author_id"`
	Preview  string `json:"preview"`
}

type PostService struct {
	posts    repository.PostRepository
	groups   repository.GroupRepository
	images   ImageStore
	notifier notifications.Publisher
	flags    *featureflags.Manager
}

type CreatePostInput struct {
	UserID  uint
	Text    string
	GroupID *uint
	Image   *UploadImageInput
}

type UpdatePostInput struct {
	PostID  uint
	UserID  uint
	Text    string
	GroupID *uint
	// Image replaces the current attachment when set.
	Image *UploadImageInput
	// ClearImage drops the current attachment; ignored when Image is set.
	ClearImage bool
}

func NewPostService(
	posts repository.PostRepository,
	groups repository.GroupRepository,
	images ImageStore,
	notifier notifications.Publisher,
	flags *featureflags.Manager,
) *PostService {
	return &PostService{
		posts:    posts,
		groups:   groups,
		images:   images,
		notifier: notifier,
		flags:    flags,
	}
}

// CreatePost stores a new post authored by in.UserID.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("Login required")
	}
	form, err := s.cleanForm(ctx, in.Text, in.GroupID)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Text:     form.Text,
		AuthorID: in.UserID,
		GroupID:  form.GroupID,
	}
	if in.Image != nil {
		if post.Image, err = s.storeImage(ctx, in.UserID, in.Image); err != nil {
			return nil, err
		}
	}
	if err := s.posts.Create(ctx, post); err != nil {
		s.releaseImage(ctx, post.Image)
		return nil, err
	}

	if s.notifier != nil && s.flags.Enabled(featureflags.PostBroadcasts, in.UserID) {
		event := notifications.Event{
			Type:    notifications.EventPostCreated,
			Payload: PostCreatedPayload{PostID: post.ID, AuthorID: post.AuthorID, Preview: post.String()},
		}
		if err := s.notifier.PublishBroadcast(ctx, event); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "failed to publish post event",
				"post_id", post.ID, "error", err)
		}
	}
	return post, nil
}

// GetForEdit returns the post when editorID is its author and Forbidden otherwise.
func (s *PostService) GetForEdit(ctx context.Context, postID, editorID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if editorID == 0 || post.AuthorID != editorID {
		return nil, models.NewForbiddenError("You can only edit your own posts")
	}
	return post, nil
}

// UpdatePost applies an edit by the post's author. A non-author never mutates the post.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.GetForEdit(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}
	form, err := s.cleanForm(ctx, in.Text, in.GroupID)
	if err != nil {
		return nil, err
	}

	previous := post.Image
	post.Text = form.Text
	post.GroupID = form.GroupID
	switch {
	case in.Image != nil:
		if post.Image, err = s.storeImage(ctx, in.UserID, in.Image); err != nil {
			return nil, err
		}
	case in.ClearImage:
		post.Image = ""
	}

	if err := s.posts.Update(ctx, post); err != nil {
		if post.Image != previous {
			s.releaseImage(ctx, post.Image)
		}
		return nil, err
	}
	if previous != post.Image {
		s.releaseImage(ctx, previous)
	}
	return s.posts.GetByID(ctx, post.ID)
}

// cleanForm trims and validates the form and checks the group exists.
func (s *PostService) cleanForm(ctx context.Context, text string, groupID *uint) (*PostForm, error) {
	form := &PostForm{Text: strings.TrimSpace(text), GroupID: groupID}
	if err := validateForm(form); err != nil {
		return nil, err
	}
	if form.GroupID != nil {
		if _, err := s.groups.GetByID(ctx, *form.GroupID); err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return nil, &models.AppError{
					Code:    models.CodeValidation,
					Message: formErrorMessage,
					Fields:  map[string]string{"group": "Select a valid choice. That choice is not one of the available choices."},
				}
			}
			return nil, err
		}
	}
	return form, nil
}

func (s *PostService) storeImage(ctx context.Context, userID uint, upload *UploadImageInput) (string, error) {
	if s.images == nil {
		return "", models.NewValidationError("Image uploads are not available")
	}
	upload.UserID = userID
	return s.images.Store(ctx, *upload)
}

// releaseImage deletes an attachment no post references any more. Paths are content addressed,
// so the same file can back several posts of one author.
func (s *PostService) releaseImage(ctx context.Context, image string) {
	if image == "" || s.images == nil {
		return
	}
	n, err := s.posts.Count(ctx, repository.PostFilter{Image: image})
	if err != nil || n > 0 {
		return
	}
	if err := s.images.Remove(ctx, image); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "failed to remove post image", "image", image, "error", err)
	}
}
