package server

import (
	"yatube/internal/middleware"
	"yatube/internal/models"
	"yatube/internal/service"

	"github.com/gofiber/fiber/v2"
)

// AddComment stores a comment and always returns to the post. An empty comment is dropped.
// @Summary Comment on a post
// @Tags posts
// @Accept x-www-form-urlencoded
// @Param id path int true "Post ID"
// @Param text formData string true "Comment text"
// @Success 302 "Redirect to the post"
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comment/ [post]
func (s *Server) AddComment(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return s.handleError(c, err)
	}

	_, err = s.commentService.AddComment(c.UserContext(), service.CreateCommentInput{
		PostID: postID,
		UserID: viewerID(c),
		Text:   c.FormValue("text"),
	})
	if err != nil && !models.IsCode(err, models.CodeValidation) {
		return s.handleError(c, err)
	}
	if err != nil {
		middleware.Logger.DebugContext(c.UserContext(), "comment rejected", "post_id", postID, "error", err)
	}
	return redirectToPost(c, postID)
}
