package server

import (
	"yatube/internal/models"

	"github.com/gofiber/fiber/v2"
)

// FollowIndex renders the posts of the authors the viewer follows.
// @Summary Following feed
// @Tags users
// @Produce json
// @Param page query int false "Page number"
// @Success 200 {object} PostListView
// @Router /follow/ [get]
func (s *Server) FollowIndex(c *fiber.Ctx) error {
	feed, err := s.feedService.Following(c.UserContext(), viewerID(c), c.Query("page"))
	if err != nil {
		return s.handleError(c, err)
	}
	return s.render(c, fiber.StatusOK, "posts/follow", newPostListView(feed))
}

// ProfileFollow subscribes the viewer to the author and returns to the profile.
// @Summary Follow an author
// @Tags users
// @Param username path string true "Author username"
// @Success 302 "Redirect to the profile"
// @Failure 404 {object} models.ErrorResponse
// @Router /profile/{username}/follow/ [get]
func (s *Server) ProfileFollow(c *fiber.Ctx) error {
	author, err := s.followService.Follow(c.UserContext(), c.Params("username"), viewerID(c))
	if err != nil {
		return s.handleError(c, err)
	}
	return redirectToProfile(c, author)
}

// ProfileUnfollow removes the subscription, if any, and returns to the profile.
// @Summary Unfollow an author
// @Tags users
// @Param username path string true "Author username"
// @Success 302 "Redirect to the profile"
// @Failure 404 {object} models.ErrorResponse
// @Router /profile/{username}/unfollow/ [get]
func (s *Server) ProfileUnfollow(c *fiber.Ctx) error {
	author, err := s.followService.Unfollow(c.UserContext(), c.Params("username"), viewerID(c))
	if err != nil {
		return s.handleError(c, err)
	}
	return redirectToProfile(c, author)
}

func redirectToProfile(c *fiber.Ctx, user *models.User) error {
	return c.Redirect("/profile/"+user.Username+"/", fiber.StatusFound)
}
