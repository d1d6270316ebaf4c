package server

import (
	"yatube/internal/middleware"
	"yatube/internal/models"

	"github.com/gofiber/fiber/v2"
)

// LoginForm renders the login page, keeping the page to return to.
// @Summary Login form
// @Tags auth
// @Produce json
// @Param next query string false "Local path to return to"
// @Success 200 {object} LoginView
// @Router /auth/login/ [get]
func (s *Server) LoginForm(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "users/login", LoginView{
		Form: newFormDTO(map[string]string{}, nil),
		Next: middleware.SafeNext(c.Query("next"), ""),
	})
}

// Login verifies the credentials, sets the session cookie and redirects to a local "next".
// @Summary Log in
// @Tags auth
// @Accept x-www-form-urlencoded
// @Produce json
// @Param username formData string true "Username"
// @Param password formData string true "Password"
// @Param next formData string false "Local path to return to"
// @Success 302 "Session cookie set, redirect to next or /"
// @Success 200 {object} LoginView "Bad credentials, re-rendered with errors"
// @Router /auth/login/ [post]
func (s *Server) Login(c *fiber.Ctx) error {
	username := c.FormValue("username")
	next := middleware.SafeNext(c.FormValue("next"), "")

	user, err := s.userService.Authenticate(c.UserContext(), username, c.FormValue("password"))
	if err != nil {
		if models.IsCode(err, models.CodeValidation) {
			return s.render(c, fiber.StatusOK, "users/login", LoginView{
				Form: newFormDTO(map[string]string{"username": username}, err),
				Next: next,
			})
		}
		return s.handleError(c, err)
	}

	token, expiresAt, err := s.sessions.Issue(user.ID, user.Username)
	if err != nil {
		return err
	}
	s.sessions.SetCookie(c, token, expiresAt)
	middleware.Logger.InfoContext(c.UserContext(), "user logged in", "user_id", user.ID)

	if next == "" {
		next = "/"
	}
	return c.Redirect(next, fiber.StatusFound)
}

// Logout revokes the current session and clears the cookie.
// @Summary Log out
// @Tags auth
// @Success 302 "Session revoked, redirect to /"
// @Router /auth/logout/ [get]
func (s *Server) Logout(c *fiber.Ctx) error {
	if session, ok := s.sessions.Current(c); ok {
		if err := s.sessions.Revoke(c.UserContext(), session); err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "session revoke failed", "error", err)
		}
	}
	s.sessions.ClearCookie(c)
	return c.Redirect("/", fiber.StatusFound)
}
