package server

import (
	"errors"
	"strconv"
	"strings"

	"yatube/internal/middleware"
	"yatube/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const localViewer = "viewer"

func asAppError(err error) (*models.AppError, bool) {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// wantsJSON reports whether the client asked for the view data instead of HTML.
func wantsJSON(c *fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON)
}

// render writes content with the named view, or as JSON for API clients.
func (s *Server) render(c *fiber.Ctx, status int, view string, content interface{}) error {
	if wantsJSON(c) {
		return c.Status(status).JSON(content)
	}
	var user *UserDTO
	if viewer := s.viewer(c); viewer != nil {
		dto := newUserDTO(viewer)
		user = &dto
	}
	return c.Status(status).Render(view, layoutData{
		User:    user,
		Path:    c.Path(),
		Content: content,
	})
}

// viewer loads the signed-in user once per request. A session for a deleted user reads as anonymous.
func (s *Server) viewer(c *fiber.Ctx) *models.User {
	if cached, ok := c.Locals(localViewer).(*models.User); ok {
		return cached
	}
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return nil
	}
	user, err := s.userService.GetUserByID(c.UserContext(), userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			c.Locals(middleware.LocalUserID, uint(0))
		}
		return nil
	}
	c.Locals(localViewer, user)
	return user
}

// signedIn reports whether the session belongs to a user that still exists.
func (s *Server) signedIn(c *fiber.Ctx) bool {
	return s.viewer(c) != nil
}

func viewerID(c *fiber.Ctx) uint {
	id, _ := middleware.CurrentUserID(c)
	return id
}

// parseID reads a positive numeric route parameter. Anything else is a missing page.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 32)
	if err != nil || id == 0 {
		return 0, models.NewNotFoundError(param, c.Params(param))
	}
	return uint(id), nil
}

// handleError maps the outcomes every view shares. Form-specific outcomes
// (validation, forbidden) are handled by the handlers before calling it.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	if wantsJSON(c) {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}
	switch {
	case models.IsCode(err, models.CodeNotFound):
		return s.renderNotFound(c)
	case models.IsCode(err, models.CodeUnauthorized):
		return c.Redirect(middleware.LoginRedirectURL(loginURL, c.OriginalURL()), fiber.StatusFound)
	default:
		return err
	}
}

func (s *Server) renderNotFound(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusNotFound, "core/404", ErrorView{Path: c.Path()})
}

// errorHandler renders the 404 page for unmatched routes and the 500 page for everything unexpected.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		switch {
		case fe.Code == fiber.StatusNotFound:
			return s.renderNotFound(c)
		case fe.Code < fiber.StatusInternalServerError:
			return c.Status(fe.Code).SendString(fe.Message)
		}
	}
	if models.IsCode(err, models.CodeNotFound) {
		return s.renderNotFound(c)
	}

	requestID, _ := c.Locals("requestid").(string)
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
		"path", c.Path(), "method", c.Method(), "error", err)

	if wantsJSON(c) {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	if rerr := s.render(c, fiber.StatusInternalServerError, "core/500", ErrorView{RequestID: requestID}); rerr != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}
	return nil
}

func (s *Server) staticPage(view string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return s.render(c, fiber.StatusOK, view, nil)
	}
}

func (s *Server) requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func formatUint(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
