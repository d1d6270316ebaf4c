package server

import (
	"io"
	"strconv"
	"strings"

	"yatube/internal/models"
	"yatube/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Index renders the global feed.
// @Summary Global feed
// @Description Newest posts first, paginated. Served from the page cache for up to CACHE_TTL seconds.
// @Tags posts
// @Produce json
// @Param page query int false "Page number; out-of-range values are clamped"
// @Success 200 {object} PostListView
// @Router / [get]
func (s *Server) Index(c *fiber.Ctx) error {
	feed, err := s.feedService.Global(c.UserContext(), c.Query("page"))
	if err != nil {
		return s.handleError(c, err)
	}
	return s.render(c, fiber.StatusOK, "posts/index", newPostListView(feed))
}

// GroupPosts renders the posts filed under one group.
// @Summary Group feed
// @Tags posts
// @Produce json
// @Param slug path string true "Group slug"
// @Param page query int false "Page number"
// @Success 200 {object} GroupView
// @Failure 404 {object} models.ErrorResponse
// @Router /group/{slug}/ [get]
func (s *Server) GroupPosts(c *fiber.Ctx) error {
	group, feed, err := s.feedService.Group(c.UserContext(), c.Params("slug"), c.Query("page"))
	if err != nil {
		return s.handleError(c, err)
	}
	return s.render(c, fiber.StatusOK, "posts/group_list", GroupView{
		Group:        newGroupDTO(group),
		PostListView: newPostListView(feed),
	})
}

// Profile renders an author's posts and the viewer's follow status.
// @Summary Author profile
// @Tags users
// @Produce json
// @Param username path string true "Author username"
// @Param page query int false "Page number"
// @Success 200 {object} ProfileView
// @Failure 404 {object} models.ErrorResponse
// @Router /profile/{username}/ [get]
func (s *Server) Profile(c *fiber.Ctx) error {
	viewer := viewerID(c)
	profile, err := s.feedService.Profile(c.UserContext(), c.Params("username"), viewer, c.Query("page"))
	if err != nil {
		return s.handleError(c, err)
	}
	return s.render(c, fiber.StatusOK, "posts/profile", ProfileView{
		Author:         newUserDTO(profile.Author),
		PostsCount:     profile.PostsCount,
		FollowersCount: profile.FollowersCount,
		FollowingCount: profile.FollowingCount,
		Following:      profile.Following,
		CanFollow:      viewer != 0 && viewer != profile.Author.ID,
		PostListView: PostListView{
			Posts: newPostDTOs(profile.Posts),
			Page:  newPageDTO(profile.Page),
		},
	})
}

// PostDetail renders one post with its comments.
// @Summary Post with comments
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} PostDetailView
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/ [get]
func (s *Server) PostDetail(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return s.handleError(c, err)
	}
	detail, err := s.feedService.PostDetail(c.UserContext(), postID)
	if err != nil {
		return s.handleError(c, err)
	}
	return s.render(c, fiber.StatusOK, "posts/post_detail", PostDetailView{
		Post:             newPostDTO(detail.Post),
		Comments:         newCommentDTOs(detail.Comments),
		AuthorPostsCount: detail.AuthorPostsCount,
		CanEdit:          viewerID(c) == detail.Post.AuthorID,
		Form:             newFormDTO(nil, nil),
	})
}

// CreatePostForm renders an empty post form.
// @Summary New post form
// @Tags posts
// @Produce json
// @Success 200 {object} PostFormView
// @Failure 302 "Anonymous viewer, redirected to the login page"
// @Router /create/ [get]
func (s *Server) CreatePostForm(c *fiber.Ctx) error {
	return s.renderPostForm(c, PostFormView{Form: newFormDTO(map[string]string{}, nil)})
}

// CreatePost stores a new post and redirects to the author's profile.
// @Summary Create a post
// @Tags posts
// @Accept multipart/form-data
// @Produce json
// @Param text formData string true "Post text"
// @Param group formData int false "Group ID"
// @Param image formData file false "Image attachment"
// @Success 302 "Redirect to the author's profile"
// @Success 200 {object} PostFormView "Invalid form, re-rendered with errors"
// @Router /create/ [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	values := postFormValues(c)
	image, err := readImage(c)
	if err != nil {
		return err
	}

	_, err = s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:  viewerID(c),
		Text:    values["text"],
		GroupID: parseGroupID(values["group"]),
		Image:   image,
	})
	if err != nil {
		if models.IsCode(err, models.CodeValidation) {
			return s.renderPostForm(c, PostFormView{Form: newFormDTO(values, err)})
		}
		return s.handleError(c, err)
	}

	viewer := s.viewer(c)
	if viewer == nil {
		return c.Redirect("/", fiber.StatusFound)
	}
	return c.Redirect("/profile/"+viewer.Username+"/", fiber.StatusFound)
}

// EditPostForm renders the post form filled with the current post. Only the author may edit.
// @Summary Edit post form
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} PostFormView
// @Failure 302 "Not the author, redirected to the post"
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/edit/ [get]
func (s *Server) EditPostForm(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return s.handleError(c, err)
	}
	post, err := s.postService.GetForEdit(c.UserContext(), postID, viewerID(c))
	if err != nil {
		if models.IsCode(err, models.CodeForbidden) {
			return redirectToPost(c, postID)
		}
		return s.handleError(c, err)
	}

	values := map[string]string{"text": post.Text}
	if post.GroupID != nil {
		values["group"] = formatUint(*post.GroupID)
	}
	return s.renderPostForm(c, PostFormView{
		IsEdit: true,
		PostID: post.ID,
		Form:   newFormDTO(values, nil),
		Image:  post.Image,
	})
}

// EditPost applies the submitted form and redirects to the post.
// @Summary Update a post
// @Tags posts
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Post ID"
// @Param text formData string true "Post text"
// @Param group formData int false "Group ID"
// @Param image formData file false "Replacement image"
// @Param image-clear formData bool false "Drop the current image"
// @Success 302 "Redirect to the post"
// @Success 200 {object} PostFormView "Invalid form, re-rendered with errors"
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/edit/ [post]
func (s *Server) EditPost(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return s.handleError(c, err)
	}
	values := postFormValues(c)
	image, err := readImage(c)
	if err != nil {
		return err
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		PostID:     postID,
		UserID:     viewerID(c),
		Text:       values["text"],
		GroupID:    parseGroupID(values["group"]),
		Image:      image,
		ClearImage: c.FormValue("image-clear") != "",
	})
	if err != nil {
		switch {
		case models.IsCode(err, models.CodeForbidden):
			return redirectToPost(c, postID)
		case models.IsCode(err, models.CodeValidation):
			view := PostFormView{IsEdit: true, PostID: postID, Form: newFormDTO(values, err)}
			if current, getErr := s.postRepo.GetByID(c.UserContext(), postID); getErr == nil {
				view.Image = current.Image
			}
			return s.renderPostForm(c, view)
		}
		return s.handleError(c, err)
	}
	return redirectToPost(c, post.ID)
}

// renderPostForm fills in the group choices. Validation failures are re-rendered with 200.
func (s *Server) renderPostForm(c *fiber.Ctx, view PostFormView) error {
	groups, err := s.groupRepo.List(c.UserContext())
	if err != nil {
		return s.handleError(c, err)
	}
	view.Groups = newGroupDTOs(groups)
	return s.render(c, fiber.StatusOK, "posts/create_post", view)
}

func redirectToPost(c *fiber.Ctx, postID uint) error {
	return c.Redirect("/posts/"+formatUint(postID)+"/", fiber.StatusFound)
}

func postFormValues(c *fiber.Ctx) map[string]string {
	return map[string]string{
		"text":  c.FormValue("text"),
		"group": strings.TrimSpace(c.FormValue("group")),
	}
}

// parseGroupID maps the select value to a group reference. An empty choice means no group;
// a value that is not an ID can never match a group and fails validation as an unknown choice.
func parseGroupID(raw string) *uint {
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		id = 0
	}
	v := uint(id)
	return &v
}

// readImage returns the uploaded image, or nil when the form has none.
func readImage(c *fiber.Ctx) (*service.UploadImageInput, error) {
	fh, err := c.FormFile("image")
	if err != nil || fh == nil || fh.Size == 0 {
		return nil, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &service.UploadImageInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Content:     content,
	}, nil
}
