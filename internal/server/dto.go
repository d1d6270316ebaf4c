package server

import (
	"time"

	"yatube/internal/models"
	"yatube/internal/pagination"
	"yatube/internal/service"
)

// layoutData is the binding every HTML page is executed with.
type layoutData struct {
	User    *UserDTO
	Path    string
	Content interface{}
}

type UserDTO struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

type GroupDTO struct {
	ID          uint   `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type PostDTO struct {
	ID      uint      `json:"id"`
	Text    string    `json:"text"`
	PubDate time.Time `json:"pub_date"`
	Author  UserDTO   `json:"author"`
	Group   *GroupDTO `json:"group,omitempty"`
	Image   string    `json:"image,omitempty"`
}

// Preview is the short form of the post used in page titles.
func (p PostDTO) Preview() string {
	return models.Post{Text: p.Text}.String()
}

type CommentDTO struct {
	ID      uint      `json:"id"`
	Text    string    `json:"text"`
	PubDate time.Time `json:"pub_date"`
	Author  UserDTO   `json:"author"`
}

type PageDTO struct {
	Number             int   `json:"number"`
	NumPages           int   `json:"num_pages"`
	PerPage            int   `json:"per_page"`
	Count              int64 `json:"count"`
	HasOtherPages      bool  `json:"-"`
	HasPrevious        bool  `json:"has_previous"`
	HasNext            bool  `json:"has_next"`
	PreviousPageNumber int   `json:"previous_page_number,omitempty"`
	NextPageNumber     int   `json:"next_page_number,omitempty"`
	PageRange          []int `json:"-"`
}

// FormDTO carries submitted values and field errors back into a form.
type FormDTO struct {
	Values  map[string]string `json:"values,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Message string            `json:"message,omitempty"`
}

type PostListView struct {
	Posts []PostDTO `json:"posts"`
	Page  PageDTO   `json:"page"`
}

type GroupView struct {
	Group GroupDTO `json:"group"`
	PostListView
}

type ProfileView struct {
	Author         UserDTO `json:"author"`
	PostsCount     int64   `json:"posts_count"`
	FollowersCount int64   `json:"followers_count"`
	FollowingCount int64   `json:"following_count"`
	Following      bool    `json:"following"`
	// CanFollow hides the follow button from anonymous viewers and the author.
	CanFollow bool `json:"-"`
	PostListView
}

type PostDetailView struct {
	Post             PostDTO      `json:"post"`
	Comments         []CommentDTO `json:"comments"`
	AuthorPostsCount int64        `json:"author_posts_count"`
	CanEdit          bool         `json:"can_edit"`
	Form             FormDTO      `json:"-"`
}

type PostFormView struct {
	IsEdit bool       `json:"is_edit"`
	PostID uint       `json:"post_id,omitempty"`
	Form   FormDTO    `json:"form"`
	Groups []GroupDTO `json:"groups"`
	Image  string     `json:"image,omitempty"`
}

type LoginView struct {
	Form FormDTO `json:"form"`
	Next string  `json:"next,omitempty"`
}

type ErrorView struct {
	Path      string `json:"path,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func newUserDTO(u *models.User) UserDTO {
	if u == nil {
		return UserDTO{}
	}
	return UserDTO{ID: u.ID, Username: u.Username, FullName: u.FullName()}
}

func newGroupDTO(g *models.Group) GroupDTO {
	return GroupDTO{ID: g.ID, Slug: g.Slug, Title: g.Title, Description: g.Description}
}

func newGroupDTOs(groups []models.Group) []GroupDTO {
	out := make([]GroupDTO, 0, len(groups))
	for i := range groups {
		out = append(out, newGroupDTO(&groups[i]))
	}
	return out
}

func newPostDTO(p *models.Post) PostDTO {
	dto := PostDTO{
		ID:      p.ID,
		Text:    p.Text,
		PubDate: p.PubDate,
		Author:  newUserDTO(&p.Author),
		Image:   p.Image,
	}
	if p.Group != nil {
		g := newGroupDTO(p.Group)
		dto.Group = &g
	}
	return dto
}

func newPostDTOs(posts []models.Post) []PostDTO {
	out := make([]PostDTO, 0, len(posts))
	for i := range posts {
		out = append(out, newPostDTO(&posts[i]))
	}
	return out
}

func newCommentDTOs(comments []models.Comment) []CommentDTO {
	out := make([]CommentDTO, 0, len(comments))
	for _, c := range comments {
		out = append(out, CommentDTO{
			ID:      c.ID,
			Text:    c.Text,
			PubDate: c.PubDate,
			Author:  newUserDTO(&c.Author),
		})
	}
	return out
}

func newPageDTO(p pagination.Page) PageDTO {
	return PageDTO{
		Number:             p.Number,
		NumPages:           p.NumPages,
		PerPage:            p.PerPage,
		Count:              p.Count,
		HasOtherPages:      p.HasOtherPages(),
		HasPrevious:        p.HasPrevious(),
		HasNext:            p.HasNext(),
		PreviousPageNumber: p.PreviousPageNumber(),
		NextPageNumber:     p.NextPageNumber(),
		PageRange:          p.PageRange(),
	}
}

func newPostListView(feed *service.FeedPage) PostListView {
	return PostListView{Posts: newPostDTOs(feed.Posts), Page: newPageDTO(feed.Page)}
}

// newFormDTO rebuilds a form from submitted values and the validation error, if any.
func newFormDTO(values map[string]string, err error) FormDTO {
	form := FormDTO{Values: values, Errors: map[string]string{}}
	if appErr, ok := asAppError(err); ok {
		form.Message = appErr.Message
		for field, msg := range appErr.Fields {
			form.Errors[field] = msg
		}
	}
	return form
}
