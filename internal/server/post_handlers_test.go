package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"yatube/internal/models"
	"yatube/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_PaginatesAndClamps(t *testing.T) {
	e := newTestEnv(t)
	author := e.user("leo")
	for i := 0; i < 15; i++ {
		e.post(author, nil, fmt.Sprintf("post number %d", i))
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 10},
		{"?page=1", 10},
		{"?page=2", 5},
		{"?page=3", 5},
		{"?page=abc", 10},
		{"?page=-4", 10},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			resp, body := e.get("/"+tc.query, "")
			require.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.Equal(t, tc.want, articles(body))
		})
	}

	_, body := e.get("/", "")
	assert.Contains(t, body, "post number 14", "newest first")
	assert.NotContains(t, body, "post number 4<")
}

func TestIndex_IsCachedUntilTTL(t *testing.T) {
	e := newTestEnv(t)
	author := e.user("leo")
	e.post(author, nil, "first post")

	resp, first := e.get("/", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))

	e.post(author, nil, "second post")

	resp, cached := e.get("/", "")
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))
	assert.Equal(t, first, cached, "cached page is byte-identical")
	assert.NotContains(t, cached, "second post")

	e.mr.FastForward(21 * time.Second)

	_, fresh := e.get("/", "")
	assert.Contains(t, fresh, "second post")
}

func TestIndex_CacheIsPerSession(t *testing.T) {
	e := newTestEnv(t)
	leo := e.user("leo")

	_, anon := e.get("/", "")
	assert.Contains(t, anon, `href="/auth/login/"`)

	_, signedIn := e.get("/", e.cookie(leo))
	assert.Contains(t, signedIn, `href="/auth/logout/"`)
}

func TestIndex_JSON(t *testing.T) {
	e := newTestEnv(t)
	author := e.user("leo")
	cats := e.group("cats")
	e.post(author, cats, "json please")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	resp, body := e.do(req, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var view PostListView
	require.NoError(t, json.Unmarshal([]byte(body), &view))
	require.Len(t, view.Posts, 1)
	assert.Equal(t, "json please", view.Posts[0].Text)
	assert.Equal(t, "leo", view.Posts[0].Author.Username)
	require.NotNil(t, view.Posts[0].Group)
	assert.Equal(t, "cats", view.Posts[0].Group.Slug)
	assert.Equal(t, 1, view.Page.Number)
}

func TestGroupPosts(t *testing.T) {
	e := newTestEnv(t)
	author := e.user("leo")
	cats, dogs := e.group("cats"), e.group("dogs")
	e.post(author, cats, "meow")
	e.post(author, dogs, "woof")
	e.post(author, nil, "no group")

	resp, body := e.get("/group/cats/", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, articles(body))
	assert.Contains(t, body, "meow")
	assert.Contains(t, body, "all about cats")
	assert.NotContains(t, body, "woof")

	resp, body = e.get("/group/birds/", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Custom 404")
}

func TestGroupPosts_ReflectsDatastoreEdits(t *testing.T) {
	e := newTestEnv(t)
	cats := e.group("cats")

	resp, body := e.get("/group/cats/", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Group cats")

	require.NoError(t, e.db.Exec("UPDATE groups SET title = ? WHERE id = ?", "Felines", cats.ID).Error)
	_, body = e.get("/group/cats/", "")
	assert.Contains(t, body, "Felines")

	require.NoError(t, e.db.Exec("DELETE FROM groups WHERE id = ?", cats.ID).Error)
	resp, _ = e.get("/group/cats/", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestProfile(t *testing.T) {
	e := newTestEnv(t)
	leo, bob := e.user("leo"), e.user("bob")
	e.post(leo, nil, "by leo")
	e.post(bob, nil, "by bob")

	resp, body := e.get("/profile/leo/", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, articles(body))
	assert.Contains(t, body, "Posts: 1")
	assert.NotContains(t, body, "/profile/leo/follow/", "anonymous viewers get no follow button")

	_, body = e.get("/profile/leo/", e.cookie(bob))
	assert.Contains(t, body, `href="/profile/leo/follow/"`)

	_, body = e.get("/profile/leo/", e.cookie(leo))
	assert.NotContains(t, body, "/profile/leo/follow/", "no follow button on your own profile")

	resp, _ = e.get("/profile/ghost/", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestPostDetail(t *testing.T) {
	e := newTestEnv(t)
	leo, bob := e.user("leo"), e.user("bob")
	post := e.post(leo, nil, "a long enough post text")
	e.post(leo, nil, "another one")
	require.NoError(t, e.db.Create(&models.Comment{PostID: post.ID, AuthorID: bob.ID, Text: "great read"}).Error)

	path := fmt.Sprintf("/posts/%d/", post.ID)
	resp, body := e.get(path, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<title>Post a long enough p</title>")
	assert.Contains(t, body, "great read")
	assert.Contains(t, body, "Author's posts: 2")
	assert.NotContains(t, body, "Edit post")
	assert.NotContains(t, body, "Add a comment")

	_, body = e.get(path, e.cookie(leo))
	assert.Contains(t, body, "Edit post")
	assert.Contains(t, body, "Add a comment")

	_, body = e.get(path, e.cookie(bob))
	assert.NotContains(t, body, "Edit post")

	for _, missing := range []string{"/posts/9999/", "/posts/abc/", "/posts/0/"} {
		resp, _ = e.get(missing, "")
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, missing)
	}
}

func TestCreatePost_RequiresLogin(t *testing.T) {
	e := newTestEnv(t)

	resp, _ := e.get("/create/", "")
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/auth/login/?next=/create/", resp.Header.Get(fiber.HeaderLocation))

	resp, _ = e.postMultipart("/create/", "", map[string]string{"text": "sneaky"})
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Zero(t, e.count(&models.Post{}, ""))
}

func TestCreatePost(t *testing.T) {
	e := newTestEnv(t)
	leo := e.user("leo")
	cats := e.group("cats")
	cookie := e.cookie(leo)

	resp, body := e.get("/create/", cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<h1>New post</h1>")
	assert.Contains(t, body, "Group cats")

	resp, _ = e.postMultipart("/create/", cookie,
		map[string]string{"text": "hello with a picture", "group": fmt.Sprint(cats.ID)},
		filePart{field: "image", filename: "cat.png", content: testutil.TinyPNG(t, 40, 30)},
	)
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/profile/leo/", resp.Header.Get(fiber.HeaderLocation))

	var post models.Post
	require.NoError(t, e.db.First(&post).Error)
	assert.Equal(t, "hello with a picture", post.Text)
	assert.Equal(t, leo.ID, post.AuthorID)
	require.NotNil(t, post.GroupID)
	assert.Equal(t, cats.ID, *post.GroupID)
	assert.Contains(t, post.Image, "posts/")
}

func TestCreatePost_InvalidFormIsRerendered(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.cookie(e.user("leo"))

	tests := []struct {
		name    string
		fields  map[string]string
		message string
	}{
		{"empty text", map[string]string{"text": "   "}, "This field is required."},
		{"unknown group", map[string]string{"text": "hi", "group": "999"}, "Select a valid choice."},
		{"garbage group", map[string]string{"text": "hi", "group": "cats"}, "Select a valid choice."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := e.postMultipart("/create/", cookie, tc.fields)
			require.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.Contains(t, body, tc.message)
			assert.Contains(t, body, "Please correct the errors below.")
		})
	}
	assert.Zero(t, e.count(&models.Post{}, ""))
}

func TestEditPost_AuthorOnly(t *testing.T) {
	e := newTestEnv(t)
	leo, bob := e.user("leo"), e.user("bob")
	post := e.post(leo, nil, "original text")
	editPath := fmt.Sprintf("/posts/%d/edit/", post.ID)
	detailPath := fmt.Sprintf("/posts/%d/", post.ID)

	resp, _ := e.get(editPath, e.cookie(bob))
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, detailPath, resp.Header.Get(fiber.HeaderLocation))

	resp, _ = e.postMultipart(editPath, e.cookie(bob), map[string]string{"text": "hijacked"})
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, detailPath, resp.Header.Get(fiber.HeaderLocation))

	var stored models.Post
	require.NoError(t, e.db.First(&stored, post.ID).Error)
	assert.Equal(t, "original text", stored.Text)

	resp, _ = e.get(editPath, "")
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderLocation), "/auth/login/?next=")
}

func TestEditPost_ByAuthor(t *testing.T) {
	e := newTestEnv(t)
	leo := e.user("leo")
	cats := e.group("cats")
	post := e.post(leo, cats, "draft")
	editPath := fmt.Sprintf("/posts/%d/edit/", post.ID)
	cookie := e.cookie(leo)

	resp, body := e.get(editPath, cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<h1>Edit post</h1>")
	assert.Contains(t, body, ">draft</textarea>")
	assert.Contains(t, body, fmt.Sprintf(`value="%d" selected`, cats.ID))

	resp, body = e.postMultipart(editPath, cookie, map[string]string{"text": ""})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "This field is required.")
	assert.Contains(t, body, "<h1>Edit post</h1>")

	resp, _ = e.postMultipart(editPath, cookie, map[string]string{"text": "final"})
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), resp.Header.Get(fiber.HeaderLocation))

	var stored models.Post
	require.NoError(t, e.db.First(&stored, post.ID).Error)
	assert.Equal(t, "final", stored.Text)
	assert.Nil(t, stored.GroupID, "an empty group choice clears the group")
}

func TestUnknownRouteRendersNotFound(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.get("/definitely/not/here/", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Custom 404")
	assert.Contains(t, body, "/definitely/not/here/")

	req := httptest.NewRequest(http.MethodGet, "/posts/404/", nil)
	req.Header.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	resp, body = e.do(req, "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, models.CodeNotFound)
}

func TestStaticPagesAndHealth(t *testing.T) {
	e := newTestEnv(t)

	for path, want := range map[string]string{
		"/about/author/": "About the author",
		"/about/tech/":   "Technologies",
	} {
		resp, body := e.get(path, "")
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, path)
		assert.Contains(t, body, want)
		assert.NotEmpty(t, resp.Header.Get("X-Content-Type-Options"), "helmet headers are set")
	}

	resp, _ := e.get("/health/live", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body := e.get("/health/ready", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"database":"healthy"`)
	assert.Contains(t, body, `"redis":"healthy"`)

	e.mr.Close()
	resp, body = e.get("/health/ready", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, `"redis":"unhealthy"`)
}

func TestSwaggerDocument(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.get("/swagger/doc.json", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"title": "Yatube API"`)
	for _, route := range []string{`"/group/{slug}/"`, `"/profile/{username}/follow/"`, `"/posts/{id}/comment/"`} {
		assert.Contains(t, body, route)
	}
	assert.Contains(t, body, `"server.PostListView"`)
}
