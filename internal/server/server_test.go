package server

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"yatube/internal/config"
	"yatube/internal/database"
	"yatube/internal/models"
	"yatube/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testSecret   = "test-secret-key-12345678901234567890123456789012"
	testPassword = "correct horse battery"
)

type testEnv struct {
	t     *testing.T
	s     *Server
	app   *fiber.App
	db    *gorm.DB
	mr    *miniredis.Miniredis
	clock time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:srv_%s?mode=memory&cache=shared&_foreign_keys=on", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{
		Env:                  "test",
		SessionSecret:        testSecret,
		SessionCookie:        "sessionid",
		SessionTTLHours:      1,
		CacheTTLSeconds:      20,
		PostsPerPage:         10,
		MediaRoot:            t.TempDir(),
		ImageMaxUploadSizeMB: 5,
	}
	s, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = rdb.Close()
		_ = sqlDB.Close()
	})

	return &testEnv{
		t:     t,
		s:     s,
		app:   s.App(),
		db:    db,
		mr:    mr,
		clock: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (e *testEnv) user(username string) *models.User {
	e.t.Helper()
	hash, err := service.HashPassword(testPassword)
	require.NoError(e.t, err)
	u := &models.User{Username: username, Password: hash, FirstName: strings.ToUpper(username[:1]) + username[1:]}
	require.NoError(e.t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) cookie(u *models.User) string {
	e.t.Helper()
	token, _, err := e.s.sessions.Issue(u.ID, u.Username)
	require.NoError(e.t, err)
	return "sessionid=" + token
}

func (e *testEnv) group(slug string) *models.Group {
	e.t.Helper()
	g := &models.Group{Slug: slug, Title: "Group " + slug, Description: "all about " + slug}
	require.NoError(e.t, e.db.Create(g).Error)
	return g
}

// post inserts a post one minute newer than the previous one.
func (e *testEnv) post(author *models.User, group *models.Group, text string) *models.Post {
	e.t.Helper()
	e.clock = e.clock.Add(time.Minute)
	p := &models.Post{Text: text, AuthorID: author.ID, PubDate: e.clock}
	if group != nil {
		p.GroupID = &group.ID
	}
	require.NoError(e.t, e.db.Omit("Author", "Group").Create(p).Error)
	return p
}

func (e *testEnv) count(model interface{}, query string, args ...interface{}) int64 {
	e.t.Helper()
	var n int64
	q := e.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(e.t, q.Count(&n).Error)
	return n
}

func (e *testEnv) do(req *http.Request, cookie string) (*http.Response, string) {
	e.t.Helper()
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	_ = resp.Body.Close()
	return resp, string(body)
}

func (e *testEnv) get(path, cookie string) (*http.Response, string) {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil), cookie)
}

func (e *testEnv) postForm(path, cookie string, form url.Values) (*http.Response, string) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return e.do(req, cookie)
}

type filePart struct {
	field, filename string
	content         []byte
}

func (e *testEnv) postMultipart(path, cookie string, fields map[string]string, files ...filePart) (*http.Response, string) {
	e.t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(e.t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.filename)
		require.NoError(e.t, err)
		_, err = part.Write(f.content)
		require.NoError(e.t, err)
	}
	require.NoError(e.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return e.do(req, cookie)
}

func articles(body string) int {
	return strings.Count(body, `<article class="post"`)
}
