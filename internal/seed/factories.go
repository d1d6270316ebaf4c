// Package seed fills the database with demo data for development and tests.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"yatube/internal/models"
	"yatube/internal/repository"
	"yatube/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every generated user.
const DefaultPassword = "password123"

// FactoryOptions tune the generated data.
type FactoryOptions struct {
	// Password for generated users; DefaultPassword when empty.
	Password string
	// MaxDays spreads publication dates over this many days back from Now.
	MaxDays int
	// Seed makes the output reproducible when non-zero.
	Seed int64
	Now  func() time.Time
}

// Factory builds domain entities with fake content and stores them through the repositories.
type Factory struct {
	faker    *gofakeit.Faker
	opts     FactoryOptions
	users    *service.UserService
	posts    repository.PostRepository
	comments repository.CommentRepository
	follows  repository.FollowRepository
}

// NewFactory creates a Factory bound to db.
func NewFactory(db *gorm.DB, opts FactoryOptions) *Factory {
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{
		faker:    gofakeit.New(seed),
		opts:     opts,
		users:    service.NewUserService(repository.NewUserRepository(db)),
		posts:    repository.NewPostRepository(db),
		comments: repository.NewCommentRepository(db),
		follows:  repository.NewFollowRepository(db),
	}
}

// CreateUser stores a user with a fake name. Overrides run before the user is saved.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*service.CreateUserInput)) (*models.User, error) {
	first, last := f.faker.FirstName(), f.faker.LastName()
	in := service.CreateUserInput{
		Username:  fmt.Sprintf("%s_%s%d", strings.ToLower(first), strings.ToLower(last), f.faker.Number(10, 9999)),
		Password:  f.opts.Password,
		FirstName: first,
		LastName:  last,
		Email:     f.faker.Email(),
	}
	for _, override := range overrides {
		override(&in)
	}
	return f.users.CreateUser(ctx, in)
}

// CreatePost stores a post by author, filed under group when it is not nil.
func (f *Factory) CreatePost(ctx context.Context, author *models.User, group *models.Group, overrides ...func(*models.Post)) (*models.Post, error) {
	post := &models.Post{
		Text:     f.faker.Paragraph(1, f.faker.Number(1, 4), 12, "\n"),
		AuthorID: author.ID,
		PubDate:  f.pastTime(),
	}
	if group != nil {
		post.GroupID = &group.ID
	}
	for _, override := range overrides {
		override(post)
	}
	if err := f.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment stores a comment by author under post, dated after the post.
func (f *Factory) CreateComment(ctx context.Context, author *models.User, post *models.Post) (*models.Comment, error) {
	pubDate := post.PubDate.Add(time.Duration(f.faker.Number(1, 48*60)) * time.Minute)
	if now := f.opts.Now(); pubDate.After(now) {
		pubDate = now
	}
	comment := &models.Comment{
		PostID:   post.ID,
		AuthorID: author.ID,
		Text:     f.faker.Sentence(f.faker.Number(3, 15)),
		PubDate:  pubDate,
	}
	if err := f.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// Follow subscribes user to author. It reports whether a new subscription was stored.
func (f *Factory) Follow(ctx context.Context, user, author *models.User) (bool, error) {
	if user.ID == author.ID {
		return false, nil
	}
	return f.follows.Create(ctx, user.ID, author.ID)
}

// Pick returns a random index in [0, n).
func (f *Factory) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	return f.faker.Number(0, n-1)
}

func (f *Factory) pastTime() time.Time {
	back := time.Duration(f.faker.Number(0, f.opts.MaxDays*24*60)) * time.Minute
	return f.opts.Now().Add(-back).Truncate(time.Second)
}
