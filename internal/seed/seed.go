package seed

import (
	"context"
	"fmt"
	"log/slog"

	"yatube/internal/models"
	"yatube/internal/repository"

	"gorm.io/gorm"
)

// Options configure a seeding run.
type Options struct {
	NumUsers int
	NumPosts int
	// MaxCommentsPerPost bounds the random number of comments under each post.
	MaxCommentsPerPost int
	// FollowsPerUser is how many other users each user subscribes to, at most.
	FollowsPerUser int
	ShouldClean    bool
	Factory        FactoryOptions
}

// Result counts what a seeding run stored.
type Result struct {
	Groups   int
	Users    int
	Posts    int
	Comments int
	Follows  int
}

// Seed upserts the built-in groups and generates users, posts, comments and follows.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Result, error) {
	logger := slog.Default()
	logger.Info("seeding database", "users", opts.NumUsers, "posts", opts.NumPosts)

	if opts.ShouldClean {
		if err := clearData(ctx, db); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}

	res := &Result{}
	groups, err := Groups(ctx, repository.NewGroupRepository(db))
	if err != nil {
		return nil, err
	}
	res.Groups = len(groups)

	f := NewFactory(db, opts.Factory)

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateUser(ctx)
		if err != nil {
			// Generated usernames can collide; skip and keep going.
			logger.Warn("skipping user", "error", err)
			continue
		}
		users = append(users, u)
	}
	res.Users = len(users)
	logger.Info("users created", "count", res.Users)

	if len(users) == 0 {
		return res, nil
	}

	posts := make([]*models.Post, 0, opts.NumPosts)
	for i := 0; i < opts.NumPosts; i++ {
		author := users[f.Pick(len(users))]
		// One post in three has no group.
		var group *models.Group
		if len(groups) > 0 && f.Pick(3) > 0 {
			group = &groups[f.Pick(len(groups))]
		}
		p, err := f.CreatePost(ctx, author, group)
		if err != nil {
			return nil, fmt.Errorf("create post: %w", err)
		}
		posts = append(posts, p)
	}
	res.Posts = len(posts)
	logger.Info("posts created", "count", res.Posts)

	if opts.MaxCommentsPerPost > 0 {
		for _, p := range posts {
			n := f.Pick(opts.MaxCommentsPerPost + 1)
			for j := 0; j < n; j++ {
				if _, err := f.CreateComment(ctx, users[f.Pick(len(users))], p); err != nil {
					return nil, fmt.Errorf("create comment: %w", err)
				}
				res.Comments++
			}
		}
		logger.Info("comments created", "count", res.Comments)
	}

	if opts.FollowsPerUser > 0 && len(users) > 1 {
		for _, u := range users {
			for j := 0; j < opts.FollowsPerUser; j++ {
				created, err := f.Follow(ctx, u, users[f.Pick(len(users))])
				if err != nil {
					return nil, fmt.Errorf("create follow: %w", err)
				}
				if created {
					res.Follows++
				}
			}
		}
		logger.Info("follows created", "count", res.Follows)
	}

	logger.Info("seeding completed",
		"groups", res.Groups, "users", res.Users, "posts", res.Posts,
		"comments", res.Comments, "follows", res.Follows)
	return res, nil
}

// clearData removes generated content. Groups are kept so their slugs stay stable.
func clearData(ctx context.Context, db *gorm.DB) error {
	slog.Default().Info("clearing existing data")
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.Comment{}, &models.Follow{}, &models.Post{}, &models.User{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
