package repository

import (
	"context"

	"yatube/internal/models"
	"yatube/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostFilter narrows a post listing. Zero fields are ignored.
type PostFilter struct {
	GroupID  uint
	AuthorID uint
	// FollowerID restricts the listing to authors that this user follows.
	FollowerID uint
	// Image matches posts whose attachment is this media path.
	Image string
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	List(ctx context.Context, filter PostFilter, limit, offset int) ([]models.Post, error)
	Count(ctx context.Context, filter PostFilter) (int64, error)
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	Create(ctx context.Context, post *models.Post) error
	Update(ctx context.Context, post *models.Post) error
}

// postRepository implements PostRepository
type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

func (r *postRepository) filtered(ctx context.Context, filter PostFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Post{})
	if filter.GroupID != 0 {
		q = q.Where("posts.group_id = ?", filter.GroupID)
	}
	if filter.AuthorID != 0 {
		q = q.Where("posts.author_id = ?", filter.AuthorID)
	}
	if filter.Image != "" {
		q = q.Where("posts.image = ?", filter.Image)
	}
	if filter.FollowerID != 0 {
		followed := r.db.WithContext(ctx).Model(&models.Follow{}).
			Select("author_id").
			Where("user_id = ?", filter.FollowerID)
		q = q.Where("posts.author_id IN (?)", followed)
	}
	return q
}

func (r *postRepository) List(ctx context.Context, filter PostFilter, limit, offset int) (posts []models.Post, err error) {
	ctx, done := observability.TraceRepositoryMethod(ctx, "List", "posts")
	defer func() { done(err) }()

	err = r.filtered(ctx, filter).
		Preload("Author").
		Preload("Group").
		Order(models.PostOrder).
		Scopes(page(limit, offset)).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) Count(ctx context.Context, filter PostFilter) (count int64, err error) {
	ctx, done := observability.TraceRepositoryMethod(ctx, "Count", "posts")
	defer func() { done(err) }()

	if err = r.filtered(ctx, filter).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Group").
		First(&post, id).Error
	if err != nil {
		return nil, mapFindError(err, "Post", id)
	}
	return &post, nil
}

// Create persists a post; PubDate is set by the database layer when zero.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, "post_id", post.ID, "author_id", post.AuthorID)
	return nil
}

// Update writes the editable columns (text, group, image). Author and pub_date never change.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	res := r.db.WithContext(ctx).
		Model(&models.Post{ID: post.ID}).
		Omit(clause.Associations).
		Select("text", "group_id", "image").
		Updates(map[string]interface{}{
			"text":     post.Text,
			"group_id": post.GroupID,
			"image":    post.Image,
		})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "update")
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", post.ID)
	}
	r.log.LogUpdate(ctx, "post_id", post.ID)
	return nil
}
