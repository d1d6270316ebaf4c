package repository

import (
	"context"
	"strings"

	"yatube/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GroupRepository defines read access to groups plus the upsert used by seeding.
type GroupRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Group, error)
	GetBySlug(ctx context.Context, slug string) (*models.Group, error)
	List(ctx context.Context) ([]models.Group, error)
	Upsert(ctx context.Context, group *models.Group) error
	Delete(ctx context.Context, id uint) error
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository returns a new GroupRepository implementation.
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) GetByID(ctx context.Context, id uint) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).First(&group, id).Error; err != nil {
		return nil, mapFindError(err, "Group", id)
	}
	return &group, nil
}

// GetBySlug reads the database on every call. Groups are edited out of band, so a cached copy
// could keep a deleted group's page alive.
func (r *groupRepository) GetBySlug(ctx context.Context, slug string) (*models.Group, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, models.NewNotFoundError("Group", slug)
	}

	var group models.Group
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&group).Error; err != nil {
		return nil, mapFindError(err, "Group", slug)
	}
	return &group, nil
}

func (r *groupRepository) List(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	if err := r.db.WithContext(ctx).Order("title ASC").Find(&groups).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return groups, nil
}

// Upsert inserts the group or refreshes title/description of the one with the same slug.
func (r *groupRepository) Upsert(ctx context.Context, group *models.Group) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "description"}),
	}).Create(group).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	// The returned id is not reliable after the update branch on every driver; reload by slug.
	if err := r.db.WithContext(ctx).Where("slug = ?", group.Slug).First(group).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes a group; its posts stay and lose the reference (ON DELETE SET NULL).
func (r *groupRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Group{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Group", id)
	}
	return nil
}
