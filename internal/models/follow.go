package models

import "fmt"

// Follow records that User receives Author's posts in their following feed.
type Follow struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	AuthorID uint `gorm:"not null;uniqueIndex:uq_follows_author_user;check:chk_follows_not_self,author_id <> user_id" json:"author_id"`
	Author   User `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	UserID   uint `gorm:"not null;uniqueIndex:uq_follows_author_user;index" json:"user_id"`
	User     User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user"`
}

// TableName specifies the table name for GORM.
func (Follow) TableName() string {
	return "follows"
}

func (f Follow) String() string {
	return fmt.Sprintf("%d follows %d", f.UserID, f.AuthorID)
}
