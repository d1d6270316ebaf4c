package models

import "time"

// Comment is a reply left by a user under a post.
type Comment struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	PostID   uint      `gorm:"not null;index" json:"post_id"`
	Post     *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	AuthorID uint      `gorm:"not null;index" json:"author_id"`
	Author   User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	Text     string    `gorm:"type:text;not null" json:"text"`
	PubDate  time.Time `gorm:"autoCreateTime;index" json:"pub_date"`
}

// TableName specifies the table name for GORM.
func (Comment) TableName() string {
	return "comments"
}

func (c Comment) String() string {
	return preview(c.Text)
}

// CommentOrder is the default listing order for comments.
const CommentOrder = "comments.pub_date DESC, comments.id DESC"
