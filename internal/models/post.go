// Package models contains data structures for the application's domain models.
package models

import (
	"time"
	"unicode/utf8"
)

// PreviewLength is the number of characters shown when a post or comment is printed.
const PreviewLength = 15

// Post is a text entry written by a user, optionally filed under a group.
type Post struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Text     string    `gorm:"type:text;not null" json:"text"`
	PubDate  time.Time `gorm:"autoCreateTime;index" json:"pub_date"`
	AuthorID uint      `gorm:"not null;index" json:"author_id"`
	Author   User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	GroupID  *uint     `gorm:"index" json:"group_id,omitempty"`
	Group    *Group    `gorm:"foreignKey:GroupID;constraint:OnDelete:SET NULL" json:"group,omitempty"`
	// Image is a path relative to the media root; empty when the post has no attachment.
	Image string `gorm:"size:255;not null;default:''" json:"image,omitempty"`
}

// TableName specifies the table name for GORM.
func (Post) TableName() string {
	return "posts"
}

func (p Post) String() string {
	return preview(p.Text)
}

// PostOrder is the default listing order for posts.
const PostOrder = "posts.pub_date DESC NULLS LAST, posts.id DESC"

func preview(text string) string {
	if utf8.RuneCountInString(text) <= PreviewLength {
		return text
	}
	return string([]rune(text)[:PreviewLength])
}
