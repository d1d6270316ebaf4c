package models

import (
	"strings"
	"time"
)

// User is the identity entity. Credentials are opaque to the domain layer.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Username   string    `gorm:"size:150;not null;uniqueIndex" json:"username"`
	Password   string    `gorm:"size:128;not null" json:"-"`
	FirstName  string    `gorm:"size:150" json:"first_name"`
	LastName   string    `gorm:"size:150" json:"last_name"`
	Email      string    `gorm:"size:254" json:"email,omitempty"`
	DateJoined time.Time `gorm:"autoCreateTime" json:"date_joined"`
}

// TableName specifies the table name for GORM.
func (User) TableName() string {
	return "users"
}

// FullName returns "first last", falling back to the username.
func (u User) FullName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full == "" {
		return u.Username
	}
	return full
}

func (u User) String() string {
	return u.Username
}
