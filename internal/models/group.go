package models

// Group is a topic that posts may be filed under. Groups are managed out of band.
type Group struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"size:200;not null" json:"title"`
	Slug        string `gorm:"size:50;not null;uniqueIndex" json:"slug"`
	Description string `gorm:"type:text;not null;default:''" json:"description"`
}

// TableName specifies the table name for GORM.
func (Group) TableName() string {
	return "groups"
}

func (g Group) String() string {
	return g.Title
}
