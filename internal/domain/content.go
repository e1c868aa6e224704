package domain

import "time"

// Editable field names, in report order
const (
	FieldTitle   = "title"
	FieldBody    = "body"
	FieldExcerpt = "excerpt"
)

// Fields lists every editable field of a content snapshot
var Fields = []string{FieldTitle, FieldBody, FieldExcerpt}

// Snapshot is the editable field set of a content item at one point in time
type Snapshot struct {
	Title   string `gorm:"column:title;type:varchar(255)" json:"title"`
	Body    string `gorm:"column:body;type:mediumtext" json:"body"`
	Excerpt string `gorm:"column:excerpt;type:text" json:"excerpt"`
}

// Field returns the value of a named field
func (s Snapshot) Field(name string) string {
	switch name {
	case FieldTitle:
		return s.Title
	case FieldBody:
		return s.Body
	case FieldExcerpt:
		return s.Excerpt
	}
	return ""
}

// Content is the current state of a content item (contents table).
// CurrentVersionNumber always matches the newest row in content_versions.
type Content struct {
	ID                   string `gorm:"column:id;primaryKey;type:varchar(64)" json:"content_id"`
	WebsiteID            string `gorm:"column:website_id;type:varchar(64);index" json:"website_id"`
	CurrentVersionNumber int    `gorm:"column:current_version_number;not null;default:0" json:"current_version_number"`
	Snapshot             `gorm:"embedded"`
	CreatedAt            time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt            time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName returns the table name for Content
func (Content) TableName() string {
	return "contents"
}

// CreateContentRequest represents request for creating a content item
type CreateContentRequest struct {
	WebsiteID string `json:"website_id" binding:"required"`
	Title     string `json:"title" binding:"required"`
	Body      string `json:"body"`
	Excerpt   string `json:"excerpt"`
}
