package domain

import "time"

// ContentVersion is one immutable entry of a content item's version log
type ContentVersion struct {
	ID            uint64 `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	ContentID     string `gorm:"column:content_id;type:varchar(64);not null;uniqueIndex:uk_content_version,priority:1" json:"content_id"`
	VersionNumber int    `gorm:"column:version_number;not null;uniqueIndex:uk_content_version,priority:2" json:"version_number"`
	Snapshot      `gorm:"embedded"`
	AuthorID      string    `gorm:"column:author_id;type:varchar(64)" json:"author_id"`
	RestoredFrom  *int      `gorm:"column:restored_from" json:"restored_from,omitempty"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName returns the table name for ContentVersion
func (ContentVersion) TableName() string {
	return "content_versions"
}

// DiffOp marks a span of body lines in a comparison
type DiffOp string

const (
	DiffUnchanged DiffOp = "unchanged"
	DiffAdded     DiffOp = "added"
	DiffRemoved   DiffOp = "removed"
)

// DiffSpan is a run of consecutive lines sharing the same DiffOp
type DiffSpan struct {
	Op    DiffOp   `json:"op"`
	Lines []string `json:"lines"`
}

// FieldComparison describes how one field differs between two versions.
// Spans is only filled for the body field.
type FieldComparison struct {
	Field   string     `json:"field"`
	Changed bool       `json:"changed"`
	From    string     `json:"from,omitempty"`
	To      string     `json:"to,omitempty"`
	Spans   []DiffSpan `json:"spans,omitempty"`
	Added   int        `json:"added_lines,omitempty"`
	Removed int        `json:"removed_lines,omitempty"`
}

// VersionComparison is the field level diff between two versions
type VersionComparison struct {
	ContentID     string            `json:"content_id"`
	FromVersion   int               `json:"v1"`
	ToVersion     int               `json:"v2"`
	Fields        []FieldComparison `json:"fields"`
	ChangedFields []string          `json:"changed_fields"`
}

// CleanupRequest represents request for pruning old versions
type CleanupRequest struct {
	Keep int `json:"keep" binding:"required,min=1"`
}

// CleanupResponse represents the response after pruning
type CleanupResponse struct {
	Deleted int64 `json:"deleted"`
}
