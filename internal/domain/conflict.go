package domain

// FieldChange is a one-sided edit relative to the base version
type FieldChange struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// FieldConflict is a field both sides changed to different values
type FieldConflict struct {
	Field  string `json:"field"`
	Base   string `json:"base"`
	Server string `json:"server"`
	Local  string `json:"local"`
}

// ConflictReport compares a client's edit against history since its base version.
// It is computed on demand and never stored.
type ConflictReport struct {
	ContentID         string          `json:"content_id"`
	BaseVersion       int             `json:"base_version"`
	LatestVersion     int             `json:"latest_version"`
	HasConflict       bool            `json:"has_conflict"`
	ConflictingFields []string        `json:"conflicting_fields"`
	Conflicts         []FieldConflict `json:"conflicts,omitempty"`
	ServerChanges     []FieldChange   `json:"server_changes"`
	LocalChanges      []FieldChange   `json:"local_changes"`
	// BaseMissing is set when the base version was pruned and a three-way
	// comparison was impossible.
	BaseMissing bool `json:"base_missing,omitempty"`
}

// DetectConflictsRequest represents request for a conflict check
type DetectConflictsRequest struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	Excerpt     string `json:"excerpt"`
	BaseVersion int    `json:"base_version" binding:"required,min=1"`
}

// Snapshot returns the proposed field set
func (r *DetectConflictsRequest) Snapshot() Snapshot {
	return Snapshot{Title: r.Title, Body: r.Body, Excerpt: r.Excerpt}
}

// SaveContentRequest represents request for saving an edit
type SaveContentRequest struct {
	Title          string `json:"title"`
	Body           string `json:"body"`
	Excerpt        string `json:"excerpt"`
	BaseVersion    int    `json:"base_version" binding:"required,min=1"`
	ForceOverwrite bool   `json:"force_overwrite"`
}

// Snapshot returns the proposed field set
func (r *SaveContentRequest) Snapshot() Snapshot {
	return Snapshot{Title: r.Title, Body: r.Body, Excerpt: r.Excerpt}
}
