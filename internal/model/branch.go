package model

import "time"

// Branch represents a display terminal location.
type Branch struct {
	ID            int        `db:"id"             json:"id"`
	Name          string     `db:"name"           json:"name"`
	Code          string     `db:"code"           json:"code"`
	LoginUser     *string    `db:"login_user"     json:"login_user"`
	LoginPassword *string    `db:"login_password" json:"-"`
	LastSeenAt    *time.Time `db:"last_seen_at"   json:"last_seen_at"`
	CreatedAt     time.Time  `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"     json:"updated_at"`
}

// BranchSummary is a roster row with the size of the branch catalog.
type BranchSummary struct {
	Branch
	VideoCount int `db:"video_count" json:"videos_count"`
}

// CatalogEntry is one (branch, video) assignment with its nominal position.
type CatalogEntry struct {
	BranchID int    `db:"branch_id"`
	VideoID  int    `db:"video_id"`
	Position int    `db:"position"`
	Title    string `db:"title"`
	URL      string `db:"url"`
}
