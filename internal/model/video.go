package model

import "time"

// Video is an uploaded media asset. URL is the opaque storage reference.
type Video struct {
	ID        int       `db:"id"          json:"id"`
	Title     string    `db:"title"       json:"title"`
	URL       string    `db:"url"         json:"url"`
	CreatedAt time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt time.Time `db:"updated_at"  json:"updated_at"`
}

// VideoBranch links a video to one branch whose catalog contains it.
type VideoBranch struct {
	VideoID    int    `db:"video_id"`
	BranchID   int    `db:"branch_id"`
	BranchName string `db:"branch_name"`
	BranchCode string `db:"branch_code"`
}
