package model

import "time"

// PlaybackState is the per-branch "current position" pointer.
type PlaybackState struct {
	ID         int        `db:"id"`
	BranchID   int        `db:"branch_id"`
	NowVideoID *int       `db:"now_video_id"`
	StartedAt  *time.Time `db:"started_at"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

// QueueItem is one pending entry of a branch's live queue.
// Order is 1-based and contiguous within a PlaybackState.
type QueueItem struct {
	ID         int       `db:"id"`
	PlaybackID int       `db:"branch_playback_id"`
	VideoID    int       `db:"video_id"`
	Order      int       `db:"order"`
	AddedAt    time.Time `db:"added_at"`
}

// BranchPlayback is one roster row joined with its (optional) playback state.
type BranchPlayback struct {
	BranchID   int        `db:"branch_id"`
	BranchName string     `db:"branch_name"`
	BranchCode string     `db:"branch_code"`
	PlaybackID *int       `db:"playback_id"`
	NowVideoID *int       `db:"now_video_id"`
	NowTitle   *string    `db:"now_title"`
	StartedAt  *time.Time `db:"started_at"`
}

// QueueEntry is a queue item joined with its video title.
type QueueEntry struct {
	BranchID int    `db:"branch_id"`
	Order    int    `db:"order"`
	VideoID  int    `db:"video_id"`
	Title    string `db:"title"`
}
