package packets

type CreateBranchRequest struct {
	Name string `json:"name" binding:"required,max=255"`
	Code string `json:"code" binding:"required,max=50"`
}

type UpdateBranchRequest struct {
	Name string `json:"name" binding:"required,max=255"`
	Code string `json:"code" binding:"required,max=50"`
}

// UpdateCredentialsRequest sets a terminal's login. A nil LoginUser clears
// it; a nil Password keeps the current one.
type UpdateCredentialsRequest struct {
	LoginUser *string `json:"login_user" binding:"omitempty,max=60"`
	Password  *string `json:"password"   binding:"omitempty,min=6"`
}

// SyncVideosRequest replaces the branch catalog with VideoIDs, in order.
type SyncVideosRequest struct {
	VideoIDs []int `json:"video_ids" binding:"required"`
}

// SetQueueRequest seeds the live playback of a branch.
type SetQueueRequest struct {
	NowVideoID *int  `json:"now_video_id"`
	Queue      []int `json:"queue"`
}

type RenameVideoRequest struct {
	Title string `json:"title" binding:"required,max=255"`
}
