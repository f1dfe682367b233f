package packets

// RESPONSES FOR /api/admin/branches/* and /api/admin/videos/*

type BranchResponse struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Code        string  `json:"code"`
	LoginUser   *string `json:"login_user"`
	HasPassword bool    `json:"has_password"`
	LastSeenAt  *string `json:"last_seen_at"`
	VideosCount *int    `json:"videos_count,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type CatalogVideoResponse struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Position int    `json:"position"`
}

type BranchDetailResponse struct {
	BranchResponse
	Videos []CatalogVideoResponse `json:"videos"`
}

type CatalogResponse struct {
	BranchID int                    `json:"branch_id"`
	Videos   []CatalogVideoResponse `json:"videos"`
}

type BranchRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type VideoResponse struct {
	ID        int         `json:"id"`
	Title     string      `json:"title"`
	URL       string      `json:"url"`
	Branches  []BranchRef `json:"branches"`
	CreatedAt string      `json:"created_at"`
	UpdatedAt string      `json:"updated_at"`
}
