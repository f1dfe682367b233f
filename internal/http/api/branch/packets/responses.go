package packets

// RESPONSES FOR /api/branch/*

type BranchRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type CatalogVideo struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// CatalogResponse is what a terminal downloads before playing.
type CatalogResponse struct {
	Branch BranchRef      `json:"branch"`
	Videos []CatalogVideo `json:"videos"`
}

type LoginResponse struct {
	Token  string    `json:"token"`
	Branch BranchRef `json:"branch"`
}

type SessionResponse struct {
	Branch BranchRef `json:"branch"`
}
