package packets

// REQUESTS FOR /api/branch/*

// LoginRequest identifies a terminal by its login user or, failing that, its
// branch code.
type LoginRequest struct {
	User     string `json:"user"`
	Code     string `json:"code"`
	Password string `json:"password" binding:"required"`
}

type NowPlayingRequest struct {
	VideoID int `json:"video_id" binding:"required"`
}

// HeartbeatRequest may be sent with no body at all.
type HeartbeatRequest struct {
	VideoID *int `json:"video_id"`
}
