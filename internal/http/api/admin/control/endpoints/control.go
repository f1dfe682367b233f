package endpoints

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/branchcast/internal/http/api"
	"github.com/Nixie-Tech-LLC/branchcast/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/branchcast/internal/model"
	"github.com/Nixie-Tech-LLC/branchcast/internal/playback"
)

type BranchStore interface {
	CreateBranch(ctx context.Context, name, code string) (model.Branch, error)
	GetBranchByID(ctx context.Context, id int) (model.Branch, error)
	ListBranches(ctx context.Context) ([]model.BranchSummary, error)
	UpdateBranch(ctx context.Context, id int, name, code string) (model.Branch, error)
	UpdateBranchCredentials(ctx context.Context, id int, loginUser *string, passwordHash *string) (model.Branch, error)
	DeleteBranch(ctx context.Context, id int) error

	SetCatalog(ctx context.Context, branchID int, videoIDs []int) ([]model.CatalogEntry, error)
	ClearCatalog(ctx context.Context, branchID int) error
	DetachVideo(ctx context.Context, branchID, videoID int) error
	ListCatalog(ctx context.Context, branchID int) ([]model.CatalogEntry, error)
}

type VideoStore interface {
	CreateVideo(ctx context.Context, title, url string) (model.Video, error)
	GetVideoByID(ctx context.Context, id int) (model.Video, error)
	ListVideos(ctx context.Context) ([]model.Video, error)
	ListVideoBranches(ctx context.Context) ([]model.VideoBranch, error)
	RenameVideo(ctx context.Context, id int, title string) (model.Video, error)
	DeleteVideo(ctx context.Context, id int) (model.Video, []int, error)
	PlaybackBranchesForVideo(ctx context.Context, videoID int) ([]int, error)
}

// Playback is the state machine as seen by the admin surface.
type Playback interface {
	SetQueue(ctx context.Context, branchID int, nowVideoID *int, queue []int) (playback.BranchStatus, error)
	Advance(ctx context.Context, branchID int) (playback.AdvanceResult, error)
	StatusAll(ctx context.Context) ([]playback.BranchStatus, error)
	NotifyBranches(ctx context.Context, kind playback.EventKind, branchIDs ...int)
	Publish(ctx context.Context, ev playback.Event)
}

func paramID(ctx *gin.Context, name string) (int, *api.APIError) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, &api.APIError{Code: http.StatusBadRequest, Message: fmt.Sprintf("invalid %s", name)}
	}
	return id, nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func branchResponse(b model.Branch) packets.BranchResponse {
	return packets.BranchResponse{
		ID:          b.ID,
		Name:        b.Name,
		Code:        b.Code,
		LoginUser:   b.LoginUser,
		HasPassword: b.LoginPassword != nil && *b.LoginPassword != "",
		LastSeenAt:  formatTime(b.LastSeenAt),
		CreatedAt:   b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   b.UpdatedAt.Format(time.RFC3339),
	}
}

func catalogResponse(entries []model.CatalogEntry) []packets.CatalogVideoResponse {
	out := make([]packets.CatalogVideoResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, packets.CatalogVideoResponse{ID: e.VideoID, Title: e.Title, URL: e.URL, Position: e.Position})
	}
	return out
}
