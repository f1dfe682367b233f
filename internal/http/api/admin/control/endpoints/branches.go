package endpoints

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/branchcast/internal/http/api"
	"github.com/Nixie-Tech-LLC/branchcast/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/branchcast/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/branchcast/internal/model"
	"github.com/Nixie-Tech-LLC/branchcast/internal/playback"
)

type BranchController struct {
	store    BranchStore
	playback Playback
}

func newBranchController(store BranchStore, pb Playback) *BranchController {
	return &BranchController{store: store, playback: pb}
}

// BranchModule mounts branch CRUD, credentials and catalog endpoints.
func BranchModule(store BranchStore, pb Playback) api.Module {
	ctl := newBranchController(store, pb)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/branches", ctl.listBranches)
		c.POST("/branches", ctl.createBranch)
		c.GET("/branches/:id", ctl.getBranch)
		c.PUT("/branches/:id", ctl.updateBranch)
		c.DELETE("/branches/:id", ctl.deleteBranch)
		c.PUT("/branches/:id/credentials", ctl.updateCredentials)

		c.POST("/branches/:id/videos", ctl.syncVideos)
		c.DELETE("/branches/:id/videos", ctl.clearVideos)
		c.DELETE("/branches/:id/videos/:video_id", ctl.detachVideo)
	})
}

// GET /api/admin/branches
func (b *BranchController) listBranches(ctx *gin.Context, _ *model.User) (any, *api.APIError) {
	all, err := b.store.ListBranches(ctx)
	if err != nil {
		return nil, api.FromError(err)
	}
	out := make([]packets.BranchResponse, 0, len(all))
	for _, s := range all {
		resp := branchResponse(s.Branch)
		count := s.VideoCount
		resp.VideosCount = &count
		out = append(out, resp)
	}
	return out, nil
}

// POST /api/admin/branches
func (b *BranchController) createBranch(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.CreateBranchRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err)
	}

	branch, err := b.store.CreateBranch(ctx, strings.TrimSpace(request.Name), strings.TrimSpace(request.Code))
	if err != nil {
		return nil, api.FromError(err)
	}
	log.Info().Int("branch_id", branch.ID).Int("user_id", user.ID).Str("code", branch.Code).Msg("[branches] created")
	b.playback.NotifyBranches(ctx, playback.EventBranch, branch.ID)
	return api.Created(branchResponse(branch)), nil
}

// GET /api/admin/branches/:id
func (b *BranchController) getBranch(ctx *gin.Context, _ *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	branch, err := b.store.GetBranchByID(ctx, id)
	if err != nil {
		return nil, api.FromError(err)
	}
	catalog, err := b.store.ListCatalog(ctx, id)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.BranchDetailResponse{BranchResponse: branchResponse(branch), Videos: catalogResponse(catalog)}, nil
}

// PUT /api/admin/branches/:id
func (b *BranchController) updateBranch(ctx *gin.Context, _ *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	var request packets.UpdateBranchRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err)
	}

	branch, err := b.store.UpdateBranch(ctx, id, strings.TrimSpace(request.Name), strings.TrimSpace(request.Code))
	if err != nil {
		return nil, api.FromError(err)
	}
	b.playback.NotifyBranches(ctx, playback.EventBranch, branch.ID)
	return branchResponse(branch), nil
}

// DELETE /api/admin/branches/:id
func (b *BranchController) deleteBranch(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	branch, err := b.store.GetBranchByID(ctx, id)
	if err != nil {
		return nil, api.FromError(err)
	}
	if err := b.store.DeleteBranch(ctx, id); err != nil {
		return nil, api.FromError(err)
	}

	log.Info().Int("branch_id", id).Int("user_id", user.ID).Msg("[branches] deleted")
	b.playback.Publish(ctx, playback.Event{Kind: playback.EventBranch, BranchID: branch.ID, BranchCode: branch.Code})
	return gin.H{"message": "branch deleted"}, nil
}

// PUT /api/admin/branches/:id/credentials
func (b *BranchController) updateCredentials(ctx *gin.Context, _ *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	var request packets.UpdateCredentialsRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err)
	}

	var loginUser *string
	if request.LoginUser != nil {
		if trimmed := strings.TrimSpace(*request.LoginUser); trimmed != "" {
			loginUser = &trimmed
		}
	}
	var hash *string
	if request.Password != nil {
		hashed, err := middleware.HashPassword(*request.Password)
		if err != nil {
			return nil, api.FromError(err)
		}
		hash = &hashed
	}

	branch, err := b.store.UpdateBranchCredentials(ctx, id, loginUser, hash)
	if err != nil {
		return nil, api.FromError(err)
	}
	return branchResponse(branch), nil
}

// POST /api/admin/branches/:id/videos
func (b *BranchController) syncVideos(ctx *gin.Context, _ *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	var request packets.SyncVideosRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err)
	}

	catalog, err := b.store.SetCatalog(ctx, id, request.VideoIDs)
	if err != nil {
		return nil, api.FromError(err)
	}
	b.playback.NotifyBranches(ctx, playback.EventCatalog, id)
	return packets.CatalogResponse{BranchID: id, Videos: catalogResponse(catalog)}, nil
}

// DELETE /api/admin/branches/:id/videos
func (b *BranchController) clearVideos(ctx *gin.Context, _ *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	if err := b.store.ClearCatalog(ctx, id); err != nil {
		return nil, api.FromError(err)
	}
	b.playback.NotifyBranches(ctx, playback.EventCatalog, id)
	return packets.CatalogResponse{BranchID: id, Videos: []packets.CatalogVideoResponse{}}, nil
}

// DELETE /api/admin/branches/:id/videos/:video_id
func (b *BranchController) detachVideo(ctx *gin.Context, _ *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	videoID, apiErr := paramID(ctx, "video_id")
	if apiErr != nil {
		return nil, apiErr
	}
	if err := b.store.DetachVideo(ctx, id, videoID); err != nil {
		return nil, api.FromError(err)
	}
	b.playback.NotifyBranches(ctx, playback.EventCatalog, id)

	catalog, err := b.store.ListCatalog(ctx, id)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.CatalogResponse{BranchID: id, Videos: catalogResponse(catalog)}, nil
}
