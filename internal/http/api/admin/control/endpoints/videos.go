package endpoints

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/branchcast/internal/http/api"
	"github.com/Nixie-Tech-LLC/branchcast/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/branchcast/internal/model"
	"github.com/Nixie-Tech-LLC/branchcast/internal/playback"
	"github.com/Nixie-Tech-LLC/branchcast/internal/storage"
)

type VideoController struct {
	store    VideoStore
	storage  storage.Storage
	playback Playback
}

func newVideoController(store VideoStore, storage storage.Storage, pb Playback) *VideoController {
	return &VideoController{store: store, storage: storage, playback: pb}
}

// VideoModule mounts all authenticated /videos endpoints
func VideoModule(store VideoStore, storage storage.Storage, pb Playback) api.Module {
	ctl := newVideoController(store, storage, pb)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/videos", ctl.listVideos)
		c.POST("/videos", ctl.createVideo)
		c.PUT("/videos/:id", ctl.renameVideo)
		c.DELETE("/videos/:id", ctl.deleteVideo)
	})
}

func videoResponse(v model.Video, branches []packets.BranchRef) packets.VideoResponse {
	if branches == nil {
		branches = []packets.BranchRef{}
	}
	return packets.VideoResponse{
		ID:        v.ID,
		Title:     v.Title,
		URL:       v.URL,
		Branches:  branches,
		CreatedAt: v.CreatedAt.Format(time.RFC3339),
		UpdatedAt: v.UpdatedAt.Format(time.RFC3339),
	}
}

// GET /api/admin/videos
func (v *VideoController) listVideos(ctx *gin.Context, _ *model.User) (any, *api.APIError) {
	all, err := v.store.ListVideos(ctx)
	if err != nil {
		return nil, api.FromError(err)
	}
	pairs, err := v.store.ListVideoBranches(ctx)
	if err != nil {
		return nil, api.FromError(err)
	}

	byVideo := make(map[int][]packets.BranchRef)
	for _, p := range pairs {
		byVideo[p.VideoID] = append(byVideo[p.VideoID], packets.BranchRef{ID: p.BranchID, Name: p.BranchName, Code: p.BranchCode})
	}

	out := make([]packets.VideoResponse, 0, len(all))
	for _, x := range all {
		out = append(out, videoResponse(x, byVideo[x.ID]))
	}
	return out, nil
}

// POST /api/admin/videos (multipart: title, video)
func (v *VideoController) createVideo(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	title := strings.TrimSpace(ctx.PostForm("title"))
	if title == "" {
		log.Warn().Msg("[videos] createVideo: missing title")
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "title is required"}
	}

	fileHeader, err := ctx.FormFile("video")
	if err != nil {
		log.Warn().Err(err).Msg("[videos] createVideo: missing file")
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "video file is required"}
	}
	if err := storage.ValidateVideo(fileHeader); err != nil {
		return nil, &api.APIError{Code: http.StatusUnprocessableEntity, Message: err.Error(), Field: "video"}
	}

	ref, err := v.storage.SaveFile(fileHeader, fileHeader.Filename)
	if err != nil {
		log.Error().Err(err).Msg("[videos] createVideo: save failed")
		return nil, &api.APIError{Code: http.StatusInternalServerError, Message: "could not save file"}
	}

	video, err := v.store.CreateVideo(ctx, title, ref)
	if err != nil {
		if derr := v.storage.DeleteFile(ref); derr != nil {
			log.Warn().Err(derr).Str("ref", ref).Msg("[videos] createVideo: orphaned upload")
		}
		return nil, api.FromError(err)
	}

	log.Info().Int("video_id", video.ID).Int("user_id", user.ID).Msg("[videos] uploaded")
	return api.Created(videoResponse(video, nil)), nil
}

// PUT /api/admin/videos/:id
func (v *VideoController) renameVideo(ctx *gin.Context, _ *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	var request packets.RenameVideoRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err)
	}

	video, err := v.store.RenameVideo(ctx, id, strings.TrimSpace(request.Title))
	if err != nil {
		return nil, api.FromError(err)
	}
	affected := v.catalogBranches(ctx, id)
	playing, err := v.store.PlaybackBranchesForVideo(ctx, id)
	if err != nil {
		log.Warn().Err(err).Int("video_id", id).Msg("[videos] could not list playback branches")
	}
	v.playback.NotifyBranches(ctx, playback.EventVideo, mergeBranchIDs(affected, playing)...)
	return videoResponse(video, nil), nil
}

// DELETE /api/admin/videos/:id
// Detaches the video everywhere, drops it from live queues and removes the file.
func (v *VideoController) deleteVideo(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}

	affected := v.catalogBranches(ctx, id)
	video, playbackBranches, err := v.store.DeleteVideo(ctx, id)
	if err != nil {
		return nil, api.FromError(err)
	}

	affected = mergeBranchIDs(affected, playbackBranches)
	v.playback.NotifyBranches(ctx, playback.EventVideo, affected...)

	if err := v.storage.DeleteFile(video.URL); err != nil {
		log.Warn().Err(err).Int("video_id", id).Str("ref", video.URL).Msg("[videos] deleteVideo: could not remove file")
	}
	log.Info().Int("video_id", id).Int("user_id", user.ID).Int("branches", len(affected)).Msg("[videos] deleted")
	return gin.H{"message": "video deleted"}, nil
}

// catalogBranches lists the branches whose catalog holds videoID.
func (v *VideoController) catalogBranches(ctx *gin.Context, videoID int) []int {
	pairs, err := v.store.ListVideoBranches(ctx)
	if err != nil {
		log.Warn().Err(err).Int("video_id", videoID).Msg("[videos] could not list catalog branches")
		return nil
	}
	var out []int
	for _, p := range pairs {
		if p.VideoID == videoID {
			out = append(out, p.BranchID)
		}
	}
	return out
}

// mergeBranchIDs appends the ids of extra missing from ids, keeping order.
func mergeBranchIDs(ids, extra []int) []int {
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range extra {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
