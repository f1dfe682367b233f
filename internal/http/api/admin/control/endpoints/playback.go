package endpoints

import (
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/branchcast/internal/http/api"
	"github.com/Nixie-Tech-LLC/branchcast/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/branchcast/internal/model"
	"github.com/Nixie-Tech-LLC/branchcast/internal/redis"
)

type PlaybackController struct {
	playback Playback
	cache    api.BodyCache
}

// PlaybackModule mounts the admin queue endpoints. cache may be nil.
func PlaybackModule(pb Playback, cache api.BodyCache) api.Module {
	ctl := &PlaybackController{playback: pb, cache: cache}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/branches/queue-status", ctl.queueStatus)
		c.POST("/branches/:id/playback/queue", ctl.setQueue)
		c.POST("/branches/:id/playback/advance", ctl.advance)
	})
}

// GET /api/admin/branches/queue-status
func (p *PlaybackController) queueStatus(ctx *gin.Context, _ *model.User) (any, *api.APIError) {
	body, apiErr := api.Cached(ctx, p.cache, redis.KeyStatusAll, func() (any, error) {
		return p.playback.StatusAll(ctx)
	})
	if apiErr != nil {
		return nil, apiErr
	}
	return body, nil
}

// POST /api/admin/branches/:id/playback/queue
func (p *PlaybackController) setQueue(ctx *gin.Context, _ *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	var request packets.SetQueueRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err)
	}

	status, err := p.playback.SetQueue(ctx, id, request.NowVideoID, request.Queue)
	if err != nil {
		return nil, api.FromError(err)
	}
	return status, nil
}

// POST /api/admin/branches/:id/playback/advance
func (p *PlaybackController) advance(ctx *gin.Context, _ *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	res, err := p.playback.Advance(ctx, id)
	if err != nil {
		return nil, api.FromError(err)
	}
	return res, nil
}
