package endpoints

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/branchcast/internal/db"
	"github.com/Nixie-Tech-LLC/branchcast/internal/http/api"
	"github.com/Nixie-Tech-LLC/branchcast/internal/http/api/branch/packets"
	"github.com/Nixie-Tech-LLC/branchcast/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/branchcast/internal/model"
	"github.com/Nixie-Tech-LLC/branchcast/internal/playback"
	"github.com/Nixie-Tech-LLC/branchcast/internal/redis"
)

type BranchStore interface {
	GetBranchByCode(ctx context.Context, code string) (model.Branch, error)
	FindBranchByLogin(ctx context.Context, login string) (model.Branch, error)
	ListCatalog(ctx context.Context, branchID int) ([]model.CatalogEntry, error)
}

// Playback is the state machine as seen by a terminal.
type Playback interface {
	ReportNowPlaying(ctx context.Context, code string, videoID int) (playback.BranchStatus, error)
	Heartbeat(ctx context.Context, code string, videoID *int) (playback.BranchStatus, error)
	StatusByBranchID(ctx context.Context, branchID int) (playback.BranchStatus, error)
}

type Sessions interface {
	Issue(ctx context.Context, branchID int) (string, error)
	Revoke(ctx context.Context, token string) error
}

type TerminalController struct {
	store    BranchStore
	playback Playback
	sessions Sessions
	cache    api.BodyCache
}

func NewTerminalController(store BranchStore, pb Playback, sessions Sessions, cache api.BodyCache) *TerminalController {
	return &TerminalController{store: store, playback: pb, sessions: sessions, cache: cache}
}

// TerminalModule mounts the code-keyed endpoints terminals call without a
// session, plus login.
func TerminalModule(ctl *TerminalController) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.PUBLIC_POST("/branch/login", ctl.login)
		c.PUBLIC_GET("/branch/:code/videos", ctl.catalog)
		c.PUBLIC_GET("/branch/:code/queue-status", ctl.queueStatus)
		c.PUBLIC_POST("/branch/:code/now-playing", ctl.nowPlaying)
		c.PUBLIC_POST("/playback/branch/:code/heartbeat", ctl.heartbeat)
	})
}

// SessionModule mounts the endpoints that need a branch token. Mount it
// behind middleware.BranchTokenMiddleware.
func SessionModule(ctl *TerminalController) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.PUBLIC_POST("/branch/logout", ctl.logout)
		c.PUBLIC_GET("/branch/session", ctl.session)
	})
}

func branchRef(b model.Branch) packets.BranchRef {
	return packets.BranchRef{ID: b.ID, Name: b.Name, Code: b.Code}
}

func (t *TerminalController) branchByCode(ctx context.Context, code string) (model.Branch, *api.APIError) {
	b, err := t.store.GetBranchByCode(ctx, code)
	if errors.Is(err, db.ErrNotFound) {
		return model.Branch{}, api.FromError(playback.ErrBranchNotFound)
	}
	if err != nil {
		return model.Branch{}, api.FromError(err)
	}
	return b, nil
}

// GET /api/branch/:code/videos
func (t *TerminalController) catalog(ctx *gin.Context) (any, *api.APIError) {
	branch, apiErr := t.branchByCode(ctx, ctx.Param("code"))
	if apiErr != nil {
		return nil, apiErr
	}
	body, apiErr := api.Cached(ctx, t.cache, redis.CatalogKey(branch.ID), func() (any, error) {
		entries, err := t.store.ListCatalog(ctx, branch.ID)
		if err != nil {
			return nil, err
		}
		videos := make([]packets.CatalogVideo, 0, len(entries))
		for _, e := range entries {
			videos = append(videos, packets.CatalogVideo{ID: e.VideoID, Title: e.Title, URL: e.URL})
		}
		return packets.CatalogResponse{Branch: branchRef(branch), Videos: videos}, nil
	})
	if apiErr != nil {
		return nil, apiErr
	}
	return body, nil
}

// GET /api/branch/:code/queue-status
func (t *TerminalController) queueStatus(ctx *gin.Context) (any, *api.APIError) {
	branch, apiErr := t.branchByCode(ctx, ctx.Param("code"))
	if apiErr != nil {
		return nil, apiErr
	}
	body, apiErr := api.Cached(ctx, t.cache, redis.StatusKey(branch.ID), func() (any, error) {
		return t.playback.StatusByBranchID(ctx, branch.ID)
	})
	if apiErr != nil {
		return nil, apiErr
	}
	return body, nil
}

// POST /api/branch/:code/now-playing
func (t *TerminalController) nowPlaying(ctx *gin.Context) (any, *api.APIError) {
	var request packets.NowPlayingRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err)
	}
	status, err := t.playback.ReportNowPlaying(ctx, ctx.Param("code"), request.VideoID)
	if err != nil {
		return nil, api.FromError(err)
	}
	return status, nil
}

// POST /api/playback/branch/:code/heartbeat
func (t *TerminalController) heartbeat(ctx *gin.Context) (any, *api.APIError) {
	var request packets.HeartbeatRequest
	if err := ctx.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		return nil, api.BadRequest(err)
	}
	status, err := t.playback.Heartbeat(ctx, ctx.Param("code"), request.VideoID)
	if err != nil {
		return nil, api.FromError(err)
	}
	return status, nil
}

// POST /api/branch/login
func (t *TerminalController) login(ctx *gin.Context) (any, *api.APIError) {
	var request packets.LoginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err)
	}
	login := strings.TrimSpace(request.User)
	if login == "" {
		login = strings.TrimSpace(request.Code)
	}
	if login == "" {
		return nil, &api.APIError{Code: http.StatusBadRequest, Message: "user or code is required"}
	}

	branch, err := t.store.FindBranchByLogin(ctx, login)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, api.FromError(err)
	}
	if err != nil || branch.LoginPassword == nil || !middleware.CheckPassword(*branch.LoginPassword, request.Password) {
		log.Warn().Str("login", login).Msg("[branch] login rejected")
		return nil, &api.APIError{Code: http.StatusUnauthorized, Message: middleware.ErrInvalidCredentials.Error()}
	}

	token, err := t.sessions.Issue(ctx, branch.ID)
	if err != nil {
		return nil, api.FromError(err)
	}
	log.Info().Int("branch_id", branch.ID).Msg("[branch] terminal logged in")
	return packets.LoginResponse{Token: token, Branch: branchRef(branch)}, nil
}

// POST /api/branch/logout
func (t *TerminalController) logout(ctx *gin.Context) (any, *api.APIError) {
	if err := t.sessions.Revoke(ctx, middleware.GetBranchToken(ctx)); err != nil {
		return nil, api.FromError(err)
	}
	return gin.H{"message": "logged out"}, nil
}

// GET /api/branch/session
func (t *TerminalController) session(ctx *gin.Context) (any, *api.APIError) {
	branch, ok := middleware.GetCurrentBranch(ctx)
	if !ok {
		return nil, &api.APIError{Code: http.StatusUnauthorized, Message: "unauthorized"}
	}
	return packets.SessionResponse{Branch: branchRef(*branch)}, nil
}
