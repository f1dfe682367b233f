package main

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Nixie-Tech-LLC/branchcast/internal/config"
	"github.com/Nixie-Tech-LLC/branchcast/internal/db"
	"github.com/Nixie-Tech-LLC/branchcast/internal/http/api"
	authapi "github.com/Nixie-Tech-LLC/branchcast/internal/http/api/admin/auth/endpoints"
	adminapi "github.com/Nixie-Tech-LLC/branchcast/internal/http/api/admin/control/endpoints"
	branchapi "github.com/Nixie-Tech-LLC/branchcast/internal/http/api/branch/endpoints"
	"github.com/Nixie-Tech-LLC/branchcast/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/branchcast/internal/playback"
	"github.com/Nixie-Tech-LLC/branchcast/internal/redis"
	"github.com/Nixie-Tech-LLC/branchcast/internal/storage"
)

// Deps is everything the HTTP surface is built from.
type Deps struct {
	Store    db.Store
	Storage  storage.Storage
	Playback *playback.Service
	Cache    *redis.Cache
	Sessions *redis.BranchSessions
}

// RegisterRoutes sets up all application routes
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps) {
	// CORS
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
			"HEAD",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
			"If-None-Match",
			"X-If-None-Match",
		},
		ExposeHeaders: []string{
			"Content-Length",
			"ETag",
		},
		AllowCredentials: false,
	}))

	api.MountGroup(r, api.GroupConfig{
		Prefix: "/api/admin",
		Auth:   false,
	},
		authapi.AuthPublicModule(cfg.JWTSecret, deps.Store),
	)

	api.MountGroup(r, api.GroupConfig{
		Prefix:    "/api/admin",
		Auth:      true,
		SecretKey: cfg.JWTSecret,
		Users:     deps.Store,
	},
		// session endpoints that require auth
		authapi.AuthSessionModule(cfg.JWTSecret, deps.Store),
		// control modules
		adminapi.PlaybackModule(deps.Playback, deps.Cache),
		adminapi.BranchModule(deps.Store, deps.Playback),
		adminapi.VideoModule(deps.Store, deps.Storage, deps.Playback),
	)

	terminal := branchapi.NewTerminalController(deps.Store, deps.Playback, deps.Sessions, deps.Cache)
	api.MountGroup(r, api.GroupConfig{
		Prefix: "/api",
	},
		branchapi.TerminalModule(terminal),
	)
	api.MountGroup(r, api.GroupConfig{
		Prefix:     "/api",
		Middleware: []gin.HandlerFunc{middleware.BranchTokenMiddleware(deps.Sessions, deps.Store)},
	},
		branchapi.SessionModule(terminal),
	)

	// operational
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Static content
	if !cfg.UseSpaces {
		r.Static("/uploads", cfg.UploadDir)
	}
}
