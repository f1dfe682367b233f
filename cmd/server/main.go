package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/branchcast/internal/config"
	"github.com/Nixie-Tech-LLC/branchcast/internal/db"
	"github.com/Nixie-Tech-LLC/branchcast/internal/notify"
	"github.com/Nixie-Tech-LLC/branchcast/internal/playback"
	"github.com/Nixie-Tech-LLC/branchcast/internal/redis"
)

func main() {
	// load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	// initialize PostgreSQL
	if err := db.Init(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("db init")
	}

	// run pending migrations
	if err := db.RunMigrations(db.DB, cfg.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}
	store := db.NewStore(db.DB)

	// redis backs the response cache and terminal sessions; playback keeps
	// working without it
	rdb := redis.InitRedis(cfg.RedisAddress, cfg.RedisUsername, cfg.RedisPassword)
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redis.Ping(pingCtx, rdb); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddress).Msg("[redis] not reachable, cache disabled until it is")
	}
	cancel()
	cache := redis.NewCache(rdb, cfg.StatusCacheTTL)
	sessions := redis.NewBranchSessions(rdb, cfg.BranchTokenTTL)

	notifiers := []playback.Notifier{cache}

	mqttClient, err := notify.ConnectMQTT(cfg.MQTTBrokerURL, cfg.MQTTClientID)
	if err != nil {
		log.Warn().Err(err).Msg("[mqtt] publishing disabled")
	} else {
		notifiers = append(notifiers, notify.NewMQTT(mqttClient))
		defer mqttClient.Disconnect(250)
	}

	if cfg.RabbitMQURL != "" {
		events, err := notify.DialAMQP(cfg.RabbitMQURL, notify.EventsQueue)
		if err != nil {
			log.Warn().Err(err).Msg("[amqp] event queue disabled")
		} else {
			notifiers = append(notifiers, events)
			defer events.Close()
		}
	}

	svc := playback.NewService(store, notifiers...)
	storageSystem := InitStorage(cfg)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	RegisterRoutes(r, cfg, Deps{
		Store:    store,
		Storage:  storageSystem,
		Playback: svc,
		Cache:    cache,
		Sessions: sessions,
	})

	// start
	log.Info().Str("addr", cfg.ServerAddress).Msg("listening")
	if err := r.Run(cfg.ServerAddress); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
