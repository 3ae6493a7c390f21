package main

import (
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/greenwinther/VibeWithMe/internal/chat"
	"github.com/greenwinther/VibeWithMe/internal/cleanup"
	"github.com/greenwinther/VibeWithMe/internal/config"
	"github.com/greenwinther/VibeWithMe/internal/logging"
	"github.com/greenwinther/VibeWithMe/internal/metrics"
	"github.com/greenwinther/VibeWithMe/internal/playback"
	"github.com/greenwinther/VibeWithMe/internal/playlist"
	"github.com/greenwinther/VibeWithMe/internal/room"
	"github.com/greenwinther/VibeWithMe/internal/user"
	"github.com/greenwinther/VibeWithMe/internal/ws"
	"github.com/greenwinther/VibeWithMe/internal/youtube"
	"github.com/greenwinther/VibeWithMe/pkg/database"
	"github.com/greenwinther/VibeWithMe/pkg/events"
	"github.com/greenwinther/VibeWithMe/pkg/presence"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.Env)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewMySQLDB(
		cfg.MySQLHost,
		cfg.MySQLPort,
		cfg.MySQLUser,
		cfg.MySQLPassword,
		cfg.MySQLDatabase,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	presenceStore := presence.NewStore(redisClient)

	var journal events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaJournal := events.NewKafkaJournal(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaJournal.Close()
		journal = kafkaJournal
	} else {
		log.Warn().Msg("KAFKA_BROKERS not set, room activity journal disabled")
	}

	// Services
	roomService := room.NewService(db, presenceStore, journal)
	userService := user.NewService(db)

	relay := ws.NewRelay()
	chatService := chat.NewService(db, presenceStore, relay, journal)
	playlistService := playlist.NewService(db, presenceStore, relay, journal)
	playbackService := playback.NewService(db, presenceStore, relay, journal)

	hub := ws.NewHub(roomService, userService, chatService, playlistService, playbackService, presenceStore)
	relay.Bind(hub)

	// Staleness sweep: scheduler enqueues on a fixed interval, a
	// concurrency-1 worker keeps it single-flight.
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	sweeper := cleanup.NewSweeper(db, presenceStore, journal, cfg.RoomTTL)

	scheduler := asynq.NewScheduler(redisOpt, nil)
	if err := cleanup.RegisterSchedule(scheduler, cfg.CleanupInterval); err != nil {
		log.Fatal().Err(err).Msg("failed to register cleanup schedule")
	}
	go func() {
		if err := scheduler.Run(); err != nil {
			log.Fatal().Err(err).Msg("cleanup scheduler stopped")
		}
	}()

	worker := asynq.NewServer(redisOpt, asynq.Config{Concurrency: 1})
	go func() {
		if err := worker.Run(sweeper.Mux()); err != nil {
			log.Fatal().Err(err).Msg("cleanup worker stopped")
		}
	}()

	// Handlers
	roomHandler := room.NewHandler(roomService)
	userHandler := user.NewHandler(userService)
	youtubeHandler := youtube.NewHandler(youtube.NewClient(os.Getenv("YOUTUBE_API_KEY")))

	router := gin.Default()
	router.Use(metrics.GinMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	roomHandler.RegisterRoutes(v1)
	userHandler.RegisterRoutes(v1)
	youtubeHandler.RegisterRoutes(v1)

	router.GET("/ws", ws.Serve(hub))

	log.Info().Str("port", cfg.Port).Msg("server starting")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}
