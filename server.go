package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"advising/api/handlers"
	"advising/api/middleware"
	"advising/api/routes"
	"advising/config"
	"advising/db"
	"advising/logger"
	"advising/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func corsConfig(conf *config.ConfigSchema) cors.Config {
	corsConf := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range conf.Backend.CORSOrigins {
		if origin == "*" {
			corsConf.AllowAllOrigins = true
			return corsConf
		}
	}
	corsConf.AllowOrigins = conf.Backend.CORSOrigins
	return corsConf
}

func newBlobStore(ctx context.Context, conf *config.ConfigSchema) (services.BlobStore, error) {
	if conf.Uploads.Driver == "s3" {
		s3conf := conf.Uploads.S3
		return services.NewS3Store(ctx, services.S3Options{
			Bucket:          s3conf.Bucket,
			Region:          s3conf.Region,
			Endpoint:        s3conf.Endpoint,
			AccessKeyID:     s3conf.AccessKeyID,
			SecretAccessKey: s3conf.SecretAccessKey,
			PublicURL:       s3conf.PublicURL,
		})
	}
	return services.NewLocalStore(conf.Uploads.Dir, conf.Backend.PublicURL)
}

// newNotifier returns the configured notifier and a function releasing its
// resources.
func newNotifier(ctx context.Context, conf *config.ConfigSchema, conns *services.WSConnManager) (services.Notifier, func(), error) {
	switch conf.Notify.Driver {
	case "ws":
		return services.NewWSNotifier(conns), func() {}, nil
	case "rabbitmq":
		rabbit, err := services.NewRabbitNotifier(conf.Notify.RabbitMQ.URL, conf.Notify.RabbitMQ.Exchange)
		if err != nil {
			return nil, nil, err
		}
		if err = rabbit.StartConsumer(ctx, conf.Notify.RabbitMQ.Queue, conns); err != nil {
			_ = rabbit.Close()
			return nil, nil, err
		}
		return rabbit, func() { _ = rabbit.Close() }, nil
	}
	return services.NopNotifier{}, func() {}, nil
}

// newRateLimiter connects to Redis when enabled. Without Redis requests are
// not limited.
func newRateLimiter(ctx context.Context, conf *config.ConfigSchema) (*services.RateLimiter, func()) {
	if !conf.Redis.Enabled {
		return services.NewRateLimiter(nil, 0, time.Minute), func() {}
	}
	client, err := services.NewRedisClient(ctx, conf.Redis.Host, conf.Redis.Port, conf.Redis.Password, conf.Redis.DB)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, rate limiting disabled")
		return services.NewRateLimiter(nil, 0, time.Minute), func() {}
	}
	return services.NewRateLimiter(client, conf.Redis.RatePerMinute, time.Minute), func() { _ = client.Close() }
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	conf, err := config.LoadConfig(configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	logger.Init(conf.Logs.Level, conf.Logs.Format)

	if err = run(conf); err != nil {
		logger.Fatal().Err(err).Msg("Server stopped")
	}
}

// run owns every resource of the server, so deferred cleanup happens before
// main decides on the exit code.
func run(conf *config.ConfigSchema) error {
	logger.Info().Str("db", conf.Databases.Driver).Str("uploads", conf.Uploads.Driver).Str("notify", conf.Notify.Driver).Msg("Starting server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := db.Connect(conf)
	if err != nil {
		return fmt.Errorf("failed to connect to the database: %w", err)
	}
	defer manager.Close()
	if err = manager.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate the database: %w", err)
	}

	blobs, err := newBlobStore(ctx, conf)
	if err != nil {
		return fmt.Errorf("failed to init blob storage: %w", err)
	}
	conns := services.NewWSConnManager()
	notifier, closeNotifier, err := newNotifier(ctx, conf, conns)
	if err != nil {
		return fmt.Errorf("failed to init notifier: %w", err)
	}
	defer closeNotifier()
	limiter, closeRedis := newRateLimiter(ctx, conf)
	defer closeRedis()

	auth := services.NewAuthService(manager)
	profiles := services.NewProfileService(manager, blobs)
	messenger := services.NewMessenger(
		services.NewMessageStore(manager),
		services.NewConversationIndex(manager),
		profiles,
		notifier,
	)
	maxUpload := conf.Uploads.MaxSizeMB << 20

	if conf.Logs.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.PrometheusMiddleware("advising"))
	router.Use(cors.New(corsConfig(conf)))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if conf.Uploads.Driver == "local" {
		router.Static("/uploads", conf.Uploads.Dir)
	}

	h := routes.Handlers{
		Auth:     handlers.NewAuthHandlers(auth),
		Messages: handlers.NewMessageHandlers(messenger),
		Profiles: handlers.NewProfileHandlers(profiles, maxUpload),
		Uploads:  handlers.NewUploadHandlers(blobs, maxUpload),
		WS:       handlers.NewWSHandlers(conns),
	}
	routes.PublicApi(router, h)
	routes.PrivateApi(router, h, auth, limiter)

	srv := &http.Server{
		Addr:              conf.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err = <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
