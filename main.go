package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"circus-pes/audit"
	"circus-pes/config"
	"circus-pes/controllers"
	"circus-pes/logger"
	"circus-pes/middlewares"
	"circus-pes/objectstore"
	"circus-pes/routes"
	"circus-pes/services"
	"circus-pes/store"
)

func main() {
	cfg, envLoaded, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	if !envLoaded {
		zlog.Info("No .env file found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, zlog *zap.Logger) error {
	pool, err := config.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	zlog.Info("Postgres connection established")

	rdb, err := config.ConnectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	s3, err := config.ConnectStorage(cfg.Storage)
	if err != nil {
		return err
	}
	bucket := objectstore.NewBucket(s3, cfg.Storage.Bucket)
	if err := bucket.EnsureBucket(ctx); err != nil {
		return err
	}

	var recorder audit.Recorder = audit.Nop{}
	if cfg.MongoURI != "" {
		db, err := config.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return err
		}
		defer func() { _ = db.Client().Disconnect(context.Background()) }()

		mongoRecorder := audit.NewMongoRecorder(db)
		if err := mongoRecorder.EnsureIndexes(ctx); err != nil {
			return err
		}
		recorder = mongoRecorder
		zlog.Info("MongoDB audit trail enabled", zap.String("database", cfg.MongoDatabase))
	}

	st := store.New(pool)
	itemService := services.NewItemService(st, bucket, recorder, zlog)
	responseService := services.NewResponseService(st, bucket, recorder, zlog)
	versionService := services.NewPatchVersionService(st, zlog)
	userService := services.NewUserService(st, recorder, zlog)
	pipeline := services.NewPipeline(st, bucket, recorder, zlog, services.UploadLimits{
		MinBytes:        cfg.Upload.MinBytes,
		MaxBytes:        cfg.Upload.MaxBytes,
		TTL:             cfg.Upload.TTL,
		PreviewMaxWidth: cfg.Upload.PreviewMaxWidth,
		MaxPixels:       cfg.Upload.MaxPixels,
	})

	if err := controllers.RegisterValidators(); err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middlewares.RequestLogger(zlog), cors.New(corsConfig(cfg.CORSOrigins)))

	routes.Register(r, routes.Deps{
		Auth:            controllers.NewAuthController(userService, cfg.JWTSecret, cfg.AuthSyncSecret, cfg.JWTTTL, zlog),
		Items:           controllers.NewItemController(itemService, pipeline, zlog),
		Responses:       controllers.NewResponseController(responseService, pipeline, zlog),
		PatchVersions:   controllers.NewPatchVersionController(versionService, zlog),
		Users:           controllers.NewUserController(userService, zlog),
		JWTSecret:       []byte(cfg.JWTSecret),
		UserLookup:      userService,
		Redis:           rdb,
		SubmissionLimit: cfg.SubmissionLimitPerDay,
		Log:             zlog,
	})

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("API listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
