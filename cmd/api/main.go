package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fableforge/tales/internal/config"
	"github.com/fableforge/tales/internal/database"
	"github.com/fableforge/tales/internal/handlers"
	"github.com/fableforge/tales/internal/llm"
	"github.com/fableforge/tales/internal/processor"
	"github.com/fableforge/tales/internal/storage"
	"github.com/fableforge/tales/migrations"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Starting Tales API")

	// Database is optional: without DATABASE_URL generation still works and
	// persistence is reported as saved=false.
	var db *database.DB
	if cfg.DatabaseURL != "" {
		db, err = database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		if err := migrations.Run(db.SQLDB()); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
	} else {
		log.Warn().Msg("DATABASE_URL not set, stories will not be persisted")
	}

	llmClient := llm.NewClient(
		cfg.OpenAIAPIKey, cfg.OpenAIBaseURL,
		cfg.TextModel, cfg.ImageModel, cfg.ImageSize,
		cfg.TextMaxTokens, cfg.TextTemperature,
		cfg.GenerationMaxRetries, cfg.GenerationRetryDelay,
	)

	// Blob storage only in the URL-illustration variant.
	var blob processor.BlobStore
	if cfg.IllustrationStorage == config.StorageS3 {
		storageClient, err := storage.NewClient(
			cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket,
			cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3UseSSL, cfg.S3PublicURL,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize storage client")
		}
		blob = storageClient
	}

	var store processor.StoryStore
	var lister handlers.StoryLister
	var health handlers.HealthChecker
	if db != nil {
		storyRepo := database.NewStoryRepository(db)
		store = storyRepo
		lister = storyRepo
		health = db
	}

	storyProcessor := processor.NewStoryProcessor(llmClient, store, blob, cfg)

	h := handlers.NewHandler(storyProcessor, lister, health, cfg.OpenAIAPIKey != "", cfg.LibraryPageSize)

	r := mux.NewRouter()
	r.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowed)
	r.HandleFunc("/healthz", h.Healthz).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/stories/generate", h.GenerateStory).Methods("POST")
	api.HandleFunc("/stories", h.ListStories).Methods("GET")

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
		// Generation waits on two provider calls; keep the write window wide.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down API...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("API exited")
}
