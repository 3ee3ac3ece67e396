package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kashamit951/nego/internal/apikey"
	"github.com/kashamit951/nego/internal/app"
	"github.com/kashamit951/nego/internal/blob"
	"github.com/kashamit951/nego/internal/config"
	"github.com/kashamit951/nego/internal/email"
	"github.com/kashamit951/nego/internal/export"
	"github.com/kashamit951/nego/internal/gitrepo"
	"github.com/kashamit951/nego/internal/search"
	"github.com/kashamit951/nego/internal/session"
	"github.com/kashamit951/nego/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		log.Fatalf("failed to create repos dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	keyService := apikey.NewService(dataStore, cfg.KeyPepper)
	gitService := gitrepo.New(cfg.ReposDir)

	var redisStore *session.RedisStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err = session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Printf("redis unavailable, using PostgreSQL for refresh sessions: %v", err)
		}
	}

	var service *app.Service
	if redisStore != nil {
		log.Printf("Using Redis for refresh session storage")
		defer redisStore.Close()
		service = app.New(cfg, dataStore, redisStore, keyService, gitService)
	} else {
		log.Printf("Using PostgreSQL for refresh session storage")
		service = app.New(cfg, dataStore, dataStore, keyService, gitService)
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	service.WithSearch(search.NewService(meiliClient, pgfts))

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		blobStore, err := blob.NewStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Printf("WARNING: source archival disabled: %v", err)
		} else {
			service.WithBlobs(blobStore)
		}
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if mailer.IsConfigured() {
		service.WithMailer(mailer)
	}

	service.WithExporter(export.NewService(dataStore))

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Nego API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
