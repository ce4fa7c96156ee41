package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mtaani/noticeboard/internal/blob"
	"github.com/mtaani/noticeboard/internal/database"
	"github.com/mtaani/noticeboard/internal/email"
	"github.com/mtaani/noticeboard/internal/logging"
	"github.com/mtaani/noticeboard/internal/server"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// Missing .env is fine; real deployments set the environment directly.
	godotenv.Load()

	logger := logging.Setup(os.Getenv("NOTICEBOARD_LOG_LEVEL"))

	port := envOr("NOTICEBOARD_PORT", "8080")
	dbPath := envOr("NOTICEBOARD_DB_PATH", "noticeboard.db")
	baseURL := envOr("NOTICEBOARD_BASE_URL", "http://localhost:"+port)

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	emailClient := email.NewClient(
		os.Getenv("NOTICEBOARD_POSTMARK_TOKEN"),
		os.Getenv("NOTICEBOARD_FROM_EMAIL"),
		baseURL,
	)
	if !emailClient.Configured() {
		logger.Warn("email client not configured, verification emails will fail")
	}

	blobStore := blob.NewStore(blob.Config{
		Endpoint:      os.Getenv("NOTICEBOARD_S3_ENDPOINT"),
		Bucket:        os.Getenv("NOTICEBOARD_S3_BUCKET"),
		Region:        envOr("NOTICEBOARD_S3_REGION", "auto"),
		AccessKey:     os.Getenv("NOTICEBOARD_S3_ACCESS_KEY"),
		SecretKey:     os.Getenv("NOTICEBOARD_S3_SECRET_KEY"),
		PublicBaseURL: os.Getenv("NOTICEBOARD_S3_PUBLIC_URL"),
	})
	if !blobStore.Configured() {
		logger.Warn("object storage not configured, image uploads disabled")
	}

	srv := server.New(db, emailClient, blobStore, logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stopCleanup := make(chan struct{})
	go cleanupLoop(srv, logger.With("component", "cleanup"), stopCleanup)

	go func() {
		logger.Info("noticeboard running", "addr", "http://localhost:"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	close(stopCleanup)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

// cleanupLoop hourly drops expired sessions and verification tokens and
// compacts the in-memory rate-limit and cooldown tables.
func cleanupLoop(srv *server.Server, logger *slog.Logger, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if n, err := srv.SessionStore().DeleteExpired(); err != nil {
				logger.Error("delete expired sessions", "error", err)
			} else if n > 0 {
				logger.Info("deleted expired sessions", "count", n)
			}
			if n, err := srv.VerificationTokenStore().DeleteExpired(); err != nil {
				logger.Error("delete expired tokens", "error", err)
			} else if n > 0 {
				logger.Info("deleted expired verification tokens", "count", n)
			}
			srv.RateLimiter().Cleanup()
			srv.Cooldowns().Cleanup()
		}
	}
}
