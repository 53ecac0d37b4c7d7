package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lessonstream/internal/asset"
	"lessonstream/internal/delivery"
	"lessonstream/internal/platform/config"
	"lessonstream/internal/platform/kv"
	"lessonstream/internal/platform/logger"
	"lessonstream/internal/platform/metrics"
	"lessonstream/internal/storage"
	"lessonstream/internal/transcode"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	baseURL := config.GetEnv("BASE_URL", "http://localhost:"+port)
	mediaRoot := config.GetEnv("MEDIA_ROOT", "./media")
	dataDir := config.GetEnv("DATA_DIR", "./data")
	authSecret := config.GetEnv("AUTH_SECRET", "")
	tokenTTL := config.GetEnvDuration("TOKEN_TTL", delivery.DefaultTokenTTL)
	maxUploadMB := config.GetEnvInt64("MAX_UPLOAD_MB", 500)
	workers := config.GetEnvInt("TRANSCODE_WORKERS", 2)
	attempts := config.GetEnvInt("TRANSCODE_ATTEMPTS", transcode.DefaultAttempts)
	timeout := config.GetEnvDuration("TRANSCODE_TIMEOUT", transcode.DefaultTimeout)
	ffmpegBin := config.GetEnv("FFMPEG_BIN", "ffmpeg")
	ffprobeBin := config.GetEnv("FFPROBE_BIN", "ffprobe")

	log := logger.New(logLevel, logFormat)

	if authSecret == "" {
		log.Error("AUTH_SECRET is required")
		os.Exit(1)
	}

	files, err := storage.NewDisk(mediaRoot)
	if err != nil {
		log.Error("open media root", "error", err)
		os.Exit(1)
	}

	store, err := kv.OpenBadger(dataDir)
	if err != nil {
		log.Error("open data dir", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	assets := asset.NewBadgerStore(store.DB())
	met := metrics.New()

	tokens := delivery.NewTokenService(store, tokenTTL)
	rewriter := delivery.NewPlaylistRewriter(tokens, baseURL)

	encoder := &transcode.FFmpeg{Bin: ffmpegBin, ProbeBin: ffprobeBin}
	worker := transcode.NewWorker(assets, files, encoder, rewriter.KeyURL, log)
	queue := transcode.NewQueue(worker, workers, attempts, timeout, log, met)

	api := delivery.NewLessonAPI(
		config.GetEnv("PLATFORM_API_URL", "http://localhost:9000"),
		config.GetEnv("PLATFORM_API_TOKEN", ""),
		nil,
	)
	oracle := delivery.NewSubscriptionOracle(api, api)
	h := delivery.NewHandler(assets, files, tokens, rewriter, oracle, queue, log, met)
	h.MaxUploadBytes = maxUploadMB << 20

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Use(delivery.JWTIdentity([]byte(authSecret)))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler().ServeHTTP(w, r)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	h.Routes(r)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"base_url", baseURL,
		"media_root", mediaRoot,
		"transcode_workers", workers,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	queue.Close()
	queue.Wait()

	log.Info("server stopped")
}
