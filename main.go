package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"gongbridge/api"
	"gongbridge/handlers"
	"gongbridge/internal/config"
	"gongbridge/models"
	"gongbridge/services/agent"
	"gongbridge/services/auth"
	"gongbridge/services/extractor"
	"gongbridge/services/gong"
	"gongbridge/services/refresh"
	"gongbridge/utils"
)

func main() {
	configPath := flag.String("config", "gongbridge.yaml", "path to the bridge config file")
	flag.Parse()

	fs := afero.NewOsFs()
	cfg, err := config.Load(fs, *configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if cfg.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		}))
	}

	for _, dir := range []string{cfg.CaptureDir, "results", path.Dir(cfg.HistoryPath)} {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("create %s: %v", dir, err)
		}
	}

	store := auth.NewStore()
	authSvc := auth.NewService(store)
	provider := harCaptureProvider(fs, extractor.New(), cfg.CaptureDir)
	coordinator := refresh.NewCoordinator(provider, authSvc, cfg.CaptureTimeout())
	client := gong.NewClient(store, gong.NewLimiter(cfg.MinRequestInterval()))
	exec := agent.NewExecutor(store, coordinator, agent.DefaultTarget)
	ag := agent.New(authSvc, client, exec)

	statusHandler := handlers.NewStatusHandler(ag)
	sessionHandler := handlers.NewSessionHandler(ag, authSvc, fs)
	extractHandler := handlers.NewExtractHandler(ag, fs, "results")

	// Extraction hits the upstream API, so it gets a tighter budget than the
	// read-only endpoints.
	extractLimiter := api.NewIPRateLimiter(rate.Every(12*time.Second), 5)

	router := utils.NewRouter()
	router.Use(api.LoggingMiddleware())
	router.HandleFunc("/api/status", statusHandler.GetStatus).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/test", statusHandler.TestConnection).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/session", sessionHandler.GetSession).Methods(http.MethodGet)
	router.HandleFunc("/api/session", sessionHandler.CreateSession).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/session", sessionHandler.DeleteSession).Methods(http.MethodDelete)
	router.HandleFunc("/api/extract", extractLimiter.Limit(http.HandlerFunc(extractHandler.Extract))).
		Methods(http.MethodPost, http.MethodOptions)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute, // extractions can run long
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("gongbridge listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}

	if err := store.SaveHistory(fs, cfg.HistoryPath); err != nil {
		log.Printf("save session history: %v", err)
	}
}

// harCaptureProvider waits for a fresh HAR capture to land in dir. The
// operator (or a browser extension) drops the capture; files older than the
// refresh request are ignored so a stale capture can't satisfy it.
func harCaptureProvider(fs afero.Fs, ext *extractor.Extractor, dir string) refresh.ProviderFunc {
	return func(ctx context.Context, target string) ([]models.Artifact, error) {
		start := time.Now()
		log.Printf("waiting for a fresh %s capture in %s", target, dir)

		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
				capturePath, ok := newestCapture(fs, dir, start)
				if !ok {
					continue
				}
				log.Printf("ingesting capture %s", capturePath)
				return ext.FromHAR(fs, capturePath)
			}
		}
	}
}

// newestCapture returns the most recent HAR file in dir modified after the
// given time.
func newestCapture(fs afero.Fs, dir string, after time.Time) (string, bool) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return "", false
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModTime().After(entries[j].ModTime())
	})
	for _, entry := range entries {
		if entry.IsDir() || !entry.ModTime().After(after) {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".har") || strings.HasSuffix(name, ".har.gz") {
			return path.Join(dir, name), true
		}
	}
	return "", false
}
