package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"promptmaster/internal/events"
	"promptmaster/internal/http/handlers"
	httpapi "promptmaster/internal/http/httpapi"
	"promptmaster/internal/infra"
	"promptmaster/internal/infra/credentials"
	"promptmaster/internal/infra/geoip"
	"promptmaster/internal/jobs"
	"promptmaster/internal/middleware"
	"promptmaster/internal/preview"
	"promptmaster/internal/providers/gemini"
	"promptmaster/internal/providers/image"
	"promptmaster/internal/providers/prompt"
	"promptmaster/internal/providers/video"
	"promptmaster/internal/storage"
	"promptmaster/internal/studio"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api stopped with error")
	}
	logger.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) error {
	factory := gemini.NewFactory(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		Timeout:    cfg.GenAITimeout,
	})
	client, err := factory.Client(ctx, "")
	if err != nil {
		return err
	}
	refiner, err := prompt.NewGeminiRefiner(prompt.GeminiOptions{Client: client, Model: cfg.RefineModel, Logger: &logger})
	if err != nil {
		return err
	}
	images, err := image.NewGeminiGenerator(image.GeminiOptions{Client: client, Model: cfg.ImageModel, Logger: &logger})
	if err != nil {
		return err
	}
	videos, err := video.NewVeoBackend(video.VeoOptions{Factory: factory, Model: cfg.VideoModel, Logger: &logger})
	if err != nil {
		return err
	}

	var tokens credentials.TokenStore = credentials.NewMemoryStore()
	pool, err := infra.NewDBPool(ctx, cfg)
	switch {
	case errors.Is(err, infra.ErrDatabaseDisabled):
		logger.Info().Msg("no database configured, selected keys are kept in memory")
	case err != nil:
		return err
	default:
		defer pool.Close()
		store := credentials.NewStore(infra.NewSQLRunner(pool, logger))
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		tokens = store
	}
	// Paid keys are selected per studio session; the stored gemini key is a
	// terminal client fallback and never backs a shared server.
	keys := credentials.NewSelector(tokens, nil, "")

	var jobStore jobs.Store = jobs.NewMemoryStore()
	rdb, err := infra.NewRedisClient(ctx, cfg)
	switch {
	case errors.Is(err, infra.ErrRedisDisabled):
		logger.Info().Msg("no redis configured, preview jobs are kept in memory")
	case err != nil:
		return err
	default:
		defer rdb.Close()
		jobStore = jobs.NewRedisStore(rdb, cfg.JobTTL)
	}

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		return err
	}

	workflow, err := preview.NewWorkflow(preview.Options{
		Images:       images,
		Videos:       videos,
		Gate:         keys,
		Credentials:  keys,
		Sink:         storage.NewSink(files, cfg.StorageBaseURL),
		PollInterval: cfg.VideoPollInterval,
		MaxPolls:     cfg.VideoMaxPolls,
		Logger:       &logger,
	})
	if err != nil {
		return err
	}
	manager, err := studio.NewManager(studio.ManagerOptions{
		Refiner:       refiner,
		Previewer:     workflow,
		DefaultLocale: cfg.DefaultLocale,
		Logger:        &logger,
	})
	if err != nil {
		return err
	}

	hub := events.NewHub(middleware.OriginAllowed(cfg.CORSAllowedOrigins), &logger)
	defer hub.Close()
	runner, err := jobs.NewRunner(jobs.RunnerOptions{
		Store:         jobStore,
		Workflow:      workflow,
		Events:        hub,
		MaxConcurrent: int64(cfg.MaxConcurrentPreviews),
		Logger:        &logger,
	})
	if err != nil {
		return err
	}

	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()

	app, err := handlers.NewApp(handlers.AppOptions{
		Studio: manager,
		Runner: runner,
		Jobs:   jobStore,
		Hub:    hub,
		Keys:   keys,
		Logger: &logger,
	})
	if err != nil {
		return err
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   resolver.Lookup(),
		RateLimitPerMin: cfg.RateLimitPerMin,
		MediaDir:        files.BasePath(),
		Logger:          logger,
	})
	server := infra.NewHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr()).Msg("api listening")
		return server.Start()
	})
	g.Go(func() error {
		pruneSessions(gctx, manager, cfg.JobTTL, logger)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server")
		}
		return runner.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// pruneSessions drops sessions idle for longer than ttl.
func pruneSessions(ctx context.Context, manager *studio.Manager, ttl time.Duration, logger zerolog.Logger) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := manager.Prune(now.Add(-ttl)); n > 0 {
				logger.Debug().Int("pruned", n).Int("active", manager.Len()).Msg("pruned idle sessions")
			}
		}
	}
}
