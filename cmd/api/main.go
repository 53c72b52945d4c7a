package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"studio/internal/account"
	"studio/internal/campaign"
	"studio/internal/catalog"
	"studio/internal/http/handlers"
	httpapi "studio/internal/http/httpapi"
	"studio/internal/infra"
	"studio/internal/infra/geoip"
	"studio/internal/infra/kvstore"
	"studio/internal/media"
	"studio/internal/providers/copywriter"
	"studio/internal/providers/genai"
	"studio/internal/providers/image"
	"studio/internal/providers/speech"
	"studio/internal/providers/video"
	"studio/internal/storage"
)

const shutdownGrace = 30 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer closeStore()

	accounts, err := account.NewService(account.Options{
		Store:       store,
		AdminEmail:  cfg.AdminEmail,
		FreeCredits: cfg.FreeCredits,
		TokenSecret: cfg.JWTSecret,
		SessionTTL:  cfg.SessionTTL,
		Logger:      &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build account service")
	}
	if err := accounts.Init(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize store")
	}
	if cfg.AdminEmail == "" {
		logger.Warn().Msg("ADMIN_EMAIL is not set; admin routes are unreachable")
	}

	presets, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load catalog")
	}

	client, err := genai.NewClient(genai.Options{APIKey: cfg.GeminiAPIKey, BaseURL: cfg.GeminiBaseURL, Logger: &logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build gemini client")
	}
	images, err := image.NewGenerator(image.Options{Client: client, Model: cfg.ImageModel, Logger: &logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build image generator")
	}
	videos, err := video.NewOrchestrator(video.Options{
		Client:      client,
		Model:       cfg.VideoModel,
		Interval:    cfg.VideoPollEvery,
		MaxAttempts: cfg.VideoPollMax,
		Logger:      &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build video orchestrator")
	}
	narrator, err := speech.NewSynthesizer(speech.Options{Client: client, Model: cfg.TTSModel, Voice: cfg.TTSVoice, Logger: &logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build speech synthesizer")
	}
	writer, err := copywriter.NewWriter(copywriter.Options{Client: client, Model: cfg.TextModel, Logger: &logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build copywriter")
	}
	exports, err := storage.NewFileStore(cfg.ExportPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare export directory")
	}

	registry := media.NewRegistry()
	campaigns, err := campaign.NewController(campaign.Options{
		Credits:    accounts,
		Media:      registry,
		Images:     images,
		Videos:     videos,
		Narrator:   narrator,
		Copywriter: writer,
		Exporter:   exports,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build campaign controller")
	}

	geo, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer geo.Close()

	app := &handlers.App{
		Logger:    logger,
		Accounts:  accounts,
		Campaigns: campaigns,
		Media:     registry,
		Catalog:   presets,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMin,
		CountryLookup:      geo.Lookup(),
		TokenSecret:        cfg.JWTSecret,
	})
	server := infra.NewHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr()).Msg("API listening")
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}

// openStore selects the Postgres store when DATABASE_URL is set and an
// in-memory one otherwise.
func openStore(ctx context.Context, cfg *infra.Config, logger infra.Logger) (kvstore.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info().Msg("DATABASE_URL not set; using in-memory store")
		return kvstore.NewMemory(), func() {}, nil
	}
	pool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	runner := infra.NewSQLRunner(pool, logger)
	return kvstore.NewPostgres(runner), pool.Close, nil
}
