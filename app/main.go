package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/groceryroute/flyer-comb/app/browser"
	"github.com/groceryroute/flyer-comb/app/cache"
	"github.com/groceryroute/flyer-comb/app/cfg"
	"github.com/groceryroute/flyer-comb/app/config"
	"github.com/groceryroute/flyer-comb/app/database"
	"github.com/groceryroute/flyer-comb/app/flyer"
	"github.com/groceryroute/flyer-comb/app/tasks"
	"github.com/groceryroute/flyer-comb/app/translate"
	"github.com/groceryroute/flyer-comb/app/vision"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Flyer Comb", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName, appCfg.DBSSLMode)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "migration_version", version, "dirty", dirty)

	profiles, err := config.NewLoader(appCfg.ProfilesDir).LoadAll()
	if err != nil {
		slog.Error("Failed to load site profiles", "error", err)
		os.Exit(1)
	}
	if len(profiles) == 0 {
		slog.Error("No site profiles found", "dir", appCfg.ProfilesDir)
		os.Exit(1)
	}
	slog.Info("Loaded site profiles", "count", len(profiles))

	flyerRepo := database.NewFlyerRepository(db)
	productRepo := database.NewProductRepository(db)

	httpClient := &http.Client{Timeout: 30 * time.Second}

	limiter := vision.NewRateLimiter(appCfg.Regions, appCfg.RegionQuota,
		time.Duration(appCfg.QuotaWindowSec)*time.Second,
		time.Duration(appCfg.CooldownSec)*time.Second)
	describer := vision.NewClient(httpClient, appCfg.VisionEndpoint, appCfg.UserAgent)
	blobStore := vision.NewBlobStore(httpClient, appCfg.StagingURL, appCfg.UserAgent)
	visionExtractor := vision.NewExtractor(limiter, describer, blobStore, httpClient, appCfg.UserAgent)

	translateClient := translate.NewClient(httpClient, appCfg.TranslateURL, appCfg.UserAgent)

	var translator flyer.Translator = translateClient
	if appCfg.RedisAddr != "" {
		translationCache, err := cache.NewCache(appCfg.RedisAddr)
		if err != nil {
			slog.Warn("Translation cache unavailable, translating without it", "error", err)
		} else {
			defer translationCache.Close()
			translator = translate.NewCached(translateClient, translationCache, 7*24*time.Hour)
		}
	}

	namer := flyer.NewNamer(translator)

	fetcher := browser.NewFetcher(appCfg.UserAgent)
	defer fetcher.Close()

	parsers := make(map[string]*flyer.Parser, len(profiles))
	extractors := make(map[string]*flyer.FlyerExtractor, len(profiles))
	for name, profile := range profiles {
		parser := flyer.NewParser(profile)
		itemExtractor := flyer.NewItemExtractor(fetcher, parser, visionExtractor, namer, profile)
		parsers[name] = parser
		extractors[name] = flyer.NewFlyerExtractor(fetcher, parser, itemExtractor,
			productRepo, profile, appCfg.FlyerRetries, appCfg.ItemWorkers)
	}

	scheduler := tasks.NewScheduler(profiles, fetcher, flyerRepo, parsers, extractors)

	if appCfg.Once {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := scheduler.RunCycle(ctx); err != nil {
			slog.Error("Ingestion cycle failed", "error", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("Starting scheduler",
		"workers", appCfg.WorkerCount,
		"cycle_interval", appCfg.CycleMinutes)
	scheduler.Start()
	defer scheduler.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	slog.Info("Received signal, shutting down", "signal", sig.String())
}
