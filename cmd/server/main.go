package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"tweet-cleaner/internal/adapters/browser"
	"tweet-cleaner/internal/adapters/cache"
	"tweet-cleaner/internal/adapters/metrics"
	"tweet-cleaner/internal/adapters/options"
	"tweet-cleaner/internal/adapters/web"
	"tweet-cleaner/internal/adapters/xapi"
	"tweet-cleaner/internal/config"
	"tweet-cleaner/internal/usecases"
	"tweet-cleaner/pkg/log"
)

func main() {
	cfg, _, err := config.Load(os.Args[1:])
	if err != nil {
		if config.IsHelp(err) {
			fmt.Println(err)
			return
		}
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(2)
	}

	logger, err := cfg.Logger(os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	log.SetDefault(logger)

	if err := run(cfg); err != nil {
		logger.Fatal("server stopped", "error", err)
		logger.Close()
		os.Exit(1)
	}
	logger.Close()
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Harvest options, reloaded when the file is edited by hand
	opts, err := options.Load(cfg.OptionsFile)
	if err != nil {
		return fmt.Errorf("load options: %w", err)
	}
	go opts.Watch(ctx, 2*time.Second)

	store := cache.NewCredentialStore(cfg.Session.MaxAge)
	defer store.Close()
	if creds := cfg.Credentials(time.Now()); creds.Validate() == nil {
		store.Set(creds)
		log.GlobalInfo("using credentials from configuration", "user_id", creds.UserID)
	}

	var capturer usecases.CredentialCapturer
	if cfg.CaptureEnabled() {
		pool, err := browser.NewPool(cfg.Pool())
		if err != nil {
			return fmt.Errorf("start browser: %w", err)
		}
		defer pool.Close()
		capturer = browser.NewCapturer(pool, cfg.Browser.ProfileURL, cfg.Browser.CaptureTimeout)
	} else {
		log.GlobalWarn("browser capture disabled, set CHROME_PROFILE_URL or post credentials to /api/credentials")
	}
	provider := usecases.NewCredentialProvider(store, capturer)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	client := xapi.NewClient(cfg.XClient())
	tuning := cfg.DeleteTuning()
	tracker := web.NewTracker(ctx, web.TrackerConfig{
		NewPipeline: func(progress usecases.ProgressSink, recorder usecases.Recorder) web.Pipeline {
			cleaner := usecases.NewCleaner(client, client,
				usecases.WithProgress(progress),
				usecases.WithRecorder(recorder),
			)
			cleaner.Executor().SetTuning(tuning)
			return cleaner
		},
		Metrics:     m,
		JournalPath: cfg.JournalPath,
	})

	rateLimiter := web.NewRateLimiter(cfg.StartLimit, time.Minute)
	defer rateLimiter.Close()

	handlers := web.NewHandlers(store, provider, opts, tracker)
	app := web.NewApp(handlers, rateLimiter, reg)

	go func() {
		<-ctx.Done()
		log.GlobalInfo("shutting down")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.GlobalError("http shutdown", "error", err)
		}
	}()

	log.GlobalInfo("starting tweet cleaner",
		"port", cfg.Port,
		"options_file", opts.Path(),
		"capture", cfg.CaptureEnabled(),
		"journal", cfg.JournalPath,
	)
	if err := app.Listen(":" + cfg.Port); err != nil {
		return err
	}

	// Runs are canceled with ctx; give the active one time to record its tally
	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return tracker.Wait(waitCtx)
}
