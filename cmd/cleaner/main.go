// Command cleaner runs one harvest and delete pass and prints the summary.
//
//	cleaner [flags] [tweet id or status URL ...]
//
// With ids the timeline is not walked; only those tweets are deleted.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tweet-cleaner/internal/adapters/browser"
	"tweet-cleaner/internal/adapters/cache"
	"tweet-cleaner/internal/adapters/journal"
	"tweet-cleaner/internal/adapters/options"
	"tweet-cleaner/internal/adapters/web"
	"tweet-cleaner/internal/adapters/xapi"
	"tweet-cleaner/internal/config"
	"tweet-cleaner/internal/domain"
	"tweet-cleaner/internal/usecases"
	"tweet-cleaner/pkg/log"

	"github.com/google/uuid"
)

func main() {
	cfg, args, err := config.Load(os.Args[1:])
	if err != nil {
		if config.IsHelp(err) {
			fmt.Println(err)
			return
		}
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(2)
	}

	logger, err := cfg.Logger(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	log.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, args, os.Stdout)
	stop()
	if err != nil {
		logger.Error("cleaning failed", "error", err)
	}
	logger.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	runID := uuid.NewString()
	ctx = log.WithRunID(ctx, runID)

	opts, err := loadOptions(cfg.OptionsFile, args)
	if err != nil {
		return err
	}

	creds, err := credentials(ctx, cfg)
	if err != nil {
		return err
	}

	var recorder usecases.Recorder
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath, runID)
		if err != nil {
			return err
		}
		defer j.Close()
		recorder = j
	}

	client := xapi.NewClient(cfg.XClient())
	progress := usecases.ProgressFunc(func(msg string) {
		log.GlobalInfoCtx(ctx, msg)
	})
	common := []usecases.Option{usecases.WithProgress(progress), usecases.WithRecorder(recorder)}

	if cfg.DryRun {
		res, err := usecases.NewHarvester(client, common...).Harvest(ctx, creds, opts)
		for _, id := range res.IDs {
			fmt.Fprintln(out, id)
		}
		return err
	}

	cleaner := usecases.NewCleaner(client, client, common...)
	cleaner.Executor().SetTuning(cfg.DeleteTuning())
	outcome, err := cleaner.Run(ctx, creds, opts)
	fmt.Fprint(out, outcome.Summary())
	return err
}

// loadOptions reads the options file; ids given as arguments replace its ids.
func loadOptions(path string, args []string) (opts domain.HarvestOptions, err error) {
	store, err := options.Load(path)
	if err != nil {
		return opts, fmt.Errorf("load options: %w", err)
	}
	opts = store.Current()
	if len(args) > 0 {
		ids, err := web.ParseTweetRefs(args)
		if err != nil {
			return opts, err
		}
		opts.IDs = ids
	}
	return opts, nil
}

// credentials prefers the configured bundle and falls back to a browser capture.
func credentials(ctx context.Context, cfg *config.Config) (domain.Credentials, error) {
	store := cache.NewCredentialStore(cfg.Session.MaxAge)
	defer store.Close()

	if creds := cfg.Credentials(time.Now()); creds.Validate() == nil {
		store.Set(creds)
	}

	var capturer usecases.CredentialCapturer
	if cfg.CaptureEnabled() {
		pool, err := browser.NewPool(cfg.Pool())
		if err != nil {
			return domain.Credentials{}, fmt.Errorf("start browser: %w", err)
		}
		defer pool.Close()
		capturer = browser.NewCapturer(pool, cfg.Browser.ProfileURL, cfg.Browser.CaptureTimeout)
	}

	creds, err := usecases.NewCredentialProvider(store, capturer).Credentials(ctx)
	if errors.Is(err, domain.ErrMissingCredentials) && capturer == nil {
		return creds, fmt.Errorf("%w: pass --session.* flags or set CHROME_PROFILE_URL", err)
	}
	return creds, err
}
