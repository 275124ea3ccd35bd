package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jscyril/feedaudio/internal/audio"
	"github.com/jscyril/feedaudio/internal/config"
	"github.com/jscyril/feedaudio/internal/coordinator"
	"github.com/jscyril/feedaudio/internal/engine"
	"github.com/jscyril/feedaudio/internal/feed"
	"github.com/jscyril/feedaudio/internal/logger"
	"github.com/jscyril/feedaudio/internal/ui"
	"github.com/jscyril/feedaudio/internal/ui/views"
	"github.com/jscyril/feedaudio/internal/waveform"
)

type flags struct {
	configPath string
	feedPath   string
	preview    bool
	logLevel   string
	imports    []string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:           "feedaudio",
		Short:         "Play the audio attached to feed posts in the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f, cmd.Flags().Changed("preview"))
		},
	}
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "Config file (default: $FEEDAUDIO_CONFIG or the user config dir)")
	root.PersistentFlags().StringVar(&f.feedPath, "feed", "", "Feed file to read and update")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	root.Flags().BoolVarP(&f.preview, "preview", "p", false, "Play preview clips instead of full tracks when available")
	root.Flags().StringSliceVarP(&f.imports, "import", "i", nil, "Add local audio files or directories to the feed before starting")

	importCmd := &cobra.Command{
		Use:   "import PATH...",
		Short: "Add local audio files to the feed and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(f)
			if err != nil {
				return err
			}
			defer log.Sync()

			fd, save, err := openFeed(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			added := importPaths(cmd.Context(), cfg, log, fd, args)
			cmd.Printf("Added %d posts, %d in feed\n", added, fd.Len())
			return save(cmd.Context())
		},
	}
	root.AddCommand(importCmd)
	return root
}

// setup loads the configuration, applies flag overrides and builds the
// file logger.
func setup(f flags) (*config.Config, *zap.Logger, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, nil, err
	}

	configPath := f.configPath
	if configPath == "" {
		configPath = config.GetConfigPath()
	}
	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if f.feedPath != "" {
		cfg.FeedPath = f.feedPath
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create data directory: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogPath,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, log, nil
}

// openFeed loads the feed from PostgreSQL when a database URL is
// configured and from the JSON feed file otherwise. save writes it back to
// the same place and releases the store.
func openFeed(ctx context.Context, cfg *config.Config) (fd *feed.Feed, save func(context.Context) error, err error) {
	if cfg.DatabaseURL == "" {
		fd, err = feed.LoadFeed(cfg.FeedPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load feed: %w", err)
		}
		return fd, func(context.Context) error { return fd.Save(cfg.FeedPath) }, nil
	}

	store, err := feed.OpenStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open feed store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	fd, err = store.Load(ctx)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("load feed: %w", err)
	}
	return fd, func(ctx context.Context) error {
		defer store.Close()
		return store.Save(ctx, fd)
	}, nil
}

func importPaths(ctx context.Context, cfg *config.Config, log *zap.Logger, fd *feed.Feed, paths []string) int {
	added, errs := feed.NewScanner(cfg.TagWorkers).Import(ctx, fd, paths)
	for _, err := range errs {
		log.Warn("import", zap.Error(err))
	}
	log.Info("imported local audio", zap.Int("added", added), zap.Int("errors", len(errs)))
	return added
}

func run(ctx context.Context, f flags, previewSet bool) error {
	cfg, log, err := setup(f)
	if err != nil {
		return err
	}
	defer log.Sync()
	if previewSet {
		cfg.UsePreview = f.preview
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fd, save, err := openFeed(ctx, cfg)
	if err != nil {
		return err
	}
	log.Info("feed loaded", zap.Bool("database", cfg.DatabaseURL != ""), zap.Int("posts", fd.Len()))

	if len(f.imports) > 0 {
		importPaths(ctx, cfg, log, fd, f.imports)
	}
	if n, err := feed.NewMetadataReader().Enrich(ctx, fd, cfg.TagWorkers); err != nil {
		log.Warn("enrich feed", zap.Error(err))
	} else if n > 0 {
		log.Info("feed enriched from tags", zap.Int("updated", n))
	}

	// Save the feed on exit
	defer func() {
		if err := save(context.WithoutCancel(ctx)); err != nil {
			log.Warn("save feed", zap.Error(err))
		}
	}()

	engOpts := engine.DefaultOptions()
	engOpts.ProgressInterval = cfg.StatusInterval.Duration
	engOpts.Volume = cfg.DefaultVolume

	binding := engine.NewBeepBinding(engine.WithLogger(log.Named("engine")))
	coord := coordinator.New(binding, coordinator.Options{
		Logger:        log.Named("coordinator"),
		EngineOptions: &engOpts,
		Rate:          cfg.DefaultRate,
		UsePreview:    cfg.UsePreview,
	})
	defer func() {
		if err := coord.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("close coordinator", zap.Error(err))
		}
	}()

	peek := views.NewPeekPlayer(binding, audio.HookOptions{
		Logger:        log.Named("peek"),
		EngineOptions: &engOpts,
	})

	fetcher := waveform.NewFetcher(
		waveform.WithTimeout(cfg.WaveformTimeout.Duration),
		waveform.WithLogger(log.Named("waveform")),
	)

	if err := ui.Run(ctx, ui.Deps{
		Coordinator: coord,
		Feed:        fd,
		Keys:        cfg.KeyBindings,
		Resolver:    waveform.NewResolver(fetcher, cfg.WaveformWidth),
		Peek:        peek,
		Logger:      log.Named("ui"),
		Refresh:     cfg.StatusInterval.Duration / 2,
	}); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}

	return nil
}
