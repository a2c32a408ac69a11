// Package main is the docmerge server entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	docmerge "github.com/avela/go-docmerge"
	"github.com/avela/go-docmerge/internal/artifact"
	"github.com/avela/go-docmerge/internal/blob"
	"github.com/avela/go-docmerge/internal/config"
	"github.com/avela/go-docmerge/internal/fileutil"
	"github.com/avela/go-docmerge/internal/llm"
	"github.com/avela/go-docmerge/internal/server"
	"github.com/avela/go-docmerge/internal/yamlutil"
)

// Version is set at build time via ldflags.
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	var (
		configPath  string
		verbose     bool
		showVersion bool
		printConfig bool
	)
	flags := pflag.NewFlagSet("docmerge", pflag.ContinueOnError)
	flags.StringVarP(&configPath, "config", "c", "", "config file path (optional)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&showVersion, "version", false, "print version and exit")
	flags.BoolVar(&printConfig, "print-config", false, "print the default configuration as YAML and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if showVersion {
		fmt.Printf("docmerge version %s\n", Version)
		return
	}
	if printConfig {
		out, err := yamlutil.Marshal(config.Default())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
	// in which case Go runtime defaults apply and the program continues.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))

	if err := run(configPath, verbose); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, verbose bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg.Debug || verbose)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("docmerge starting",
		zap.String("version", Version),
		zap.Bool("debug", cfg.Debug || verbose),
	)

	client, err := llm.NewClient(llm.Config{
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   cfg.LLMTimeout(),
	})
	if err != nil {
		return fmt.Errorf("creating model client: %w", err)
	}
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := client.Ping(pingCtx); err != nil {
		logger.Warn("model provider unreachable at startup", zap.Error(err))
	}
	pingCancel()

	documents, err := artifact.Open(cfg.Storage.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("opening document store: %w", err)
	}
	defer func() { _ = documents.Close() }()

	blobs, err := blob.NewStore(cfg.Storage.BlobDir, cfg.PublicBaseURL(), logger)
	if err != nil {
		return fmt.Errorf("opening blob store: %w", err)
	}

	guidelines := docmerge.NewGuidelinesResolver(cfg.Merge.GuidelinesURL)
	synth := docmerge.NewSynthesizer(docmerge.NewAnthropicGenerator(client), guidelines, logger)

	poolSize := docmerge.ResolvePoolSize(cfg.Render.Workers)
	pool := docmerge.NewRendererPool(poolSize, docmerge.WithTimeout(cfg.RenderTimeout()))
	defer func() { _ = pool.Close() }()
	logger.Info("renderer pool ready", zap.Int("size", poolSize))

	srv := server.NewServer(synth, server.NewPooledRenderer(pool), documents, blobs, cfg, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// defaultConfigFile is picked up from the working directory when no
// --config flag is given.
const defaultConfigFile = "config.yaml"

// loadConfig loads the file at path. Without an explicit path it falls
// back to config.yaml in the working directory if one exists, otherwise
// to built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if !fileutil.FileExists(defaultConfigFile) {
			return config.Default(), nil
		}
		path = defaultConfigFile
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
