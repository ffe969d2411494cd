package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eshe-huli/keyring-store/internal/config"
	"github.com/eshe-huli/keyring-store/internal/dispatch"
	"github.com/eshe-huli/keyring-store/internal/log"
	"github.com/eshe-huli/keyring-store/internal/metrics"
	"github.com/eshe-huli/keyring-store/internal/storage"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "keyring-store",
	Short: "Content-addressed blob and document store engine",
	Long: `keyring-store is a storage engine meant to run as a host's
co-process. It speaks a length-prefixed, msgpack-framed protocol over its
stdin and stdout: stdout carries protocol frames exclusively, so all
diagnostics go to stderr (or the optional debug HTTP listener) instead.`,
	Version: Version,
	RunE:    runEngine,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"keyring-store version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("data-dir", "", "Directory holding the bbolt database (overrides config file / env)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to an optional YAML config file")
	rootCmd.PersistentFlags().String("debug-addr", "", "Address for the metrics/health HTTP listener, e.g. 127.0.0.1:9090 (disabled if empty)")

	cobra.OnInitialize(initLogging)
}

// initLogging configures the global logger from whatever the config file
// and flags resolve to, before RunE runs. It must not depend on anything
// RunE builds, since cobra runs it ahead of RunE.
func initLogging() {
	cfg, err := loadConfig(rootCmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keyring-store: %v\n", err)
		os.Exit(1)
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
}

// loadConfig merges the built-in defaults, an optional YAML file, the
// process environment, and explicit flags, in that order of increasing
// precedence.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Defaults()

	configPath, _ := cmd.PersistentFlags().GetString("config")
	cfg, err := config.LoadFile(cfg, configPath)
	if err != nil {
		return config.Config{}, err
	}

	cfg = config.ApplyEnv(cfg)

	if v, _ := cmd.PersistentFlags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.PersistentFlags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if cmd.PersistentFlags().Changed("log-json") {
		cfg.LogJSON, _ = cmd.PersistentFlags().GetBool("log-json")
	}
	if v, _ := cmd.PersistentFlags().GetString("debug-addr"); v != "" {
		cfg.DebugAddr = v
	}

	return cfg, nil
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := log.WithComponent("main")

	store, err := storage.Open(cfg.DataDir)
	if err != nil {
		metrics.SetStorageHealth(false, err.Error())
		return fmt.Errorf("opening storage at %s: %w", cfg.DataDir, err)
	}
	defer store.Close()

	metrics.SetVersion(Version)
	metrics.SetStorageHealth(true, "ready")

	collector := metrics.NewCollector(store)
	collector.Start()
	defer collector.Stop()

	if cfg.DebugAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())

		server := &http.Server{Addr: cfg.DebugAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("debug HTTP listener stopped")
			}
		}()
		defer server.Close()

		logger.Info().Str("addr", cfg.DebugAddr).Msg("debug HTTP listener started")
	}

	d := dispatch.New(store)

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Run(os.Stdin, os.Stdout)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("session loop exited")
			return err
		}
		logger.Info().Msg("session loop closed cleanly")
		return nil
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		return nil
	}
}
