package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/entrhq/browserpool/pkg/browserpool"
	"github.com/entrhq/browserpool/pkg/config"
	"github.com/entrhq/browserpool/pkg/logging"
	"github.com/entrhq/browserpool/pkg/server"
	"github.com/entrhq/browserpool/pkg/visit"
)

const (
	envPrefix         = "BROWSERPOOL"
	shutdownTimeout   = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: "Launch the shared browser and serve /visit, /sessions and /healthz. " +
			"Settings come from the YAML file given by --config, then BROWSERPOOL_* environment variables, then flags.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// Set up signal handling for graceful shutdown
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)
			go func() {
				select {
				case <-sigChan:
					fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down gracefully...")
					cancel()
				case <-ctx.Done():
				}
			}()

			return serve(ctx, cfg, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "Path to configuration file (YAML)")
	flags.String("addr", "", "Listen address (default 0.0.0.0:3000)")
	flags.String("browser", "", "Browser engine: chromium, firefox or webkit")
	flags.Bool("install", false, "Install the browser before launching it")
	flags.String("log-level", "", "Minimum log level: debug, info, warn or error")
	flags.String("log-dir", "", "Log directory (default ~/.browserpool/logs)")
	flags.Duration("idle-timeout", 0, "Close parked sessions idle longer than this")
	flags.Duration("sweep-interval", 0, "How often idle sessions are swept")
	flags.Bool("defer-close", false, "Park released sessions for the reaper instead of closing them")

	_ = v.BindPFlags(flags)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return cmd
}

// loadConfig reads the config file and applies environment and flag overrides.
// Only explicitly set flags and variables override the file.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return nil, err
	}

	if v.IsSet("addr") {
		cfg.Server.Addr = v.GetString("addr")
	}
	if v.IsSet("browser") {
		cfg.Engine.Browser = v.GetString("browser")
	}
	if v.IsSet("install") {
		cfg.Engine.InstallBrowsers = v.GetBool("install")
	}
	if v.IsSet("log-level") {
		cfg.Logging.Level = v.GetString("log-level")
	}
	if v.IsSet("log-dir") {
		cfg.Logging.Dir = v.GetString("log-dir")
	}
	if v.IsSet("idle-timeout") {
		cfg.Reaper.IdleTimeout = v.GetDuration("idle-timeout")
	}
	if v.IsSet("sweep-interval") {
		cfg.Reaper.SweepInterval = v.GetDuration("sweep-interval")
	}
	if v.IsSet("defer-close") {
		cfg.Reaper.DeferClose = v.GetBool("defer-close")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// serve runs the pool and HTTP server until ctx is cancelled, then drains
// HTTP requests before shutting the pool down.
func serve(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if cfg.Logging.Dir != "" {
		logging.SetDirectory(cfg.Logging.Dir)
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logging.SetLevel(level)

	log, _ := logging.NewLogger("server")
	defer log.Close()
	poolLog, _ := logging.NewLogger("browserpool")
	defer poolLog.Close()

	fmt.Fprintf(out, "Launching %s...\n", cfg.Engine.Browser)
	opts := cfg.PoolOptions(poolLog)
	pool, err := browserpool.New(opts, browserpool.NewPlaywrightLauncher(opts.Engine))
	if err != nil {
		return fmt.Errorf("failed to start browser pool: %w", err)
	}
	defer pool.Shutdown()

	gin.SetMode(gin.ReleaseMode)
	// Handler panics recovered by gin go to the log file, not the terminal.
	gin.DefaultErrorWriter = log.Writer()
	srv := server.New(pool, server.Options{
		Visit: visit.Options{
			WaitUntil:   cfg.Server.WaitUntil,
			SettleDelay: cfg.Server.SettleDelay,
		},
		Logger: log,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	log.Infof("listening on %s", cfg.Server.Addr)
	announce(out, cfg.Server.Addr, log)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Infof("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnf("http server shutdown: %v", err)
	}
	return nil
}

// announce prints where the server listens and where its logs go.
func announce(out io.Writer, addr string, log *logging.Logger) {
	fmt.Fprintf(out, "browserpool v%s listening on %s\n", version, addr)

	if log.LogPath() == "" {
		fmt.Fprintln(out, "Logs: stderr")
		return
	}
	dir, err := logging.GetLogDirectory()
	if err != nil {
		fmt.Fprintln(out, "Logs: stderr")
		return
	}
	fmt.Fprintf(out, "Logs: %s (run %s)\n", dir, log.RunID())
}
