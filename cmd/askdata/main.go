package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/comigor/askdata-go/internal/config"
	"github.com/comigor/askdata-go/internal/engine"
	"github.com/comigor/askdata-go/internal/logger"
	"github.com/comigor/askdata-go/internal/mcpserver"
	"github.com/comigor/askdata-go/internal/server"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "askdata",
		Short:         "Ask questions about ChipChip operational data in plain language",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	var cfgPath string
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default ./config.yaml, or $CONFIG_PATH)")
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		if cfgPath != "" {
			return os.Setenv("CONFIG_PATH", cfgPath)
		}
		return nil
	}

	root.AddCommand(serveCMD(), askCMD(), mcpCMD())
	if err := root.Execute(); err != nil {
		logger.L.Error("askdata failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger.SetLevel(cfg.Log.Level)
	return cfg, nil
}

// setupLogging points the logger at console, plus log.file when configured.
func setupLogging(cfg *config.Config, console io.Writer) (func(), error) {
	if cfg.Log.File == "" {
		logger.SetFormat(cfg.Log.Format, console)
		return func() {}, nil
	}
	f, err := logger.OpenFile(cfg.Log.File)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger.SetFormat(cfg.Log.Format, io.MultiWriter(console, f))
	return func() { _ = f.Close() }, nil
}

func serveCMD() *cobra.Command {
	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			closeLog, err := setupLogging(cfg, os.Stdout)
			if err != nil {
				return err
			}
			defer closeLog()
			if addr == "" {
				addr = cfg.Server.Addr()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := &http.Server{
				Addr:              addr,
				Handler:           server.NewRouter(a.engine, a.db, cfg.Log.File),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.L.Info("starting server", "address", addr, "version", version)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				logger.L.Info("shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Planner.Timeout+5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (default from server.host and server.port)")
	return serve
}

func askCMD() *cobra.Command {
	var sessionID string
	ask := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question and print the JSON result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			closeLog, err := setupLogging(cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer closeLog()

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.engine.RunQuery(cmd.Context(), engine.Request{Question: strings.Join(args, " "), SessionID: sessionID})
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if !res.OK() {
				return errors.New(res.Message)
			}
			return nil
		},
	}
	ask.Flags().StringVarP(&sessionID, "session", "s", "", "continue an existing conversation")
	return ask
}

func mcpCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the ask_data tool over MCP stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// stdout carries the protocol.
			closeLog, err := setupLogging(cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer closeLog()

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return mcpserver.Serve(a.engine, version)
		},
	}
}
