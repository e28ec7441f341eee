package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/koscakluka/ema-persona/internal/proxy"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat proxy",
	Long: `serve exposes /api/chat, which forwards generateContent requests to
Gemini with the API key from GEMINI_API_KEY, plus /healthz and /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Proxy.Addr = addr
		}

		server := proxy.NewServer(
			proxy.WithUpstreamURL(cfg.Proxy.UpstreamURL),
			proxy.WithModel(cfg.Proxy.Model),
			proxy.WithAPIKey(cfg.Proxy.APIKey),
			proxy.WithTimeout(cfg.Proxy.Timeout),
		)
		if cfg.Proxy.APIKey == "" {
			logger.Warn("GEMINI_API_KEY is not set, /api/chat will answer 503")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		httpServer := &http.Server{
			Addr:              cfg.Proxy.Addr,
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errs := make(chan error, 1)
		go func() {
			logger.Info("proxy listening", "addr", cfg.Proxy.Addr)
			errs <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-errs:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("proxy stopped: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down proxy: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides proxy.addr)")
}
