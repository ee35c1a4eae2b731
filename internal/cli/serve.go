package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ragchat/internal/corpus"
	"ragchat/internal/httpapi"
	"ragchat/internal/logger"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Index the data directory and serve the HTTP API",
	Long: `Indexes the configured data directory, then serves /chat, /ingest/:kind,
/health, /debug/stats and /metrics until interrupted.

With corpus.watch enabled, changes to the data directory trigger a
full re-index.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.assistant.Reload(ctx)

	api := httpapi.NewServer(a.assistant, a.metrics, httpapi.Options{
		Mode:           cfg.Server.Mode,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("SERVICE: listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("SERVICE: shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Corpus.Watch {
		w := corpus.NewWatcher(cfg.Corpus.DataDir, a.loader.Matches, corpus.DefaultDebounce)
		g.Go(func() error {
			return w.Run(gctx, func() { a.assistant.Reload(gctx) })
		})
	}
	return g.Wait()
}
