package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tinoosan/fetchd/internal/config"
	"github.com/tinoosan/fetchd/internal/downloadcfg"
	"github.com/tinoosan/fetchd/internal/downloader"
	"github.com/tinoosan/fetchd/internal/downloader/httpdl"
	"github.com/tinoosan/fetchd/internal/fetch"
	"github.com/tinoosan/fetchd/internal/logging"
	"github.com/tinoosan/fetchd/internal/metrics"
	"github.com/tinoosan/fetchd/internal/reconciler"
	"github.com/tinoosan/fetchd/internal/repo"
	"github.com/tinoosan/fetchd/internal/router"
	"github.com/tinoosan/fetchd/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the download API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.ValidateServe(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	l, closer, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(l)
	metrics.Register()

	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	downloadRepo := repo.NewInMemoryDownloadRepo()
	events := make(chan downloader.Event, cfg.EventsBuffer)
	adapter := httpdl.NewAdapter(downloader.NewChanReporter(events), httpdl.Options{
		Dir:       cfg.DownloadDir,
		ChunkSize: cfg.ChunkSize,
		Fetcher:   fetch.NewClient(fetch.Options{UserAgent: cfg.UserAgent}),
		Logger:    l.With("component", "httpdl"),
	})

	rec := reconciler.New(l.With("component", "reconciler"), downloadRepo, events)
	rec.Run()

	downloadSvc := service.NewDownload(downloadRepo, adapter, service.Options{
		Dir:    cfg.DownloadDir,
		Policy: downloadcfg.ParseCollisionPolicy(cfg.CollisionPolicy),
		Logger: l.With("component", "service"),
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.New(l, downloadSvc, adapter, cfg.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		l.Info("starting fetchd api", "addr", server.Addr, "dir", cfg.DownloadDir)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			rec.Stop()
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		l.Info("received terminate, graceful shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Error("http shutdown", "err", err)
	}
	if err := adapter.Shutdown(shutdownCtx); err != nil {
		l.Error("downloader shutdown", "err", err)
	}
	rec.Stop()
	l.Info("shutdown complete")
	return nil
}
