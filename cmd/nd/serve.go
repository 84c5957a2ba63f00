package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/archive"
	"github.com/alfredjeanlab/newsdesk/internal/config"
	"github.com/alfredjeanlab/newsdesk/internal/events"
	"github.com/alfredjeanlab/newsdesk/internal/kv"
	"github.com/alfredjeanlab/newsdesk/internal/payment"
	"github.com/alfredjeanlab/newsdesk/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the newsdesk server",
	GroupID: "system",
	Long: `Start the newsdesk HTTP server (and the gRPC health endpoint). All settings
come from NEWSDESK_* environment variables; see NEWSDESK_STORE_URL for the
supported storage backends.`,
	// Override PersistentPreRunE so we don't build an API client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
		slog.SetDefault(logger)

		store, err := openStore(context.Background(), cfg.StoreURL)
		if err != nil {
			return err
		}

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				store.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (NEWSDESK_NATS_URL not set)")
		}

		scheduler := newArchiveScheduler(cfg, store, logger)

		opts := server.Options{
			PaidBriefs: cfg.Paid(),
			PriceSats:  cfg.BriefPriceSats,
			ShareBPS:   cfg.ShareBPS,
			Asset:      cfg.PaymentAsset,
			PayTo:      cfg.PaymentPayTo,
			Archive:    scheduler,
		}
		if cfg.Paid() {
			opts.Settler = payment.NewRelayClient(cfg.PaymentRelayURL, nil)
			logger.Info("paid briefs enabled", "price_sats", cfg.BriefPriceSats, "relay", cfg.PaymentRelayURL)
		}
		newsServer := server.NewNewsServer(store, publisher, opts)

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           newsServer.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		grpcServer, healthServer := server.NewGRPCServer()
		if cfg.GRPCAddr != "" {
			lis, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				httpServer.Close()
				publisher.Close()
				store.Close()
				return err
			}
			go func() {
				logger.Info("gRPC health server listening", "addr", cfg.GRPCAddr)
				if err := grpcServer.Serve(lis); err != nil {
					logger.Error("gRPC server error", "err", err)
				}
			}()
		}

		if scheduler != nil {
			scheduler.Start()
			logger.Info("archive scheduler started", "interval", cfg.ArchiveInterval)
		}

		logger.Info("newsdesk server started",
			"http_addr", cfg.HTTPAddr,
			"grpc_addr", cfg.GRPCAddr,
			"store", storeScheme(cfg.StoreURL),
			"brief_access", cfg.BriefAccess,
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		healthServer.Shutdown()
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("archive scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// newArchiveScheduler builds a scheduler over every configured destination,
// or returns nil when none is configured.
func newArchiveScheduler(cfg *config.Config, store kv.Store, logger *slog.Logger) *archive.Scheduler {
	var dests []archive.Destination

	if cfg.ArchiveS3Bucket != "" {
		s3Dest, err := archive.NewS3Destination(
			context.Background(),
			cfg.ArchiveS3Bucket,
			cfg.ArchiveS3Key,
			cfg.ArchiveS3Region,
			cfg.ArchiveS3Endpoint,
		)
		if err != nil {
			logger.Error("failed to create S3 archive destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("archive S3 destination enabled", "bucket", cfg.ArchiveS3Bucket, "key", cfg.ArchiveS3Key)
		}
	}

	if cfg.ArchiveGitRepo != "" {
		dests = append(dests, archive.NewGitDestination(cfg.ArchiveGitRepo, cfg.ArchiveGitFile, cfg.ArchiveGitBranch))
		logger.Info("archive git destination enabled", "repo", cfg.ArchiveGitRepo, "file", cfg.ArchiveGitFile)
	}

	if len(dests) == 0 {
		return nil
	}
	return archive.NewScheduler(store, dests, cfg.ArchiveInterval, logger)
}

func storeScheme(storeURL string) string {
	if scheme, _, ok := strings.Cut(storeURL, "://"); ok {
		return scheme
	}
	return "memory"
}
