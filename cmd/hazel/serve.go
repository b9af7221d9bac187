package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/hazel/internal/archive"
	"github.com/alfredjeanlab/hazel/internal/config"
	"github.com/alfredjeanlab/hazel/internal/events"
	"github.com/alfredjeanlab/hazel/internal/lifecycle"
	"github.com/alfredjeanlab/hazel/internal/meeting"
	"github.com/alfredjeanlab/hazel/internal/outcome"
	"github.com/alfredjeanlab/hazel/internal/present"
	"github.com/alfredjeanlab/hazel/internal/server"
	"github.com/alfredjeanlab/hazel/internal/store"
	"github.com/alfredjeanlab/hazel/internal/store/memory"
	"github.com/alfredjeanlab/hazel/internal/store/postgres"
	hazelsync "github.com/alfredjeanlab/hazel/internal/sync"
	"github.com/alfredjeanlab/hazel/internal/telemetry"
	"github.com/alfredjeanlab/hazel/internal/transform"
	anthropicchat "github.com/alfredjeanlab/hazel/internal/transform/anthropic"
	openaichat "github.com/alfredjeanlab/hazel/internal/transform/openai"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the lanes and the HTTP and gRPC servers",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create a client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := newLogger(cfg.LogLevel)
		ctx := context.Background()

		shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, version)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				st.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (HAZEL_NATS_URL not set)")
		}

		presenter := present.New(st, cfg.Circles)
		archives := archive.NewReader(st, archive.WithBudget(cfg.ArchiveBudget))
		transformer := newTransformer(cfg)
		intervals := laneIntervals(cfg, logger)

		engine := lifecycle.New(lifecycle.Config{
			DecisionChannelID: cfg.DecisionChannelID,
			VisionChannelID:   cfg.VisionChannelID,
			HandbookChannelID: cfg.HandbookChannelID,
			HistoryWindow:     cfg.HistoryWindow,
			LeadTime:          cfg.FollowUpLeadTime,
			Location:          cfg.Location,
		}, st, transformer, archives, presenter,
			lifecycle.WithPublisher(publisher),
			lifecycle.WithLogger(logger),
		)
		health := server.NewLaneHealth(intervals)
		lanes := lifecycle.NewScheduler(engine, intervals, logger)
		lanes.OnTick = health.ObserveTick

		svc := outcome.New(outcome.Config{
			DecisionChannelID: cfg.DecisionChannelID,
			VisionChannelID:   cfg.VisionChannelID,
			HandbookChannelID: cfg.HandbookChannelID,
			HistoryWindow:     cfg.HistoryWindow,
			MeetingDuration:   cfg.MeetingDuration,
		}, st, meeting.NewStore(), cfg.Circles, presenter,
			outcome.WithPublisher(publisher),
			outcome.WithLogger(logger),
			outcome.WithAsk(transformer, archives),
		)

		hazelServer := server.NewHazelServer(svc, lanes, engine.Queue(), health, logger)
		grpcServer := server.NewGRPCServer(health, cfg.AuthToken, logger)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			st.Close()
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           hazelServer.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		lanes.Start()
		syncer := startSync(ctx, cfg, st, logger)

		logger.Info("hazel started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"circles", len(cfg.Circles),
			"transform", cfg.TransformProvider,
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		lanes.Stop()
		logger.Info("lanes stopped")
		if syncer != nil {
			syncer.Stop()
			logger.Info("sync scheduler stopped")
		}

		health.Shutdown()
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
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("error flushing traces", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// newLogger builds the text logger on stderr. Unknown levels fall back to info.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("HAZEL_DATABASE_URL not set; records are kept in memory and lost on exit")
		return memory.New(), nil
	}
	st, err := postgres.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}

func newTransformer(cfg *config.Config) transform.Transformer {
	switch cfg.TransformProvider {
	case config.ProviderOpenAI:
		return transform.NewLLM(openaichat.New(func(o *openaichat.Options) {
			if cfg.TransformModel != "" {
				o.Model = cfg.TransformModel
			}
		}))
	case config.ProviderAnthropic:
		return transform.NewLLM(anthropicchat.New(func(o *anthropicchat.Options) {
			if cfg.TransformModel != "" {
				o.Model = anthropic.Model(cfg.TransformModel)
			}
		}))
	}
	return transform.Disabled{}
}

// laneIntervals maps the configured intervals onto lanes. Without a
// transform provider the normalize and align lanes would only fail, so they
// are switched off.
func laneIntervals(cfg *config.Config, logger *slog.Logger) lifecycle.Intervals {
	intervals := lifecycle.Intervals{
		lifecycle.LaneNormalize:       cfg.NormalizeInterval,
		lifecycle.LaneAlign:           cfg.AlignInterval,
		lifecycle.LaneFollowUpEnqueue: cfg.FollowUpEnqueueInterval,
		lifecycle.LaneFollowUpDrain:   cfg.FollowUpDrainInterval,
	}
	if cfg.TransformProvider == config.ProviderNone {
		if intervals[lifecycle.LaneNormalize] > 0 || intervals[lifecycle.LaneAlign] > 0 {
			logger.Warn("no transform provider; normalize and align lanes disabled")
		}
		intervals[lifecycle.LaneNormalize] = 0
		intervals[lifecycle.LaneAlign] = 0
	}
	return intervals
}

// startSync starts the backup scheduler when an interval and at least one
// destination are configured.
func startSync(ctx context.Context, cfg *config.Config, st store.Store, logger *slog.Logger) *hazelsync.Scheduler {
	if cfg.SyncInterval <= 0 {
		return nil
	}
	var dests []hazelsync.Destination
	if cfg.SyncS3Bucket != "" {
		s3Dest, err := hazelsync.NewS3Destination(ctx, cfg.SyncS3Bucket, cfg.SyncS3Key, cfg.SyncS3Region, cfg.SyncS3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync destination enabled", "dest", s3Dest.Name())
		}
	}
	if cfg.SyncGitRepo != "" {
		gitDest := hazelsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch)
		dests = append(dests, gitDest)
		logger.Info("sync destination enabled", "dest", gitDest.Name())
	}
	if len(dests) == 0 {
		return nil
	}
	s := hazelsync.NewScheduler(st, []string{cfg.DecisionChannelID}, dests, cfg.SyncInterval, logger)
	s.Start()
	logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
	return s
}
