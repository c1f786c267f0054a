package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	clientv3 "go.etcd.io/etcd/client/v3"
	"golang.org/x/sync/errgroup"

	"github.com/szaher/meemo/internal/config"
	"github.com/szaher/meemo/internal/curriculum"
	"github.com/szaher/meemo/internal/gen"
	"github.com/szaher/meemo/internal/llm"
	"github.com/szaher/meemo/internal/server"
	"github.com/szaher/meemo/internal/session"
	"github.com/szaher/meemo/internal/slide"
	"github.com/szaher/meemo/internal/stream"
	"github.com/szaher/meemo/internal/telemetry"
	"github.com/szaher/meemo/internal/tutor"
	"github.com/szaher/meemo/internal/visual"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tutoring HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := telemetry.NewLogger(os.Stderr, level)
	metrics := telemetry.NewMetrics()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, model := llm.NewClientForModel(cfg.Model.Name)
	port := gen.NewPort(client, model,
		gen.WithLimiter(gen.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)),
		gen.WithRetry(gen.RetryPolicy{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			InitialInterval: cfg.Retry.InitialInterval,
			BackoffFactor:   cfg.Retry.BackoffFactor,
			MaxInterval:     cfg.Retry.MaxInterval,
		}),
		gen.WithMetrics(metrics),
		gen.WithTemperature(cfg.Model.Temperature),
		gen.WithMaxTokens(cfg.Model.MaxTokens),
		gen.WithLogger(logger),
	)

	visualOpts := []visual.GeneratorOption{visual.WithLogger(logger)}
	if cfg.Assets.S3Bucket != "" {
		assets, err := visual.NewS3AssetStore(ctx, cfg.Assets.S3Bucket, cfg.Assets.S3Prefix, cfg.Assets.S3Region)
		if err != nil {
			return fmt.Errorf("asset store: %w", err)
		}
		visualOpts = append(visualOpts, visual.WithAssetStore(assets))
	}
	renderer := visual.NewGenerator(port, visualOpts...)
	builder := slide.NewBuilder(port, renderer, logger)

	policy, err := tutor.NewRoutingPolicy(cfg.Policy.QuestionExpr, cfg.Policy.SkipKeywords, cfg.Policy.UseClassifier)
	if err != nil {
		return fmt.Errorf("routing policy: %w", err)
	}
	engine := tutor.NewEngine(port, builder, cfg.Course.Topic,
		tutor.WithPolicy(policy),
		tutor.WithEngineLogger(logger),
	)

	var cur curriculum.Curriculum
	if cfg.Course.File != "" {
		cur, err = curriculum.LoadFile(cfg.Course.File)
		if err != nil {
			return fmt.Errorf("load course: %w", err)
		}
	} else {
		cur = curriculum.Builtin(cfg.Course.Topic)
	}
	provider := curriculum.NewProvider(cur)

	store, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.Session.TTL > 0 {
		stopSweeper, err := session.StartSweeper(store, cfg.Session.SweepSchedule, cfg.Session.TTL, logger)
		if err != nil {
			return fmt.Errorf("session sweeper: %w", err)
		}
		defer stopSweeper()
	}

	controller := stream.NewController(engine, store, provider,
		stream.WithMetrics(metrics),
		stream.WithLogger(logger),
	)
	srv := server.NewServer(controller,
		server.WithAPIKey(cfg.Server.APIKey),
		server.WithCORSOrigins(cfg.Server.CORSOrigins),
		server.WithLogger(logger),
		server.WithMetrics(metrics),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(cfg.Server.Addr); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	if cfg.Course.File != "" && cfg.Course.Watch {
		g.Go(func() error {
			return curriculum.Watch(gctx, provider, cfg.Course.File, logger)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// buildStore constructs the configured session store and a cleanup
// function for its backing connections.
func buildStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (session.Store, func(), error) {
	switch cfg.Session.Backend {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Session.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := session.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("session schema: %w", err)
		}
		logger.Info("session store ready", "backend", "postgres")
		return store, pool.Close, nil

	case "etcd":
		cli, err := clientv3.New(clientv3.Config{
			Endpoints:   cfg.Session.EtcdEndpoints,
			DialTimeout: 5 * time.Second,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect etcd: %w", err)
		}
		logger.Info("session store ready", "backend", "etcd")
		return session.NewEtcdStore(cli), func() { _ = cli.Close() }, nil

	default:
		logger.Info("session store ready", "backend", "memory")
		return session.NewMemoryStore(cfg.Session.TTL), func() {}, nil
	}
}
