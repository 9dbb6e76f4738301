package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"participants-bot/internal/config"
	"participants-bot/internal/flow"
	"participants-bot/internal/logging"
	"participants-bot/internal/metrics"
	"participants-bot/internal/parser"
	"participants-bot/internal/participants"
	"participants-bot/internal/postgres"
	"participants-bot/internal/refdata"
	"participants-bot/internal/server"
	"participants-bot/internal/session"
	"participants-bot/internal/sheets"
	"participants-bot/internal/tgbot"
)

const (
	participantsSheet = "Participants"
	shutdownTimeout   = 10 * time.Second
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			log := logging.New(logging.Config{
				Level:   cfg.LogLevel,
				JSON:    cfg.LogJSON,
				Service: "participants-bot",
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(log.WithContext(ctx), cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	ref, err := refdata.Load(cfg.ReferenceDataPath)
	if err != nil {
		return fmt.Errorf("reference data: %w", err)
	}

	repo, closeRepo, err := openRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	store, closeStore, err := openSessionStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.New(reg)

	extractor := parser.NewExtractor(ref)
	svc := participants.NewService(repo, log,
		participants.WithMatcher(extractor.Matcher()),
		participants.WithMetrics(mt),
	)

	machine := flow.New(extractor, svc, ref, store, log,
		flow.WithAccess(flow.Access{Admins: cfg.AdminTGIDs, Coordinators: cfg.CoordinatorTGIDs}),
		flow.WithMetrics(mt),
		flow.WithEditTimeout(cfg.EditTimeout),
		flow.WithExportURL(server.ExportURL(cfg.BasePublicURL, cfg.ExportSecret)),
	)
	defer machine.Stop()

	app, err := tgbot.New(cfg.TelegramToken, machine, cfg.SendRatePerSec, log)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	machine.SetNotifier(app)

	httpSrv := server.New(svc, reg, cfg.ExportSecret, log).HTTPServer(cfg.HTTPAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})

	err = g.Wait()
	log.Info().Msg("bye")
	return err
}

func openRepository(ctx context.Context, cfg config.Config, log zerolog.Logger) (participants.Repository, func(), error) {
	noop := func() {}
	switch cfg.StorageBackend {
	case config.BackendSheets:
		client, err := sheets.New(ctx, cfg.GoogleServiceAccountJSON, cfg.SpreadsheetID)
		if err != nil {
			return nil, noop, fmt.Errorf("sheets: %w", err)
		}
		repo := sheets.NewRepository(client.Table(participantsSheet))
		if err := repo.EnsureHeader(ctx); err != nil {
			return nil, noop, fmt.Errorf("sheets header: %w", err)
		}
		log.Info().Str("spreadsheet", client.SpreadsheetID()).Msg("storage: google sheets")
		return repo, noop, nil

	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("postgres: %w", err)
		}
		store := postgres.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("postgres schema: %w", err)
		}
		log.Info().Msg("storage: postgres")
		return store, pool.Close, nil
	}

	log.Warn().Msg("storage: memory, records are lost on restart")
	return participants.NewMemoryRepository(), noop, nil
}

func openSessionStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (session.Store, func(), error) {
	if cfg.RedisURL == "" {
		return session.NewMemoryStore(), func() {}, nil
	}
	client, err := session.DialRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, func() {}, fmt.Errorf("redis: %w", err)
	}
	log.Info().Msg("sessions: redis")
	return session.NewRedisStore(client), func() { _ = client.Close() }, nil
}
