package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	natsadapter "github.com/samirrijal/casaview/internal/adapters/nats"
	"github.com/samirrijal/casaview/internal/adapters/postgres"
	"github.com/samirrijal/casaview/internal/adapters/strapi"
	"github.com/samirrijal/casaview/internal/core/ports"
	"github.com/samirrijal/casaview/internal/core/usecases"
	"github.com/samirrijal/casaview/internal/pkg/config"
	"github.com/samirrijal/casaview/internal/pkg/logging"
)

// syncTimeout bounds a single mirror pass.
const syncTimeout = 2 * time.Minute

var (
	cfg      *config.Config
	interval time.Duration
)

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ingestor",
		Short:        "Mirror content store listings into Postgres",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load("casaview-ingestor")
			if err != nil {
				return err
			}
			logging.Setup(c.Telemetry.ServiceName, c.Log.Level, c.Log.Format)
			cfg = c
			return nil
		},
	}

	root.AddCommand(syncCmd(), watchCmd())
	return root
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one mirror pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := buildSyncService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, cancel := context.WithTimeout(cmd.Context(), syncTimeout)
			defer cancel()
			_, err = svc.Sync(ctx)
			return err
		},
	}
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Mirror listings on a fixed interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			every := interval
			if every == 0 {
				every = cfg.Sync.Interval
			}

			svc, closeFn, err := buildSyncService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			s := newScheduler(svc, every, syncTimeout)
			if err := s.Start(); err != nil {
				return fmt.Errorf("start scheduler: %w", err)
			}
			defer s.Stop()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			sig := <-quit
			slog.Info("shutdown signal received", "signal", sig.String())
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between passes (default sync.interval)")
	return cmd
}

// buildSyncService wires the content store, the mirror and the publisher.
// A missing broker only disables sync announcements.
func buildSyncService(ctx context.Context) (*usecases.SyncService, func(), error) {
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}

	upstream := strapi.New(cfg.Strapi.URL, cfg.Strapi.APIToken, cfg.Strapi.Timeout(), cfg.Strapi.PageSize)

	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, sync events disabled", "error", err)
	} else {
		events = pub
	}

	closeFn := func() {
		if pub != nil {
			pub.Close()
		}
		db.Close()
	}
	return usecases.NewSyncService(upstream, postgres.NewListingRepo(db), events), closeFn, nil
}
