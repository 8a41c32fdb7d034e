package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"eventmap/core-go/internal/filterctx"
	"eventmap/core-go/internal/mapclient"
	"eventmap/core-go/internal/marker"
	"eventmap/core-go/internal/metrics"
	"eventmap/core-go/internal/schedule"
	"eventmap/core-go/internal/selection"
	"eventmap/core-go/internal/surface"
	"eventmap/core-go/internal/viewport"
)

func newWatchCmd() *cobra.Command {
	var (
		flags    queryFlags
		duration time.Duration
		refresh  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Drive the viewport controller and marker reconciler against a headless map",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(true)
			if err != nil {
				return err
			}
			client, err := mapclient.New(logger, mapclient.Options{
				BaseURL: cfg.Client.APIURL,
				Timeout: cfg.Client.RequestTimeout,
			})
			if err != nil {
				return err
			}
			filters, err := flags.filters(time.Now())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			sched := schedule.Real()
			m := surface.NewHeadless(logger.With().Str("component", "surface").Logger())
			m.SetViewport(flags.bbox(), flags.zoom)

			sidebar := selection.New(true)
			detachSidebar := sidebar.AttachMap(m)
			defer detachSidebar()
			sidebar.Subscribe(func(v selection.View) {
				logger.Info().Str("title", v.Title).Bool("open", v.Open).Int("events", len(v.Events)).Msg("sidebar")
			})

			rec := marker.New(logger.With().Str("component", "marker").Logger(), m, marker.Options{
				ExitDuration: cfg.Client.ExitDuration,
				ZoomStep:     cfg.Client.ClusterZoomStep,
				Scheduler:    sched,
				OnSelect:     sidebar.Select,
			})
			defer rec.Close()

			store := filterctx.NewStore(filters)
			ctrl := viewport.New(logger.With().Str("component", "viewport").Logger(), m, client, store, viewport.Options{
				Debounce:  cfg.Client.Debounce,
				Scheduler: sched,
			}, metrics.New())
			defer ctrl.Close()

			ctrl.Subscribe(func(s viewport.Snapshot) {
				if s.Err != nil {
					logger.Warn().Err(s.Err).Msg("map items cleared after query failure")
				}
				if !s.Loading {
					rec.Reconcile(s.Items)
					logger.Info().Int("items", len(s.Items)).Strs("markers", rec.IDs()).Msg("markers reconciled")
				}
				sidebar.SetItems(s.Items, s.Loading)
			})
			ctrl.Start(ctx)

			var tick <-chan time.Time
			if refresh > 0 {
				t := time.NewTicker(refresh)
				defer t.Stop()
				tick = t.C
			}
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-tick:
					m.Idle()
				}
			}
		},
	}
	flags.register(cmd)
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	cmd.Flags().DurationVar(&refresh, "refresh", 30*time.Second, "fire a map idle event at this interval (0 disables)")
	return cmd
}
