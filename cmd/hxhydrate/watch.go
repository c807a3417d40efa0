package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/pthm/hxhydrate"
	"github.com/pthm/hxhydrate/lib/dom"
	"github.com/pthm/hxhydrate/lib/logging"
	"github.com/pthm/hxhydrate/lib/telemetry"
)

type watchOptions struct {
	sim         simulation
	metricsAddr string
	settle      time.Duration
}

func newWatchCommand() *cobra.Command {
	var o watchOptions
	cmd := &cobra.Command{
		Use:   "watch <page.html>",
		Short: "Re-run discovery whenever a page file changes",
		Long: `watch loads a page, then replaces its body every time the file is
written. Inserted components are discovered and activated like elements
added to a live page. Metrics are served for Prometheus while watching.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchPage(cmd, args[0], o)
		},
	}
	addSimulationFlags(cmd, &o.sim)
	cmd.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "metrics listen address (default from config, \"off\" to disable)")
	cmd.Flags().DurationVar(&o.settle, "settle", 500*time.Millisecond, "delay before printing states after a change")
	return cmd
}

func watchPage(cmd *cobra.Command, path string, o watchOptions) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	b, err := loadPage(path, o.sim)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	sink, err := telemetry.NewSink(cfg.Metrics.Namespace, reg)
	if err != nil {
		return err
	}
	m, err := newManager(cfg, log, b, sink)
	if err != nil {
		return err
	}
	defer m.Cleanup()
	if err := reg.Register(telemetry.NewCollector(cfg.Metrics.Namespace, m)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	addr := o.metricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	if addr != "off" {
		srv := serveMetrics(addr, reg, log)
		defer srv.Shutdown(context.Background())
	}

	if _, err := m.AutoHydrate(ctx, hxhydrate.AutoOptions{}); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	renderStates(out, m.Snapshot().States)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so editors that replace the file are seen.
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	log.Info("watching page", logging.String("path", abs), logging.String("manager", m.ID()))

	var report <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			added, err := reload(b, abs)
			if err != nil {
				log.Warn("reload failed", logging.String("path", abs), logging.Err(err))
				continue
			}
			if err := o.sim.show(b, added); err != nil {
				log.Warn("visibility", logging.Err(err))
			}
			log.Debug("page reloaded", logging.Int("elements", len(added)))
			report = time.After(o.settle)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("watcher error", err)
		case <-report:
			renderStates(out, m.Snapshot().States)
			renderMetrics(out, m.GetMetrics(), m.InFlight())
			report = nil
		}
	}
}

func reload(b *dom.Browser, path string) ([]*dom.Element, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return b.Document.ReplaceBody(f)
}

func serveMetrics(addr string, reg *prometheus.Registry, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", err, logging.String("addr", addr))
		}
	}()
	log.Info("serving metrics", logging.String("addr", addr))
	return srv
}
