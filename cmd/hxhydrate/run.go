package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm/hxhydrate"
	"github.com/pthm/hxhydrate/lib/config"
)

type runOptions struct {
	sim      simulation
	selector string
	tags     []string
	strategy string
	wait     time.Duration
	force    bool
	snapshot string
}

func newRunCommand() *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run <page.html>",
		Short: "Activate the components of a page and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPage(cmd, args[0], o)
		},
	}
	addSimulationFlags(cmd, &o.sim)
	cmd.Flags().StringVar(&o.selector, "selector", "*", "candidate element selector")
	cmd.Flags().StringSliceVar(&o.tags, "tag", nil, "only activate these tags")
	cmd.Flags().StringVar(&o.strategy, "strategy", "", "strategy for elements without data-hydrate-strategy")
	cmd.Flags().DurationVar(&o.wait, "wait", 5*time.Second, "how long to wait for activations")
	cmd.Flags().BoolVar(&o.force, "force", false, "force everything still waiting once --wait elapses")
	cmd.Flags().StringVar(&o.snapshot, "snapshot", "", "write an encoded snapshot to this file")
	return cmd
}

func addSimulationFlags(cmd *cobra.Command, sim *simulation) {
	cmd.Flags().StringSliceVar(&sim.visible, "visible", []string{"*"}, "selectors of elements in the viewport")
	cmd.Flags().StringSliceVar(&sim.media, "media", nil, "media query results, e.g. '(min-width: 768px)=true'")
	cmd.Flags().StringVar(&sim.network, "network", "", "effective network type (slow-2g, 2g, 3g, 4g)")
	cmd.Flags().BoolVar(&sim.saveData, "save-data", false, "report data saver on")
	cmd.Flags().Float64Var(&sim.memory, "memory", 0, "device memory in GB")
	cmd.Flags().Float64Var(&sim.battery, "battery", 0, "battery level 0..1")
	cmd.Flags().BoolVar(&sim.noIdle, "no-idle", false, "simulate a browser without idle callbacks")
}

func runPage(cmd *cobra.Command, path string, o runOptions) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	b, err := loadPage(path, o.sim)
	if err != nil {
		return err
	}
	m, err := newManager(cfg, log, b, nil)
	if err != nil {
		return err
	}
	defer m.Cleanup()

	var strategy hxhydrate.Strategy
	if o.strategy != "" {
		if strategy, err = hxhydrate.ParseStrategy(o.strategy); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	waitCtx, cancel := context.WithTimeout(ctx, o.wait)
	defer cancel()

	_, err = m.AutoHydrate(waitCtx, hxhydrate.AutoOptions{
		Selector: o.selector,
		Tags:     o.tags,
		Strategy: strategy,
	})
	if err != nil {
		return err
	}
	if o.force {
		forceAll(ctx, m)
	}

	out := cmd.OutOrStdout()
	snap := m.Snapshot()
	renderSnapshot(out, snap)

	if o.snapshot != "" {
		if err := writeSnapshot(cfg, o.snapshot, snap); err != nil {
			return err
		}
		fmt.Fprintf(out, "snapshot written to %s\n", o.snapshot)
	}
	if snap.Metrics.FailedComponents > 0 {
		return fmt.Errorf("%d components failed", snap.Metrics.FailedComponents)
	}
	return nil
}

func forceAll(ctx context.Context, m *hxhydrate.Manager) {
	for _, a := range m.ForceHydrateAll() {
		_ = a.Wait(ctx)
	}
}

func writeSnapshot(cfg *config.Config, path string, snap hxhydrate.Snapshot) error {
	enc, err := hxhydrate.NewEncoder([]byte(cfg.Snapshot.Key))
	if err != nil {
		return err
	}
	encoded, err := hxhydrate.EncodeSnapshot(enc, snap, cfg.Snapshot.Sensitive)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(encoded+"\n"), 0o644)
}
