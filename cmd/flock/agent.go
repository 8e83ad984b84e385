package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flockhq/flock/internal/appstate"
	"github.com/flockhq/flock/internal/bus"
	"github.com/flockhq/flock/internal/connectivity"
	"github.com/flockhq/flock/internal/dashboard"
	"github.com/flockhq/flock/internal/logging"
	"github.com/flockhq/flock/internal/spool"
	"github.com/flockhq/flock/internal/syncer"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the sync agent (foreground)",
	Long: `Run the sync agent until interrupted.

The agent:
  1. Probes backend reachability and syncs on reconnect
  2. Watches the audio spool for finished voice memos
  3. Periodically refreshes the member directory cache
  4. Optionally serves the live dashboard over WebSocket`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := logging.New(logging.Options{
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})

		st := openStore(cfg)
		defer st.Close()

		backend := buildBackend(cfg)
		events := bus.New()

		engine := syncer.New(syncer.Config{
			PageSize: cfg.Sync.MemberPageSize,
		}, st, backend, events, logger)

		monitor := connectivity.New(connectivity.Config{
			Interval: cfg.Sync.ProbeInterval,
			Debounce: cfg.Sync.Debounce,
		}, backend, engine, events, logger)

		spooler, err := spool.New(spool.DefaultConfig(cfg.SpoolDir()), st, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating spool watcher: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := monitor.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting connectivity monitor: %v\n", err)
			os.Exit(1)
		}
		defer monitor.Stop()

		if err := spooler.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting spool watcher: %v\n", err)
			os.Exit(1)
		}
		defer spooler.Stop()

		if cfg.Dashboard.Enabled {
			dash := dashboard.NewServer(dashboard.Config{Port: cfg.Dashboard.Port}, events, logger)
			if err := dash.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error starting dashboard: %v\n", err)
				os.Exit(1)
			}
			defer dash.Stop()
			fmt.Printf("%s Dashboard at ws://%s/ws\n", renderAccent("●"), dash.Addr())
		}

		// Record successful passes in the app state so status can show
		// "last synced" without the agent running.
		go trackSyncState(ctx, events, cfg.StatePath(), logger.Printf)

		// The directory cache refreshes on a slow cycle; member edits
		// happen server-side and rarely.
		go refreshMembersLoop(ctx, engine, logger.Printf)

		fmt.Printf("%s flock agent running (data: %s)\n", renderOK("✓"), cfg.DataDir)
		<-ctx.Done()
		fmt.Printf("\n%s shutting down\n", renderDim("…"))
	},
}

// trackSyncState persists the finish time of every successful pass.
func trackSyncState(ctx context.Context, events *bus.Bus, statePath string, logf func(string, ...any)) {
	ch, cancel := events.Subscribe(bus.TopicSyncFinished)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			err := appstate.Update(statePath, func(st *appstate.State) {
				st.LastSyncAt = time.Now()
			})
			if err != nil {
				logf("state update: %v", err)
			}
		}
	}
}

// refreshMembersLoop pulls the directory hourly while online.
func refreshMembersLoop(ctx context.Context, engine syncer.Engine, logf func(string, ...any)) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := engine.RefreshMembers(ctx); err != nil {
				logf("member refresh: %v", err)
			} else {
				logf("member refresh: %d rows", n)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(agentCmd)
}
