package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/flockhq/flock/internal/appstate"
	"github.com/flockhq/flock/internal/syncer"
)

var syncMembers bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass now",
	Long: `Upload all pending records to the backend in one pass.

Notes (with audio), attendance marks, and announcements are pushed as
independent passes running side by side. Records that fail stay
pending and ride along on the next pass. With --members, the member directory cache is refreshed
afterwards.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		engine := syncer.New(syncer.Config{
			PageSize: cfg.Sync.MemberPageSize,
		}, st, buildBackend(cfg), nil, nil)

		ctx := context.Background()
		start := time.Now()
		fmt.Printf("%s Syncing...\n", renderAccent("⇅"))

		results, err := engine.SyncAll(ctx, "manual")
		if err != nil {
			if errors.Is(err, syncer.ErrSyncInFlight) {
				fmt.Printf("%s A sync pass is already running\n", renderWarn("⚠"))
				return
			}
			fmt.Fprintf(os.Stderr, "Error syncing: %v\n", err)
			os.Exit(1)
		}

		var totalSynced, totalFailed int
		for _, r := range results {
			totalSynced += r.Synced
			totalFailed += r.Failed
			line := fmt.Sprintf("  %-14s %d synced, %d failed", r.Entity, r.Synced, r.Failed)
			if r.BlobsFailed > 0 {
				line += fmt.Sprintf(" (%d audio uploads failed)", r.BlobsFailed)
			}
			fmt.Println(line)
		}

		if syncMembers {
			n, err := engine.RefreshMembers(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error refreshing members: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("  %-14s %d rows refreshed\n", "members", n)
			if err := appstate.Update(cfg.StatePath(), func(s *appstate.State) {
				s.LastMemberRefreshAt = time.Now()
			}); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to record refresh time: %v\n", err)
			}
		}

		if err := appstate.Update(cfg.StatePath(), func(s *appstate.State) {
			s.LastSyncAt = time.Now()
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to record sync time: %v\n", err)
		}

		mark := renderOK("✓")
		if totalFailed > 0 {
			mark = renderWarn("⚠")
		}
		fmt.Printf("%s Done in %s: %d synced, %d still pending\n",
			mark, time.Since(start).Round(time.Millisecond), totalSynced, totalFailed)
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncMembers, "members", false, "also refresh the member directory cache")
	rootCmd.AddCommand(syncCmd)
}
