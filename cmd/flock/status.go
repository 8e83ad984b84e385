package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/flockhq/flock/internal/appstate"
	"github.com/flockhq/flock/internal/record"
)

var statusSince string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local store and sync status",
	Long: `Display pending/synced counts per entity, directory cache
freshness, and recent sync passes.

The --since flag accepts natural language ("yesterday", "last sunday")
or RFC3339 timestamps and limits the pass history shown.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		ctx := context.Background()

		var since time.Time
		if statusSince != "" {
			var err error
			since, err = parseWhen(statusSince)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		fmt.Printf("\n%s\n\n", renderHead("Local Store"))
		totalPending := 0
		for _, entity := range record.Uploadable() {
			counts, err := st.CountByStatus(ctx, entity)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error counting %s: %v\n", entity, err)
				os.Exit(1)
			}
			pending := counts[record.StatusPending]
			totalPending += pending
			mark := renderOK("✓")
			if pending > 0 {
				mark = renderWarn("●")
			}
			fmt.Printf("  %s %-14s %d synced, %d pending\n",
				mark, entity, counts[record.StatusSynced], pending)
		}

		age, known, err := st.MemberCacheAge(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error checking member cache: %v\n", err)
			os.Exit(1)
		}
		if known {
			fmt.Printf("  %s %-14s refreshed %s ago\n",
				renderOK("✓"), "members", age.Round(time.Minute))
		} else {
			fmt.Printf("  %s %-14s never refreshed\n", renderWarn("⚠"), "members")
		}

		state, err := appstate.Load(cfg.StatePath())
		if err == nil && !state.LastSyncAt.IsZero() {
			fmt.Printf("\n  Last sync: %s\n", state.LastSyncAt.Format("2006-01-02 15:04:05"))
		}

		passes, err := st.ListPasses(ctx, 20)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading pass history: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n%s\n\n", renderHead("Recent Passes"))
		shown := 0
		for _, p := range passes {
			if !since.IsZero() && p.StartedAt.Before(since) {
				continue
			}
			shown++
			line := fmt.Sprintf("  %s  %-14s %d synced, %d failed  %s(%s, %s)",
				p.StartedAt.Format("01-02 15:04"), p.Entity, p.Synced, p.Failed,
				renderDim(""), p.TriggeredBy, p.Duration.Round(time.Millisecond))
			fmt.Println(line)
		}
		if shown == 0 {
			fmt.Printf("  %s\n", renderDim("none"))
		}

		fmt.Println()
		if totalPending == 0 {
			fmt.Printf("%s Everything is synced\n\n", renderOK("✓"))
		} else {
			fmt.Printf("%s %d records waiting for the next pass\n\n",
				renderWarn("⚠"), totalPending)
		}
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusSince, "since", "", "limit pass history (e.g. \"yesterday\", \"last sunday\")")
	rootCmd.AddCommand(statusCmd)
}
