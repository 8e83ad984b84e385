package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the local store and state",
	Long: `Delete the local database and persisted app state.

Pending records that never synced are lost. Synced records are
re-fetchable from the backend. Use --force to skip the confirmation.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		if !resetForce {
			var confirmed bool
			form := huh.NewForm(huh.NewGroup(
				huh.NewConfirm().
					Title("Delete the local store?").
					Description(fmt.Sprintf("This removes %s including any unsynced records.", cfg.DatabasePath())).
					Affirmative("Delete").
					Negative("Cancel").
					Value(&confirmed),
			))
			if err := form.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if !confirmed {
				fmt.Printf("%s Cancelled\n", renderDim("·"))
				return
			}
		}

		removed := 0
		for _, path := range []string{
			cfg.DatabasePath(),
			cfg.DatabasePath() + "-wal",
			cfg.DatabasePath() + "-shm",
			cfg.StatePath(),
		} {
			if err := os.Remove(path); err == nil {
				removed++
			} else if !os.IsNotExist(err) {
				fmt.Fprintf(os.Stderr, "Error removing %s: %v\n", path, err)
				os.Exit(1)
			}
		}

		fmt.Printf("%s Local data removed (%d files)\n", renderOK("✓"), removed)
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "skip confirmation")
	rootCmd.AddCommand(resetCmd)
}
