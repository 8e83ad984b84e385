package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flockhq/flock/internal/appstate"
	"github.com/flockhq/flock/internal/record"
)

var (
	announceBody string
	announceAt   string
)

var announceCmd = &cobra.Command{
	Use:   "announce <title>",
	Short: "Create an announcement",
	Long: `Create an announcement in the local store.

With --at, the announcement carries a publish time; the backend holds
it until then. The flag accepts natural language: --at "next friday 6pm".`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		state, _ := appstate.Load(cfg.StatePath())

		an := &record.Announcement{
			ID:       record.NewID(),
			Title:    args[0],
			Body:     announceBody,
			AuthorID: state.MemberID,
		}
		if announceAt != "" {
			t, err := parseWhen(announceAt)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			an.PublishAt = &t
		}

		if err := st.InsertAnnouncement(context.Background(), an); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating announcement: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Announcement created: %s\n", renderOK("✓"), an.ID)
		if an.PublishAt != nil {
			fmt.Printf("  publishes %s\n", an.PublishAt.Format("2006-01-02 15:04"))
		}
	},
}

func init() {
	announceCmd.Flags().StringVarP(&announceBody, "body", "b", "", "announcement body")
	announceCmd.Flags().StringVar(&announceAt, "at", "", "publish time (e.g. \"next friday 6pm\")")
	rootCmd.AddCommand(announceCmd)
}
