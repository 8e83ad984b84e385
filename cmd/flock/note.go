package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flockhq/flock/internal/appstate"
	"github.com/flockhq/flock/internal/record"
	"github.com/flockhq/flock/internal/store"
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage sermon notes",
}

var (
	noteBody    string
	noteTags    []string
	noteService string
)

var noteAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a sermon note",
	Long: `Create a sermon note in the local store.

The note syncs on the next pass; no connection is needed now. Drop a
recording named {noteID}.m4a into the audio spool to attach it later.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		state, _ := appstate.Load(cfg.StatePath())

		n := &record.Note{
			ID:       record.NewID(),
			Title:    args[0],
			Body:     noteBody,
			AuthorID: state.MemberID,
			Tags:     noteTags,
		}
		if noteService != "" {
			t, err := parseWhen(noteService)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			n.ServiceDate = &t
		}

		if err := st.InsertNote(context.Background(), n); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating note: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Note created: %s\n", renderOK("✓"), n.ID)
		fmt.Printf("  %s\n", renderDim("spool a recording to "+cfg.SpoolDir()+"/"+n.ID+".m4a to attach audio"))
	},
}

var (
	noteListSince string
	noteListLimit int
)

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sermon notes",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		filter := store.NoteFilter{Limit: noteListLimit}
		if noteListSince != "" {
			t, err := parseWhen(noteListSince)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			filter.Since = t
		}

		notes, err := st.ListNotes(context.Background(), filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing notes: %v\n", err)
			os.Exit(1)
		}
		if len(notes) == 0 {
			fmt.Printf("%s No notes\n", renderDim("·"))
			return
		}

		width := termWidth()
		for _, n := range notes {
			mark := renderOK("✓")
			if n.SyncStatus == record.StatusPending {
				mark = renderWarn("●")
			}
			title := n.Title
			if max := width - 40; max > 10 && len(title) > max {
				title = title[:max-1] + "…"
			}
			line := fmt.Sprintf("%s %s  %s", mark, n.CreatedAt.Format("2006-01-02"), title)
			if n.AudioPath != "" || n.AudioURL != "" {
				line += " " + renderDim("♪")
			}
			if len(n.Tags) > 0 {
				line += " " + renderDim("["+strings.Join(n.Tags, ",")+"]")
			}
			fmt.Println(line)
		}
	},
}

func init() {
	noteAddCmd.Flags().StringVarP(&noteBody, "body", "b", "", "note body")
	noteAddCmd.Flags().StringSliceVarP(&noteTags, "tag", "t", nil, "tags (repeatable)")
	noteAddCmd.Flags().StringVar(&noteService, "service", "", "service date (e.g. \"last sunday\")")
	noteListCmd.Flags().StringVar(&noteListSince, "since", "", "only notes created since (e.g. \"last week\")")
	noteListCmd.Flags().IntVarP(&noteListLimit, "limit", "n", 0, "max notes to show")
	noteCmd.AddCommand(noteAddCmd, noteListCmd)
	rootCmd.AddCommand(noteCmd)
}
