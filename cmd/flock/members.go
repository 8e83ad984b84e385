package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flockhq/flock/internal/importer"
	"github.com/flockhq/flock/internal/record"
	"github.com/flockhq/flock/internal/store"
)

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "Browse the member directory cache",
}

var (
	membersRole     string
	membersApproved bool
)

var membersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached members",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		filter := store.MemberFilter{ApprovedOnly: membersApproved}
		if membersRole != "" {
			role := record.Role(membersRole)
			if !role.Valid() {
				fmt.Fprintf(os.Stderr, "Error: invalid role %q\n", membersRole)
				os.Exit(1)
			}
			filter.Role = role
		}

		members, err := st.ListMembers(context.Background(), filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing members: %v\n", err)
			os.Exit(1)
		}
		if len(members) == 0 {
			fmt.Printf("%s Directory cache is empty; run 'flock sync --members'\n", renderWarn("⚠"))
			return
		}

		for _, m := range members {
			mark := renderOK("✓")
			if !m.Approved {
				mark = renderWarn("○")
			}
			line := fmt.Sprintf("%s %-28s %-8s", mark, m.FullName, m.Role)
			if m.Email != "" {
				line += " " + renderDim(m.Email)
			}
			fmt.Println(line)
		}
		fmt.Printf("\n%s\n", renderDim(fmt.Sprintf("%d members", len(members))))
	},
}

var importDryRun bool

var membersImportCmd = &cobra.Command{
	Use:   "import <roster.jsonl>",
	Short: "Import a roster export into the directory cache",
	Long: `Load a JSONL roster export, one member object per line:

  {"id":"...","full_name":"...","email":"...","role":"member","approved":true}

Rows without an id get a locally generated one. The import replaces the
whole cache; use --dry-run to validate first.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		result, err := importer.Import(context.Background(), st, importer.Options{
			Path:   args[0],
			DryRun: importDryRun,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error importing roster: %v\n", err)
			os.Exit(1)
		}

		for _, msg := range result.Errors {
			fmt.Printf("  %s %s\n", renderWarn("⚠"), msg)
		}
		verb := "imported"
		if importDryRun {
			verb = "validated"
		}
		fmt.Printf("%s %d members %s, %d skipped\n",
			renderOK("✓"), result.Imported, verb, result.Skipped)
	},
}

func init() {
	membersListCmd.Flags().StringVar(&membersRole, "role", "", "filter by role")
	membersListCmd.Flags().BoolVar(&membersApproved, "approved", false, "only approved members")
	membersImportCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "validate without writing")
	membersCmd.AddCommand(membersListCmd, membersImportCmd)
	rootCmd.AddCommand(membersCmd)
}
