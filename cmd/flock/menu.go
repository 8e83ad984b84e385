package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flockhq/flock/internal/appstate"
	"github.com/flockhq/flock/internal/menu"
	"github.com/flockhq/flock/internal/record"
)

// defaultMenu ships in the binary so the command works before anyone
// writes a menu file.
const defaultMenu = `
menu:
  - id: home
    label: Home
  - id: notes
    label: Sermon Notes
    roles: [admin, pastor, leader, member]
  - id: attendance
    label: Attendance
    roles: [admin, pastor, leader]
  - id: announcements
    label: Announcements
    children:
      - id: announcements-create
        label: Create
        roles: [admin, pastor]
  - id: directory
    label: Member Directory
    roles: [admin, pastor, leader, member]
  - id: admin
    label: Administration
    roles: [admin]
    children:
      - id: admin-approvals
        label: Join Approvals
      - id: admin-push
        label: Send Push
`

var menuRole string

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Show the navigation tree for a role",
	Long: `Print the navigation tree as a role sees it.

Without --role, the signed-in member's role from the app state is used,
falling back to pending.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		var items []menu.Item
		var err error
		if cfg.MenuFile != "" {
			items, err = menu.Load(cfg.MenuFile)
		} else {
			items, err = menu.Parse([]byte(defaultMenu))
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading menu: %v\n", err)
			os.Exit(1)
		}

		role := record.RolePending
		if menuRole != "" {
			role = record.Role(menuRole)
			if !role.Valid() {
				fmt.Fprintf(os.Stderr, "Error: invalid role %q\n", menuRole)
				os.Exit(1)
			}
		} else if state, err := appstate.Load(cfg.StatePath()); err == nil && state.Role != "" {
			role = state.Role
		}

		fmt.Printf("\n%s\n\n", renderHead(fmt.Sprintf("Menu as %s", role)))
		printMenu(menu.FilterByRole(items, role), 0)
		fmt.Println()
	},
}

func printMenu(items []menu.Item, depth int) {
	indent := strings.Repeat("  ", depth+1)
	for _, item := range items {
		fmt.Printf("%s%s %s\n", indent, renderAccent("·"), item.Label)
		printMenu(item.Children, depth+1)
	}
}

func init() {
	menuCmd.Flags().StringVar(&menuRole, "role", "", "view as this role")
	rootCmd.AddCommand(menuCmd)
}
