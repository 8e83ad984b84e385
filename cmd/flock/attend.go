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

var attendCmd = &cobra.Command{
	Use:   "attend",
	Short: "Record attendance",
}

var (
	attendStatus  string
	attendService string
	attendDate    string
)

var attendMarkCmd = &cobra.Command{
	Use:   "mark <member-id>",
	Short: "Mark a member's attendance for a service",
	Long: `Record one member's attendance mark. Valid statuses are present,
absent, and excused. Marks queue locally and sync on the next pass;
re-marking the same record just re-queues it.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		status := record.AttendanceStatus(attendStatus)
		if !status.Valid() {
			fmt.Fprintf(os.Stderr, "Error: invalid status %q (present, absent, excused)\n", attendStatus)
			os.Exit(1)
		}

		serviceDate := time.Now()
		if attendDate != "" {
			t, err := parseWhen(attendDate)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			serviceDate = t
		}

		state, _ := appstate.Load(cfg.StatePath())

		a := &record.Attendance{
			ID:          record.NewID(),
			MemberID:    args[0],
			ServiceID:   attendService,
			ServiceDate: serviceDate,
			Status:      status,
			RecordedBy:  state.MemberID,
		}
		if err := st.InsertAttendance(context.Background(), a); err != nil {
			fmt.Fprintf(os.Stderr, "Error recording attendance: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Marked %s %s for %s\n",
			renderOK("✓"), args[0], status, serviceDate.Format("2006-01-02"))
	},
}

var attendListCmd = &cobra.Command{
	Use:   "list <service-id>",
	Short: "List attendance marks for a service",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		records, err := st.ListAttendanceForService(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing attendance: %v\n", err)
			os.Exit(1)
		}
		if len(records) == 0 {
			fmt.Printf("%s No marks for service %s\n", renderDim("·"), args[0])
			return
		}

		for _, a := range records {
			mark := renderOK("✓")
			if a.SyncStatus == record.StatusPending {
				mark = renderWarn("●")
			}
			fmt.Printf("%s %-24s %s\n", mark, a.MemberID, a.Status)
		}
	},
}

func init() {
	attendMarkCmd.Flags().StringVarP(&attendStatus, "status", "s", "present", "present, absent, or excused")
	attendMarkCmd.Flags().StringVar(&attendService, "service", "sunday", "service identifier")
	attendMarkCmd.Flags().StringVar(&attendDate, "date", "", "service date (default today, accepts \"last sunday\")")
	attendCmd.AddCommand(attendMarkCmd, attendListCmd)
	rootCmd.AddCommand(attendCmd)
}
