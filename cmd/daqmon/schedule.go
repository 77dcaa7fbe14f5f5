package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/charlie0129/daqmon/pkg/daemon"
)

func NewScheduleCommand() *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:     "schedule [cron-expression]",
		Aliases: []string{"sch", "sched"},
		Short:   "Manage unattended recordings",
		Long: `Manage unattended recordings.

When the schedule fires and monitoring is running, a recording is started,
stopped after --duration and exported under its default name.

The schedule command can be used in multiple ways:
  daqmon schedule 'minute hour day month weekday'  Set schedule with cron expression
  daqmon schedule disable                          Disable the schedule
  daqmon schedule postpone [duration]              Postpone next run
  daqmon schedule skip                             Skip next run
  daqmon schedule show                             Show current schedule`,
		Example: `  daqmon schedule '0 * * * *' --duration 5m  (5 minutes at the top of every hour)
  daqmon schedule '@every 30m' --duration 1m`,
		GroupID: gRecording,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runScheduleShow(cmd)
			}
			s, err := apiClient.SetSchedule(args[0], duration)
			if err != nil {
				return err
			}
			printSchedule(cmd, s)
			return nil
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", daemon.DefaultRecordDuration, "Length of each recording")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "disable",
			Short: "Disable the recording schedule",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := apiClient.ClearSchedule(); err != nil {
					return err
				}
				cmd.Println("Recording schedule disabled.")
				return nil
			},
		},
		newSchedulePostponeCommand(),
		&cobra.Command{
			Use:   "skip",
			Short: "Skip the next scheduled recording",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := apiClient.SkipSchedule()
				if err != nil {
					return err
				}
				printSchedule(cmd, s)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Show the current recording schedule",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runScheduleShow(cmd)
			},
		},
	)

	return cmd
}

func newSchedulePostponeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "postpone [duration]",
		Short: "Postpone the next scheduled recording",
		Example: `  daqmon schedule postpone      (Postpone by 1 hour)
  daqmon schedule postpone 90m  (Postpone by 90 minutes)`,
		Long: `Postpone the next scheduled recording by a specified duration.
If no duration is provided, defaults to 1 hour. The postponed run must still
come before the one after it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := time.Hour
			if len(args) > 0 {
				parsed, err := time.ParseDuration(args[0])
				if err != nil {
					return fmt.Errorf("invalid duration %q: %w", args[0], err)
				}
				d = parsed
			}
			s, err := apiClient.PostponeSchedule(d)
			if err != nil {
				return err
			}
			cmd.Printf("Next run postponed by %s.\n", d)
			printSchedule(cmd, s)
			return nil
		},
	}
}

func runScheduleShow(cmd *cobra.Command) error {
	s, err := apiClient.GetSchedule()
	if err != nil {
		return err
	}
	printSchedule(cmd, s)
	return nil
}

func printSchedule(cmd *cobra.Command, s daemon.RecordingSchedule) {
	if s.Spec == "" {
		cmd.Println("Recording schedule is not set.")
		return
	}
	cmd.Printf("Schedule: %s, recording %s each time\n", bold("%s", s.Spec), s.Duration)
	if !s.NextRun.IsZero() {
		cmd.Printf("Next run: %s\n", bold("%s", s.NextRun.Local().Format(time.DateTime)))
	}
}
