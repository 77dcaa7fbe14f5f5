package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/charlie0129/daqmon/pkg/daemon"
	"github.com/charlie0129/daqmon/pkg/recording"
)

func recordingStateText(s recording.State) string {
	switch s {
	case recording.StateRecording:
		return color.New(color.Bold, color.FgRed).Sprint("● recording")
	case recording.StateStopped:
		return color.New(color.Bold, color.FgYellow).Sprint("stopped, not exported")
	}
	return bold("idle")
}

func printDevice(cmd *cobra.Command, dev *daemon.DeviceStatus) {
	if dev == nil || !dev.Connected {
		cmd.Printf("  Connected: %s\n", bool2Text(false))
		cmd.Println("    No device found. Plug one in and run 'daqmon device detect'.")
		return
	}
	cmd.Printf("  Connected: %s\n", bool2Text(true))
	cmd.Printf("  Device: %s (%s)\n", bold("%s", dev.Name), dev.Backend)
	if dev.Path != "" {
		cmd.Printf("  Path: %s\n", dev.Path)
	}
}

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of daqmon",
		Long:    `Get device, monitoring and recording status, and per-channel statistics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := apiClient.GetStatus()
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}

			cmd.Println(bold("Device:"))
			printDevice(cmd, st.Device)
			cmd.Println()

			cmd.Println(bold("Monitoring:"))
			cmd.Printf("  Running: %s\n", bool2Text(st.Monitoring))
			cmd.Printf("  Sample rate: %s\n", bold("%d Hz", st.SampleRate))
			if st.LastError != "" {
				cmd.Printf("  Last error: %s\n", color.RedString(st.LastError))
			}
			if len(st.Channels) == 0 {
				cmd.Println("  No channels enabled. Enable one with 'daqmon channel enable <pin>'.")
			}
			for _, ch := range st.Channels {
				cmd.Printf("  Pin %d: %s", ch.Pin, bold("%s", ch.Name))
				if ch.Stats == nil {
					cmd.Println(" (no readings yet)")
					continue
				}
				s := ch.Stats
				cmd.Printf(" last %s, min %.3f, max %.3f, mean %.3f, std %.3f (%d readings)\n",
					bold("%.3f %s", s.Last, ch.Unit), s.Min, s.Max, s.Mean, s.StdDev, s.Count)
			}
			cmd.Println()

			cmd.Println(bold("Recording:"))
			rec := st.Recording
			cmd.Printf("  State: %s\n", recordingStateText(rec.State))
			if rec.State != recording.StateIdle {
				cmd.Printf("  Session: %s\n", rec.ID)
				cmd.Printf("  Started: %s\n", rec.StartedAt.Local().Format(time.DateTime))
				cmd.Printf("  Points: %s\n", bold("%d", rec.Points))
				cmd.Printf("  Channels: %v\n", rec.Channels)
			}
			if rec.State == recording.StateStopped {
				cmd.Printf("    Export it with 'daqmon record export' (suggested name %s) or discard it.\n", rec.FilenameHint)
			}
			if st.Schedule != nil {
				cmd.Printf("  Schedule: %s, %s each, next at %s\n", bold("%s", st.Schedule.Spec),
					st.Schedule.Duration, st.Schedule.NextRun.Local().Format(time.DateTime))
			}
			if st.Archive != "" {
				cmd.Printf("  Archive: %s\n", st.Archive)
			}
			cmd.Println()

			cmd.Println(bold("Streams:"))
			cmd.Printf("  Event subscribers: %d (%d events dropped)\n", st.Streams.Subscribers, st.Streams.EventsDropped)
			if m := st.Streams.MQTT; m != nil {
				cmd.Printf("  MQTT: %d sent, %d dropped\n", m.Sent, m.Dropped)
			}
			return nil
		},
	}
}
