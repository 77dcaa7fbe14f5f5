package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/daqmon/pkg/events"
)

func NewWatchCommand() *cobra.Command {
	var names []string

	cmd := &cobra.Command{
		Use:     "watch",
		GroupID: gBasic,
		Short:   "Print live readings and daemon events",
		Long:    `Print live readings and daemon events until interrupted.`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ch, err := apiClient.SubscribeEvents(ctx, names...)
			if err != nil {
				return err
			}
			for ev := range ch {
				printEvent(cmd, ev)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&names, "events", nil, "Only show these events, e.g. sample.reading,recording.state")
	return cmd
}

func eventTime(ts float64) string {
	sec := int64(ts)
	return time.Unix(sec, int64((ts-float64(sec))*1e9)).Local().Format("15:04:05.000")
}

func printEvent(cmd *cobra.Command, ev events.Event) {
	switch ev.Name {
	case events.SampleReading:
		s, err := events.DecodeAs[events.SampleReadingEvent](ev)
		if err != nil {
			break
		}
		mark := " "
		if s.Recording {
			mark = color.RedString("●")
		}
		cmd.Printf("%s %s Pin %d %-16s %8.4f V  %s\n", eventTime(s.Ts), mark, s.Pin, s.Name, s.Voltage, bold("%.4f %s", s.Value, s.Unit))
		return
	case events.RecordingState:
		s, err := events.DecodeAs[events.RecordingStateEvent](ev)
		if err != nil {
			break
		}
		cmd.Printf("%s recording %s: %s -> %s (%d points)", time.Unix(s.Ts, 0).Format(time.TimeOnly), s.ID, s.From, bold("%s", s.To), s.Points)
		if s.Path != "" {
			cmd.Printf(" %s", s.Path)
		}
		if s.Message != "" {
			cmd.Printf(" %s", color.YellowString(s.Message))
		}
		cmd.Println()
		return
	}
	logrus.WithField("event", ev.Name).Info(string(ev.Data))
}
