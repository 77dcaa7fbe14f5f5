package main

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewDeviceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "device",
		GroupID: gBasic,
		Short:   "Show the connected device",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dev, err := apiClient.GetDevice()
			if err != nil {
				return err
			}
			printDevice(cmd, dev)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "detect",
		Short: "Look for a device again",
		Long:  `Look for a device again. This fails while monitoring is running.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dev, err := apiClient.DetectDevice()
			if err != nil {
				return fmt.Errorf("failed to detect device: %w", err)
			}
			printDevice(cmd, dev)
			return nil
		},
	})

	return cmd
}

func NewChannelCommand() *cobra.Command {
	set := func(on bool) func(args []string) (string, error) {
		return func(args []string) (string, error) {
			var ret string
			for _, a := range args {
				pin, err := parseIntArg(a, "pin")
				if err != nil {
					return "", err
				}
				if ret, err = apiClient.SetChannel(pin, on); err != nil {
					return "", fmt.Errorf("pin %d: %w", pin, err)
				}
				logrus.Infof("pin %d monitoring %s", pin, map[bool]string{true: "enabled", false: "disabled"}[on])
			}
			return ret, nil
		}
	}

	cmd := newEnableDisableCommand("channel", "monitoring of analog channels", set(true), set(false), cobra.MinimumNArgs(1))
	cmd.Aliases = []string{"ch"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the pins being monitored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pins, err := apiClient.GetChannels()
			if err != nil {
				return err
			}
			for _, p := range pins {
				cmd.Println(strconv.Itoa(p))
			}
			return nil
		},
	}, &cobra.Command{
		Use:   "history <pin>",
		Short: "Print the recent values of a pin",
		Long:  `Print the recent calibrated values of a pin, oldest first, one per line.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pin, err := parseIntArg(args[0], "pin")
			if err != nil {
				return err
			}
			values, err := apiClient.GetHistory(pin)
			if err != nil {
				return err
			}
			for _, v := range values {
				cmd.Println(strconv.FormatFloat(v, 'f', 6, 64))
			}
			return nil
		},
	})
	return cmd
}

func NewMonitorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "monitor",
		GroupID: gBasic,
		Short:   "Start or stop acquisition",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "start",
			Short: "Start acquiring the enabled channels",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				ret, err := apiClient.StartMonitoring()
				if err != nil {
					return fmt.Errorf("failed to start monitoring: %w", err)
				}
				logResponse(ret)
				logrus.Info("monitoring started")
				return nil
			},
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Stop acquisition",
			Long:  `Stop acquisition. An active recording is stopped too and kept for export.`,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				st, err := apiClient.StopMonitoring()
				if err != nil {
					return fmt.Errorf("failed to stop monitoring: %w", err)
				}
				logrus.Info("monitoring stopped")
				cmd.Printf("Recording: %s\n", recordingStateText(st.State))
				return nil
			},
		},
	)

	return cmd
}
