package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func pathArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func NewRecordCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "record",
		Aliases: []string{"rec"},
		GroupID: gRecording,
		Short:   "Record the monitored channels",
		Long: `Record the monitored channels.

A session collects every reading of the channels enabled when it started.
Once stopped it must be exported or discarded before the next one starts.
Relative paths are resolved against the daemon's output directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := apiClient.GetRecording()
			if err != nil {
				return err
			}
			cmd.Printf("State: %s\n", recordingStateText(st.State))
			if st.ID != "" {
				cmd.Printf("Session: %s, %s points\n", st.ID, bold("%d", st.Points))
			}
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "start",
			Short: "Start a recording",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				info, err := apiClient.StartRecording()
				if err != nil {
					return fmt.Errorf("failed to start recording: %w", err)
				}
				cmd.Printf("Recording %s started. It will be exported as %s by default.\n", info.ID, info.FilenameHint)
				return nil
			},
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Stop the recording",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				st, err := apiClient.StopRecording()
				if err != nil {
					return fmt.Errorf("failed to stop recording: %w", err)
				}
				cmd.Printf("Recording stopped with %s points. Export it with 'daqmon record export'.\n", bold("%d", st.Points))
				return nil
			},
		},
		&cobra.Command{
			Use:   "export [path]",
			Short: "Export the stopped recording to CSV",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				dest, err := apiClient.ExportRecording(pathArg(args))
				if err != nil {
					return fmt.Errorf("failed to export recording, it is kept for another try: %w", err)
				}
				cmd.Printf("Exported to %s\n", bold("%s", dest))
				return nil
			},
		},
		&cobra.Command{
			Use:   "discard",
			Short: "Throw away the stopped recording",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := apiClient.DiscardRecording(); err != nil {
					return fmt.Errorf("failed to discard recording: %w", err)
				}
				cmd.Println("Recording discarded.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "plot [path]",
			Short: "Plot the stopped recording",
			Long:  `Plot the stopped recording. The format follows the extension: png, jpg, svg or pdf.`,
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				dest, err := apiClient.PlotRecording(pathArg(args))
				if err != nil {
					return fmt.Errorf("failed to plot recording: %w", err)
				}
				cmd.Printf("Plot saved to %s\n", bold("%s", dest))
				return nil
			},
		},
	)

	return cmd
}
