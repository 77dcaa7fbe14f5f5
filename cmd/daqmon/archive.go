package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func NewArchiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "archive",
		GroupID: gRecording,
		Short:   "Inspect the archive database",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List archived sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions, err := apiClient.GetArchivedSessions()
			if err != nil {
				return fmt.Errorf("failed to list archived sessions: %w", err)
			}
			if len(sessions) == 0 {
				cmd.Println("No archived sessions.")
				return nil
			}
			for _, s := range sessions {
				cmd.Printf("%s  %s  %s  %6d points  %s\n", bold("%s", s.ID),
					s.StartedAt.Local().Format(time.DateTime),
					s.StoppedAt.Sub(s.StartedAt).Round(time.Second), s.Points, s.Path)
			}
			return nil
		},
	})

	return cmd
}
