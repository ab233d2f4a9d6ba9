package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/horizon-coach/internal/domain"
)

func (a *app) sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage stored sessions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored sessions, most recent first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			repo, err := openStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			sessions, err := repo.ListSessions(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			return printSessions(cmd.OutOrStdout(), sessions)
		},
	}
	list.Flags().Int("limit", 20, "maximum number of sessions")

	reset := &cobra.Command{
		Use:   "reset <session-id>",
		Short: "Delete a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.DeleteSession(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("reset session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s reset\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, reset)
	return cmd
}

func printSessions(w io.Writer, sessions []domain.SessionSummary) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tMESSAGES\tUPDATED")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", s.SessionID, s.MessageCount, s.UpdatedAt.Local().Format(time.RFC3339))
	}
	return tw.Flush()
}
