package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newSessionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			sessions, err := a.container.ChatService.ListSessions(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCREATED")
			for _, s := range sessions {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Id, s.Name, s.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func newHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history <session-id>",
		Short: "Print every turn of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			history, err := a.container.ChatService.GetHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n\n", history.Session.Name, history.Session.Id)
			for _, turn := range history.Turns {
				fmt.Fprintf(out, "#%d user: %s\n", turn.Sequence, turn.UserMessage)
				fmt.Fprintf(out, "#%d assistant: %s\n", turn.Sequence, turn.Response)
				printSources(out, turn.ReferencePassages)
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}
