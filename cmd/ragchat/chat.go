package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newChatCommand() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(cmd.InOrStdin())
			fmt.Fprintln(out, "Type a message, or /exit to quit.")

			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					continue
				case "/exit", "/quit":
					return nil
				}

				id, err := a.streamTurn(cmd.Context(), out, sessionID, line)
				if err != nil {
					fmt.Fprintln(out, "\nError:", err)
				}
				if id != "" && sessionID == "" {
					sessionID = id
					fmt.Fprintf(out, "(session %s)\n", sessionID)
				}
				if cmd.Context().Err() != nil {
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "continue an existing session")
	return cmd
}
