package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"rag-chat-be/internal/config"
	"rag-chat-be/pkg/events"
	pktNats "rag-chat-be/pkg/nats"

	"github.com/spf13/cobra"
)

func newEventsCommand() *cobra.Command {
	var (
		subject string
		durable string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail turn and session events relayed to NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.App.NatsURL == "" {
				return errors.New("NATS_URL is not set")
			}

			sub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
			if err != nil {
				return err
			}
			defer sub.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			handler := func(ctx context.Context, event events.Event) error {
				return enc.Encode(events.ToEnvelope(event))
			}

			fmt.Fprintf(os.Stderr, "Listening on %s (Ctrl-C to stop)\n", subject)
			err = sub.Subscribe(cmd.Context(), subject, durable, handler)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "events.>", "subject filter")
	cmd.Flags().StringVar(&durable, "durable", "", "durable consumer name (resume where it left off)")
	return cmd
}
