package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/service"

	"github.com/spf13/cobra"
)

func newAskCommand() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and stream the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			_, err = a.streamTurn(cmd.Context(), cmd.OutOrStdout(), sessionID, strings.Join(args, " "))
			return err
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "continue an existing session (a new one is created when empty)")
	return cmd
}

// streamTurn prints fragments as they arrive and returns the session id the
// turn ran in.
func (a *app) streamTurn(ctx context.Context, w io.Writer, sessionID, message string) (string, error) {
	var turnErr error

	for frame := range service.StreamFrames(a.container.ChatService.StreamMessage(ctx, sessionID, message)) {
		switch frame.Type {
		case dto.FrameChunk:
			fmt.Fprint(w, frame.Fragment)
		case dto.FrameFinal:
			fmt.Fprintln(w)
			printSources(w, frame.Result.ReferencePassages)
			if !frame.Result.Saved {
				fmt.Fprintln(w, "(warning: this turn was not saved)")
			}
			sessionID = frame.Result.SessionId
		case dto.FrameError:
			turnErr = fmt.Errorf("%s", frame.Error)
		}
	}

	return sessionID, turnErr
}

func printSources(w io.Writer, passages []dto.PassageDTO) {
	if len(passages) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for i, p := range passages {
		fmt.Fprintf(w, "  [%d] %s\n", i+1, sourceLabel(p))
	}
}

func sourceLabel(p dto.PassageDTO) string {
	for _, key := range []string{"title", "source", "url"} {
		if v, ok := p.SourceMetadata[key]; ok {
			return fmt.Sprint(v)
		}
	}
	content := p.Content
	if len(content) > 60 {
		content = content[:60] + "..."
	}
	return content
}
