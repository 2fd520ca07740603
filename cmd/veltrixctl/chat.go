package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ashureev/veltrix/internal/assistant"
	"github.com/ashureev/veltrix/internal/domain"
	"github.com/ashureev/veltrix/internal/store"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

const chatHelp = `Type a message, or:
  /reset   clear the dialogue session
  /quit    leave`

func newChatCmd(root *rootOptions) *cobra.Command {
	var (
		userID string
		role   string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in-process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, root)
			if err != nil {
				return err
			}
			defer a.Close()

			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)

			prompt := func() (string, error) {
				text, err := line.Prompt("you> ")
				if err == nil && strings.TrimSpace(text) != "" {
					line.AppendHistory(text)
				}
				return text, err
			}
			fmt.Fprintln(cmd.OutOrStdout(), chatHelp)
			return chatLoop(ctx, a.Engine, assistant.Request{UserID: userID, Role: domain.ParseRole(role)}, prompt, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&userID, "user", store.DemoCustomerID, "user ID to chat as")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleCustomer), "caller role: customer or vendor")
	return cmd
}

// chatLoop reads lines from prompt until it fails or the user quits.
func chatLoop(ctx context.Context, engine *assistant.Engine, who assistant.Request, prompt func() (string, error), out io.Writer) error {
	for {
		text, err := prompt()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		switch strings.TrimSpace(text) {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := engine.ClearSession(ctx, who.UserID); err != nil {
				return err
			}
			fmt.Fprintln(out, "session cleared")
			continue
		}

		req := who
		req.Message = text
		resp, err := engine.Reply(ctx, req)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if resp.Intent != nil {
			fmt.Fprintf(out, "[%s]\n", *resp.Intent)
		}
		fmt.Fprintf(out, "%s\n\n", resp.Reply)
	}
}
