package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newTranscriptCmd(root *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "transcript <user-id>",
		Short: "Print a user's archived conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.Close()

			messages, err := a.Engine.Transcript(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(messages)
			}
			if len(messages) == 0 {
				fmt.Fprintln(out, "No transcript.")
				return nil
			}
			for _, m := range messages {
				fmt.Fprintf(out, "%s  %-4s  %s\n", m.Timestamp.Format("2006-01-02 15:04:05"), m.Speaker, m.Text)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
