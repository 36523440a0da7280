package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harunnryd/airassist/pkg/airassist"
	"github.com/harunnryd/airassist/pkg/session"
)

var sendCmd = &cobra.Command{
	Use:   "send <command...>",
	Short: "Route a single command through the active provider",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAssistant(airassist.Options{})
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Start(cmd.Context()); err != nil {
			return err
		}

		res, err := a.Submit(cmd.Context(), strings.Join(args, " "))
		out := cmd.OutOrStdout()
		if !res.Accepted {
			fmt.Fprintln(out, timestampStyle.Render("suppressed: "+res.Reason))
			return nil
		}
		var rerr *session.RoutingError
		if errors.As(err, &rerr) {
			msgs := a.Messages()
			fmt.Fprintln(out, renderMessage(msgs[len(msgs)-1]))
			return rerr
		}
		if err != nil {
			return err
		}
		msgs := a.Messages()
		fmt.Fprintln(out, renderMessage(msgs[len(msgs)-1]))
		return nil
	},
}
