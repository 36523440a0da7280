package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harunnryd/airassist/pkg/adapters/provider"
	"github.com/harunnryd/airassist/pkg/airassist"
	"github.com/harunnryd/airassist/pkg/redact"
	"github.com/harunnryd/airassist/pkg/session"
	"github.com/harunnryd/airassist/pkg/store"
)

var connectTimeout time.Duration

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Inspect and switch the active provider",
}

var providerUseCmd = &cobra.Command{
	Use:       "use <realtime|webhook>",
	Short:     "Make a provider active; the other one is disconnected",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"realtime", "webhook"},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := provider.ParseKind(args[0])
		if err != nil {
			return err
		}
		a, err := newAssistant(airassist.Options{})
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Start(cmd.Context()); err != nil {
			return err
		}
		if err := a.SetActiveProvider(kind); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("active provider: "+kind.String()))
		return nil
	},
}

var providerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted session record",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		rec, err := store.LoadRecord(st)
		if err != nil {
			return err
		}
		active := rec.ActiveProvider
		if active == "" {
			active = cfg.Providers.Default + " (default)"
		}
		connected := func(v bool) string {
			if v {
				return stateStyle(session.StateConnected).Render("connected")
			}
			return stateStyle(session.StateDisconnected).Render("disconnected")
		}
		cred := func(kind provider.Kind) string {
			v := rec.Credentials[kind.String()]
			if v == "" {
				return timestampStyle.Render("not set")
			}
			if kind == provider.KindWebhook {
				return redact.URL(v)
			}
			return redact.Secret(v)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, headerStyle.Render("Session"))
		fmt.Fprintln(out, renderRows(
			[2]string{"store", cfg.Store.Path},
			[2]string{"active provider", active},
			[2]string{"realtime", connected(rec.RealtimeConnected)},
			[2]string{"realtime api key", cred(provider.KindRealtime)},
			[2]string{"webhook", connected(rec.WebhookConnected)},
			[2]string{"webhook url", cred(provider.KindWebhook)},
		))
		return nil
	},
}

var providerConnectCmd = &cobra.Command{
	Use:   "connect <realtime|webhook>",
	Short: "Connect the active provider with its stored credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := provider.ParseKind(args[0])
		if err != nil {
			return err
		}
		a, err := newAssistant(airassist.Options{})
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Start(cmd.Context()); err != nil {
			return err
		}
		ctx := cmd.Context()
		if connectTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, connectTimeout)
			defer cancel()
		}
		if err := a.Connect(ctx, kind); err != nil {
			return err
		}
		st := a.Manager().Status(kind)
		fmt.Fprintln(cmd.OutOrStdout(), kind.String()+": "+stateStyle(st.State).Render(st.State.String()))
		return nil
	},
}

var providerDisconnectCmd = &cobra.Command{
	Use:   "disconnect <realtime|webhook>",
	Short: "Disconnect a provider and clear its connected flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := provider.ParseKind(args[0])
		if err != nil {
			return err
		}
		a, err := newAssistant(airassist.Options{})
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Start(cmd.Context()); err != nil {
			return err
		}
		if err := a.Disconnect(kind); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), kind.String()+": "+stateStyle(session.StateDisconnected).Render("disconnected"))
		return nil
	},
}

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage provider credentials",
}

var credentialSetCmd = &cobra.Command{
	Use:   "set <realtime|webhook> <value>",
	Short: "Store the realtime API key or the webhook URL",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := provider.ParseKind(args[0])
		if err != nil {
			return err
		}
		value := strings.TrimSpace(args[1])
		if kind == provider.KindWebhook && value != "" {
			if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
				return fmt.Errorf("webhook url must be http or https")
			}
		}
		a, err := newAssistant(airassist.Options{})
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Start(cmd.Context()); err != nil {
			return err
		}
		if err := a.SetCredential(kind, value); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(kind.String()+" credential saved"))
		return nil
	},
}

func init() {
	providerConnectCmd.Flags().DurationVar(&connectTimeout, "timeout", 15*time.Second, "Give up connecting after this long")
	providerCmd.AddCommand(providerUseCmd, providerStatusCmd, providerConnectCmd, providerDisconnectCmd)
	credentialCmd.AddCommand(credentialSetCmd)
}
