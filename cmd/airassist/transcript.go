package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harunnryd/airassist/pkg/transcript"
)

var (
	showLimit    int
	exportFormat string
	exportOutput string
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Show, export or clear the persisted transcript",
}

var transcriptShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the most recent messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		msgs, err := st.Messages(showLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Transcript (%d messages)", len(msgs))))
		for _, m := range msgs {
			fmt.Fprintln(out, renderMessage(m))
		}
		return nil
	},
}

var transcriptExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the transcript as YAML or JSONL",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := transcript.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		msgs, err := st.Messages(0)
		if err != nil {
			return err
		}
		if exportOutput == "" || exportOutput == "-" {
			return transcript.Export(cmd.OutOrStdout(), format, msgs)
		}
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("create %s: %w", exportOutput, err)
		}
		if err := transcript.Export(f, format, msgs); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render(fmt.Sprintf("exported %d messages to %s", len(msgs), exportOutput)))
		return nil
	},
}

var transcriptClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the persisted transcript",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.ClearMessages(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(transcript.ClearedReply))
		return nil
	},
}

func init() {
	transcriptShowCmd.Flags().IntVarP(&showLimit, "limit", "n", 50, "Number of recent messages to show (0 for all)")
	transcriptExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "yaml", "Export format: yaml or jsonl")
	transcriptExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
	transcriptCmd.AddCommand(transcriptShowCmd, transcriptExportCmd, transcriptClearCmd)
}
