package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kir-gadjello/aperture/agent"
	"github.com/kir-gadjello/aperture/history"
)

func newHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear the saved chat transcript",
	}

	showCmd := &cobra.Command{
		Use:   "show [QUERY]",
		Short: "Print saved messages, optionally filtered",
		Long:  "Print the saved transcript. QUERY words must all match; use 'you:term' or 'agent:term' to filter by speaker and quotes for phrases.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			store, closeStore := openHistoryStore(a.rc)
			defer closeStore()

			entries, err := store.Load()
			if err != nil {
				return fmt.Errorf("load history: %w", err)
			}
			entries = history.Filter(entries, strings.Join(args, " "))
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matches found.")
				return nil
			}

			details, _ := cmd.Flags().GetBool("details")
			out := cmd.OutOrStdout()
			for _, e := range entries {
				label := agentLabel(e.Who + ":")
				if e.Who == "You" {
					label = youLabel(e.Who + ":")
				}
				fmt.Fprintf(out, "%s %s\n", label, sanitize(e.Text))
				if details && len(e.Details) > 0 {
					fmt.Fprintln(out, blockColor(sanitize(agent.Indent(e.Details))))
				}
			}
			return nil
		},
	}
	showCmd.Flags().BoolP("details", "d", false, "Include action results")
	historyCmd.AddCommand(showCmd)

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the saved transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			assumeYes, _ := cmd.Flags().GetBool("yes")
			prompt := newCLIPrompter(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), assumeYes)
			if !prompt.Confirm("Clear chat history?") {
				return nil
			}

			store, closeStore := openHistoryStore(a.rc)
			defer closeStore()
			if err := store.Save(nil); err != nil {
				return fmt.Errorf("clear history: %w", err)
			}
			color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "✓ History cleared.")
			return nil
		},
	}
	clearCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	historyCmd.AddCommand(clearCmd)

	return historyCmd
}
