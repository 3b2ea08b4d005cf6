package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the mailmend agent
var rootCmd = &cobra.Command{
	Use:   "mailmend",
	Short: "Watches a mailbox and fixes spreadsheet mistakes with human approval",
	Long: `mailmend watches a mailbox for spreadsheet attachments, analyzes them
for inconsistencies and proposes cell-level corrections. Each proposal is
sent to a messaging channel where a human approves or rejects it; approved
edits are applied exactly once as a new immutable revision of the file.`,
	SilenceUsage: true,
}

// Execute is the main entry point for the CLI application
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newVersionCmd())
}
