package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mailmend/mailmend"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mailmend version %s\n", mailmend.Version)
		},
	}
}
