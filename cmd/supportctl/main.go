package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "supportctl",
		Short:         "Maintenance commands for the Ozon support integration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newVersionCmd(),
		newNewChatsCmd(),
		newUpdateChatsCmd(),
		newUpdateChatCmd(),
		newUpdateReviewsCmd(),
		newUpdateQuestionsCmd(),
		newRegisterProfileTypeCmd(),
		newCreateOperatorCmd(),
		newOrderChatCmd(),
		newIndexOrderCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the supportctl version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "supportctl:", err)
		os.Exit(1)
	}
}
