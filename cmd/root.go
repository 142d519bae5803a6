package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "paylink",
	Short: "PayLink reconciliation microservice",
	Long:  "A payment reconciliation service that polls gateway, settlement and refund status, delivers merchant webhooks and streams live payment updates.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
