package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// pingCmd represents the ping command
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Ping the Hookline service",
	Long:  `Send a ping request to verify the Hookline admin API is running and accessible.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().R().
			SetContext(cmd.Context()).
			SetError(&apiError{}).
			Get("/v1/ping")
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}
		if resp.IsError() {
			return apiErrorf(resp)
		}

		fmt.Println("Pong! Service is running")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}
