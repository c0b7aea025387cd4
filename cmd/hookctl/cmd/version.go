package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// set at build time via -ldflags "-X .../cmd.version=..."
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the hookctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hookctl %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
