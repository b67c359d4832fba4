package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AbolfazlSheikhha/gossip-network/src/version"
)

// NewVersionCmd returns a command that prints the build version.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version.Version)
			return nil
		},
	}
}
