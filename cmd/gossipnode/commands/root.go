package commands

import (
	"github.com/spf13/cobra"
)

// RootCmd is the root command for the gossip node binary.
var RootCmd = &cobra.Command{
	Use:              "gossipnode",
	Short:            "decentralized UDP rumor-dissemination node",
	TraverseChildren: true,
}

func init() {
	RootCmd.AddCommand(NewRunCmd())
	RootCmd.AddCommand(NewIDCmd())
	RootCmd.AddCommand(NewVersionCmd())
}
