package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewIDCmd returns a command that previews a freshly minted node identity.
// Node identity is never persisted (it is stable only for the process
// lifetime, per the data model), so this only demonstrates the UUID shape
// `run` will generate at startup; it is not a reusable identity.
func NewIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "id",
		Short: "Print a freshly minted node_id",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(uuid.NewString())
			return nil
		},
	}
}
