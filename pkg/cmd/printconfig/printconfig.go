package printconfig

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/lapsim/pkg/config"
)

func NewConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "prints the effective simulation parameters as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Sim.Validate(); err != nil {
				return err
			}
			out, err := config.Sim.YAML()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
}
