package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evalgate/evalgate/internal/gateway/contract"
	"github.com/evalgate/evalgate/internal/output"
)

var contractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: "List the supported metric contracts",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		rendered, err := output.Contracts(format, contract.List())
		if err != nil {
			return err
		}

		fmt.Println(rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(contractsCmd)

	contractsCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|markdown")
}
