package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	yaml "go.yaml.in/yaml/v3"

	"github.com/lehigh-university-libraries/tabocr/pkg/pdf"
)

var infoCmd = &cobra.Command{
	Use:   "info <pdf>",
	Short: "Print page count and document information of a PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	RootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	info, err := pdf.ReadInfo(args[0])
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(info)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}
