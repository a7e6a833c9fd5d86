package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/tabocr/pkg/config"
	"github.com/lehigh-university-libraries/tabocr/pkg/output"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old session folders, keeping the most recent ones",
	RunE:  runCleanup,
}

var (
	cleanupOutput string
	cleanupKeep   int
)

func init() {
	RootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().StringVarP(&cleanupOutput, "output", "o", "", "Directory that holds the session folders (default $TABOCR_OUTPUT or ocr_output)")
	cleanupCmd.Flags().IntVar(&cleanupKeep, "keep", 5, "Number of most recent session folders to keep")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	root := cleanupOutput
	if root == "" {
		root = config.FromEnv(config.Defaults()).Output
	}

	removed, err := output.Prune(root, cleanupKeep)
	for _, r := range removed {
		fmt.Printf("Removed %s\n", r)
	}
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		fmt.Printf("Nothing to remove in %s\n", root)
	}
	return nil
}
