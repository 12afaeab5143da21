package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesm/prreviewer/internal/version"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show prreviewer version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("prreviewer %s\n", version.Version)
		},
	}
}
