package main

import (
	"fmt"

	gmversion "github.com/ShayCichocki/gm/internal/version"
	"github.com/spf13/cobra"
)

// version returns the current version string.
func version() string {
	return gmversion.Get()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gm version %s\n", version())
	},
}
