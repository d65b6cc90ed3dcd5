package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		build := Build
		if info, ok := debug.ReadBuildInfo(); ok && build == "dev" {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
					build = setting.Value[:7]
				}
			}
		}
		fmt.Printf("fm %s (%s)\n", Version, build)
	},
}
