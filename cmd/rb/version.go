package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var (
	// Version is the current version of rb (overridden by ldflags at build time)
	Version = "0.1.0"
	// Build can be set via ldflags at compile time
	Build = "dev"
	// Commit is the git revision the binary was built from (optional ldflag)
	Commit = ""
)

var versionCmd = &cobra.Command{
	Use:         "version",
	GroupID:     "setup",
	Short:       "Print version information",
	Annotations: map[string]string{noStoreAnnotation: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		printVersion()
	},
}

func printVersion() {
	commit := resolveCommitHash()
	if jsonOutput {
		result := map[string]string{"version": Version, "build": Build}
		if commit != "" {
			result["commit"] = commit
		}
		outputJSON(result)
		return
	}
	if commit != "" {
		fmt.Printf("rb version %s (%s: %s)\n", Version, Build, shortCommit(commit))
	} else {
		fmt.Printf("rb version %s (%s)\n", Version, Build)
	}
}

// resolveCommitHash prefers the ldflag, then the VCS stamp Go embeds.
func resolveCommitHash() string {
	if Commit != "" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return ""
}

func shortCommit(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
