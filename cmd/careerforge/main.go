package main

import (
	"context"
	"fmt"
	"os"

	"github.com/careerforge/careerforge/internal/api"
	"github.com/spf13/cobra"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "careerforge",
	Short:   "CareerForge - AI resume tailoring service",
	Long:    `CareerForge tailors resumes and career documents to a specific job posting: optimized resume, cover letter, keyword gap analysis and interview preparation.`,
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return api.Run(context.Background(), Version)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("CareerForge %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
