// Package main provides the entry point for the lecture pipeline service.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lecture_agent",
	Short: "Document-to-lecture pipeline service",
	Long:  "lecture_agent turns uploaded documents into spoken lectures with synchronized playback: content analysis, topic segmentation, script generation and audio synthesis, exposed over a REST API.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
