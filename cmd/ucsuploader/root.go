package main

import (
	"github.com/spf13/cobra"
)

var (
	logFormat  string
	logLevel   string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "ucsuploader",
	Short: "UCS CSV upload backend",
	Long:  "Receives UCS community health CSV uploads, validates and deduplicates them, and serves upload statistics and dashboard aggregates.",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides LOG_FORMAT)")
	pf.StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
	pf.StringVar(&configFile, "config", "", "Optional YAML config file with extra dashboard users")
}
