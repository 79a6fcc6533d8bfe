// Package cmd provides the CLI commands for sheetlogin.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gaepo/sheetlogin/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sheetlogin",
	Short: "sheetlogin - student record lookup backed by a spreadsheet",
	Long: `sheetlogin serves a single page where a student enters an ID and name
and sees their own row of a Google Sheet (or CSV file).

Quick start:
  1. Create a config file: sheetlogin.yaml
       source:
         location: https://docs.google.com/spreadsheets/d/<id>/edit
         api_key: <key>
  2. Run: sheetlogin start

Configuration:
  Config is loaded from sheetlogin.yaml in the current directory,
  $HOME/.sheetlogin/, or /etc/sheetlogin/.

  Environment variables can override config values with the SHEETLOGIN_ prefix.
  Example: SHEETLOGIN_SERVER_HTTP_ADDR=:9090

Commands:
  start       Start the web server
  stop        Stop the running server
  check       Load the table once and report its shape
  lookup      Look up one student's row from the command line
  version     Print version information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./sheetlogin.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
