package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	API     string
	Token   string
	Timeout time.Duration
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:           "netmanager",
	Short:         "Command-line client for the netmanager API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.API, "api", envOr("API_BASE", "http://localhost:8080"), "API base URL")
	rootCmd.PersistentFlags().StringVar(&flags.Token, "token", os.Getenv("NETMANAGER_TOKEN"), "access token (see `login`)")
	// speed tests take a while
	rootCmd.PersistentFlags().DurationVar(&flags.Timeout, "timeout", 2*time.Minute, "request timeout")

	rootCmd.AddCommand(registerCmd, loginCmd, refreshCmd, statsCmd, optimizeCmd, historyCmd)
}
