package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"gitlab.com/autoserver-2025.net/internal/global/logger"
)

var envName string

var rootCmd = &cobra.Command{
	Use:           "autoserver",
	Short:         "Host automation procedures and observe or control them remotely",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envName != "" {
			if err := godotenv.Load(envName + ".env"); err != nil {
				return fmt.Errorf("error loading %s.env file: %w", envName, err)
			}
		}
		logger.SetLevel(os.Getenv("LOG_LEVEL"))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "Load <name>.env before reading the configuration")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
