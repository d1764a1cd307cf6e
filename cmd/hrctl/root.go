package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"alfredoptarigan/hr-agent/internal/app"
	"alfredoptarigan/hr-agent/internal/config"
)

const cliName = "hrctl"

var rootCmd = &cobra.Command{
	Use:           cliName,
	Short:         "hrctl runs maintenance tasks against the HR agent database and vector index",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

// bootstrap loads the environment config and wires every component.
func bootstrap() (*app.Container, error) {
	cfg := config.Load()

	log, err := config.NewLogger(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}

	c, err := app.New(cfg, log)
	if err != nil {
		log.Error("initializing application", zap.Error(err))
		return nil, err
	}
	return c, nil
}
