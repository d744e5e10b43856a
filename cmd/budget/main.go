package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Veraticus/the-budget-must-balance/internal/cli"
	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	version   = "dev"
	appConfig *config.Config
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "budget",
		Short: "💰 Household budget ledger and forecaster",
		Long: `the-budget-must-balance: imports bank statements without double counting,
categorizes every row, splits the balance between the household and
projects where the money is heading.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/budget/config.yaml)")
	root.PersistentFlags().String("db", "", "database path (overrides database.path)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "console", "log format (console, json)")

	_ = viper.BindPFlag("database.path", root.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", root.PersistentFlags().Lookup("log-format"))

	root.AddCommand(importCmd())
	root.AddCommand(accountsCmd())
	root.AddCommand(classifyCmd())
	root.AddCommand(reviewCmd())
	root.AddCommand(trainCmd())
	root.AddCommand(examplesCmd())
	root.AddCommand(rulesCmd())
	root.AddCommand(splitCmd())
	root.AddCommand(forecastCmd())
	root.AddCommand(billsCmd())
	root.AddCommand(incomeCmd())
	root.AddCommand(sheetsCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(versionCmd())

	return root
}

func main() {
	interrupts := cli.NewInterruptHandler(os.Stderr, "Imports already committed are kept; rerun to continue.")
	ctx, stop := interrupts.HandleInterrupts(context.Background())

	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		var userErr *common.UserError
		if errors.As(err, &userErr) {
			fmt.Fprintln(os.Stderr, cli.FormatError(userErr.UserMessage))
		} else {
			fmt.Fprintln(os.Stderr, cli.FormatError(err.Error()))
		}
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		viper.AddConfigPath(fmt.Sprintf("%s/.config/budget", home))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BUDGET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return common.NewUserError("configuration is invalid", err)
	}
	appConfig = cfg

	if err := common.SetupLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.Debug("Configuration loaded", "file", viper.ConfigFileUsed(), "database", cfg.Database.Path)
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "budget version %s\n", version)
		},
	}
}
