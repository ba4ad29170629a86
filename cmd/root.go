// Package cmd wires the stagehand CLI: configuration and logging come up in
// the root command's PersistentPreRunE, subcommands drive one page session
// each.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MaTriXy/stagehand/internal/config"
	"github.com/MaTriXy/stagehand/internal/observability"
)

type configKeyType struct{}

// configKey stores the validated *config.Config in the command context.
var configKey configKeyType

// Execute runs the root command under a signal-aware context and flushes
// logs on the way out. The caller owns the exit code.
func Execute(ctx context.Context) error {
	defer observability.Sync()

	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			observability.GetLogger().Warn("run interrupted")
		} else {
			observability.GetLogger().Error("command failed", zap.Error(err))
		}
		return err
	}
	return nil
}

// NewRootCommand builds a fresh command tree. Each call returns an isolated
// instance so state never leaks between executions.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "stagehand",
		Short: "Stagehand resolves free-text browser instructions into replayable actions.",
		Long: `Stagehand drives a headless browser from plain-language instructions.
Each instruction is resolved once through a reasoning model and cached by the
exact instruction text, so repeat runs replay without model calls.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)
			if err := readConfig(v, cfgFile); err != nil {
				return err
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				// Bring up a usable logger even when config is broken, so the
				// failure itself is reported somewhere.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console"})
				return fmt.Errorf("load configuration: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./stagehand.yaml)")
	rootCmd.SetVersionTemplate(`stagehand version {{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newObserveCmd())
	rootCmd.AddCommand(newActCmd())
	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCacheCmd())

	return rootCmd
}

// readConfig layers the optional config file and STAGEHAND_ environment
// variables over the defaults already set on v.
func readConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("stagehand")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("STAGEHAND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config file: %w", err)
		}
		// No config file is fine; defaults and env cover everything.
	}
	return nil
}

// sessionConfig copies the loaded configuration out of the command context.
// The copy keeps per-command overrides from leaking into sibling commands.
func sessionConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey).(*config.Config)
	if !ok {
		return config.Config{}, errors.New("configuration was not initialized")
	}
	return *cfg, nil
}
