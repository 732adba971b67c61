// Package main is the Mizan CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/mizan/internal/config"
	"github.com/hyperjump/mizan/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/mizan/config.yaml"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	debug      bool
}

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads config and creates the logger for a command.
func (g *globalFlags) setup() (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(g.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || g.debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved))
	return cfg, logger, nil
}

// joinArgs joins all positional args with spaces so multi-word questions work the
// same with or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "mizan",
		Short:         "Arabic legal question answering over a case corpus",
		Long:          "Mizan builds a passage index from a legal case workbook and answers Arabic legal questions with retrieved evidence.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(createCleanCommand(g))
	rootCmd.AddCommand(createBuildCommand(g))
	rootCmd.AddCommand(createFetchCommand(g))
	rootCmd.AddCommand(createAskCommand(g))
	rootCmd.AddCommand(createRetrieveCommand(g))
	rootCmd.AddCommand(createEvaluateCommand(g))
	rootCmd.AddCommand(createKeywordCommand(g))
	rootCmd.AddCommand(createStatusCommand(g))
	rootCmd.AddCommand(createServeCommand(g))
	return rootCmd
}

func main() {
	// Secrets such as GEMINI_API_KEY may live in a local .env file.
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
