package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"go-eye-inspector/internal/config"
	"go-eye-inspector/internal/container"
	"go-eye-inspector/internal/logger"
	engineconfig "go-eye-inspector/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:           "eyescan",
	Short:         "Screen eye photographs offline",
	Long:          "eyescan runs the eye photo analysis engine on local files and inspects the configured model ensemble.",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// stdout carries results only
		logger.SetOutput(os.Stderr)
		level, _ := cmd.Flags().GetString("log-level")
		logger.SetLevel(level)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the engine YAML config (overrides ENGINE_CONFIG env var)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level written to stderr")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(runtimeCmd)
	rootCmd.AddCommand(tableCmd)
}

// loadConfig builds the runtime config for offline use: no server and no
// result cache. The --config flag wins over ENGINE_CONFIG.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("ENGINE_CONFIG")
	}

	engine, err := engineconfig.Load(path)
	if err != nil {
		return nil, err
	}
	if err := engine.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("engine config from environment: %w", err)
	}

	cacheDir := os.Getenv("MODEL_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = os.TempDir() + "/eye-inspector-models"
	}
	return &config.Config{
		RequestTimeout:        time.Minute,
		AnalysisTimeout:       time.Minute,
		MaxRequestBodySize:    1,
		MaxConcurrentAnalyses: 1,
		ModelCacheDir:         cacheDir,
		ArtifactTimeout:       2 * time.Minute,
		AzureAccountName:      os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureAccountKey:       os.Getenv("AZURE_STORAGE_KEY"),
		Engine:                engine,
	}, nil
}

func newContainer(cmd *cobra.Command) (*container.Container, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return container.NewContainer(cfg)
}
