// Package cmd provides the pagemill command-line interface.
//
// Configuration System:
//
//	Values are resolved with the following precedence:
//	1. Command-line flags (--port, --out, ...) - highest priority
//	2. Environment variables (PAGEMILL_SERVER_PORT, PAGEMILL_BUILD_SITE, ...)
//	3. The configuration file: --config, else PAGEMILL_CONFIG_FILE, else .pagemill.yml
//	4. Built-in defaults - lowest priority
//
//	A .env file in the working directory is loaded into the environment
//	before any of the above is read.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/pagemill/internal/config"
	pmerrors "github.com/conneroisu/pagemill/internal/errors"
	"github.com/conneroisu/pagemill/internal/logging"
)

const defaultConfigName = ".pagemill"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pagemill",
	Short: "File-based page routing, collections and pagination",
	Long: `pagemill maps a directory of page sources to URLs, turns collection
pages into paginated and parameterized pages and feeds, serves them with live
reload during development and exports every page to static files.

Quick Start:
  pagemill serve      Start the development server
  pagemill routes     List the URL map
  pagemill build      Export the site to ./dist`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .pagemill.yml, can also use PAGEMILL_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig selects the configuration file and enables environment
// overrides. A missing default file is not an error.
func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Warning: could not load .env:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(defaultConfigName)
	}

	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Warning: could not read config file:", err)
		}
	}
}

// loadConfig loads the configuration, attaching suggestions on failure.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		path := viper.ConfigFileUsed()
		if path == "" {
			path = defaultConfigName + ".yml"
		}
		return nil, pmerrors.NewEnhancedError("Failed to load configuration", err,
			pmerrors.ConfigurationError(err.Error(), path))
	}
	return cfg, nil
}

// newLogger builds the process logger from the log section.
func newLogger(cfg *config.Config) logging.Logger {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}
