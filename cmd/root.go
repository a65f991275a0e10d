// Package cmd provides the command-line interface for Athena.
//
// Configuration System:
//
//	Settings are resolved with the following precedence:
//	1. Command-line flags (--port, --mode, etc.) - highest priority
//	2. Individual environment variables (ATHENA_SERVER_PORT, etc.)
//	3. Configuration file (--config, ATHENA_CONFIG_FILE or .athena.yml)
//	4. Built-in defaults - lowest priority
//
// Environment Variables:
//
//	ATHENA_CONFIG_FILE: Path to custom configuration file
//	ATHENA_SERVER_PORT: Override server port
//	ATHENA_SERVER_MODE: pool or spawn
//	And the rest following the ATHENA_<SECTION>_<OPTION> pattern
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/athena-engine/athena/internal/config"
	"github.com/athena-engine/athena/internal/logging"
)

// configFileEnv names a config file when --config is not given.
const configFileEnv = config.EnvPrefix + "_CONFIG_FILE"

var cfgFile string

// configErr holds a config file read failure until a command needs the
// configuration. Commands that do not, such as version, still run.
var configErr error

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "athena",
	Short: "A small HTTP/1.x page engine",
	Long: `Athena serves a fixed set of HTML pages over raw TCP connections.
Each connection carries one request: it is parsed, passed to the request
hook, answered by the response hook and closed. Pages may carry <#> template
markers which are expanded before the page is sent.

Quick Start:
  athena serve                    Start the engine
  athena pages                    List registered pages
  athena render page.html         Expand a page's template markers
  athena version                  Show version information`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .athena.yml, can also use ATHENA_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", logging.FormatLine, "log format (line, text, json, otel)")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig points viper at the configuration file and enables
// ATHENA_ prefixed environment overrides. A missing .athena.yml is not an
// error; a missing file named by --config or ATHENA_CONFIG_FILE is.
func initConfig() {
	explicit := cfgFile
	if explicit == "" {
		explicit = os.Getenv(configFileEnv)
	}
	if explicit != "" {
		viper.SetConfigFile(explicit)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(strings.TrimSuffix(config.DefaultFileName, ".yml"))
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	configErr = nil
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			configErr = fmt.Errorf("reading config: %w", err)
		}
	}
}

func loadConfig() (*config.Config, error) {
	if configErr != nil {
		return nil, configErr
	}
	return config.Load()
}

func newLogger(cfg config.LoggingConfig, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Format,
		Output: out,
	}), nil
}
