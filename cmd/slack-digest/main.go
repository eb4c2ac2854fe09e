package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ryosukesatoh/slack-digest/internal/config"
	"github.com/ryosukesatoh/slack-digest/internal/logging"
)

// Version information, injected at build time via ldflags.
var (
	Version   = "dev"
	Build     = "unknown"
	BuildTime = "unknown"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "slack-digest",
	Short: "Summarize recent Slack channel activity into a daily DM",
	Long: `slack-digest collects the last day of messages from a set of Slack channels,
asks a local or OpenAI-compatible language model to pick out what matters, and
sends the result to you as a direct message with a desktop notification.

Configuration comes from environment variables (SLACK_BOT_TOKEN, SLACK_USER_ID,
SLACK_CHANNELS, OLLAMA_MODEL, OLLAMA_URL), an optional .env file and an optional
YAML config file.`,
	Version:       versionString(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "slack-digest %s\n", versionString())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./slack-digest.yaml or "+config.DefaultConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to a .env file loaded before the environment is read")
	rootCmd.AddCommand(versionCmd)
}

func versionString() string {
	return fmt.Sprintf("%s (build %s, %s)", Version, Build, BuildTime)
}

// loadConfig reads the .env file and the configuration, then builds the
// logger it describes.
func loadConfig() (*config.Config, *zap.Logger, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
