package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/btraven00/linkscan/internal/config"
	"github.com/btraven00/linkscan/internal/log"
)

var (
	cfgFile string
	quiet   bool
	verbose bool
	output  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "linkscan",
	Short: "Find links in documents and check that they still answer",
	Long: `Linkscan pulls every http(s) link out of documents (text, HTML, PDF,
Office files, spreadsheets or raw binaries) and pasted text, normalizes
them, and probes each one concurrently. Every link is reported as active,
redirected, broken or unreachable, with a summary of the whole run.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.linkscan.yaml)")
	flags.BoolVarP(&quiet, "quiet", "q", false, "quiet output (suppress progress and notices)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging, including every HTTP exchange")
	flags.StringVarP(&output, "output", "o", "human", "output format (human, json, csv)")

	defaults := config.Default()
	flags.Int("concurrency", defaults.MaxConcurrency, "maximum probes in flight")
	flags.Int("batch-size", defaults.BatchSize, "links verified and reported per batch")
	flags.Duration("timeout", defaults.RequestTimeout, "timeout for each probe")
	flags.String("user-agent", defaults.UserAgent, "User-Agent header sent with probes")
	flags.Int("workers", defaults.Workers, "parallel document readers")
	flags.Float64("rate-limit", defaults.RateLimit, "maximum probes started per second (0 = unlimited)")

	bindings := map[string]string{
		config.KeyMaxConcurrency: "concurrency",
		config.KeyBatchSize:      "batch-size",
		config.KeyRequestTimeout: "timeout",
		config.KeyUserAgent:      "user-agent",
		config.KeyWorkers:        "workers",
		config.KeyRateLimit:      "rate-limit",
	}
	for key, flag := range bindings {
		cobra.CheckErr(viper.BindPFlag(key, flags.Lookup(flag)))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".linkscan" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".linkscan")
	}

	config.SetDefaults(viper.GetViper())

	viper.SetEnvPrefix("LINKSCAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && !quiet {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig returns the validated configuration for this invocation.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, err
	}

	log.Debug("configuration loaded",
		"concurrency", cfg.EffectiveConcurrency(),
		"batch_size", cfg.BatchSize,
		"timeout", cfg.RequestTimeout,
		"workers", cfg.Workers,
		"rate_limit", cfg.RateLimit,
	)

	return cfg, nil
}
