package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string
var logger *zap.SugaredLogger
var resultsDir string

var rootCmd = &cobra.Command{
	Use:   "depscout",
	Short: "Audit a live web app for supply-chain risk (dependency confusion, typosquats, exposed files)",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// init config
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			viper.AddConfigPath("$HOME")
			viper.SetConfigName(".depscout")
			viper.SetConfigType("yaml")
		}

		_ = viper.ReadInConfig()
		resultsDir = viper.GetString("results_dir")
		if resultsDir == "" {
			resultsDir = "./results"
		}

		if err := os.MkdirAll(resultsDir, 0o755); err != nil {
			return fmt.Errorf("failed to create results directory: %s", err.Error())
		}

		// init logger
		var l *zap.Logger
		if verbose {
			l, _ = zap.NewDevelopment()
		} else {
			l, _ = zap.NewProduction()
		}
		logger = l.Sugar()

		if abs, err := filepath.Abs(resultsDir); err == nil {
			resultsDir = abs
		}

		applyConfigDefaults(cmd)
		return nil
	},
}

var verbose bool

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.depscout.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose (debug) logging")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)
}
