package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/depscout/depscout/internal/config"
)

// CLIConfig captures flag-driven settings for the scan command. Values are
// merged with config-file defaults and baked into an immutable config.Config
// before any component sees them.
type CLIConfig struct {
	TimeoutSecs      int
	SiteRate         int
	ProbeConcurrency int
	RegistryRate     int
	RegistryWindow   int
	RenderJS         bool
	RenderWaitSecs   int
	Output           string
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	base := config.Default()
	return &CLIConfig{
		TimeoutSecs:      int(base.Scan.Timeout / time.Second),
		SiteRate:         base.Scan.SiteRate,
		ProbeConcurrency: base.Probe.Concurrency,
		RegistryRate:     base.Registry.MaxRequests,
		RegistryWindow:   int(base.Registry.Window / time.Second),
		RenderWaitSecs:   int(base.Crawl.RenderWait / time.Second),
	}
}

// buildConfig assembles the immutable configuration passed to the scanner.
func buildConfig() *config.Config {
	cfg := config.Default()

	timeout := time.Duration(cliConfig.TimeoutSecs) * time.Second
	cfg.Scan.Timeout = timeout
	cfg.Crawl.Timeout = timeout
	cfg.Probe.Timeout = timeout
	cfg.Registry.Timeout = timeout

	cfg.Scan.SiteRate = cliConfig.SiteRate
	cfg.Probe.Concurrency = cliConfig.ProbeConcurrency
	cfg.Registry.MaxRequests = cliConfig.RegistryRate
	cfg.Registry.Window = time.Duration(cliConfig.RegistryWindow) * time.Second
	cfg.Crawl.RenderJS = cliConfig.RenderJS
	cfg.Crawl.RenderWait = time.Duration(cliConfig.RenderWaitSecs) * time.Second

	if base := viper.GetString("registry.base_url"); base != "" {
		cfg.Registry.BaseURL = base
	}
	if downloads := viper.GetString("registry.downloads_url"); downloads != "" {
		cfg.Registry.DownloadsURL = downloads
	}

	return cfg
}

// applyConfigDefaults merges config file defaults into the runtime config
// when the user did not explicitly override the corresponding flag.
func applyConfigDefaults(cmd *cobra.Command) {
	if viper.IsSet("defaults.timeout_secs") {
		applyIntDefault(scanCmd.Flags(), "timeout", viper.GetInt("defaults.timeout_secs"), func(v int) {
			cliConfig.TimeoutSecs = v
		})
	}
	if viper.IsSet("defaults.site_rate") {
		applyIntDefault(scanCmd.Flags(), "rate", viper.GetInt("defaults.site_rate"), func(v int) {
			cliConfig.SiteRate = v
		})
	}
	if viper.IsSet("defaults.registry_rate") {
		applyIntDefault(scanCmd.Flags(), "registry-rate", viper.GetInt("defaults.registry_rate"), func(v int) {
			cliConfig.RegistryRate = v
		})
	}
	if viper.IsSet("defaults.render_js") {
		applyBoolDefault(scanCmd.Flags(), "render-js", viper.GetBool("defaults.render_js"), func(v bool) {
			cliConfig.RenderJS = v
		})
	}
}

func applyIntDefault(flags *pflag.FlagSet, name string, value int, setter func(int)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyBoolDefault(flags *pflag.FlagSet, name string, value bool, setter func(bool)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}
