package cmd

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func TestNewCLIConfigDefaults(t *testing.T) {
	cfg := newCLIConfig()
	if cfg.TimeoutSecs != 10 {
		t.Fatalf("unexpected timeout default: %d", cfg.TimeoutSecs)
	}
	if cfg.SiteRate != 10 {
		t.Fatalf("unexpected site rate default: %d", cfg.SiteRate)
	}
	if cfg.ProbeConcurrency != 5 {
		t.Fatalf("unexpected probe concurrency default: %d", cfg.ProbeConcurrency)
	}
	if cfg.RegistryRate != 30 {
		t.Fatalf("unexpected registry rate default: %d", cfg.RegistryRate)
	}
	if cfg.RegistryWindow != 60 {
		t.Fatalf("unexpected registry window default: %d", cfg.RegistryWindow)
	}
	if cfg.RenderJS {
		t.Fatal("render-js should be disabled by default")
	}
}

func TestBuildConfig(t *testing.T) {
	t.Cleanup(func() {
		viper.Reset()
		*cliConfig = *newCLIConfig()
	})
	*cliConfig = *newCLIConfig()

	cliConfig.TimeoutSecs = 20
	cliConfig.SiteRate = 3
	cliConfig.ProbeConcurrency = 2
	cliConfig.RegistryRate = 5
	cliConfig.RegistryWindow = 10
	cliConfig.RenderJS = true
	viper.Set("registry.base_url", "http://localhost:4873")

	cfg := buildConfig()

	if cfg.Scan.Timeout != 20*time.Second || cfg.Probe.Timeout != 20*time.Second {
		t.Fatalf("timeouts not applied: scan=%v probe=%v", cfg.Scan.Timeout, cfg.Probe.Timeout)
	}
	if cfg.Scan.SiteRate != 3 {
		t.Fatalf("site rate not applied: %d", cfg.Scan.SiteRate)
	}
	if cfg.Probe.Concurrency != 2 {
		t.Fatalf("probe concurrency not applied: %d", cfg.Probe.Concurrency)
	}
	if cfg.Registry.MaxRequests != 5 || cfg.Registry.Window != 10*time.Second {
		t.Fatalf("registry quota not applied: %d/%v", cfg.Registry.MaxRequests, cfg.Registry.Window)
	}
	if !cfg.Crawl.RenderJS {
		t.Fatal("render-js not applied")
	}
	if cfg.Registry.BaseURL != "http://localhost:4873" {
		t.Fatalf("registry base URL override not applied: %s", cfg.Registry.BaseURL)
	}
	if cfg.Registry.DownloadsURL == "" {
		t.Fatal("downloads URL default lost")
	}
}

func TestApplyIntDefault(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("timeout", 0, "")

	var applied int
	applyIntDefault(flags, "timeout", 15, func(v int) {
		applied = v
	})
	if applied != 15 {
		t.Fatalf("expected setter to receive 15, got %d", applied)
	}

	// When flag already set, setter should not run.
	if err := flags.Set("timeout", "7"); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}
	applied = 0
	applyIntDefault(flags, "timeout", 20, func(v int) {
		applied = v
	})
	if applied != 0 {
		t.Fatalf("setter should not run when flag overridden, got %d", applied)
	}
}

func TestApplyBoolDefault(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("render-js", false, "")

	applied := false
	applyBoolDefault(flags, "render-js", true, func(v bool) {
		applied = v
	})
	if !applied {
		t.Fatal("expected setter to run with true")
	}

	if err := flags.Set("render-js", "false"); err != nil {
		t.Fatalf("failed to set bool flag: %v", err)
	}
	applied = true
	applyBoolDefault(flags, "render-js", true, func(v bool) {
		applied = v
	})
	if !applied {
		t.Fatalf("setter should not change value when flag already set")
	}
}

func TestApplyConfigDefaults(t *testing.T) {
	t.Cleanup(func() {
		viper.Reset()
		*cliConfig = *newCLIConfig()
	})
	*cliConfig = *newCLIConfig()

	viper.Set("defaults.timeout_secs", 25)
	viper.Set("defaults.site_rate", 4)
	viper.Set("defaults.render_js", true)

	// Reset flag state to simulate untouched CLI flags.
	for _, name := range []string{"timeout", "rate", "render-js"} {
		if flag := scanCmd.Flags().Lookup(name); flag != nil {
			flag.Changed = false
		}
	}

	applyConfigDefaults(rootCmd)

	if cliConfig.TimeoutSecs != 25 {
		t.Fatalf("expected timeout default 25, got %d", cliConfig.TimeoutSecs)
	}
	if cliConfig.SiteRate != 4 {
		t.Fatalf("expected site rate default 4, got %d", cliConfig.SiteRate)
	}
	if !cliConfig.RenderJS {
		t.Fatal("expected render-js default to apply")
	}
}
