package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/depscout/depscout/internal/registry"
	"github.com/depscout/depscout/internal/scanner"
)

// ScanMetadata describes one audit run.
type ScanMetadata struct {
	Target      string    `json:"target"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Packages    int       `json:"total_packages"`
	Exposed     int       `json:"total_exposed_files"`
}

// ScanOutput is the results file schema consumed by `depscout report`.
type ScanOutput struct {
	Metadata ScanMetadata  `json:"metadata"`
	State    scanner.State `json:"state"`
}

var scanCmd = &cobra.Command{
	Use:   "scan <url>",
	Short: "Audit a live page for third-party package usage and supply-chain risk",
	Long: `Scan discovers the JavaScript assets a page delivers, extracts package
references from inline scripts, bundles, and source maps, probes for
accidentally exposed configuration files, and resolves every distinct
package against the public npm registry.

Only run against sites you are authorized to test.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]
		cfg := buildConfig()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		go func() {
			select {
			case sig := <-sigCh:
				fmt.Printf("\n%s Received %s, finalizing partial results...\n", colorWarn("!"), sig.String())
				cancel()
			case <-ctx.Done():
			}
		}()

		client := registry.NewClient(cfg.Registry)
		assessor := registry.NewAssessor(cfg.Risk, cfg.Registry, client)
		audit := scanner.New(cfg, assessor, logger)

		progress := newProgressPrinter("scanning")
		audit.Progress = progress.Increment
		progress.Start()

		started := time.Now().UTC()
		runErr := audit.Run(ctx, target)
		progress.Stop()

		state := audit.Status()
		out := ScanOutput{
			Metadata: ScanMetadata{
				Target:      target,
				StartedAt:   started,
				CompletedAt: time.Now().UTC(),
				Packages:    len(state.Packages),
				Exposed:     len(state.ExposedFiles),
			},
			State: state,
		}

		resultsPath, err := writeScanOutput(out)
		if err != nil {
			return err
		}

		printScanSummary(state, resultsPath)

		if runErr != nil {
			return fmt.Errorf("audit failed: %w", runErr)
		}
		return nil
	},
}

func writeScanOutput(out ScanOutput) (string, error) {
	path := cliConfig.Output
	if path == "" {
		path = filepath.Join(resultsDir, "scan_results.json")
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("failed to write results: %w", err)
	}
	return path, nil
}

func printScanSummary(state scanner.State, resultsPath string) {
	counts := map[registry.Level]int{}
	unregistered := 0
	errored := 0
	for _, f := range state.Findings {
		counts[f.Level]++
		if f.Unregistered {
			unregistered++
		}
		if f.Error != "" {
			errored++
		}
	}

	fmt.Println(colorSuccess("Scan complete."))
	fmt.Printf("%s %s\n", colorInfo("Results:"), resultsPath)
	fmt.Printf("Packages: %d (%s %d, %s %d, %s %d, %s %d)\n",
		len(state.Packages),
		colorForRisk("CRITICAL"), counts[registry.LevelCritical],
		colorForRisk("HIGH"), counts[registry.LevelHigh],
		colorForRisk("MEDIUM"), counts[registry.LevelMedium],
		colorForRisk("LOW"), counts[registry.LevelLow],
	)
	if unregistered > 0 {
		fmt.Printf("%s %d package(s) missing from the public registry (dependency confusion candidates)\n",
			colorError("!"), unregistered)
	}
	if errored > 0 {
		fmt.Printf("%s %d package(s) could not be resolved (see results file)\n", colorWarn("!"), errored)
	}
	fmt.Printf("Exposed files: %d\n", len(state.ExposedFiles))
	for _, f := range state.ExposedFiles {
		fmt.Printf("  %s %s (HTTP %d)\n", colorForRisk(f.Risk), f.Path, f.HTTPStatus)
	}
	if state.Error != "" {
		fmt.Printf("%s %s\n", colorError("Error:"), state.Error)
	}
}

func init() {
	scanCmd.Flags().IntVarP(&cliConfig.TimeoutSecs, "timeout", "t", cliConfig.TimeoutSecs, "request timeout in seconds")
	scanCmd.Flags().IntVarP(&cliConfig.SiteRate, "rate", "r", cliConfig.SiteRate, "max requests per second against the audited site")
	scanCmd.Flags().IntVar(&cliConfig.ProbeConcurrency, "probe-workers", cliConfig.ProbeConcurrency, "concurrent exposed-file checks")
	scanCmd.Flags().IntVar(&cliConfig.RegistryRate, "registry-rate", cliConfig.RegistryRate, "max registry requests per window")
	scanCmd.Flags().IntVar(&cliConfig.RegistryWindow, "registry-window", cliConfig.RegistryWindow, "registry rate window in seconds")
	scanCmd.Flags().BoolVar(&cliConfig.RenderJS, "render-js", cliConfig.RenderJS, "render the page in headless Chrome to capture resource timing")
	scanCmd.Flags().IntVar(&cliConfig.RenderWaitSecs, "render-wait", cliConfig.RenderWaitSecs, "seconds to wait for scripts to settle when rendering")
	scanCmd.Flags().StringVarP(&cliConfig.Output, "output", "o", "", "results file path (default <results_dir>/scan_results.json)")
}
