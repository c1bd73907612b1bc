package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/depscout/depscout/internal/registry"
	"github.com/depscout/depscout/internal/scanner"
)

func sampleOutput() ScanOutput {
	return ScanOutput{
		Metadata: ScanMetadata{
			Target:      "https://shop.example.com",
			StartedAt:   time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
			CompletedAt: time.Date(2025, 6, 1, 10, 2, 30, 0, time.UTC),
			Packages:    3,
			Exposed:     1,
		},
		State: scanner.State{
			Target: "https://shop.example.com",
			Phase:  scanner.PhaseComplete,
			Packages: map[string][]string{
				"react":         {"Inline Script"},
				"acme-internal": {"Source Map: https://shop.example.com/app.js.map"},
				"l0dash":        {"Inline Script"},
			},
			Findings: []registry.Finding{
				{Name: "react", Level: registry.LevelLow, WeeklyDownloads: 90000000},
				{Name: "acme-internal", Level: registry.LevelCritical, Unregistered: true,
					Reasons: []string{"not found on public registry: potential dependency confusion"}},
				{Name: "l0dash", Level: registry.LevelMedium, Reasons: []string{"suspicious name pattern"}},
			},
			ExposedFiles: []scanner.ExposedFile{
				{Path: "/.env", Risk: "HIGH", HTTPStatus: 200},
			},
		},
	}
}

func writeSampleResults(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan_results.json")
	b, err := json.Marshal(sampleOutput())
	if err != nil {
		t.Fatalf("marshal sample: %v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func TestSortedFindings(t *testing.T) {
	out := sampleOutput()
	findings := sortedFindings(&out)

	got := make([]string, 0, len(findings))
	for _, f := range findings {
		got = append(got, f.Name)
	}
	want := []string{"acme-internal", "l0dash", "react"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestLoadScanOutput(t *testing.T) {
	path := writeSampleResults(t)

	out, err := loadScanOutput(path)
	if err != nil {
		t.Fatalf("loadScanOutput failed: %v", err)
	}
	if out.Metadata.Target != "https://shop.example.com" {
		t.Errorf("target = %q", out.Metadata.Target)
	}
	if len(out.State.Findings) != 3 {
		t.Errorf("findings = %d, want 3", len(out.State.Findings))
	}

	if _, err := loadScanOutput(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWriteMarkdownReport(t *testing.T) {
	out := sampleOutput()
	path := filepath.Join(t.TempDir(), "report.md")

	if err := writeMarkdownReport(path, &out); err != nil {
		t.Fatalf("writeMarkdownReport failed: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	report := string(b)

	for _, want := range []string{
		"# Supply-Chain Audit Report",
		"https://shop.example.com",
		"| acme-internal | CRITICAL |",
		"dependency confusion",
		"| /.env | HIGH | 200 |",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q\n%s", want, report)
		}
	}

	// Highest risk first.
	if strings.Index(report, "acme-internal") > strings.Index(report, "| react |") {
		t.Error("findings not ordered by descending risk")
	}
}

func TestWritePDFReport(t *testing.T) {
	out := sampleOutput()
	path := filepath.Join(t.TempDir(), "report.pdf")

	if err := writePDFReport(path, &out); err != nil {
		t.Fatalf("writePDFReport failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat report: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("empty PDF written")
	}
}

func TestReportGenerateCommand(t *testing.T) {
	path := writeSampleResults(t)

	if err := reportGenerateCmd.Flags().Set("input", path); err != nil {
		t.Fatalf("set input flag: %v", err)
	}
	if err := reportGenerateCmd.Flags().Set("format", "md"); err != nil {
		t.Fatalf("set format flag: %v", err)
	}
	t.Cleanup(func() {
		_ = reportGenerateCmd.Flags().Set("input", "")
		_ = reportGenerateCmd.Flags().Set("format", "md")
	})

	captureStdout(t, func() {
		if err := reportGenerateCmd.RunE(reportGenerateCmd, nil); err != nil {
			t.Errorf("report generate failed: %v", err)
		}
	})

	rendered := strings.TrimSuffix(path, ".json") + ".md"
	if _, err := os.Stat(rendered); err != nil {
		t.Fatalf("rendered report missing: %v", err)
	}
}

func TestReportGenerateRejectsUnknownFormat(t *testing.T) {
	path := writeSampleResults(t)

	if err := reportGenerateCmd.Flags().Set("input", path); err != nil {
		t.Fatalf("set input flag: %v", err)
	}
	if err := reportGenerateCmd.Flags().Set("format", "docx"); err != nil {
		t.Fatalf("set format flag: %v", err)
	}
	t.Cleanup(func() {
		_ = reportGenerateCmd.Flags().Set("input", "")
		_ = reportGenerateCmd.Flags().Set("format", "md")
	})

	if err := reportGenerateCmd.RunE(reportGenerateCmd, nil); err == nil {
		t.Fatal("expected format validation error")
	}
}
