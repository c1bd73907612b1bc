package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/spf13/cobra"

	"github.com/depscout/depscout/internal/registry"
)

const markdownReportTemplate = `# Supply-Chain Audit Report

- **Target:** {{ .Metadata.Target }}
- **Started:** {{ formatTime .Metadata.StartedAt }}
- **Completed:** {{ formatTime .Metadata.CompletedAt }}
- **Packages discovered:** {{ .Metadata.Packages }}
- **Exposed files:** {{ .Metadata.Exposed }}

## Package Findings

| Package | Risk | Weekly Downloads | Reasons |
|---------|------|------------------|---------|
{{- range .Findings }}
| {{ .Name }} | {{ .Level }} | {{ .WeeklyDownloads }} | {{ join .Reasons "; " }} |
{{- end }}

## Exposed Files

{{- if .State.ExposedFiles }}
| Path | Risk | HTTP Status |
|------|------|-------------|
{{- range .State.ExposedFiles }}
| {{ .Path }} | {{ .Risk }} | {{ .HTTPStatus }} |
{{- end }}
{{- else }}
No exposed files were found.
{{- end }}
`

var reportTemplateFuncs = template.FuncMap{
	"join":       strings.Join,
	"formatTime": func(t time.Time) string { return t.Format(time.RFC3339) },
}

var reportTemplate = template.Must(
	template.New("report.md").Funcs(reportTemplateFuncs).Parse(markdownReportTemplate),
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a findings report from a scan results file",
}

var reportGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render a scan results file as markdown or PDF",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		format, _ := cmd.Flags().GetString("format")

		if input == "" {
			input = filepath.Join(resultsDir, "scan_results.json")
		}
		format = strings.ToLower(format)
		if format != "md" && format != "pdf" {
			return fmt.Errorf("invalid format: %s (must be md or pdf)", format)
		}

		out, err := loadScanOutput(input)
		if err != nil {
			return err
		}

		base := strings.TrimSuffix(input, filepath.Ext(input))
		var outputPath string
		switch format {
		case "md":
			outputPath = base + ".md"
			err = writeMarkdownReport(outputPath, out)
		case "pdf":
			outputPath = base + ".pdf"
			err = writePDFReport(outputPath, out)
		}
		if err != nil {
			return err
		}

		fmt.Printf("%s %s\n", colorSuccess("Report written:"), outputPath)
		return nil
	},
}

type reportData struct {
	*ScanOutput
	Findings []registry.Finding
}

func loadScanOutput(path string) (*ScanOutput, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results file: %w", err)
	}
	var out ScanOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse results file: %w", err)
	}
	return &out, nil
}

var riskOrder = map[registry.Level]int{
	registry.LevelCritical: 3,
	registry.LevelHigh:     2,
	registry.LevelMedium:   1,
	registry.LevelLow:      0,
}

// sortedFindings orders findings by descending risk, then name.
func sortedFindings(out *ScanOutput) []registry.Finding {
	findings := append([]registry.Finding(nil), out.State.Findings...)
	sort.SliceStable(findings, func(i, j int) bool {
		if riskOrder[findings[i].Level] != riskOrder[findings[j].Level] {
			return riskOrder[findings[i].Level] > riskOrder[findings[j].Level]
		}
		return findings[i].Name < findings[j].Name
	})
	return findings
}

func writeMarkdownReport(path string, out *ScanOutput) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	data := reportData{ScanOutput: out, Findings: sortedFindings(out)}
	if err := reportTemplate.Execute(f, data); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

func writePDFReport(path string, out *ScanOutput) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Supply-Chain Audit Report")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Target: %s", out.Metadata.Target))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Completed: %s", out.Metadata.CompletedAt.Format(time.RFC3339)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 8, "Package Findings")
	pdf.Ln(9)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(70, 6, "Package", "1", 0, "", false, 0, "")
	pdf.CellFormat(25, 6, "Risk", "1", 0, "", false, 0, "")
	pdf.CellFormat(95, 6, "Reasons", "1", 1, "", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, f := range sortedFindings(out) {
		pdf.CellFormat(70, 6, f.Name, "1", 0, "", false, 0, "")
		pdf.CellFormat(25, 6, string(f.Level), "1", 0, "", false, 0, "")
		pdf.CellFormat(95, 6, strings.Join(f.Reasons, "; "), "1", 1, "", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 8, "Exposed Files")
	pdf.Ln(9)

	pdf.SetFont("Helvetica", "", 9)
	if len(out.State.ExposedFiles) == 0 {
		pdf.Cell(0, 6, "No exposed files were found.")
		pdf.Ln(6)
	}
	for _, e := range out.State.ExposedFiles {
		pdf.Cell(0, 6, fmt.Sprintf("%s  [%s]  HTTP %d", e.Path, e.Risk, e.HTTPStatus))
		pdf.Ln(6)
	}

	return pdf.OutputFileAndClose(path)
}

func init() {
	reportGenerateCmd.Flags().String("input", "", "scan results file (default <results_dir>/scan_results.json)")
	reportGenerateCmd.Flags().String("format", "md", "report format (md or pdf)")
	reportCmd.AddCommand(reportGenerateCmd)
}
