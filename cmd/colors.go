package cmd

import (
	"strings"

	"github.com/fatih/color"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
)

func colorForRisk(level string) string {
	switch strings.ToUpper(level) {
	case "CRITICAL":
		return colorError(level)
	case "HIGH":
		return colorError(level)
	case "MEDIUM":
		return colorWarn(level)
	case "LOW":
		return colorSuccess(level)
	default:
		return level
	}
}
