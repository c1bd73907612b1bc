package cmd

import (
	"testing"

	"github.com/fatih/color"
)

func TestColorForRisk(t *testing.T) {
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		color.NoColor = original
	})

	tests := []struct {
		name  string
		level string
		want  string
	}{
		{name: "critical", level: "CRITICAL", want: "CRITICAL"},
		{name: "high", level: "HIGH", want: "HIGH"},
		{name: "medium lowercase", level: "medium", want: "medium"},
		{name: "low", level: "LOW", want: "LOW"},
		{name: "unknown", level: "WEIRD", want: "WEIRD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := colorForRisk(tt.level); got != tt.want {
				t.Fatalf("colorForRisk(%q) = %q, want %q", tt.level, got, tt.want)
			}
		})
	}
}
