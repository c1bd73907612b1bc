package cmd

import (
	"strings"
	"testing"
	"time"
)

func TestProgressPrinterLifecycle(t *testing.T) {
	printer := newProgressPrinter("scanning")

	output := captureStdout(t, func() {
		printer.Start()
		printer.Increment(true)
		printer.Increment(false)
		time.Sleep(350 * time.Millisecond) // allow ticker to tick at least once
		printer.Stop()
		time.Sleep(50 * time.Millisecond) // ensure loop goroutine exits
	})

	if !strings.Contains(output, "scanning: 2 checked") {
		t.Fatalf("expected progress counts in output, got %q", output)
	}
	if !strings.Contains(output, "(1 skipped)") {
		t.Fatalf("expected skip count in output, got %q", output)
	}
}

func TestProgressPrinterStopIsIdempotent(t *testing.T) {
	printer := newProgressPrinter("probing")
	captureStdout(t, func() {
		printer.Start()
		printer.Stop()
		printer.Stop()
	})
}
