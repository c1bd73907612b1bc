package cmd

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

type progressPrinter struct {
	label    string
	mu       sync.Mutex
	done     int
	failed   int
	updates  chan struct{}
	finished chan struct{}
	stopOnce sync.Once
}

func newProgressPrinter(label string) *progressPrinter {
	return &progressPrinter{
		label:    label,
		updates:  make(chan struct{}, 1),
		finished: make(chan struct{}),
	}
}

func (p *progressPrinter) Start() {
	go p.loop()
}

func (p *progressPrinter) Increment(ok bool) {
	p.mu.Lock()
	p.done++
	if !ok {
		p.failed++
	}
	p.mu.Unlock()

	select {
	case p.updates <- struct{}{}:
	default:
	}
}

func (p *progressPrinter) Stop() {
	p.stopOnce.Do(func() {
		close(p.finished)
	})
	fmt.Fprintf(os.Stdout, "\r%s\r", strings.Repeat(" ", 80))
}

func (p *progressPrinter) loop() {
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.updates:
			p.print()
		case <-ticker.C:
			p.print()
		case <-p.finished:
			return
		}
	}
}

func (p *progressPrinter) print() {
	p.mu.Lock()
	done, failed := p.done, p.failed
	p.mu.Unlock()

	fmt.Fprintf(os.Stdout, "\r%s: %d checked (%d skipped)", p.label, done, failed)
}
