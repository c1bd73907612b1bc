package crawler

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ResourceEntry is one row of the rendered page's resource timing data.
type ResourceEntry struct {
	Name      string `json:"name"`
	Initiator string `json:"initiatorType"`
}

// CollectResourceEntries loads pageURL in headless Chrome, waits for scripts
// to settle, and returns the page's resource timing entries merged with
// script requests observed on the wire. Needs a local Chrome; callers treat
// failure as "no rendered source available".
func CollectResourceEntries(ctx context.Context, pageURL string, wait time.Duration) ([]ResourceEntry, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	var (
		mu       sync.Mutex
		observed []ResourceEntry
	)
	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		req, ok := ev.(*network.EventRequestWillBeSent)
		if !ok || req.Type != network.ResourceTypeScript {
			return
		}
		mu.Lock()
		observed = append(observed, ResourceEntry{Name: req.Request.URL, Initiator: "script"})
		mu.Unlock()
	})

	var raw string
	err := chromedp.Run(taskCtx,
		network.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.Sleep(wait),
		chromedp.Evaluate(
			`JSON.stringify(performance.getEntriesByType('resource').map(e => ({name: e.name, initiatorType: e.initiatorType})))`,
			&raw,
		),
	)
	if err != nil {
		return nil, err
	}

	var entries []ResourceEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}

	mu.Lock()
	entries = append(entries, observed...)
	mu.Unlock()
	return entries, nil
}
