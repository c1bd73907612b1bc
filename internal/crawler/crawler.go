// Package crawler discovers candidate asset URLs likely to contain package
// references: page markup, rendered resource-timing entries, and a fixed set
// of conventional static-asset directories.
package crawler

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/depscout/depscout/internal/config"
)

var (
	scriptSrcPattern = regexp.MustCompile(`(?i)<script[^>]+src=["']([^"']+)["']`)
	linkHrefPattern  = regexp.MustCompile(`(?i)<link[^>]+href=["']([^"']+)["']`)
	manifestPattern  = regexp.MustCompile(`["']([^"'\s]*(?:asset-)?manifest[^"'\s]*\.json)["']`)
	dirAssetPattern  = regexp.MustCompile(`(?i)(?:href|src)=["']?([^"'\s<>]+\.(?:m?js|json))["']?`)
	scriptExtPattern = regexp.MustCompile(`\.(m?js|cjs)$`)

	maxDirListingBytes = int64(256 * 1024)
)

// Options configures one discovery pass.
type Options struct {
	Client  *http.Client
	Limiter *rate.Limiter // pacing toward the audited site
	Log     *zap.SugaredLogger
}

// DiscoverAssets merges the three discovery sources into one deduplicated set
// of absolute URLs. body is the already-fetched page markup; timings are
// resource names collected from a rendered page, possibly empty. Malformed
// references are silently dropped; probe failures omit the source, never fail.
func DiscoverAssets(ctx context.Context, cfg config.Crawl, page *url.URL, body string, timings []ResourceEntry, opts Options) []string {
	set := newURLSet(page)

	for _, re := range []*regexp.Regexp{scriptSrcPattern, linkHrefPattern, manifestPattern} {
		for _, match := range re.FindAllStringSubmatch(body, -1) {
			set.Add(match[1])
		}
	}

	for _, entry := range timings {
		if entry.Initiator == "script" || scriptExtPattern.MatchString(strippedPath(entry.Name)) {
			set.Add(entry.Name)
		}
	}

	probeAssetDirs(ctx, cfg, page, set, opts)

	return set.URLs()
}

// probeAssetDirs fetches each conventional asset directory in parallel and
// pattern-scans any response for .js/.json links, resolved against the
// directory path.
func probeAssetDirs(ctx context.Context, cfg config.Crawl, page *url.URL, set *urlSet, opts Options) {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	var wg sync.WaitGroup
	results := make([][]string, len(cfg.AssetDirs))

	for i, dir := range cfg.AssetDirs {
		wg.Add(1)
		go func(i int, dir string) {
			defer wg.Done()

			dirURL := &url.URL{Scheme: page.Scheme, Host: page.Host, Path: dir}
			listing, ok := fetchListing(ctx, cfg, client, dirURL.String(), opts)
			if !ok {
				return
			}

			var found []string
			for _, match := range dirAssetPattern.FindAllStringSubmatch(listing, -1) {
				ref, err := url.Parse(match[1])
				if err != nil {
					continue
				}
				found = append(found, dirURL.ResolveReference(ref).String())
			}
			results[i] = found
		}(i, dir)
	}
	wg.Wait()

	for _, found := range results {
		for _, u := range found {
			set.Add(u)
		}
	}
}

// fetchListing fetches a directory URL under a hard timeout. The timeout
// cancels the in-flight request; on any failure the source is omitted.
func fetchListing(ctx context.Context, cfg config.Crawl, client *http.Client, target string, opts Options) (string, bool) {
	reqCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if opts.Limiter != nil {
		if err := opts.Limiter.Wait(reqCtx); err != nil {
			return "", false
		}
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return "", false
	}
	resp, err := client.Do(req)
	if err != nil {
		if opts.Log != nil {
			opts.Log.Debugw("asset directory probe failed", "url", target, "error", err)
		}
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", false
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDirListingBytes))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// urlSet deduplicates discovered references by normalized absolute URL.
type urlSet struct {
	base *url.URL
	seen map[string]struct{}
	urls []string
}

func newURLSet(base *url.URL) *urlSet {
	return &urlSet{base: base, seen: make(map[string]struct{})}
}

// Add resolves raw against the page URL and records it once. Non-HTTP and
// malformed references are dropped.
func (s *urlSet) Add(raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(strings.ToLower(raw), "data:") {
		return
	}
	if strings.HasPrefix(raw, "//") {
		raw = s.base.Scheme + ":" + raw
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return
	}
	resolved := s.base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return
	}
	resolved.Fragment = ""

	key := resolved.String()
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.urls = append(s.urls, key)
}

func (s *urlSet) URLs() []string {
	return s.urls
}

func strippedPath(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	return raw
}
