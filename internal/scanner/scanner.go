// Package scanner drives one audit of a live page: page-source scanning,
// fan-out asset fetching with source-map resolution, exposed-file probing,
// and risk assessment of every recorded package.
package scanner

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/depscout/depscout/internal/config"
	"github.com/depscout/depscout/internal/crawler"
	"github.com/depscout/depscout/internal/extractor"
	"github.com/depscout/depscout/internal/registry"
	scerr "github.com/depscout/depscout/internal/shared/errors"
)

// Phase is the audit lifecycle state.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseScanning Phase = "scanning"
	PhaseComplete Phase = "complete"
	PhaseError    Phase = "error"
)

// ExposedFile records an accidentally exposed configuration or secret file.
type ExposedFile struct {
	Path        string `json:"path"`
	Risk        string `json:"risk"`
	HTTPStatus  int    `json:"http_status"`
	ContentType string `json:"content_type,omitempty"`
}

// State is a point-in-time snapshot of an audit.
type State struct {
	Target       string              `json:"target"`
	Phase        Phase               `json:"phase"`
	Packages     map[string][]string `json:"packages"`
	Findings     []registry.Finding  `json:"findings"`
	ExposedFiles []ExposedFile       `json:"exposed_files"`
	Error        string              `json:"error,omitempty"`
}

const provenanceInlineScript = "Inline Script"

// Audit holds the state of one audited page. Exactly one Audit exists per
// page; a new audit replaces, never merges.
type Audit struct {
	cfg      *config.Config
	client   *http.Client
	site     *rate.Limiter
	assessor *registry.Assessor
	log      *zap.SugaredLogger

	// Progress, when set, is called once per scanned asset and probed path.
	Progress func(ok bool)

	mu       sync.Mutex
	phase    Phase
	target   string
	origin   *url.URL
	record   map[string]map[string]struct{}
	findings []registry.Finding
	exposed  []ExposedFile
	errMsg   string
}

// New builds an Audit ready to run once.
func New(cfg *config.Config, assessor *registry.Assessor, log *zap.SugaredLogger) *Audit {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Audit{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Scan.Timeout},
		site:     rate.NewLimiter(rate.Limit(cfg.Scan.SiteRate), cfg.Scan.SiteRate),
		assessor: assessor,
		log:      log,
		phase:    PhaseIdle,
		record:   make(map[string]map[string]struct{}),
	}
}

// Run performs the full audit pipeline for pageURL. A second invocation while
// scanning or after completion is a no-op. Per-asset failures are swallowed;
// only a failure of the orchestration itself moves the audit to the error
// phase.
func (a *Audit) Run(ctx context.Context, pageURL string) (err error) {
	if !a.begin(pageURL) {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("audit pipeline panic: %v", r)
		}
		if err != nil {
			a.finish(PhaseError, err.Error())
			return
		}
		a.finish(PhaseComplete, "")
	}()

	origin, err := parseTarget(pageURL)
	if err != nil {
		return err
	}
	a.setOrigin(origin)

	body, err := a.fetchBody(ctx, origin.String(), a.cfg.Scan.MaxBodyBytes)
	if err != nil {
		return fmt.Errorf("fetch page %s: %w", origin, err)
	}

	a.scanPageSource(body)

	assets := a.discoverAssets(ctx, body)
	a.scanAssets(ctx, assets)

	a.probeExposedFiles(ctx)

	a.assessPackages(ctx)
	return nil
}

// Status returns a snapshot of the audit.
func (a *Audit) Status() State {
	a.mu.Lock()
	defer a.mu.Unlock()

	packages := make(map[string][]string, len(a.record))
	for name, sources := range a.record {
		list := make([]string, 0, len(sources))
		for s := range sources {
			list = append(list, s)
		}
		sort.Strings(list)
		packages[name] = list
	}

	return State{
		Target:       a.target,
		Phase:        a.phase,
		Packages:     packages,
		Findings:     append([]registry.Finding(nil), a.findings...),
		ExposedFiles: append([]ExposedFile(nil), a.exposed...),
		Error:        a.errMsg,
	}
}

// begin guards the idle → scanning transition.
func (a *Audit) begin(target string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.phase != PhaseIdle {
		return false
	}
	a.phase = PhaseScanning
	a.target = target
	return true
}

func (a *Audit) finish(phase Phase, msg string) {
	a.mu.Lock()
	a.phase = phase
	a.errMsg = msg
	a.mu.Unlock()
	if msg != "" {
		a.log.Errorw("audit failed", "target", a.target, "error", msg)
	}
}

func (a *Audit) setOrigin(origin *url.URL) {
	a.mu.Lock()
	a.origin = origin
	a.mu.Unlock()
}

// recordReference runs a raw capture through the extractor and records the
// identifier under the given provenance. Internal sub-modules of known host
// packages are discarded.
func (a *Audit) recordReference(raw, source string) {
	name := extractor.Extract(&a.cfg.Extract, a.origin, raw)
	if name == "" || extractor.IsInternalModule(&a.cfg.Extract, name) {
		return
	}
	a.recordPackage(name, source)
}

func (a *Audit) recordPackage(name, source string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	set := a.record[name]
	if set == nil {
		set = make(map[string]struct{})
		a.record[name] = set
	}
	set[source] = struct{}{}
}

// scanPageSource extracts import-like references from inline script bodies.
func (a *Audit) scanPageSource(markup string) {
	for _, script := range inlineScripts(markup) {
		for _, raw := range scanImports(script) {
			a.recordReference(raw, provenanceInlineScript)
		}
	}
}

func (a *Audit) discoverAssets(ctx context.Context, body string) []string {
	var timings []crawler.ResourceEntry
	if a.cfg.Crawl.RenderJS {
		entries, err := crawler.CollectResourceEntries(ctx, a.origin.String(), a.cfg.Crawl.RenderWait)
		if err != nil {
			a.log.Warnw("rendered discovery unavailable", "error", err)
		} else {
			timings = entries
		}
	}

	return crawler.DiscoverAssets(ctx, a.cfg.Crawl, a.origin, body, timings, crawler.Options{
		Client:  a.client,
		Limiter: a.site,
		Log:     a.log,
	})
}

// scanAssets fetches and scans discovered assets in fixed-size chunks to
// bound memory and connection pressure.
func (a *Audit) scanAssets(ctx context.Context, assets []string) {
	chunk := a.cfg.Scan.ChunkSize
	if chunk < 1 {
		chunk = 1
	}

	for start := 0; start < len(assets); start += chunk {
		end := start + chunk
		if end > len(assets) {
			end = len(assets)
		}

		var wg sync.WaitGroup
		for _, assetURL := range assets[start:end] {
			wg.Add(1)
			go func(assetURL string) {
				defer wg.Done()
				ok := a.scanAsset(ctx, assetURL)
				if a.Progress != nil {
					a.Progress(ok)
				}
			}(assetURL)
		}
		wg.Wait()
	}
}

// scanAsset tests the URL itself as a CDN-style package reference, then
// fetches and pattern-scans the body, following a trailing source map if one
// is present. Network failures are swallowed.
func (a *Audit) scanAsset(ctx context.Context, assetURL string) bool {
	a.recordReference(assetURL, assetURL)

	body, err := a.fetchBody(ctx, assetURL, a.cfg.Scan.MaxBodyBytes)
	if err != nil {
		a.log.Debugw("asset fetch failed", "url", assetURL, "error", err)
		return false
	}

	for _, raw := range scanImports(body) {
		a.recordReference(raw, assetURL)
	}

	parsed, err := url.Parse(assetURL)
	if err != nil {
		return true
	}
	if ref := sourceMapRef(parsed, body); ref != "" {
		a.scanSourceMap(ctx, ref)
	}
	return true
}

func (a *Audit) scanSourceMap(ctx context.Context, mapURL string) {
	var (
		sources []string
		ok      bool
	)
	if strings.HasPrefix(mapURL, "data:") {
		sources, ok = decodeInlineSourceMap(mapURL)
	} else {
		body, err := a.fetchBody(ctx, mapURL, a.cfg.Scan.MaxBodyBytes)
		if err != nil {
			a.log.Debugw("source map fetch failed", "url", mapURL, "error", err)
			return
		}
		sources, ok = parseSourceMap([]byte(body))
	}
	if !ok {
		return
	}

	provenance := "Source Map: " + mapURL
	if strings.HasPrefix(mapURL, "data:") {
		provenance = "Source Map: inline"
	}
	for _, src := range sources {
		a.recordReference(cleanSourcePath(src), provenance)
	}
}

// assessPackages resolves every distinct identifier through the assessor.
// Provenance is read at assessment time; it may have grown since discovery.
func (a *Audit) assessPackages(ctx context.Context) {
	a.mu.Lock()
	names := make([]string, 0, len(a.record))
	for name := range a.record {
		names = append(names, name)
	}
	a.mu.Unlock()
	sort.Strings(names)

	for _, name := range names {
		finding := a.assessor.Assess(ctx, name, a.sourcesFor(name))
		a.mu.Lock()
		a.findings = append(a.findings, finding)
		a.mu.Unlock()
	}
}

func (a *Audit) sourcesFor(name string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	list := make([]string, 0, len(a.record[name]))
	for s := range a.record[name] {
		list = append(list, s)
	}
	sort.Strings(list)
	return list
}

// fetchBody issues a paced GET with a per-request timeout enforced via
// context cancellation.
func (a *Audit) fetchBody(ctx context.Context, target string, limit int64) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, a.cfg.Scan.Timeout)
	defer cancel()

	if err := a.site.Wait(reqCtx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parseTarget normalizes the audited page URL, defaulting to https.
func parseTarget(target string) (*url.URL, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, scerr.ErrEmptyTarget
	}
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "https://" + target
	}
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q", scerr.ErrInvalidTarget, target)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}
