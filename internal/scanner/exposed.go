package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
)

const provenancePackageJSON = "/package.json"

var envLinePattern = regexp.MustCompile(`(?m)^[A-Z][A-Z0-9_]*\s*=`)

// probeExposedFiles checks a fixed list of sensitive path candidates with a
// bounded worker pool. A baseline fetch of the site root feeds the soft-404
// filter: single-page apps commonly answer 200 with the homepage for any path.
func (a *Audit) probeExposedFiles(ctx context.Context) {
	baseline := a.fetchBaseline(ctx)

	sem := make(chan struct{}, a.cfg.Probe.Concurrency)
	var wg sync.WaitGroup

	for _, path := range a.cfg.Probe.Paths {
		wg.Add(1)
		sem <- struct{}{}
		go func(path string) {
			defer wg.Done()
			defer func() { <-sem }()

			found := a.probePath(ctx, path, baseline)
			if a.Progress != nil {
				a.Progress(found)
			}
		}(path)
	}
	wg.Wait()
}

func (a *Audit) fetchBaseline(ctx context.Context) string {
	root := *a.origin
	root.Path = "/"
	body, err := a.fetchBody(ctx, root.String(), a.cfg.Probe.BaselineBytes)
	if err != nil {
		a.log.Debugw("baseline fetch failed", "error", err)
		return ""
	}
	return body
}

// probePath runs one existence check: a cheap HEAD, then a ranged content
// probe for the first RangeBytes bytes. Survivors of the false-positive
// filter are recorded; failures are silently omitted.
func (a *Audit) probePath(ctx context.Context, path, baseline string) bool {
	target := a.origin.Scheme + "://" + a.origin.Host + path

	status, ok := a.headProbe(ctx, target)
	if !ok {
		return false
	}

	body, contentType, err := a.rangedProbe(ctx, target)
	if err != nil {
		a.log.Debugw("content probe failed", "path", path, "error", err)
		return false
	}

	if isFalsePositive(path, body, contentType, baseline) {
		return false
	}

	a.mu.Lock()
	a.exposed = append(a.exposed, ExposedFile{
		Path:        path,
		Risk:        probeRisk(path),
		HTTPStatus:  status,
		ContentType: contentType,
	})
	a.mu.Unlock()

	if path == provenancePackageJSON {
		a.ingestPackageJSON(ctx, target)
	}
	return true
}

func (a *Audit) headProbe(ctx context.Context, target string) (int, bool) {
	reqCtx, cancel := context.WithTimeout(ctx, a.cfg.Probe.Timeout)
	defer cancel()

	if err := a.site.Wait(reqCtx); err != nil {
		return 0, false
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, target, nil)
	if err != nil {
		return 0, false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return resp.StatusCode, false
	}
	return resp.StatusCode, true
}

func (a *Audit) rangedProbe(ctx context.Context, target string) (body, contentType string, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, a.cfg.Probe.Timeout)
	defer cancel()

	if err := a.site.Wait(reqCtx); err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", a.cfg.Probe.RangeBytes-1))

	resp, err := a.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(a.cfg.Probe.RangeBytes)))
	if err != nil {
		return "", "", err
	}
	return string(data), resp.Header.Get("Content-Type"), nil
}

// ingestPackageJSON pulls dependency names out of an exposed package.json and
// records them as further package references.
func (a *Audit) ingestPackageJSON(ctx context.Context, target string) {
	body, err := a.fetchBody(ctx, target, 64*1024)
	if err != nil {
		return
	}

	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal([]byte(body), &manifest); err != nil {
		return
	}

	for name := range manifest.Dependencies {
		a.recordReference(name, provenancePackageJSON)
	}
	for name := range manifest.DevDependencies {
		a.recordReference(name, provenancePackageJSON)
	}
}

// isFalsePositive applies the soft-404 and content-signature filters.
func isFalsePositive(path, body, contentType, baseline string) bool {
	trimmed := strings.TrimSpace(body)
	htmlPath := strings.HasSuffix(path, ".html")

	if !htmlPath {
		if matchesBaseline(body, baseline) || hasDoctype(trimmed) {
			return true
		}
	}

	name := probeFilename(path)
	if check, ok := contentSignature(name); ok {
		return !check(body)
	}

	if strings.Contains(strings.ToLower(contentType), "text/html") || looksLikeHTML(trimmed) {
		return true
	}
	if (strings.HasSuffix(name, ".json") || strings.HasSuffix(name, "rc")) && looksLikeHTML(trimmed) {
		return true
	}
	return false
}

// matchesBaseline treats an exact match or a prefix relationship with the
// homepage body as the SPA fallback page. Legitimately short files that
// coincidentally prefix-match the homepage are a known limitation.
func matchesBaseline(body, baseline string) bool {
	if baseline == "" || body == "" {
		return false
	}
	return body == baseline || strings.HasPrefix(baseline, body)
}

func hasDoctype(body string) bool {
	return strings.Contains(strings.ToLower(body), "<!doctype")
}

func looksLikeHTML(body string) bool {
	lower := strings.ToLower(body)
	return strings.HasPrefix(lower, "<!doctype") ||
		strings.HasPrefix(lower, "<html") ||
		strings.Contains(lower, "<head") ||
		strings.Contains(lower, "<body")
}

// probeFilename returns the trailing path segment. Paths with no trailing
// segment use a synthetic name that falls through to generic HTML sniffing.
func probeFilename(path string) string {
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	if path == "" {
		return "node_modules"
	}
	return path
}

func probeRisk(path string) string {
	name := probeFilename(path)
	switch {
	case strings.HasPrefix(name, ".env"), name == ".npmrc", name == ".yarnrc.yml":
		return "HIGH"
	case name == "package.json", name == "package-lock.json", name == "npm-shrinkwrap.json",
		name == "yarn.lock", name == "pnpm-lock.yaml":
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// contentSignature returns the expected-content check for a probed filename.
func contentSignature(name string) (func(string) bool, bool) {
	switch name {
	case "package.json", "package-lock.json", "npm-shrinkwrap.json", "tsconfig.json":
		return func(body string) bool {
			return strings.HasPrefix(strings.TrimSpace(body), "{")
		}, true
	case "yarn.lock":
		return containsAny("yarn", "registry"), true
	case "pnpm-lock.yaml":
		return func(body string) bool {
			return strings.HasPrefix(strings.TrimSpace(body), "lockfileVersion")
		}, true
	case ".npmrc":
		return containsAny("registry", "_auth", "always-auth"), true
	case ".yarnrc.yml":
		return containsAny("nodeLinker:", "yarnPath:"), true
	case "webpack.config.js", "next.config.js", "nuxt.config.js", "babel.config.js":
		return containsAny("module.exports", "export default"), true
	case "vite.config.js", "vite.config.ts", "vite.config.mjs", "rollup.config.js":
		return containsAny("export default", "defineConfig", "module.exports"), true
	case "docker-compose.yml", "docker-compose.yaml":
		return func(body string) bool {
			trimmed := strings.TrimSpace(body)
			return strings.HasPrefix(trimmed, "version:") || strings.HasPrefix(trimmed, "services:")
		}, true
	case "Dockerfile":
		return func(body string) bool {
			return strings.HasPrefix(strings.TrimSpace(body), "FROM ")
		}, true
	}
	if strings.HasPrefix(name, ".env") {
		return envLinePattern.MatchString, true
	}
	return nil, false
}

func containsAny(needles ...string) func(string) bool {
	return func(body string) bool {
		for _, n := range needles {
			if strings.Contains(body, n) {
				return true
			}
		}
		return false
	}
}
