// Package config holds the complete runtime configuration for one audit.
// A Config is constructed once (Default, then adjusted by the CLI) and passed
// explicitly into each component; nothing in internal/ reads process-wide state.
package config

import (
	"regexp"
	"time"
)

// Config groups every tunable and fixed table the scanner pipeline uses.
type Config struct {
	Extract  Extraction
	Crawl    Crawl
	Scan     Scan
	Probe    Probe
	Registry Registry
	Risk     Risk
}

// Extraction carries the fixed tables driving package-name extraction.
type Extraction struct {
	// AliasPrefixes are bundler path-alias markers, never registry names.
	AliasPrefixes []string
	// InternalRoots are conventional project-relative first segments.
	InternalRoots map[string]struct{}
	// Builtins are platform built-in module names.
	Builtins map[string]struct{}
	// InternalModules maps sub-module naming conventions to their parent package.
	InternalModules []InternalModuleRule
}

// InternalModuleRule marks identifiers that are internal sub-modules of a
// known host package rather than standalone registry packages.
type InternalModuleRule struct {
	Parent  string
	Pattern *regexp.Regexp
}

// Crawl configures asset discovery.
type Crawl struct {
	Timeout    time.Duration
	AssetDirs  []string
	RenderJS   bool
	RenderWait time.Duration
}

// Scan configures page and asset scanning.
type Scan struct {
	Timeout      time.Duration
	ChunkSize    int
	SiteRate     int // requests per second against the audited site
	MaxBodyBytes int64
}

// Probe configures the exposed-file probe.
type Probe struct {
	Concurrency   int
	Timeout       time.Duration
	RangeBytes    int
	BaselineBytes int64
	Paths         []string
}

// Registry configures public-registry lookups.
type Registry struct {
	BaseURL      string
	DownloadsURL string
	Timeout      time.Duration
	MaxRequests  int
	Window       time.Duration
	RetryBuffer  time.Duration
	CacheTTL     time.Duration
	CacheSize    int
}

// Risk configures the risk classifier thresholds.
type Risk struct {
	LowDownloadThreshold int64
}

// Default returns the baseline configuration. Callers may adjust timeout and
// concurrency knobs before handing the value to the scanner; the fixed tables
// are shared and must not be mutated.
func Default() *Config {
	return &Config{
		Extract: Extraction{
			AliasPrefixes: []string{"@/", "~/", "~~/"},
			InternalRoots: stringSet(
				"src", "app", "apps", "components", "utils", "util", "pages",
				"assets", "styles", "layouts", "views", "store", "hooks",
				"helpers", "shared", "common", "internal", "public", "test",
				"tests", "mocks", "scripts", "config", "static", "dist",
			),
			Builtins: stringSet(
				"assert", "async_hooks", "buffer", "child_process", "cluster",
				"console", "constants", "crypto", "dgram", "dns", "domain",
				"events", "fs", "http", "http2", "https", "inspector",
				"module", "net", "os", "path", "perf_hooks", "process",
				"punycode", "querystring", "readline", "repl", "stream",
				"string_decoder", "sys", "timers", "tls", "trace_events",
				"tty", "url", "util", "v8", "vm", "wasi", "worker_threads",
				"zlib",
			),
			InternalModules: []InternalModuleRule{
				{Parent: "prismjs", Pattern: regexp.MustCompile(`^prism-[a-z0-9-]+$`)},
				{Parent: "ace-builds", Pattern: regexp.MustCompile(`^ace$`)},
				{Parent: "@polymer/polymer", Pattern: regexp.MustCompile(`^(iron|paper|app|neon|gold|platinum)-[a-z0-9-]+$`)},
				{Parent: "@polymer/polymer", Pattern: regexp.MustCompile(`^yt(d|-)[a-z0-9-]*$`)},
			},
		},
		Crawl: Crawl{
			Timeout: 10 * time.Second,
			AssetDirs: []string{
				"/static/js/", "/_next/static/", "/assets/js/", "/dist/",
				"/build/static/js/", "/js/", "/bundles/",
			},
			RenderWait: 2 * time.Second,
		},
		Scan: Scan{
			Timeout:      10 * time.Second,
			ChunkSize:    5,
			SiteRate:     10,
			MaxBodyBytes: 2 * 1024 * 1024,
		},
		Probe: Probe{
			Concurrency:   5,
			Timeout:       10 * time.Second,
			RangeBytes:    512,
			BaselineBytes: 1024,
			Paths: []string{
				"/package.json",
				"/package-lock.json",
				"/npm-shrinkwrap.json",
				"/yarn.lock",
				"/pnpm-lock.yaml",
				"/.npmrc",
				"/.yarnrc.yml",
				"/webpack.config.js",
				"/vite.config.js",
				"/vite.config.ts",
				"/next.config.js",
				"/nuxt.config.js",
				"/rollup.config.js",
				"/babel.config.js",
				"/tsconfig.json",
				"/.env",
				"/.env.local",
				"/.env.production",
				"/.env.development",
				"/.env.backup",
				"/docker-compose.yml",
				"/Dockerfile",
			},
		},
		Registry: Registry{
			BaseURL:      "https://registry.npmjs.org",
			DownloadsURL: "https://api.npmjs.org/downloads/point/last-week",
			Timeout:      10 * time.Second,
			MaxRequests:  30,
			Window:       time.Minute,
			RetryBuffer:  100 * time.Millisecond,
			CacheTTL:     30 * time.Minute,
			CacheSize:    4096,
		},
		Risk: Risk{
			LowDownloadThreshold: 200,
		},
	}
}

func stringSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
