package registry

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/depscout/depscout/internal/config"
	scerr "github.com/depscout/depscout/internal/shared/errors"
)

// Level is a risk tier. Levels order LOW < MEDIUM < HIGH < CRITICAL.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

func (l Level) rank() int {
	switch l {
	case LevelCritical:
		return 3
	case LevelHigh:
		return 2
	case LevelMedium:
		return 1
	default:
		return 0
	}
}

// Max returns the higher of two levels.
func (l Level) Max(other Level) Level {
	if other.rank() > l.rank() {
		return other
	}
	return l
}

// Finding is the risk classification for one distinct package identifier.
type Finding struct {
	Name            string   `json:"name"`
	Version         string   `json:"version,omitempty"`
	WeeklyDownloads int64    `json:"weekly_downloads,omitempty"`
	Unregistered    bool     `json:"unregistered"`
	Level           Level    `json:"risk_level"`
	Reasons         []string `json:"reasons,omitempty"`
	Sources         []string `json:"sources,omitempty"`
	Error           string   `json:"error,omitempty"`
}

var (
	digitRunPattern     = regexp.MustCompile(`[0-9]{4,}`)
	substitutionPattern = regexp.MustCompile(`[a-z][01][a-z]`)
)

// Assessor resolves identifiers through a TTL cache or the rate-limited
// lookup service and classifies each one.
type Assessor struct {
	cfg   config.Risk
	svc   LookupService
	cache *expirable.LRU[string, Finding]
}

// NewAssessor builds an Assessor over svc with a time-bounded lookup cache.
func NewAssessor(riskCfg config.Risk, regCfg config.Registry, svc LookupService) *Assessor {
	return &Assessor{
		cfg:   riskCfg,
		svc:   svc,
		cache: expirable.NewLRU[string, Finding](regCfg.CacheSize, nil, regCfg.CacheTTL),
	}
}

// Assess produces the Finding for name. Cached results are reused within the
// TTL, but the provenance list is always the caller's current one: it may
// have grown since the cached classification was produced.
func (a *Assessor) Assess(ctx context.Context, name string, sources []string) Finding {
	if cached, ok := a.cache.Get(name); ok {
		cached.Sources = sources
		return cached
	}

	finding := a.resolve(ctx, name)
	if finding.Error == "" {
		a.cache.Add(name, finding)
	}
	finding.Sources = sources
	return finding
}

func (a *Assessor) resolve(ctx context.Context, name string) Finding {
	finding := Finding{Name: name, Level: LevelLow}

	meta, err := a.svc.Metadata(ctx, name)
	switch {
	case errors.Is(err, scerr.ErrPackageNotFound):
		finding.Unregistered = true
		finding.Level = LevelCritical
		finding.Reasons = append(finding.Reasons,
			"not found on public registry: potential dependency confusion")
		a.applyNameHeuristics(&finding)
		return finding
	case errors.Is(err, scerr.ErrRateLimited):
		finding.Error = "registry rate limit exceeded (HTTP 429)"
		return finding
	case err != nil:
		finding.Error = fmt.Sprintf("registry lookup failed: %v", err)
		return finding
	}

	finding.Version = meta.LatestVersion

	downloads := int64(-1)
	switch n, err := a.svc.WeeklyDownloads(ctx, name); {
	case err == nil:
		downloads = n
		finding.WeeklyDownloads = n
	case errors.Is(err, scerr.ErrPackageNotFound):
		// no download data published for this name; classify on what we have
	case errors.Is(err, scerr.ErrRateLimited):
		finding.Error = "registry rate limit exceeded (HTTP 429)"
		return finding
	default:
		finding.Error = fmt.Sprintf("registry lookup failed: %v", err)
		return finding
	}

	if downloads >= 0 && downloads < a.cfg.LowDownloadThreshold && !meta.HasRepository {
		finding.Level = finding.Level.Max(LevelHigh)
		finding.Reasons = append(finding.Reasons,
			"low download count and no repository metadata")
	}

	a.applyNameHeuristics(&finding)
	return finding
}

// applyNameHeuristics flags typosquat-style names: long digit runs and
// letter/digit substitutions (i/1/l, o/0) raise the level to at least MEDIUM.
func (a *Assessor) applyNameHeuristics(f *Finding) {
	if digitRunPattern.MatchString(f.Name) || substitutionPattern.MatchString(f.Name) {
		f.Level = f.Level.Max(LevelMedium)
		f.Reasons = append(f.Reasons, "suspicious name pattern")
	}
}
