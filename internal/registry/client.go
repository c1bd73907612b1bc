// Package registry resolves package names against the public npm registry
// and classifies supply-chain risk for each distinct finding.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/depscout/depscout/internal/config"
	"github.com/depscout/depscout/internal/ratelimit"
	scerr "github.com/depscout/depscout/internal/shared/errors"
)

// LookupService resolves a package name against a registry. The production
// implementation is a direct HTTP client; tests substitute a fake. Both sit
// behind the same rate-limiter contract.
type LookupService interface {
	Metadata(ctx context.Context, name string) (*Metadata, error)
	WeeklyDownloads(ctx context.Context, name string) (int64, error)
}

// Metadata is the subset of registry package metadata the assessor needs.
type Metadata struct {
	Name          string
	LatestVersion string
	HasRepository bool
}

const maxRegistryBodyBytes = 1 << 20

// Client is the direct-HTTP LookupService. Every request passes through the
// shared sliding-window limiter regardless of which audit step initiated it.
type Client struct {
	baseURL      string
	downloadsURL string
	hc           *http.Client
	limiter      *ratelimit.Limiter
}

// NewClient builds a Client from registry configuration.
func NewClient(cfg config.Registry) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		downloadsURL: strings.TrimRight(cfg.DownloadsURL, "/"),
		hc:           &http.Client{Timeout: cfg.Timeout},
		limiter:      ratelimit.New(cfg.MaxRequests, cfg.Window, cfg.RetryBuffer),
	}
}

type packumentDoc struct {
	Name     string            `json:"name"`
	DistTags map[string]string `json:"dist-tags"`
	// repository may be an object or a plain string; RawMessage covers both.
	Repository json.RawMessage `json:"repository"`
}

type downloadsDoc struct {
	Downloads int64 `json:"downloads"`
}

// Metadata fetches the registry document for name. A 404 maps to
// ErrPackageNotFound, 429 to ErrRateLimited, and any other non-200 status to
// ErrRegistryUnavailable.
func (c *Client) Metadata(ctx context.Context, name string) (*Metadata, error) {
	body, err := c.get(ctx, c.baseURL+"/"+escapeName(name))
	if err != nil {
		return nil, err
	}

	var doc packumentDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode registry document for %s: %w", name, err)
	}

	meta := &Metadata{
		Name:          name,
		LatestVersion: doc.DistTags["latest"],
		HasRepository: len(doc.Repository) > 0 && string(doc.Repository) != "null" && string(doc.Repository) != `""`,
	}
	return meta, nil
}

// WeeklyDownloads fetches last-week download counts for name.
func (c *Client) WeeklyDownloads(ctx context.Context, name string) (int64, error) {
	body, err := c.get(ctx, c.downloadsURL+"/"+escapeName(name))
	if err != nil {
		return 0, err
	}

	var doc downloadsDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0, fmt.Errorf("decode downloads document for %s: %w", name, err)
	}
	return doc.Downloads, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.WaitForSlot(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scerr.ErrRegistryUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, scerr.ErrPackageNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, scerr.ErrRateLimited
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: HTTP %d", scerr.ErrRegistryUnavailable, resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxRegistryBodyBytes))
}

// escapeName encodes the scope separator for scoped packages; the registry
// expects @scope%2Fname in the path.
func escapeName(name string) string {
	return strings.ReplaceAll(name, "/", "%2F")
}
