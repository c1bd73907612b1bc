// Package extractor recovers canonical npm package names from raw import
// strings, CDN URLs, and source-map paths. All functions are pure; an empty
// result means "not a package", which is a deliberate rejection, not an error.
package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/depscout/depscout/internal/config"
)

// nameGrammar is the canonical npm package-name grammar.
var nameGrammar = regexp.MustCompile(`^(@[a-z0-9-~][a-z0-9-._~]*/)?[a-z0-9-~][a-z0-9-._~]*$`)

var (
	windowsDrivePattern = regexp.MustCompile(`^[A-Za-z]:[\\/]`)
	nodeModulesPrefix   = regexp.MustCompile(`^(\.\./)*node_modules/`)
)

// Extract maps a raw import/URL string to a normalized package identifier.
// origin is the audited page's URL, used as the base for relative inputs when
// testing for CDN shapes; it may be nil. Returns "" for non-package input.
func Extract(rules *config.Extraction, origin *url.URL, raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return ""
	}

	if isAliasPath(rules, s) {
		return ""
	}

	if pkgPath, decisive := cdnPackagePath(origin, s); decisive {
		if pkgPath == "" {
			return ""
		}
		return identifierFromPath(rules, pkgPath)
	}

	s = stripPrefixes(s)
	if s == "" || strings.HasPrefix(s, ".") || strings.HasPrefix(s, "/") {
		return ""
	}
	if isAliasPath(rules, s) {
		return ""
	}

	return identifierFromPath(rules, s)
}

// IsInternalModule reports whether name is a recognized internal sub-module
// of a known host package (e.g. prism-python under prismjs). Such names are
// discarded rather than recorded as standalone findings.
func IsInternalModule(rules *config.Extraction, name string) bool {
	for _, rule := range rules.InternalModules {
		if rule.Pattern.MatchString(name) {
			return true
		}
	}
	return false
}

// Normalize strips a version suffix from an identifier and validates the
// result against the canonical grammar. Returns "" on rejection.
func Normalize(rules *config.Extraction, id string) string {
	if id == "" {
		return ""
	}

	if strings.HasPrefix(id, "@") {
		slash := strings.Index(id, "/")
		if slash < 0 {
			return ""
		}
		name := id[slash+1:]
		if at := strings.Index(name, "@"); at >= 0 {
			name = name[:at]
		}
		id = id[:slash+1] + name
	} else if at := strings.Index(id, "@"); at >= 0 {
		id = id[:at]
	}

	if id == "" {
		return ""
	}
	if _, builtin := rules.Builtins[id]; builtin {
		return ""
	}
	if !nameGrammar.MatchString(id) {
		return ""
	}
	return id
}

// isAliasPath rejects filesystem paths and bundler path aliases.
func isAliasPath(rules *config.Extraction, s string) bool {
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, `\\`) {
		return true
	}
	if windowsDrivePattern.MatchString(s) {
		return true
	}
	for _, prefix := range rules.AliasPrefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	first, _, _ := strings.Cut(s, "/")
	if _, ok := rules.InternalRoots[first]; ok {
		return true
	}
	return false
}

// cdnPackagePath interprets s as a URL. If it points at a known CDN it
// returns the path remainder that starts with the package segment, decisive.
// An absolute web URL on any other host is decisive with an empty result.
// Anything else falls through to standard cleaning.
func cdnPackagePath(origin *url.URL, s string) (pkgPath string, decisive bool) {
	absolute := strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "//")

	target := s
	if strings.HasPrefix(s, "//") {
		scheme := "https"
		if origin != nil && origin.Scheme != "" {
			scheme = origin.Scheme
		}
		target = scheme + ":" + s
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", absolute
	}
	if !u.IsAbs() {
		if origin == nil {
			return "", false
		}
		u = origin.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	segments := splitPath(u.Path)

	switch {
	case host == "unpkg.com":
		return strings.Join(segments, "/"), true
	case host == "cdn.jsdelivr.net" || host == "jsdelivr.net" || strings.HasSuffix(host, ".jsdelivr.net"):
		if len(segments) >= 2 && segments[0] == "npm" {
			return strings.Join(segments[1:], "/"), true
		}
		return "", true
	case host == "cdnjs.cloudflare.com":
		if len(segments) >= 3 && segments[0] == "ajax" && segments[1] == "libs" {
			return strings.Join(segments[2:], "/"), true
		}
		return "", true
	}

	// Unrelated third-party script on some other host.
	if absolute {
		return "", true
	}
	return "", false
}

// stripPrefixes performs the standard cleaning step: protocol markers,
// node:/file: schemes, and leading node_modules/ segments.
func stripPrefixes(s string) string {
	for _, prefix := range []string{"http://", "https://", "node:", "file://", "file:"} {
		if strings.HasPrefix(s, prefix) {
			s = s[len(prefix):]
			break
		}
	}
	if loc := nodeModulesPrefix.FindStringIndex(s); loc != nil {
		s = s[loc[1]:]
	}
	return s
}

// identifierFromPath takes the first path segment (two for scoped names)
// and normalizes it.
func identifierFromPath(rules *config.Extraction, s string) string {
	segments := splitPath(s)
	if len(segments) == 0 || segments[0] == "" {
		return ""
	}
	id := segments[0]
	if strings.HasPrefix(id, "@") {
		if len(segments) < 2 || segments[1] == "" {
			return ""
		}
		id = segments[0] + "/" + segments[1]
	}
	return Normalize(rules, id)
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
