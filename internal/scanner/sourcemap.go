package scanner

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
)

var sourceMapPattern = regexp.MustCompile(`//[#@]\s*sourceMappingURL=(\S+)`)

// sourceMapTailBytes bounds how far back from the end of an asset we look for
// the trailing sourceMappingURL comment.
const sourceMapTailBytes = 1024

type sourceMapDoc struct {
	Sources []string `json:"sources"`
}

// sourceMapRef extracts the trailing source-map reference from an asset body,
// resolved against the asset URL. Inline data: maps come back as-is.
func sourceMapRef(assetURL *url.URL, body string) string {
	tail := body
	if len(tail) > sourceMapTailBytes {
		tail = tail[len(tail)-sourceMapTailBytes:]
	}
	match := sourceMapPattern.FindStringSubmatch(tail)
	if match == nil {
		return ""
	}
	ref := strings.TrimSpace(match[1])
	if strings.HasPrefix(ref, "data:") {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return assetURL.ResolveReference(parsed).String()
}

// decodeInlineSourceMap decodes a base64 data: source map URL.
func decodeInlineSourceMap(dataURL string) ([]string, bool) {
	_, payload, found := strings.Cut(dataURL, ";base64,")
	if !found {
		return nil, false
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, false
	}
	return parseSourceMap(decoded)
}

// parseSourceMap returns the listed source paths of a source map document.
func parseSourceMap(data []byte) ([]string, bool) {
	var doc sourceMapDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false
	}
	return doc.Sources, true
}

// cleanSourcePath strips bundler URL schemes and relative markers from a
// source-map path before extraction.
func cleanSourcePath(p string) string {
	for _, prefix := range []string{"webpack:///", "webpack://", "rollup://", "vite://"} {
		if strings.HasPrefix(p, prefix) {
			p = strings.TrimPrefix(p, prefix)
			break
		}
	}
	p = strings.TrimPrefix(p, "./")
	return p
}
