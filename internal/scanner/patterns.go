package scanner

import "regexp"

// The extraction battery covers CommonJS, ES modules, AMD, bundler-internal
// requires, and SystemJS. Pattern-based extraction is accepted as lossy; the
// extractor rejects the false positives these patterns let through.
var importPatterns = []*regexp.Regexp{
	regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`),
	regexp.MustCompile(`import\s+(?:[\w*{},\s$]+?\s+from\s+)?['"]([^'"]+)['"]`),
	regexp.MustCompile(`import\(\s*['"]([^'"]+)['"]\s*\)`),
	regexp.MustCompile(`export\s+[\w*{},\s$]+?\s+from\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`__webpack_require__\(\s*['"]([^'"]+)['"]\s*\)`),
	regexp.MustCompile(`System\.import\(\s*['"]([^'"]+)['"]\s*\)`),
}

// Array-form patterns: AMD define and require.ensure list their dependencies
// inside a bracketed literal.
var importListPatterns = []*regexp.Regexp{
	regexp.MustCompile(`define\(\s*\[([^\]]*)\]`),
	regexp.MustCompile(`require\.ensure\(\s*\[([^\]]*)\]`),
}

var quotedLiteral = regexp.MustCompile(`['"]([^'"]+)['"]`)

var inlineScriptPattern = regexp.MustCompile(`(?is)<script\b([^>]*)>(.*?)</script>`)

var srcAttrPattern = regexp.MustCompile(`(?i)\bsrc\s*=`)

// scanImports returns every raw import-like capture in src, unfiltered.
func scanImports(src string) []string {
	var refs []string
	for _, re := range importPatterns {
		for _, match := range re.FindAllStringSubmatch(src, -1) {
			refs = append(refs, match[1])
		}
	}
	for _, re := range importListPatterns {
		for _, match := range re.FindAllStringSubmatch(src, -1) {
			for _, lit := range quotedLiteral.FindAllStringSubmatch(match[1], -1) {
				refs = append(refs, lit[1])
			}
		}
	}
	return refs
}

// inlineScripts returns the bodies of non-external <script> blocks.
func inlineScripts(markup string) []string {
	var bodies []string
	for _, match := range inlineScriptPattern.FindAllStringSubmatch(markup, -1) {
		if srcAttrPattern.MatchString(match[1]) {
			continue
		}
		if body := match[2]; body != "" {
			bodies = append(bodies, body)
		}
	}
	return bodies
}
