package extractor

import (
	"net/url"
	"testing"

	"github.com/depscout/depscout/internal/config"
)

func testRules() *config.Extraction {
	return &config.Default().Extract
}

func testOrigin(t *testing.T) *url.URL {
	t.Helper()
	u, err := url.Parse("https://app.example.com/")
	if err != nil {
		t.Fatalf("parse origin: %v", err)
	}
	return u
}

func TestExtract_IdentityOnCleanNames(t *testing.T) {
	rules := testRules()
	origin := testOrigin(t)

	for _, name := range []string{"react", "left-pad", "lodash.merge", "@scope/pkg", "@angular/core", "vue3"} {
		if got := Extract(rules, origin, name); got != name {
			t.Errorf("Extract(%q) = %q, want identity", name, got)
		}
	}
}

func TestExtract_VersionStripping(t *testing.T) {
	rules := testRules()
	origin := testOrigin(t)

	cases := map[string]string{
		"pkg@1.2.3":          "pkg",
		"@scope/pkg@1.2.3":   "@scope/pkg",
		"@scope/pkg":         "@scope/pkg",
		"lodash/fp":          "lodash",
		"libs/my-lib@2.0.0":  "libs",
		"jquery@3.6.0/dist":  "jquery",
		"@babel/core@7/lib":  "@babel/core",
	}
	for input, want := range cases {
		if got := Extract(rules, origin, input); got != want {
			t.Errorf("Extract(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestExtract_Rejections(t *testing.T) {
	rules := testRules()
	origin := testOrigin(t)

	rejected := []string{
		"", "   ",
		"fs", "path", "http", "crypto", "node:fs",
		"./local", "../parent", ".",
		"/static/js/main.js", "/",
		`C:\projects\app\index.js`, `\\share\lib`,
		"@/components/button", "~/utils/helpers", "~~/assets/logo.svg",
		"src/index.js", "app/main.ts", "utils/date.js", "components/nav",
		"static/js/vendor.js", "dist/main.js",
		"https://analytics.example.org/tracker.js",
		"@scope",
		"React", "UPPERCASE",
	}
	for _, input := range rejected {
		if got := Extract(rules, origin, input); got != "" {
			t.Errorf("Extract(%q) = %q, want rejection", input, got)
		}
	}
}

func TestExtract_CDNShapes(t *testing.T) {
	rules := testRules()
	origin := testOrigin(t)

	cases := map[string]string{
		"https://unpkg.com/react@18.2.0/index.js":                        "react",
		"https://unpkg.com/@scope/pkg@2.0.0/dist/pkg.min.js":             "@scope/pkg",
		"https://cdn.jsdelivr.net/npm/vue@3.3.4/dist/vue.global.js":      "vue",
		"https://cdnjs.cloudflare.com/ajax/libs/jquery/3.6.0/jquery.min.js": "jquery",
		"//unpkg.com/axios@1.4.0/dist/axios.min.js":                      "axios",
	}
	for input, want := range cases {
		if got := Extract(rules, origin, input); got != want {
			t.Errorf("Extract(%q) = %q, want %q", input, got, want)
		}
	}

	// jsdelivr paths that are not npm, and unknown hosts, are not packages.
	for _, input := range []string{
		"https://cdn.jsdelivr.net/gh/user/repo/file.js",
		"https://cdnjs.cloudflare.com/other/react/file.js",
		"https://cdn.thirdparty.net/react/react.min.js",
	} {
		if got := Extract(rules, origin, input); got != "" {
			t.Errorf("Extract(%q) = %q, want rejection", input, got)
		}
	}
}

func TestExtract_QueryAndFragmentStripped(t *testing.T) {
	rules := testRules()
	origin := testOrigin(t)

	if got := Extract(rules, origin, "react?v=18#main"); got != "react" {
		t.Errorf("got %q, want react", got)
	}
	if got := Extract(rules, origin, "https://unpkg.com/react@18.2.0/index.js?module"); got != "react" {
		t.Errorf("got %q, want react", got)
	}
}

func TestExtract_NodeModulesPrefix(t *testing.T) {
	rules := testRules()
	origin := testOrigin(t)

	cases := map[string]string{
		"node_modules/lodash/index.js":          "lodash",
		"../node_modules/react/cjs/react.js":    "react",
		"../../node_modules/@scope/pkg/x.js":    "@scope/pkg",
	}
	for input, want := range cases {
		if got := Extract(rules, origin, input); got != want {
			t.Errorf("Extract(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestExtract_Idempotent(t *testing.T) {
	rules := testRules()
	origin := testOrigin(t)

	inputs := []string{
		"react", "pkg@1.2.3", "@scope/pkg@1.2.3", "lodash/fp",
		"https://unpkg.com/react@18.2.0/index.js",
		"node_modules/axios/index.js",
	}
	for _, input := range inputs {
		once := Extract(rules, origin, input)
		if once == "" {
			continue
		}
		twice := Extract(rules, origin, once)
		if twice != once {
			t.Errorf("Extract not idempotent for %q: %q then %q", input, once, twice)
		}
	}
}

func TestExtract_NilOrigin(t *testing.T) {
	rules := testRules()

	if got := Extract(rules, nil, "react"); got != "react" {
		t.Errorf("got %q, want react", got)
	}
	if got := Extract(rules, nil, "https://unpkg.com/react@18/index.js"); got != "react" {
		t.Errorf("got %q, want react", got)
	}
	if got := Extract(rules, nil, "https://other.example.net/x.js"); got != "" {
		t.Errorf("got %q, want rejection", got)
	}
}

func TestNormalize_Grammar(t *testing.T) {
	rules := testRules()

	valid := []string{"a", "react", "left-pad", "p.q_r~s", "@s/x"}
	for _, name := range valid {
		if got := Normalize(rules, name); got != name {
			t.Errorf("Normalize(%q) = %q, want identity", name, got)
		}
	}

	invalid := []string{".start", "_start", "Has Upper", "white space", "@noslash", ""}
	for _, name := range invalid {
		if got := Normalize(rules, name); got != "" {
			t.Errorf("Normalize(%q) = %q, want rejection", name, got)
		}
	}
}

func TestIsInternalModule(t *testing.T) {
	rules := testRules()

	internal := []string{"prism-python", "prism-clike", "ace", "iron-icon", "paper-button"}
	for _, name := range internal {
		if !IsInternalModule(rules, name) {
			t.Errorf("expected %q to be an internal module", name)
		}
	}

	standalone := []string{"prismjs", "ace-builds", "react", "paperwork"}
	for _, name := range standalone {
		if IsInternalModule(rules, name) {
			t.Errorf("expected %q to be standalone", name)
		}
	}
}
