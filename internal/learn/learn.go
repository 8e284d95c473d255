// Package learn implements M2 Expectation Extractor (spec.md §4.3,
// SPEC_FULL.md §4.4): deterministic static extraction of user-facing
// promises from source files. Pattern families are ordinary regexp
// scans over raw source text — literal-only admission, never an AST
// walk — mirroring the teacher's own text-pattern extraction idiom in
// internal/attractor/engine/resume.go and loop_restart_policy.go (now
// removed), which favored MustCompile'd regexps with named capture
// groups over hand-rolled lexers for this class of problem.
package learn

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/odavlstudio/verax/internal/idgen"
	"github.com/odavlstudio/verax/internal/model"
)

// Config carries the policy-overridable inputs to Learn (policy.Learn,
// kept decoupled from the policy package to avoid an import cycle —
// the orchestrator is what wires policy.Policy.Learn into this Config).
type Config struct {
	InScopeExtensions []string
	SkipGlobs         []string
}

// Result is Learn's full output: sorted expectations plus the tally of
// candidates that were deliberately never promoted (spec.md §4.3).
type Result struct {
	Expectations []model.Expectation `json:"expectations"`
	Skipped      model.Skipped       `json:"skipped"`
}

// candidate is a pre-ID, pre-sort match; kind disambiguates the pattern
// family for sort-key purposes ("navigation:link", "network:fetch", …).
type candidate struct {
	file       string
	line       int
	column     int
	kind       string
	value      string
	expType    model.ExpectationType
	confidence float64
}

var (
	// Link/anchor targets: href="literal", href={'literal'}, or a
	// template literal href={`...`}.
	reHref = regexp.MustCompile("href\\s*=\\s*(?:\"([^\"{}]*)\"|'([^'{}]*)'|\\{\\s*['\"]([^'\"{}]*)['\"]\\s*\\}|\\{\\s*`([^`]*)`\\s*\\})")

	// Router navigation calls with a literal string argument:
	// navigate('/path'), router.push("/path"), history.push('/path').
	reNavigate = regexp.MustCompile(`\b(?:navigate|router\.push|router\.replace|history\.push)\s*\(\s*['"]([^'"]*)['"]`)

	// Fetch/HTTP client calls with an absolute literal URL.
	reFetch = regexp.MustCompile(`\b(?:fetch|axios\.(?:get|post|put|patch|delete))\s*\(\s*['"](https?://[^'"]*)['"]`)

	// State-hook setter declarations: const [x, setX] = useState(...).
	reUseState = regexp.MustCompile(`const\s*\[\s*\w+\s*,\s*(set[A-Z]\w*)\s*\]\s*=\s*useState\s*\(`)

	// Validation feedback promises: aria-live regions only. Error
	// elements referenced from handlers are not matched.
	reAriaLive = regexp.MustCompile(`aria-live\s*=\s*['"]([^'"]*)['"]`)
)

// dynamicMarker matches any interpolation inside an otherwise
// literal-looking attribute — a backtick, a `$`, or a `{...}` pair with
// no quote inside — used to decide whether a href/value
// is "dynamic" (skip) rather than a compile-time literal (promote).
var dynamicMarker = regexp.MustCompile("[`$]|\\{[^'\"}]*\\}")

// Extract walks srcRoot for in-scope files (per cfg), applies each
// pattern family, and returns the deterministically sorted, ID-assigned
// expectation set plus skip tallies. Pure function of the filesystem
// snapshot (spec.md §4.3: "Deterministic static extraction").
func Extract(srcRoot string, cfg Config) (Result, error) {
	var candidates []candidate
	var skipped model.Skipped

	err := filepath.Walk(srcRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(srcRoot, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		if !inScope(rel, cfg) {
			return nil
		}
		fileCandidates, fileSkipped, readErr := extractFile(srcRoot, rel)
		if readErr != nil {
			skipped.ParseError++
			return nil
		}
		candidates = append(candidates, fileCandidates...)
		skipped.Dynamic += fileSkipped.Dynamic
		skipped.ParseError += fileSkipped.ParseError
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.file != b.file {
			return a.file < b.file
		}
		if a.line != b.line {
			return a.line < b.line
		}
		if a.column != b.column {
			return a.column < b.column
		}
		if a.kind != b.kind {
			return a.kind < b.kind
		}
		return a.value < b.value
	})

	expectations := make([]model.Expectation, 0, len(candidates))
	for _, c := range candidates {
		id := idgen.ExpectationID(c.file, c.line, c.column, c.kind, c.value)
		expectations = append(expectations, model.Expectation{
			ID:         id,
			Type:       c.expType,
			Promise:    model.Promise{Kind: c.kind, Value: c.value},
			Source:     model.Source{File: c.file, Line: c.line, Column: c.column},
			Confidence: c.confidence,
		})
	}

	return Result{Expectations: expectations, Skipped: skipped}, nil
}

func inScope(relPath string, cfg Config) bool {
	for _, skip := range fixedSkipGlobs() {
		if ok, _ := doublestar.Match(skip, relPath); ok {
			return false
		}
	}
	for _, skip := range cfg.SkipGlobs {
		if ok, _ := doublestar.Match(skip, relPath); ok {
			return false
		}
	}
	ext := strings.ToLower(filepath.Ext(relPath))
	for _, allowed := range cfg.InScopeExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// fixedSkipGlobs is the always-applied skip-list of SPEC_FULL.md §4.4,
// on top of any policy additions.
func fixedSkipGlobs() []string {
	return []string{
		"node_modules/**", ".git/**", "dist/**", "build/**",
		".next/**", "out/**", "coverage/**", "vendor/**",
	}
}

func extractFile(srcRoot, relPath string) ([]candidate, model.Skipped, error) {
	raw, err := os.ReadFile(filepath.Join(srcRoot, relPath))
	if err != nil {
		return nil, model.Skipped{}, err
	}
	lines := strings.Split(string(raw), "\n")

	var out []candidate
	var skipped model.Skipped

	// A literal setter is only promoted once it is also referenced by a
	// JSX expression elsewhere in the file — the UI-connection
	// requirement of SPEC_FULL.md §4.4.
	setters := map[string][2]int{} // name -> (line, column) of declaration
	jsxUsesSetter := func(name string) bool {
		return strings.Contains(string(raw), "{"+name+"(") || strings.Contains(string(raw), "onClick={"+name)
	}

	for i, line := range lines {
		lineNo := i + 1

		for _, m := range reHref.FindAllStringSubmatchIndex(line, -1) {
			val, dynamic := literalFromHrefMatch(line, m)
			col := m[0] + 1
			if dynamic {
				skipped.Dynamic++
				continue
			}
			out = append(out, candidate{relPath, lineNo, col, "link", val, model.ExpectationNavigation, 0.9})
		}

		for _, m := range reNavigate.FindAllStringSubmatchIndex(line, -1) {
			val := line[m[2]:m[3]]
			col := m[0] + 1
			if dynamicMarker.MatchString(val) {
				skipped.Dynamic++
				continue
			}
			out = append(out, candidate{relPath, lineNo, col, "navigate", val, model.ExpectationNavigation, 0.85})
		}

		for _, m := range reFetch.FindAllStringSubmatchIndex(line, -1) {
			val := line[m[2]:m[3]]
			col := m[0] + 1
			if dynamicMarker.MatchString(val) {
				skipped.Dynamic++
				continue
			}
			out = append(out, candidate{relPath, lineNo, col, "fetch", val, model.ExpectationNetwork, 0.8})
		}

		for _, m := range reUseState.FindAllStringSubmatchIndex(line, -1) {
			name := line[m[2]:m[3]]
			col := m[0] + 1
			setters[name] = [2]int{lineNo, col}
		}

		for _, m := range reAriaLive.FindAllStringSubmatchIndex(line, -1) {
			val := line[m[2]:m[3]]
			col := m[0] + 1
			if dynamicMarker.MatchString(val) {
				skipped.Dynamic++
				continue
			}
			out = append(out, candidate{relPath, lineNo, col, "aria-live", val, model.ExpectationValidation, 0.75})
		}
	}

	for name, pos := range setters {
		if jsxUsesSetter(name) {
			out = append(out, candidate{relPath, pos[0], pos[1], "state-setter", name, model.ExpectationState, 0.7})
		} else {
			skipped.Dynamic++
		}
	}

	return out, skipped, nil
}

// literalFromHrefMatch extracts the matched href value from whichever of
// the four alternative capture groups fired, and reports whether it is
// dynamic: a template literal is dynamic when it contains a `${`
// substitution; any other form is dynamic when the raw attribute text
// contains a dynamic marker (in which case the captured literal prefix is
// discarded, never promoted).
func literalFromHrefMatch(line string, m []int) (value string, dynamic bool) {
	if m[8] >= 0 {
		val := line[m[8]:m[9]]
		return val, strings.Contains(val, "${")
	}
	whole := line[m[0]:m[1]]
	if dynamicMarker.MatchString(whole) {
		return "", true
	}
	for g := 1; g <= 3; g++ {
		if m[2*g] >= 0 {
			return line[m[2*g]:m[2*g+1]], false
		}
	}
	return "", true
}
