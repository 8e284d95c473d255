// Package policy implements the frozen Policy Loader (spec.md §4.11,
// SPEC_FULL.md §4.10): defaults, merged with an optional policy file,
// merged with VERAX_POLICY_* environment overrides, merged with
// invocation flags — in that precedence order, lowest to highest. The
// strict-decode-then-validate-then-default shape is grounded on the
// teacher's internal/attractor/engine/config.go (LoadRunConfigFile /
// applyConfigDefaults / validateConfig); policy-file schema validation
// additionally runs the file through an embedded JSON Schema before merge.
package policy

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

var compiledSchema *jsonschema.Schema

func init() {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("policy.json", bytes.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("policy: embedded schema is invalid: %v", err))
	}
	s, err := c.Compile("policy.json")
	if err != nil {
		panic(fmt.Sprintf("policy: embedded schema failed to compile: %v", err))
	}
	compiledSchema = s
}

// Retention controls how many archived runs are kept on disk. Retention
// enforcement itself is out of scope (spec.md §"OUT OF SCOPE"); only the
// invocation contract (keepRuns) is carried.
type Retention struct {
	KeepRuns int `json:"keep_runs" yaml:"keep_runs"`
}

// Redaction controls whether sensitive literal values are redacted from
// persisted artifacts. Defaults ON per spec.md §4.11.
type Redaction struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Frameworks constrains which detected framework tags are acceptable.
type Frameworks struct {
	Allow []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty" yaml:"deny,omitempty"`
}

// Learn overrides the file-scope rules of M2 (SPEC_FULL.md §4.4).
type Learn struct {
	InScopeExtensions []string `json:"in_scope_extensions,omitempty" yaml:"in_scope_extensions,omitempty"`
	SkipGlobs         []string `json:"skip_globs,omitempty" yaml:"skip_globs,omitempty"`
}

// Budget overrides the Timeout Manager's formula inputs (internal/timeout).
type Budget struct {
	BaseMS                 int     `json:"base_ms,omitempty" yaml:"base_ms,omitempty"`
	PerExpectationMS       int     `json:"per_expectation_ms,omitempty" yaml:"per_expectation_ms,omitempty"`
	MaxFrameworkMultiplier float64 `json:"max_framework_multiplier,omitempty" yaml:"max_framework_multiplier,omitempty"`
}

// Policy is the frozen, merged configuration for one run. Once returned
// from Load, a Policy is never mutated (spec.md §5: "Process-wide state
// is confined to the Time Provider and Policy singletons; both are
// initialized at run start and frozen thereafter").
type Policy struct {
	MinCoverage     float64    `json:"min_coverage" yaml:"min_coverage"`
	CIMode          string     `json:"ci_mode" yaml:"ci_mode"`
	Retention       Retention  `json:"retention" yaml:"retention"`
	Redaction       Redaction  `json:"redaction" yaml:"redaction"`
	Frameworks      Frameworks `json:"frameworks" yaml:"frameworks"`
	Learn           Learn      `json:"learn" yaml:"learn"`
	Budget          Budget     `json:"budget" yaml:"budget"`
	ManifestSigning bool       `json:"manifest_signing" yaml:"manifest_signing"`

	// Warnings accumulates non-fatal policy notices (e.g. redaction
	// disabled) that must surface in run.meta.json, never be silently
	// accepted (SPEC_FULL.md §4.10).
	Warnings []string `json:"-" yaml:"-"`
}

// Defaults returns the compiled-in policy baseline, the lowest rung of
// the precedence ladder.
func Defaults() Policy {
	return Policy{
		MinCoverage: 0.8,
		CIMode:      "balanced",
		Retention:   Retention{KeepRuns: 10},
		Redaction:   Redaction{Enabled: true},
		Frameworks:  Frameworks{},
		Learn: Learn{
			InScopeExtensions: []string{".js", ".jsx", ".ts", ".tsx", ".vue", ".svelte", ".html"},
			SkipGlobs: []string{
				"node_modules/**", ".git/**", "dist/**", "build/**",
				".next/**", "out/**", "coverage/**", "vendor/**",
			},
		},
		Budget: Budget{
			BaseMS:                 15_000,
			PerExpectationMS:       2_500,
			MaxFrameworkMultiplier: 3.0,
		},
		ManifestSigning: false,
	}
}

// FlagOverrides mirrors the invocation-flag surface of spec.md §6 that
// feeds into policy precedence (the highest rung). Nil pointers and zero
// values mean "flag not supplied".
type FlagOverrides struct {
	MinCoverage     *float64
	CIMode          string
	RetainRuns      *int
	NoRetention     bool
	NoRedaction     bool
	ManifestSigning *bool
}

// Load produces the frozen policy for one run: Defaults, then filePath's
// contents (if non-empty) validated against the embedded schema, then
// VERAX_POLICY_* environment overrides, then flags — in that order.
func Load(filePath string, env []string, flags FlagOverrides) (Policy, error) {
	p := Defaults()

	if filePath != "" {
		if err := mergeFile(&p, filePath); err != nil {
			return Policy{}, fmt.Errorf("policy: loading %s: %w", filePath, err)
		}
	}

	mergeEnv(&p, env)
	mergeFlags(&p, flags)

	if err := validate(p); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func mergeFile(p *Policy, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var doc any
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return fmt.Errorf("decode json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("decode yaml: %w", err)
		}
		doc = stringifyKeys(doc)
	}

	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	// Re-marshal the validated document through JSON and decode onto a
	// sparse overlay so unset fields don't clobber defaults.
	buf, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var overlay fileOverlay
	if err := json.Unmarshal(buf, &overlay); err != nil {
		return err
	}
	overlay.applyTo(p)
	return nil
}

// fileOverlay mirrors Policy but with pointer/optional fields so that a
// field genuinely absent from the file never overwrites a default.
type fileOverlay struct {
	MinCoverage     *float64    `json:"min_coverage"`
	CIMode          *string     `json:"ci_mode"`
	Retention       *Retention  `json:"retention"`
	Redaction       *Redaction  `json:"redaction"`
	Frameworks      *Frameworks `json:"frameworks"`
	Learn           *Learn      `json:"learn"`
	Budget          *Budget     `json:"budget"`
	ManifestSigning *bool       `json:"manifest_signing"`
}

func (o fileOverlay) applyTo(p *Policy) {
	if o.MinCoverage != nil {
		p.MinCoverage = *o.MinCoverage
	}
	if o.CIMode != nil {
		p.CIMode = *o.CIMode
	}
	if o.Retention != nil {
		p.Retention = *o.Retention
	}
	if o.Redaction != nil {
		p.Redaction = *o.Redaction
	}
	if o.Frameworks != nil {
		p.Frameworks = *o.Frameworks
	}
	if o.Learn != nil {
		if len(o.Learn.InScopeExtensions) > 0 {
			p.Learn.InScopeExtensions = o.Learn.InScopeExtensions
		}
		if len(o.Learn.SkipGlobs) > 0 {
			p.Learn.SkipGlobs = o.Learn.SkipGlobs
		}
	}
	if o.Budget != nil {
		if o.Budget.BaseMS != 0 {
			p.Budget.BaseMS = o.Budget.BaseMS
		}
		if o.Budget.PerExpectationMS != 0 {
			p.Budget.PerExpectationMS = o.Budget.PerExpectationMS
		}
		if o.Budget.MaxFrameworkMultiplier != 0 {
			p.Budget.MaxFrameworkMultiplier = o.Budget.MaxFrameworkMultiplier
		}
	}
	if o.ManifestSigning != nil {
		p.ManifestSigning = *o.ManifestSigning
	}
}

// envPrefix is the fixed namespace for policy environment overrides
// (spec.md §6: "policy knobs VERAX_POLICY_*").
const envPrefix = "VERAX_POLICY_"

// mergeEnv applies VERAX_POLICY_* entries from env (a KEY=VALUE slice,
// in the shape of os.Environ, so callers can inject a fixed slice in
// tests instead of reading the live process environment).
func mergeEnv(p *Policy, env []string) {
	for _, kv := range env {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, envPrefix) {
			continue
		}
		name := strings.TrimPrefix(key, envPrefix)
		switch name {
		case "MIN_COVERAGE":
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				p.MinCoverage = f
			}
		case "CI_MODE":
			p.CIMode = val
		case "RETAIN_RUNS":
			if n, err := strconv.Atoi(val); err == nil {
				p.Retention.KeepRuns = n
			}
		case "REDACTION_ENABLED":
			if b, err := strconv.ParseBool(val); err == nil {
				p.Redaction.Enabled = b
			}
		case "MANIFEST_SIGNING":
			if b, err := strconv.ParseBool(val); err == nil {
				p.ManifestSigning = b
			}
		}
	}
}

func mergeFlags(p *Policy, f FlagOverrides) {
	if f.MinCoverage != nil {
		p.MinCoverage = *f.MinCoverage
	}
	if f.CIMode != "" {
		p.CIMode = f.CIMode
	}
	if f.RetainRuns != nil {
		p.Retention.KeepRuns = *f.RetainRuns
	}
	if f.NoRetention {
		p.Retention.KeepRuns = 0
	}
	if f.NoRedaction {
		p.Redaction.Enabled = false
		p.Warnings = append(p.Warnings, "redaction_disabled")
	}
	if f.ManifestSigning != nil {
		p.ManifestSigning = *f.ManifestSigning
	}
}

func validate(p Policy) error {
	if p.MinCoverage < 0 || p.MinCoverage > 1 {
		return fmt.Errorf("policy: min_coverage must be in [0,1], got %v", p.MinCoverage)
	}
	if p.CIMode != "balanced" && p.CIMode != "strict" {
		return fmt.Errorf("policy: ci_mode must be balanced|strict, got %q", p.CIMode)
	}
	if p.Retention.KeepRuns < 0 {
		return fmt.Errorf("policy: retention.keep_runs must be >= 0, got %d", p.Retention.KeepRuns)
	}
	allow := make(map[string]bool, len(p.Frameworks.Allow))
	for _, a := range p.Frameworks.Allow {
		allow[a] = true
	}
	for _, d := range p.Frameworks.Deny {
		if allow[d] {
			return fmt.Errorf("policy: framework %q is in both allow and deny lists", d)
		}
	}
	return nil
}

// stringifyKeys recursively converts map[string]any-unfriendly
// map[interface{}]any nodes (yaml.v3 actually emits map[string]any
// already, but nested documents from older decoders may not) into
// plain map[string]any so json.Marshal and the jsonschema validator
// agree on shape.
func stringifyKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = stringifyKeys(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[fmt.Sprint(k)] = stringifyKeys(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = stringifyKeys(vv)
		}
		return out
	default:
		return v
	}
}
