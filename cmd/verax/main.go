// Command verax is the CLI entry point for the silent-failure detection
// engine (spec.md §6). Argument parsing follows the teacher's own
// cmd/kilroy/main.go idiom: a hand-rolled switch over os.Args, not a
// flag-parsing library, since unknown flags must surface as a
// USAGE_ERROR contract block rather than a bare process exit.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/odavlstudio/verax/internal/model"
	"github.com/odavlstudio/verax/internal/observe"
	"github.com/odavlstudio/verax/internal/observe/fakeengine"
	"github.com/odavlstudio/verax/internal/orchestrator"
	"github.com/odavlstudio/verax/internal/policy"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		os.Exit(runCommand(os.Args[2:]))
	case "--help", "-h", "help":
		usage()
		os.Exit(0)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  verax run <url> [--src <path>] [--out <path>] [--json] [--debug|--verbose]")
	fmt.Fprintln(os.Stderr, "            [--retain-runs <N>] [--no-retention] [--min-coverage <0..1>]")
	fmt.Fprintln(os.Stderr, "            [--ci-mode <balanced|strict>] [--policy-file <path>]")
	fmt.Fprintln(os.Stderr, "            [--auth-storage <path>] [--auth-cookie <value>] [--auth-header <value>] [--auth-mode <mode>]")
	fmt.Fprintln(os.Stderr, "            [--no-redaction] [--dry-learn] [--explain-expectations]")
}

// cliArgs mirrors the flag surface of spec.md §6; it is parsed, never
// validated here — invocation semantics (bad URL, out-of-range
// min-coverage) stay internal/orchestrator's job so parity holds between
// CLI and any other caller of Run.
type cliArgs struct {
	url                string
	src                string
	out                string
	jsonOutput         bool
	debug              bool
	retainRuns         *int
	noRetention        bool
	minCoverage        *float64
	ciMode             string
	authStorage        string
	authCookie         string
	authHeader         string
	authMode           string
	policyFile         string
	noRedaction        bool
	dryLearn           bool
	explainExpectations bool
}

// parseArgs returns a usage-error reason string on the first
// unrecognized flag or malformed value, matching spec.md §6 ("unknown
// flags ⇒ USAGE_ERROR") — the caller turns that into a contract block
// rather than a silent process exit.
func parseArgs(args []string) (cliArgs, string) {
	var out cliArgs
	var positional []string

	need := func(i int) (string, bool) {
		if i+1 >= len(args) {
			return "", false
		}
		return args[i+1], true
	}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch a {
		case "--src":
			v, ok := need(i)
			if !ok {
				return out, "usage_missing_value:--src"
			}
			out.src = v
			i++
		case "--out":
			v, ok := need(i)
			if !ok {
				return out, "usage_missing_value:--out"
			}
			out.out = v
			i++
		case "--json":
			out.jsonOutput = true
		case "--debug", "--verbose":
			out.debug = true
		case "--retain-runs":
			v, ok := need(i)
			if !ok {
				return out, "usage_missing_value:--retain-runs"
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return out, "usage_bad_flag:--retain-runs"
			}
			out.retainRuns = &n
			i++
		case "--no-retention":
			out.noRetention = true
		case "--min-coverage":
			v, ok := need(i)
			if !ok {
				return out, "usage_missing_value:--min-coverage"
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return out, "usage_bad_flag:--min-coverage"
			}
			out.minCoverage = &f
			i++
		case "--ci-mode":
			v, ok := need(i)
			if !ok {
				return out, "usage_missing_value:--ci-mode"
			}
			out.ciMode = v
			i++
		case "--auth-storage":
			v, ok := need(i)
			if !ok {
				return out, "usage_missing_value:--auth-storage"
			}
			out.authStorage = v
			i++
		case "--auth-cookie":
			v, ok := need(i)
			if !ok {
				return out, "usage_missing_value:--auth-cookie"
			}
			out.authCookie = v
			i++
		case "--auth-header":
			v, ok := need(i)
			if !ok {
				return out, "usage_missing_value:--auth-header"
			}
			out.authHeader = v
			i++
		case "--auth-mode":
			v, ok := need(i)
			if !ok {
				return out, "usage_missing_value:--auth-mode"
			}
			out.authMode = v
			i++
		case "--policy-file":
			v, ok := need(i)
			if !ok {
				return out, "usage_missing_value:--policy-file"
			}
			out.policyFile = v
			i++
		case "--no-redaction":
			out.noRedaction = true
		case "--dry-learn":
			out.dryLearn = true
		case "--explain-expectations":
			out.explainExpectations = true
		default:
			if strings.HasPrefix(a, "-") {
				return out, "usage_unknown_flag:" + a
			}
			positional = append(positional, a)
		}
	}

	if len(positional) != 1 {
		return out, "usage_missing_url"
	}
	out.url = positional[0]
	return out, ""
}

func runCommand(args []string) int {
	parsed, usageReason := parseArgs(args)
	if usageReason != "" {
		return emitOutcome(orchestrator.Outcome{
			Command:  "run",
			ExitCode: model.ExitUsageError,
			Reason:   usageReason,
			Action:   "fix the invocation and re-run",
			Truth:    model.TruthIncomplete,
			URL:      parsed.url,
		}, false)
	}

	pol, err := policy.Load(parsed.policyFile, os.Environ(), policy.FlagOverrides{
		MinCoverage:     parsed.minCoverage,
		CIMode:          parsed.ciMode,
		RetainRuns:      parsed.retainRuns,
		NoRetention:     parsed.noRetention,
		NoRedaction:     parsed.noRedaction,
	})
	if err != nil {
		return emitOutcome(orchestrator.Outcome{
			Command:  "run",
			ExitCode: model.ExitUsageError,
			Reason:   "usage_bad_policy_file:" + err.Error(),
			Action:   "fix --policy-file and re-run",
			Truth:    model.TruthIncomplete,
			URL:      parsed.url,
		}, false)
	}

	outRoot := parsed.out
	if outRoot == "" {
		outRoot = "."
	}

	inv := orchestrator.Invocation{
		URL:     parsed.url,
		SrcRoot: parsed.src,
		OutRoot: outRoot,
		Policy:  pol,
		Auth: observe.AuthConfig{
			Mode:        parsed.authMode,
			StoragePath: parsed.authStorage,
			Cookie:      parsed.authCookie,
			Header:      parsed.authHeader,
		},
		Deterministic: os.Getenv("VERAX_DETERMINISTIC_MODE") == "1",
		DryLearn:      parsed.dryLearn,
	}

	// No real browser-driven Observation Engine ships in this repo
	// (spec.md Non-goals: the Observation Engine is an external
	// collaborator). fakeengine stands in so the CLI remains runnable
	// end to end; a real deployment substitutes its own observe.Engine.
	eng := fakeengine.New()

	out, runErr := orchestrator.Run(context.Background(), inv, eng)
	if runErr != nil {
		return emitOutcome(orchestrator.Outcome{
			Command:  "run",
			ExitCode: model.ExitInvariantViolation,
			Reason:   "internal_error:" + runErr.Error(),
			Action:   "inspect run.status.json and traces.jsonl, then re-run",
			Truth:    model.TruthIncomplete,
			URL:      parsed.url,
		}, false)
	}

	if parsed.jsonOutput && out.ScanID != "" && out.RunID != "" {
		streamTraces(outRoot, out.ScanID, out.RunID)
	}
	if parsed.explainExpectations && out.ScanID != "" && out.RunID != "" {
		explainExpectations(outRoot, out.ScanID, out.RunID)
	}
	if parsed.debug && out.ScanID != "" && out.RunID != "" {
		debugTraces(outRoot, out.ScanID, out.RunID)
	}

	return emitOutcome(out, parsed.jsonOutput)
}

// streamTraces replays traces.jsonl as JSONL progress events ahead of the
// final contract block (spec.md §6: "progress events stream as JSONL
// prior to the final block"). Run is synchronous, so replaying the
// completed trace log after Run returns satisfies the ordering
// requirement without needing a live event sink threaded through
// Invocation.
func streamTraces(outRoot, scanID, runID string) {
	path := filepath.Join(outRoot, "runs", scanID, runID, "traces.jsonl")
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fmt.Println(sc.Text())
	}
}

// debugTraces mirrors traces.jsonl to stderr when --debug|--verbose is
// set — the diagnostic channel spec.md §6 keeps strictly separate from
// the one stdout contract block, so it is never the same writer
// streamTraces uses for --json's stdout progress events.
func debugTraces(outRoot, scanID, runID string) {
	path := filepath.Join(outRoot, "runs", scanID, runID, "traces.jsonl")
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fmt.Fprintln(os.Stderr, sc.Text())
	}
}

// explainExpectations prints the persisted learn.json expectations in a
// human-readable form to stderr (the diagnostic channel), never stdout,
// so the one contract block on stdout stays uncontaminated.
func explainExpectations(outRoot, scanID, runID string) {
	path := filepath.Join(outRoot, "runs", scanID, runID, "learn.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var parsed struct {
		Expectations []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
			File string `json:"file"`
			Line int    `json:"line"`
		} `json:"expectations"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return
	}
	for _, e := range parsed.Expectations {
		fmt.Fprintf(os.Stderr, "%s\t%s\t%s:%d\n", e.ID, e.Type, e.File, e.Line)
	}
}

// emitOutcome writes exactly one contract block to stdout (spec.md §6)
// and returns the process exit code.
func emitOutcome(out orchestrator.Outcome, jsonOutput bool) int {
	if jsonOutput {
		data, err := json.Marshal(struct {
			Command  string           `json:"command"`
			ExitCode int              `json:"exitCode"`
			Reason   string           `json:"reason"`
			Action   string           `json:"action"`
			Truth    model.TruthState `json:"truth"`
			Digest   string           `json:"digest"`
			RunID    string           `json:"runId"`
			URL      string           `json:"url"`
		}{
			Command:  out.Command,
			ExitCode: int(out.ExitCode),
			Reason:   out.Reason,
			Action:   out.Action,
			Truth:    out.Truth,
			Digest:   out.Digest,
			RunID:    out.RunID,
			URL:      out.URL,
		})
		if err != nil {
			fmt.Println(`{"command":"run","exitCode":50,"reason":"internal_error:contract_marshal_failed","action":"report this as a bug","truth":"INCOMPLETE"}`)
			return int(model.ExitInvariantViolation)
		}
		fmt.Println(string(data))
		return int(out.ExitCode)
	}

	fmt.Printf("RESULT: %s\nREASON: %s\nACTION: %s\n", out.Truth, out.Reason, out.Action)
	return int(out.ExitCode)
}
