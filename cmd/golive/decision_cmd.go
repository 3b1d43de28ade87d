package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"slices"
	"strings"

	"github.com/Mindburn-Labs/golive/pkg/archive"
	"github.com/Mindburn-Labs/golive/pkg/audit"
	"github.com/Mindburn-Labs/golive/pkg/checklist"
	"github.com/Mindburn-Labs/golive/pkg/config"
	"github.com/Mindburn-Labs/golive/pkg/decision"
	"github.com/Mindburn-Labs/golive/pkg/evidence"
	"github.com/Mindburn-Labs/golive/pkg/store"
)

// runDecisionHashCmd implements `golive decision-hash [--canonical] <metrics>`.
func runDecisionHashCmd(ctx context.Context, a *app, args []string) int {
	cmd := flag.NewFlagSet("decision-hash", flag.ContinueOnError)
	cmd.SetOutput(a.stderr)

	var canonical bool
	cmd.BoolVar(&canonical, "canonical", false, "Print the canonical JSON before the digest")
	if err := cmd.Parse(args); err != nil {
		return exitError
	}
	if cmd.NArg() != 1 {
		return a.errorf("decision-hash takes exactly one metrics file (.json, .yaml or .yml)")
	}

	m, err := decision.Load(cmd.Arg(0))
	if err != nil {
		return a.errorf("%v", err)
	}
	if canonical {
		data, err := decision.Canonical(m)
		if err != nil {
			return a.errorf("%v", err)
		}
		_, _ = fmt.Fprintln(a.stdout, string(data))
	}
	hash, err := decision.Hash(m)
	if err != nil {
		return a.errorf("%v", err)
	}
	a.logger.DebugContext(ctx, "decision hashed", "file", cmd.Arg(0), "hash", hash)
	_, _ = fmt.Fprintln(a.stdout, hash)
	return exitOK
}

// runRecordDecisionCmd implements `golive record-decision`: the metrics are
// hashed and gated, and the outcome is appended to the decision log.
//
// Exit codes:
//
//	0 = GO recorded
//	1 = NO_GO recorded
//	2 = nothing recorded (bad input, frozen log, store error)
func runRecordDecisionCmd(ctx context.Context, a *app, args []string) int {
	cmd := flag.NewFlagSet("record-decision", flag.ContinueOnError)
	cmd.SetOutput(a.stderr)

	var (
		metricsPath  string
		gatesPath    string
		profile      string
		dsn          string
		manifest     string
		bundleDigest string
		jsonOutput   bool
	)
	cmd.StringVar(&metricsPath, "metrics", "", "Metrics record (REQUIRED)")
	cmd.StringVar(&gatesPath, "gates", a.cfg.GatesFile, "Gate profile YAML, or profiles directory with --profile (default: built-in gates)")
	cmd.StringVar(&profile, "profile", a.cfg.GateProfile, "Gate profile name; loads gates_<name>.yaml from --gates")
	cmd.StringVar(&dsn, "dsn", a.cfg.DecisionLogDSN, "Decision log DSN (REQUIRED)")
	cmd.StringVar(&manifest, "manifest", "", "Sealed manifest the decision is based on")
	cmd.StringVar(&bundleDigest, "bundle-digest", "", "Recorded bundle digest file")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the appended record as JSON")
	if err := cmd.Parse(args); err != nil {
		return exitError
	}
	if metricsPath == "" {
		return a.errorf("--metrics is required")
	}
	if dsn == "" {
		return a.errorf("--dsn or GOLIVE_DECISION_LOG_DSN is required")
	}

	m, err := decision.Load(metricsPath)
	if err != nil {
		return a.errorf("%v", err)
	}
	hash, err := decision.Hash(m)
	if err != nil {
		return a.errorf("%v", err)
	}
	engine, gates, err := loadGateEngine(gatesPath, profile)
	if err != nil {
		return a.errorf("%v", err)
	}
	passed, failed, err := checklist.EvaluateGates(engine, gates, m)
	if err != nil {
		return a.errorf("%v", err)
	}
	for _, g := range gates {
		a.telemetry.RecordGate(ctx, g.Name, !slices.Contains(failed, g.Name))
	}

	rec := store.DecisionRecord{DecisionHash: hash, Result: store.ResultGo}
	if !passed {
		rec.Result = store.ResultNoGo
	}
	if manifest != "" {
		seal, err := archive.ReadDigestFile(evidence.SealPath(manifest))
		if err != nil {
			return a.errorf("read manifest seal: %v", err)
		}
		rec.ManifestSeal = seal
	}
	if bundleDigest != "" {
		sum, err := archive.ReadDigestFile(bundleDigest)
		if err != nil {
			return a.errorf("read bundle digest: %v", err)
		}
		rec.BundleDigest = sum
	}

	log, err := store.Open(ctx, dsn, store.WithLogger(a.logger))
	if err != nil {
		return a.errorf("%v", err)
	}
	defer func() { _ = log.Close() }()

	rec, err = log.Append(ctx, rec)
	if err != nil {
		if errors.Is(err, store.ErrFrozen) {
			return a.errorf("decision log is frozen; nothing recorded")
		}
		return a.errorf("%v", err)
	}
	a.record(ctx, audit.EventDecision, "record-decision", store.DecisionTable, map[string]any{
		"sequence":      rec.Sequence,
		"result":        string(rec.Result),
		"decision_hash": rec.DecisionHash,
		"failed_gates":  failed,
		"extensions":    m.ExtensionNames(),
	})

	if jsonOutput {
		if code := writeJSON(a, rec); code != exitOK {
			return code
		}
	} else {
		_, _ = fmt.Fprintf(a.stdout, "Decision %d: %s\n", rec.Sequence, rec.Result)
		_, _ = fmt.Fprintf(a.stdout, "Decision hash: %s\n", rec.DecisionHash)
		_, _ = fmt.Fprintf(a.stdout, "Record hash: %s\n", rec.RecordHash)
		if len(failed) > 0 {
			_, _ = fmt.Fprintf(a.stdout, "Failed gates: %s\n", strings.Join(failed, ", "))
		}
	}
	if rec.Result != store.ResultGo {
		return exitFailed
	}
	return exitOK
}

// runFreezeCmd implements `golive freeze on|off|status`.
func runFreezeCmd(ctx context.Context, a *app, args []string) int {
	cmd := flag.NewFlagSet("freeze", flag.ContinueOnError)
	cmd.SetOutput(a.stderr)

	var dsn string
	cmd.StringVar(&dsn, "dsn", a.cfg.DecisionLogDSN, "Decision log DSN (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return exitError
	}
	action := "status"
	if cmd.NArg() > 0 {
		action = cmd.Arg(0)
	}
	if cmd.NArg() > 1 || (action != "on" && action != "off" && action != "status") {
		return a.errorf("usage: golive freeze [--dsn DSN] on|off|status")
	}
	if dsn == "" {
		return a.errorf("--dsn or GOLIVE_DECISION_LOG_DSN is required")
	}

	log, err := store.Open(ctx, dsn, store.WithLogger(a.logger))
	if err != nil {
		return a.errorf("%v", err)
	}
	defer func() { _ = log.Close() }()

	if action != "status" {
		if err := log.SetFreeze(ctx, action == "on"); err != nil {
			return a.errorf("%v", err)
		}
		a.record(ctx, audit.EventFreeze, "freeze-"+action, store.FreezeTable, nil)
	}

	active, err := log.FreezeActive(ctx)
	if err != nil {
		return a.errorf("%v", err)
	}
	enforced, err := log.FreezeEnforced(ctx)
	if err != nil {
		return a.errorf("%v", err)
	}
	state := "off"
	if active {
		state = "on"
	}
	_, _ = fmt.Fprintf(a.stdout, "Freeze: %s (enforced: %t)\n", state, enforced)
	return exitOK
}

func loadGateEngine(path, profile string) (*checklist.GateEngine, []checklist.Gate, error) {
	gates, err := config.ResolveGates(path, profile)
	if err != nil {
		return nil, nil, err
	}
	engine, err := checklist.NewGateEngine()
	if err != nil {
		return nil, nil, err
	}
	for _, g := range gates {
		if err := engine.Compile(g.Expression); err != nil {
			return nil, nil, fmt.Errorf("gate %s: %w", g.Name, err)
		}
	}
	return engine, gates, nil
}
