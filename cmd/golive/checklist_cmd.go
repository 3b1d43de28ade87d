package main

import (
	"context"
	"flag"

	"github.com/Mindburn-Labs/golive/pkg/audit"
	"github.com/Mindburn-Labs/golive/pkg/checklist"
	"github.com/Mindburn-Labs/golive/pkg/decision"
	"github.com/Mindburn-Labs/golive/pkg/notify"
	"github.com/Mindburn-Labs/golive/pkg/store"
)

// runChecklistCmd implements `golive checklist`. Checks whose inputs are
// not configured report UNIMPLEMENTED, which keeps the verdict NO_GO.
//
// Exit codes:
//
//	0 = every item PASS (GO)
//	1 = any item FAIL or UNIMPLEMENTED (NO_GO)
//	2 = configuration error
func runChecklistCmd(ctx context.Context, a *app, args []string) int {
	cmd := flag.NewFlagSet("checklist", flag.ContinueOnError)
	cmd.SetOutput(a.stderr)

	var (
		evidenceDir  string
		manifestDir  string
		bundle       string
		bundleDigest string
		verifyDigest string
		metricsPath  string
		gatesPath    string
		profile      string
		dsn          string
		jsonOutput   bool
	)
	cmd.StringVar(&evidenceDir, "evidence-dir", a.cfg.EvidenceDir, "Evidence directory")
	cmd.StringVar(&manifestDir, "manifest-dir", a.cfg.OutputDir, "Manifest directory (default: evidence directory)")
	cmd.StringVar(&bundle, "bundle", "", "Evidence bundle zip to digest again")
	cmd.StringVar(&bundleDigest, "bundle-digest", "", "Digest file recorded when the bundle was packed")
	cmd.StringVar(&verifyDigest, "verify-digest", "", "Digest file recorded by an independent verification")
	cmd.StringVar(&metricsPath, "metrics", "", "Metrics record for gates and decision checks")
	cmd.StringVar(&gatesPath, "gates", a.cfg.GatesFile, "Gate profile YAML, or profiles directory with --profile (default: built-in gates)")
	cmd.StringVar(&profile, "profile", a.cfg.GateProfile, "Gate profile name; loads gates_<name>.yaml from --gates")
	cmd.StringVar(&dsn, "dsn", a.cfg.DecisionLogDSN, "Decision log DSN")
	cmd.BoolVar(&jsonOutput, "json", false, "Output report as JSON")
	if err := cmd.Parse(args); err != nil {
		return exitError
	}
	if manifestDir == "" {
		manifestDir = evidenceDir
	}

	engine, gates, err := loadGateEngine(gatesPath, profile)
	if err != nil {
		return a.errorf("%v", err)
	}

	var metrics *decision.Metrics
	if metricsPath != "" {
		m, err := decision.Load(metricsPath)
		if err != nil {
			return a.errorf("%v", err)
		}
		metrics = &m
	}

	var log store.DecisionLog
	if dsn != "" {
		l, err := store.Open(ctx, dsn, store.WithLogger(a.logger))
		if err != nil {
			return a.errorf("%v", err)
		}
		defer func() { _ = l.Close() }()
		log = l
	}

	var deduper notify.Deduper
	if a.cfg.Notify.RedisAddr != "" {
		d := notify.NewRedisDeduper(a.cfg.Notify.RedisAddr, a.cfg.Notify.RedisPassword, a.cfg.Notify.RedisDB, a.cfg.Notify.DedupeTTL)
		defer func() { _ = d.Close() }()
		deduper = d
	}

	runner := checklist.NewRunner(
		checklist.ArchiveReproducibleCheck{
			RecordedDigestFile: bundleDigest,
			VerifyDigestFile:   verifyDigest,
			BundlePath:         bundle,
		},
		checklist.ManifestSealCheck{ManifestDir: manifestDir, EvidenceDir: evidenceDir},
		checklist.DecisionLogImmutableCheck{Log: log},
		checklist.FreezeCheck{Log: log},
		checklist.GateCheck{Engine: engine, Gates: gates, Metrics: metrics},
		checklist.DeployBlockedCheck{Log: log, Engine: engine, Gates: gates, Metrics: metrics},
		checklist.NotificationDedupeCheck{Deduper: deduper},
	)
	report := runner.Run(ctx)

	for _, r := range report.Results {
		for _, g := range gates {
			if r.Name == g.Name && r.Status != checklist.StatusUnimplemented {
				a.telemetry.RecordGate(ctx, g.Name, r.Status == checklist.StatusPass)
			}
		}
	}
	a.record(ctx, audit.EventDecision, "checklist", evidenceDir, map[string]any{"passed": report.Passed})

	if jsonOutput {
		err = report.WriteJSON(a.stdout)
	} else {
		err = report.WriteText(a.stdout)
	}
	if err != nil {
		return a.errorf("write report: %v", err)
	}
	if !report.Passed {
		return exitFailed
	}
	return exitOK
}
