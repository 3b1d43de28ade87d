package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"

	"github.com/Mindburn-Labs/golive/pkg/audit"
	"github.com/Mindburn-Labs/golive/pkg/evidence"
	"github.com/Mindburn-Labs/golive/pkg/verifier"
)

// runManifestCmd implements `golive manifest`.
//
// Exit codes:
//
//	0 = manifest and seal written
//	2 = evidence missing, unreadable or ambiguous
func runManifestCmd(ctx context.Context, a *app, args []string) int {
	cmd := flag.NewFlagSet("manifest", flag.ContinueOnError)
	cmd.SetOutput(a.stderr)

	var (
		dir        string
		pattern    string
		outDir     string
		jsonOutput bool
	)
	cmd.StringVar(&dir, "dir", a.cfg.EvidenceDir, "Evidence directory")
	cmd.StringVar(&pattern, "pattern", a.cfg.EvidencePattern, "Glob evidence filenames must match")
	cmd.StringVar(&outDir, "out-dir", a.cfg.OutputDir, "Directory for the manifest (default: evidence directory)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")
	if err := cmd.Parse(args); err != nil {
		return exitError
	}

	opts := []evidence.Option{evidence.WithPattern(pattern), evidence.WithLogger(a.logger)}
	if outDir != "" {
		opts = append(opts, evidence.WithOutputDir(outDir))
	}
	res, err := evidence.NewBuilder(opts...).Build(ctx, dir)
	if err != nil {
		return a.errorf("manifest: %v", err)
	}

	a.record(ctx, audit.EventEvidence, "manifest", res.ManifestPath, map[string]any{
		"seal":    res.Seal,
		"entries": len(res.Manifest.Chain),
	})

	if jsonOutput {
		return writeJSON(a, map[string]any{
			"manifest": res.ManifestPath,
			"seal":     res.Seal,
			"entries":  len(res.Manifest.Chain),
		})
	}
	_, _ = fmt.Fprintf(a.stdout, "Manifest: %s\n", res.ManifestPath)
	_, _ = fmt.Fprintf(a.stdout, "Seal: %s\n", res.Seal)
	_, _ = fmt.Fprintf(a.stdout, "Entries: %d\n", len(res.Manifest.Chain))
	return exitOK
}

// runVerifyManifestCmd implements `golive verify-manifest`.
//
// Exit codes:
//
//	0 = seal, chain and evidence verified
//	1 = verification failed
//	2 = manifest unreadable
func runVerifyManifestCmd(ctx context.Context, a *app, args []string) int {
	cmd := flag.NewFlagSet("verify-manifest", flag.ContinueOnError)
	cmd.SetOutput(a.stderr)

	var (
		manifest    string
		dir         string
		evidenceDir string
		jsonOutput  bool
	)
	cmd.StringVar(&manifest, "manifest", "", "Manifest to verify (default: latest in --dir)")
	cmd.StringVar(&dir, "dir", a.cfg.EvidenceDir, "Directory searched for the latest manifest")
	cmd.StringVar(&evidenceDir, "evidence-dir", "", "Re-digest listed files from this directory")
	cmd.BoolVar(&jsonOutput, "json", false, "Output report as JSON")
	if err := cmd.Parse(args); err != nil {
		return exitError
	}

	if manifest == "" {
		latest, err := evidence.LatestManifest(dir)
		if err != nil {
			return a.errorf("verify-manifest: %v", err)
		}
		if latest == "" {
			return a.errorf("verify-manifest: no manifest found in %s", dir)
		}
		manifest = latest
	}

	report, err := verifier.VerifyManifest(manifest, evidenceDir)
	if err != nil {
		return a.errorf("%v", err)
	}

	a.record(ctx, audit.EventEvidence, "verify-manifest", manifest, map[string]any{
		"verified": report.Verified,
		"issues":   report.IssueCount,
	})
	if vErr := report.Err(); vErr != nil {
		a.logger.WarnContext(ctx, "manifest verification failed", "manifest", manifest,
			"seal_mismatch", errors.Is(vErr, verifier.ErrSealMismatch),
			"chain_broken", errors.Is(vErr, verifier.ErrChainBroken),
			"evidence_mismatch", errors.Is(vErr, verifier.ErrEvidenceMismatch),
		)
	}

	if jsonOutput {
		if code := writeJSON(a, report); code != exitOK {
			return code
		}
	} else if report.Verified {
		_, _ = fmt.Fprintln(a.stdout, "Manifest verification PASSED")
		_, _ = fmt.Fprintf(a.stdout, "Manifest: %s\n", manifest)
		_, _ = fmt.Fprintf(a.stdout, "Checks: %s\n", report.Summary)
	} else {
		_, _ = fmt.Fprintln(a.stdout, "Manifest verification FAILED")
		_, _ = fmt.Fprintf(a.stdout, "Manifest: %s\n", manifest)
		for _, c := range report.Checks {
			if !c.Pass {
				_, _ = fmt.Fprintf(a.stdout, "  - %s: %s\n", c.Name, c.Reason)
			}
		}
	}

	if !report.Verified {
		return exitFailed
	}
	return exitOK
}

func writeJSON(a *app, v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return a.errorf("encode output: %v", err)
	}
	_, _ = fmt.Fprintln(a.stdout, string(data))
	return exitOK
}
