package checklist

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/golive/pkg/archive"
	"github.com/Mindburn-Labs/golive/pkg/decision"
	"github.com/Mindburn-Labs/golive/pkg/evidence"
	"github.com/Mindburn-Labs/golive/pkg/notify"
	"github.com/Mindburn-Labs/golive/pkg/store"
	"github.com/Mindburn-Labs/golive/pkg/verifier"
)

// ArchiveReproducibleCheck compares the digest recorded when the bundle was
// packed with the digest recorded by an independent verification run. With
// BundlePath set it also digests the bundle again.
type ArchiveReproducibleCheck struct {
	RecordedDigestFile string
	VerifyDigestFile   string
	BundlePath         string
}

func (c ArchiveReproducibleCheck) Name() string { return "evidence bundle digest reproducible" }

func (c ArchiveReproducibleCheck) Run(_ context.Context) []Result {
	name := c.Name()
	if c.RecordedDigestFile == "" {
		return []Result{unimplemented(name, "no recorded bundle digest configured")}
	}
	recorded, err := archive.ReadDigestFile(c.RecordedDigestFile)
	if err != nil {
		return []Result{fail(name, "%v", err)}
	}

	compared := 0
	if c.VerifyDigestFile != "" {
		same, err := archive.CompareDigestFiles(c.RecordedDigestFile, c.VerifyDigestFile)
		if err != nil {
			return []Result{fail(name, "%v", err)}
		}
		if !same {
			return []Result{fail(name, "recorded %s disagrees with %s", recorded, c.VerifyDigestFile)}
		}
		compared++
	}
	if c.BundlePath != "" {
		fresh, err := archive.Digest(c.BundlePath)
		if err != nil {
			return []Result{fail(name, "%v", err)}
		}
		if fresh != recorded {
			return []Result{fail(name, "recorded %s, recomputed %s", recorded, fresh)}
		}
		compared++
	}
	if compared == 0 {
		return []Result{unimplemented(name, "nothing to compare the recorded digest against")}
	}
	return []Result{pass(name, "%s", recorded)}
}

// ManifestSealCheck verifies the newest manifest in ManifestDir.
type ManifestSealCheck struct {
	ManifestDir string
	// EvidenceDir, when set, re-digests every listed evidence file.
	EvidenceDir string
}

func (c ManifestSealCheck) Name() string { return "manifest sealed and valid" }

func (c ManifestSealCheck) Run(_ context.Context) []Result {
	name := c.Name()
	if c.ManifestDir == "" {
		return []Result{unimplemented(name, "no manifest directory configured")}
	}
	path, err := evidence.LatestManifest(c.ManifestDir)
	if err != nil {
		return []Result{fail(name, "%v", err)}
	}
	if path == "" {
		return []Result{fail(name, "no manifest in %s", c.ManifestDir)}
	}

	report, err := verifier.VerifyManifest(path, c.EvidenceDir)
	if err != nil {
		return []Result{fail(name, "%v", err)}
	}
	if !report.Verified {
		return []Result{fail(name, "%s: %v", report.Summary, report.Err())}
	}
	return []Result{pass(name, "%s (%s)", path, report.Summary)}
}

// DecisionLogImmutableCheck asks the decision log whether mutation guards
// are installed and whether its chain still verifies.
type DecisionLogImmutableCheck struct {
	Log store.DecisionLog
}

func (c DecisionLogImmutableCheck) Name() string { return store.DecisionTable + " immutable" }

func (c DecisionLogImmutableCheck) Run(ctx context.Context) []Result {
	name := c.Name()
	if c.Log == nil {
		return []Result{unimplemented(name, "no decision log configured")}
	}
	immutable, err := c.Log.Immutable(ctx)
	if err != nil {
		return []Result{fail(name, "%v", err)}
	}
	if !immutable {
		return []Result{fail(name, "update/delete guards are missing")}
	}
	if err := store.Verify(ctx, c.Log); err != nil {
		return []Result{fail(name, "%v", err)}
	}
	return []Result{pass(name, "guards installed, chain intact")}
}

// FreezeCheck passes when the freeze is active and enforced by the store.
type FreezeCheck struct {
	Log store.DecisionLog
}

func (c FreezeCheck) Name() string { return "freeze blocks changes" }

func (c FreezeCheck) Run(ctx context.Context) []Result {
	name := c.Name()
	if c.Log == nil {
		return []Result{unimplemented(name, "no decision log configured")}
	}
	enforced, err := c.Log.FreezeEnforced(ctx)
	if err != nil {
		return []Result{fail(name, "%v", err)}
	}
	if !enforced {
		return []Result{fail(name, "freeze guard is missing")}
	}
	active, err := c.Log.FreezeActive(ctx)
	if err != nil {
		return []Result{fail(name, "%v", err)}
	}
	if !active {
		return []Result{fail(name, "freeze is not active")}
	}
	return []Result{pass(name, "freeze active and enforced")}
}

// GateCheck evaluates every gate against the metrics record; one result per
// gate.
type GateCheck struct {
	Engine  *GateEngine
	Gates   []Gate
	Metrics *decision.Metrics
}

func (c GateCheck) Name() string { return "metric gates" }

func (c GateCheck) Run(_ context.Context) []Result {
	if c.Metrics == nil || c.Engine == nil {
		return []Result{unimplemented(c.Name(), "no metrics record supplied")}
	}
	if len(c.Gates) == 0 {
		return []Result{unimplemented(c.Name(), "no gates configured")}
	}
	fields, err := c.Metrics.Fields()
	if err != nil {
		return []Result{fail(c.Name(), "%v", err)}
	}

	results := make([]Result, 0, len(c.Gates))
	for _, g := range c.Gates {
		ok, err := c.Engine.Evaluate(g.Expression, fields)
		switch {
		case err != nil:
			results = append(results, fail(g.Name, "%v", err))
		case ok:
			results = append(results, pass(g.Name, "%s", g.Expression))
		default:
			results = append(results, fail(g.Name, "%s is false", g.Expression))
		}
	}
	return results
}

// EvaluateGates reports whether every gate passes, with the names of the
// failing ones.
func EvaluateGates(engine *GateEngine, gates []Gate, m decision.Metrics) (bool, []string, error) {
	fields, err := m.Fields()
	if err != nil {
		return false, nil, err
	}
	var failed []string
	for _, g := range gates {
		ok, err := engine.Evaluate(g.Expression, fields)
		if err != nil {
			return false, nil, fmt.Errorf("gate %s: %w", g.Name, err)
		}
		if !ok {
			failed = append(failed, g.Name)
		}
	}
	sort.Strings(failed)
	return len(failed) == 0, failed, nil
}

// DeployBlockedCheck confirms that the decision recorded for the current
// metrics matches the gate outcome: a failing gate must have produced a
// NO_GO record.
type DeployBlockedCheck struct {
	Log     store.DecisionLog
	Engine  *GateEngine
	Gates   []Gate
	Metrics *decision.Metrics
}

func (c DeployBlockedCheck) Name() string { return "failure blocks deploy" }

func (c DeployBlockedCheck) Run(ctx context.Context) []Result {
	name := c.Name()
	if c.Log == nil || c.Metrics == nil || c.Engine == nil {
		return []Result{unimplemented(name, "needs a decision log and a metrics record")}
	}

	hash, err := decision.Hash(*c.Metrics)
	if err != nil {
		return []Result{fail(name, "%v", err)}
	}
	ok, failed, err := EvaluateGates(c.Engine, c.Gates, *c.Metrics)
	if err != nil {
		return []Result{fail(name, "%v", err)}
	}
	want := store.ResultGo
	if !ok {
		want = store.ResultNoGo
	}

	records, err := c.Log.List(ctx)
	if err != nil {
		return []Result{fail(name, "%v", err)}
	}
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if rec.DecisionHash != hash {
			continue
		}
		if rec.Result != want {
			return []Result{fail(name, "record %d is %s, gates say %s (failed: %s)",
				rec.Sequence, rec.Result, want, strings.Join(failed, ", "))}
		}
		return []Result{pass(name, "record %d is %s", rec.Sequence, rec.Result)}
	}
	return []Result{fail(name, "no decision recorded for %s", hash)}
}

// NotificationDedupeCheck claims a probe key twice and expects the second
// claim to be refused.
type NotificationDedupeCheck struct {
	Deduper notify.Deduper
}

func (c NotificationDedupeCheck) Name() string { return "notification not duplicated" }

func (c NotificationDedupeCheck) Run(ctx context.Context) []Result {
	name := c.Name()
	if c.Deduper == nil {
		return []Result{unimplemented(name, "no notification deduper configured")}
	}
	key := "checklist-probe-" + uuid.NewString()
	defer func() { _ = c.Deduper.Release(ctx, key) }()

	first, err := c.Deduper.Claim(ctx, key)
	if err != nil {
		return []Result{fail(name, "%v", err)}
	}
	second, err := c.Deduper.Claim(ctx, key)
	if err != nil {
		return []Result{fail(name, "%v", err)}
	}
	if !first || second {
		return []Result{fail(name, "probe claims returned %v then %v", first, second)}
	}
	return []Result{pass(name, "repeat delivery suppressed")}
}
