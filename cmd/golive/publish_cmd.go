package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/golive/pkg/artifacts"
	"github.com/Mindburn-Labs/golive/pkg/audit"
)

// runPublishCmd implements `golive publish <file>...` against the store
// selected by GOLIVE_ARTIFACT_STORAGE_TYPE.
func runPublishCmd(ctx context.Context, a *app, args []string) int {
	cmd := flag.NewFlagSet("publish", flag.ContinueOnError)
	cmd.SetOutput(a.stderr)

	ac := a.cfg.Artifacts
	var jsonOutput bool
	cmd.StringVar(&ac.Type, "store", ac.Type, "fs, s3 or gcs")
	cmd.StringVar(&ac.Dir, "store-dir", ac.Dir, "Root directory of the fs store")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")
	if err := cmd.Parse(args); err != nil {
		return exitError
	}
	if cmd.NArg() == 0 {
		return a.errorf("publish needs at least one file")
	}

	s, err := artifacts.NewStore(ctx, ac)
	if err != nil {
		return a.errorf("%v", err)
	}
	if c, ok := s.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	res, err := artifacts.Publish(ctx, s, cmd.Args()...)
	if err != nil {
		return a.errorf("%v", err)
	}
	a.logger.InfoContext(ctx, "artifacts published", "store", ac.Type, "count", len(res.Artifacts), "index", res.Index)
	a.record(ctx, audit.EventEvidence, "publish", res.Index, map[string]any{"store": ac.Type, "count": len(res.Artifacts)})

	if jsonOutput {
		return writeJSON(a, res)
	}
	for _, p := range res.Artifacts {
		_, _ = fmt.Fprintf(a.stdout, "%s  %s\n", p.Address, p.Name)
	}
	_, _ = fmt.Fprintf(a.stdout, "Index: %s\n", res.Index)
	return exitOK
}
