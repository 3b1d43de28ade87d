package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Mindburn-Labs/golive/pkg/audit"
	"github.com/Mindburn-Labs/golive/pkg/config"
	"github.com/Mindburn-Labs/golive/pkg/observability"
)

// Exit codes shared by every subcommand.
const (
	exitOK     = 0
	exitFailed = 1 // verification or gate failure
	exitError  = 2 // usage or runtime error
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) int
}

var commands = []command{
	{"manifest", "Build and seal the daily evidence manifest", runManifestCmd},
	{"verify-manifest", "Verify a manifest against its seal and evidence", runVerifyManifestCmd},
	{"bundle", "Pack evidence into a deterministic zip and record its digest", runBundleCmd},
	{"zip-hash", "Print the canonical content digest of a zip", runZipHashCmd},
	{"decision-hash", "Print the canonical digest of a metrics record", runDecisionHashCmd},
	{"record-decision", "Evaluate gates and append GO/NO_GO to the decision log", runRecordDecisionCmd},
	{"checklist", "Run the go-live checklist", runChecklistCmd},
	{"notify", "Send a validation result notification", runNotifyCmd},
	{"publish", "Publish files to the content-addressed artifact store", runPublishCmd},
	{"freeze", "Show or change the decision log freeze (on|off|status)", runFreezeCmd},
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return exitError
	}

	name := args[1]
	switch name {
	case "help", "--help", "-h":
		printUsage(stdout)
		return exitOK
	}

	for _, c := range commands {
		if c.name != name {
			continue
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, stdout, stderr)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		defer a.close()

		ctx = audit.WithActor(ctx, a.cfg.Actor)
		ctx, finish := a.telemetry.TrackOperation(ctx, c.name, attribute.String("golive.environment", a.cfg.Environment))
		code := c.run(ctx, a, args[2:])
		if code != exitOK {
			finish(fmt.Errorf("%s exited with %d", c.name, code))
		} else {
			finish(nil)
		}
		return code
	}

	_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", name)
	printUsage(stderr)
	return exitError
}

// app carries what every subcommand shares.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	audit     audit.Logger
	telemetry *observability.Provider
	stdout    io.Writer
	stderr    io.Writer
}

func newApp(ctx context.Context, stdout, stderr io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewJSONHandler(stderr, opts)
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(stderr, opts)
	}
	logger := slog.New(handler)

	auditLog := audit.Nop()
	if cfg.Audit {
		auditLog = audit.NewLoggerWithWriter(stderr)
	}

	telemetry, err := observability.New(ctx, observability.FromEndpoint(cfg.OTLPEndpoint, cfg.Environment))
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		audit:     auditLog,
		telemetry: telemetry,
		stdout:    stdout,
		stderr:    stderr,
	}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.telemetry.Shutdown(ctx)
}

// record writes an audit event; a failing audit sink is logged, not fatal.
func (a *app) record(ctx context.Context, t audit.EventType, action, resource string, meta map[string]any) {
	if err := a.audit.Record(ctx, t, action, resource, meta); err != nil {
		a.logger.WarnContext(ctx, "audit record failed", "action", action, "error", err)
	}
}

func (a *app) errorf(format string, args ...any) int {
	_, _ = fmt.Fprintf(a.stderr, "Error: "+format+"\n", args...)
	return exitError
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "golive - go-live evidence integrity toolkit")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "USAGE:")
	_, _ = fmt.Fprintln(w, "  golive <command> [flags]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "COMMANDS:")
	for _, c := range commands {
		_, _ = fmt.Fprintf(w, "  %-16s %s\n", c.name, c.summary)
	}
	_, _ = fmt.Fprintf(w, "  %-16s %s\n", "help", "Show this help")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Exit codes: 0 ok, 1 verification failed or NO_GO, 2 usage or runtime error.")
	_, _ = fmt.Fprintln(w, "Settings are read from GOLIVE_* environment variables; flags override them.")
}
