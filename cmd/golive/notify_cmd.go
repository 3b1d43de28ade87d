package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/Mindburn-Labs/golive/pkg/audit"
	"github.com/Mindburn-Labs/golive/pkg/config"
	"github.com/Mindburn-Labs/golive/pkg/notify"
)

// runNotifyCmd implements `golive notify <result-file>`: the file content is
// sent as the message body and the provider status code is printed.
//
// Exit codes:
//
//	0 = delivered, or suppressed as a duplicate
//	1 = provider rejected the message
//	2 = usage or configuration error
func runNotifyCmd(ctx context.Context, a *app, args []string) int {
	cmd := flag.NewFlagSet("notify", flag.ContinueOnError)
	cmd.SetOutput(a.stderr)

	nc := a.cfg.Notify
	cmd.StringVar(&nc.Provider, "provider", nc.Provider, "sendgrid, smtp or stdout")
	cmd.StringVar(&nc.To, "to", nc.To, "Recipient address")
	cmd.StringVar(&nc.Subject, "subject", nc.Subject, "Subject line")
	if err := cmd.Parse(args); err != nil {
		return exitError
	}
	if cmd.NArg() != 1 {
		return a.errorf("notify takes exactly one result file")
	}

	body, err := os.ReadFile(cmd.Arg(0)) //nolint:gosec // operator-chosen path
	if err != nil {
		return a.errorf("read result file: %v", err)
	}

	sender, err := newSender(a, nc)
	if err != nil {
		return a.errorf("%v", err)
	}
	opts := []notify.NotifierOption{
		notify.WithNotifierLogger(a.logger),
		notify.WithRateLimit(nc.RatePerSecond, nc.Burst),
	}
	if nc.RedisAddr != "" {
		d := notify.NewRedisDeduper(nc.RedisAddr, nc.RedisPassword, nc.RedisDB, nc.DedupeTTL)
		defer func() { _ = d.Close() }()
		opts = append(opts, notify.WithDeduper(d))
	}

	msg := notify.Message{Recipient: nc.To, Subject: nc.Subject, Body: string(body)}
	status, err := notify.NewNotifier(sender, opts...).Notify(ctx, msg)
	switch {
	case errors.Is(err, notify.ErrDuplicate):
		_, _ = fmt.Fprintln(a.stdout, "duplicate suppressed")
		a.record(ctx, audit.EventNotify, "notify-duplicate", nc.To, nil)
		return exitOK
	case errors.Is(err, notify.ErrInvalidMessage):
		return a.errorf("%v", err)
	case err != nil:
		a.record(ctx, audit.EventNotify, "notify-failed", nc.To, map[string]any{"status": status})
		if status != 0 {
			_, _ = fmt.Fprintln(a.stdout, status)
		}
		_, _ = fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitFailed
	}

	a.record(ctx, audit.EventNotify, "notify", nc.To, map[string]any{
		"provider": nc.Provider,
		"status":   status,
		"key":      msg.Key(),
	})
	_, _ = fmt.Fprintln(a.stdout, status)
	return exitOK
}

func newSender(a *app, nc config.NotifyConfig) (notify.Sender, error) {
	switch nc.Provider {
	case "sendgrid":
		if nc.SendGridAPIKey == "" {
			return nil, fmt.Errorf("GOLIVE_NOTIFY_SENDGRID_API_KEY is required for sendgrid")
		}
		s := notify.NewSendGridSender(nc.SendGridAPIKey, nc.From)
		if nc.SendGridURL != "" {
			s.Endpoint = nc.SendGridURL
		}
		return s, nil
	case "smtp":
		return &notify.SMTPSender{
			Addr:     nc.SMTPAddr,
			From:     nc.From,
			Username: nc.SMTPUsername,
			Password: nc.SMTPPassword,
		}, nil
	case "stdout", "":
		return &notify.WriterSender{W: a.stdout}, nil
	default:
		return nil, fmt.Errorf("unsupported notify provider %q", nc.Provider)
	}
}
