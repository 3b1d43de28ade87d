package notify

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
)

// Notifier wraps a Sender with duplicate suppression and a rate limit.
type Notifier struct {
	sender  Sender
	dedupe  Deduper
	limiter *rate.Limiter
	logger  *slog.Logger
}

type NotifierOption func(*Notifier)

func WithDeduper(d Deduper) NotifierOption {
	return func(n *Notifier) { n.dedupe = d }
}

// WithRateLimit allows perSecond messages per second with the given burst.
func WithRateLimit(perSecond float64, burst int) NotifierOption {
	return func(n *Notifier) { n.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

func WithNotifierLogger(logger *slog.Logger) NotifierOption {
	return func(n *Notifier) { n.logger = logger }
}

func NewNotifier(sender Sender, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		sender: sender,
		logger: slog.Default().With("component", "notify"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify delivers msg once. A message whose key was already claimed returns
// ErrDuplicate without reaching the Sender. A failed delivery releases the
// claim.
func (n *Notifier) Notify(ctx context.Context, msg Message) (int, error) {
	if err := msg.Validate(); err != nil {
		return 0, err
	}

	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("notify: rate limit: %w", err)
		}
	}

	key := msg.Key()
	if n.dedupe != nil {
		claimed, err := n.dedupe.Claim(ctx, key)
		if err != nil {
			return 0, err
		}
		if !claimed {
			n.logger.WarnContext(ctx, "duplicate notification suppressed", "recipient", msg.Recipient, "key", key)
			return 0, ErrDuplicate
		}
	}

	code, err := n.sender.Send(ctx, msg)
	if err != nil {
		if n.dedupe != nil {
			if relErr := n.dedupe.Release(ctx, key); relErr != nil {
				n.logger.ErrorContext(ctx, "release dedupe claim", "error", relErr)
			}
		}
		n.logger.ErrorContext(ctx, "notification failed", "recipient", msg.Recipient, "status", code, "error", err)
		return code, err
	}

	n.logger.InfoContext(ctx, "notification sent", "recipient", msg.Recipient, "status", code)
	return code, nil
}
