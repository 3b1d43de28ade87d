package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// WriterSender prints messages instead of delivering them.
type WriterSender struct {
	W io.Writer
}

func (s *WriterSender) Send(_ context.Context, msg Message) (int, error) {
	if err := msg.Validate(); err != nil {
		return 0, err
	}
	if _, err := fmt.Fprintf(s.W, "To: %s\nSubject: %s\n\n%s\n", msg.Recipient, msg.Subject, msg.Body); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return http.StatusOK, nil
}
