// Package notify delivers the go-live result to a human.
//
// A Sender is the opaque delivery collaborator: it takes a Message and
// returns the provider's status code. Notifier adds duplicate suppression
// and rate limiting in front of any Sender. Delivery is attempted once;
// there are no retries.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/Mindburn-Labs/golive/pkg/digest"
)

var (
	ErrInvalidMessage = errors.New("notify: invalid message")
	ErrDuplicate      = errors.New("notify: duplicate notification suppressed")
	ErrDelivery       = errors.New("notify: delivery failed")
)

// Message is one notification.
type Message struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// Validate checks that the recipient is an address and the subject is a
// non-empty single line.
func (m Message) Validate() error {
	if _, err := mail.ParseAddress(m.Recipient); err != nil {
		return fmt.Errorf("%w: recipient %q: %w", ErrInvalidMessage, m.Recipient, err)
	}
	if m.Subject == "" {
		return fmt.Errorf("%w: empty subject", ErrInvalidMessage)
	}
	if strings.ContainsAny(m.Subject, "\r\n") || strings.ContainsAny(m.Recipient, "\r\n") {
		return fmt.Errorf("%w: line break in header field", ErrInvalidMessage)
	}
	return nil
}

// Key identifies a message for duplicate suppression.
func (m Message) Key() string {
	return digest.Bytes([]byte(m.Recipient + "\x00" + m.Subject + "\x00" + m.Body))
}

// Sender delivers a message and returns the provider status code.
type Sender interface {
	Send(ctx context.Context, msg Message) (int, error)
}
