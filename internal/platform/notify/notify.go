// Package notify sends the reviewer-approval-batch-ready email via Resend.
// This is ambient "surrounding repo" messaging to an internal mailbox, not
// prospect-facing outreach.
package notify

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// Config configures the reviewer-notification sender. ReviewerAddress
// empty disables notification entirely.
type Config struct {
	APIKey          string
	FromAddress     string
	ReviewerAddress string
}

// Notifier sends reviewer-approval-batch emails.
type Notifier struct {
	client  *resend.Client
	from    string
	to      string
	enabled bool
}

// New builds a Notifier. When cfg.ReviewerAddress is empty, BatchReady
// becomes a no-op — matching SPEC_FULL.md §4.F's "disabled when no
// reviewer address is configured."
func New(cfg Config) *Notifier {
	if cfg.ReviewerAddress == "" {
		return &Notifier{enabled: false}
	}
	return &Notifier{
		client:  resend.NewClient(cfg.APIKey),
		from:    cfg.FromAddress,
		to:      cfg.ReviewerAddress,
		enabled: true,
	}
}

// BatchReady notifies the reviewer mailbox that a run produced qualified
// prospects awaiting approval.
func (n *Notifier) BatchReady(ctx context.Context, runID, accountName string, qualifiedCount int) error {
	if !n.enabled {
		return nil
	}

	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{n.to},
		Subject: fmt.Sprintf("%d prospects ready for review: %s", qualifiedCount, accountName),
		Html: fmt.Sprintf(
			"<p>Run <code>%s</code> for <strong>%s</strong> qualified %d prospect(s) and queued them for approval.</p>",
			runID, accountName, qualifiedCount,
		),
	}

	_, err := n.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	return nil
}
