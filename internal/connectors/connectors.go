package connectors

import (
	"context"
	"fmt"
	"strings"

	"oficina/internal"
	"oficina/internal/config"
	gmailconnector "oficina/internal/connectors/gmail"
	imapconnector "oficina/internal/connectors/imap"
)

// MailConnector pulls raw messages from a mailbox that receives work-order
// exports.
type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}

func New(cfg config.Config, provider string) (MailConnector, error) {
	var (
		conn MailConnector
		err  error
	)
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		var c *gmailconnector.Connector
		if c, err = gmailconnector.NewConnector(cfg); err == nil {
			conn = c
		}
	case "imap":
		var c *imapconnector.Connector
		if c, err = imapconnector.NewConnector(cfg); err == nil {
			conn = c
		}
	default:
		err = fmt.Errorf("unsupported mail provider: %s", provider)
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}
