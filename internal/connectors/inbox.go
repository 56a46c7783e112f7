package connectors

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"oficina/internal"
	"oficina/internal/storage"
)

// StatusFetched marks an inbox row whose raw message is on disk and waits
// for import.
const StatusFetched = "fetched"

// Inbox copies mailbox messages into the local inbox table. Raw bodies are
// kept under rawDir/<provider>/<sha256>.eml so a re-fetch never rewrites them.
type Inbox struct {
	db        *storage.DB
	rawDir    string
	connector MailConnector
	logger    *zap.Logger
}

type SyncResult struct {
	Fetched int
	Stored  int
	Known   int
	Failed  int
}

func NewInbox(db *storage.DB, rawDir string, connector MailConnector, logger *zap.Logger) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inbox{db: db, rawDir: rawDir, connector: connector, logger: logger}
}

// Sync fetches up to max messages from label. A message that cannot be
// written is counted as failed and the rest of the batch still lands.
func (b *Inbox) Sync(ctx context.Context, label string, max int) (SyncResult, error) {
	messages, err := b.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return SyncResult{}, fmt.Errorf("fetch %s: %w", label, err)
	}

	res := SyncResult{Fetched: len(messages)}
	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		known, err := b.db.GetEmailByProviderMessageID(msg.Provider, msg.MessageID)
		if err != nil {
			return res, err
		}
		if known != nil {
			res.Known++
			continue
		}

		row, err := b.keep(msg)
		if err != nil {
			res.Failed++
			b.logger.Warn("mail not stored",
				zap.String("provider", msg.Provider),
				zap.String("message_id", msg.MessageID),
				zap.Error(err),
			)
			continue
		}
		res.Stored++
		b.logger.Debug("mail stored",
			zap.String("provider", row.Provider),
			zap.String("message_id", row.MessageID),
			zap.String("raw", row.RawRef),
		)
	}
	return res, nil
}

func (b *Inbox) keep(msg internal.FetchedMailMessage) (internal.EmailRow, error) {
	if len(msg.Raw) == 0 {
		return internal.EmailRow{}, fmt.Errorf("empty message body")
	}
	sum := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(sum[:])

	dir := filepath.Join(b.rawDir, msg.Provider)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return internal.EmailRow{}, err
	}
	path := filepath.Join(dir, hash+".eml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, msg.Raw, 0o600); err != nil {
			return internal.EmailRow{}, err
		}
	}
	return b.db.UpsertEmail(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, path, StatusFetched)
}
