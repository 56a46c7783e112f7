package listener

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"oficina/internal"
	"oficina/internal/config"
	"oficina/internal/pipeline"
	"oficina/internal/storage"
)

type fakeConnector struct {
	messages []internal.FetchedMailMessage
	calls    int
}

func (f *fakeConnector) FetchInbox(_ context.Context, _ string, _ int) ([]internal.FetchedMailMessage, error) {
	f.calls++
	out := f.messages
	f.messages = nil
	return out, nil
}

const orderMail = "From: loja@example.com\r\n" +
	"Subject: OS 501\r\n" +
	"Message-ID: <501@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"OS: 501\r\n" +
	"Cliente: Joana\r\n" +
	"Marca: Xiaomi\r\n" +
	"Modelo: Redmi 9\r\n" +
	"Total: 210,00\r\n"

func TestRunCycleFetchesAndImports(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	defer db.Close()

	cfg := config.Config{
		RawMailDir:               filepath.Join(tmp, "raw"),
		OutputDir:                filepath.Join(tmp, "out"),
		MailImportAccountID:      "acc-mail",
		MailListenerProvider:     "imap",
		MailListenerLabel:        "INBOX",
		MailListenerFetchMax:     10,
		MailListenerProcessBatch: 10,
		MailListenerAutoExport:   true,
	}
	imp, err := pipeline.NewImporter(db, nil, pipeline.OptionsFrom(cfg), zap.NewNop(), nil)
	require.NoError(t, err)

	conn := &fakeConnector{messages: []internal.FetchedMailMessage{{
		Provider:   "imap",
		MessageID:  "<501@example.com>",
		Subject:    "OS 501",
		ReceivedAt: "2024-03-01T10:00:00Z",
		Raw:        []byte(orderMail),
	}}}
	svc := NewService(db, imp, cfg, zap.NewNop())
	svc.connector = conn

	require.NoError(t, svc.runCycle(context.Background()))
	// second cycle finds nothing new and must not re-import
	require.NoError(t, svc.runCycle(context.Background()))
	assert.Equal(t, 2, conn.calls)

	row, err := db.MustEmailByProviderMessageID("imap", "<501@example.com>")
	require.NoError(t, err)
	assert.Equal(t, pipeline.EmailImported, row.Status)

	n, err := db.CountOrders(context.Background(), "acc-mail")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := os.ReadDir(filepath.Join(tmp, "out", "listener"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunRequiresAccount(t *testing.T) {
	svc := NewService(nil, nil, config.Config{}, nil)
	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAIL_IMPORT_ACCOUNT_ID")
}
