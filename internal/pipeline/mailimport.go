package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"oficina/internal"
	"oficina/internal/storage"
)

// Email statuses after fetch.
const (
	EmailFetched  = "fetched"
	EmailImported = "imported"
	EmailFailed   = "failed"
)

// MailImportService imports stored mailbox messages for one account.
type MailImportService struct {
	db        *storage.DB
	importer  *Importer
	accountID string
	exportDir string
	logger    *zap.Logger
}

// NewMailImportService builds the service. When exportDir is set each
// message's report is written there as .xlsx.
func NewMailImportService(db *storage.DB, importer *Importer, accountID, exportDir string, logger *zap.Logger) *MailImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailImportService{db: db, importer: importer, accountID: accountID, exportDir: exportDir, logger: logger}
}

type MailImportResult struct {
	EmailID    int
	Report     internal.Report
	ReportPath string
}

func (s *MailImportService) ImportByProviderMessageID(ctx context.Context, provider, messageID string) (MailImportResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return MailImportResult{}, err
	}
	return s.ImportEmail(ctx, email)
}

// ImportPending imports up to limit fetched messages. A message whose file
// cannot be imported is marked failed and the batch goes on.
func (s *MailImportService) ImportPending(ctx context.Context, limit int, provider string) (int, int, error) {
	pending, err := s.db.ListEmailsByStatus(EmailFetched, provider, limit)
	if err != nil {
		return 0, 0, err
	}
	imported, failed := 0, 0
	for _, email := range pending {
		if _, err := s.ImportEmail(ctx, email); err != nil {
			if errors.Is(err, ErrMissingAccount) {
				return imported, failed, err
			}
			failed++
			continue
		}
		imported++
	}
	return imported, failed, nil
}

func (s *MailImportService) ImportEmail(ctx context.Context, email internal.EmailRow) (MailImportResult, error) {
	log := s.logger.With(zap.Int("email_id", email.ID), zap.String("message_id", email.MessageID))

	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		log.Warn("raw message unreadable", zap.Error(err))
		if uerr := s.db.UpdateEmailStatus(email.ID, EmailFailed); uerr != nil {
			return MailImportResult{}, uerr
		}
		return MailImportResult{}, fmt.Errorf("read raw message: %w", err)
	}

	report, err := s.importer.Import(ctx, ImportRequest{
		AccountID:   s.accountID,
		FileName:    filepath.Base(email.RawRef),
		ContentType: "message/rfc822",
		Content:     raw,
	})
	if err != nil {
		log.Warn("email import failed", zap.Error(err))
		if uerr := s.db.UpdateEmailStatus(email.ID, EmailFailed); uerr != nil {
			return MailImportResult{}, uerr
		}
		return MailImportResult{}, err
	}

	res := MailImportResult{EmailID: email.ID, Report: report}
	if s.exportDir != "" {
		res.ReportPath = filepath.Join(s.exportDir, fmt.Sprintf("%d_%s.xlsx", email.ID, sanitizeMessageID(email.MessageID)))
		if err := ExportReportToXLSX(report, res.ReportPath); err != nil {
			return res, err
		}
	}
	if err := s.db.UpdateEmailStatus(email.ID, EmailImported); err != nil {
		return res, err
	}
	return res, nil
}

func sanitizeMessageID(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_", "@", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
