package listener

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"oficina/internal/config"
	"oficina/internal/connectors"
	"oficina/internal/pipeline"
	"oficina/internal/storage"
)

// Service polls the work-order mailbox: fetch new messages, import the
// pending ones, repeat every MAIL_LISTENER_INTERVAL_SEC.
type Service struct {
	db       *storage.DB
	importer *pipeline.Importer
	cfg      config.Config
	logger   *zap.Logger

	connector connectors.MailConnector
}

func NewService(db *storage.DB, importer *pipeline.Importer, cfg config.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, importer: importer, cfg: cfg, logger: logger.Named("listener")}
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.cfg.Require("MAIL_IMPORT_ACCOUNT_ID", s.cfg.MailImportAccountID); err != nil {
		return err
	}
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	for {
		if err := s.runCycle(ctx); err != nil {
			s.logger.Error("listener cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	if s.connector == nil {
		conn, err := connectors.New(s.cfg, provider)
		if err != nil {
			return err
		}
		s.connector = conn
	}

	inbox := connectors.NewInbox(s.db, s.cfg.RawMailDir, s.connector, s.logger)
	synced, err := inbox.Sync(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return err
	}

	exportDir := ""
	if s.cfg.MailListenerAutoExport {
		exportDir = filepath.Join(s.cfg.OutputDir, "listener")
	}
	mail := pipeline.NewMailImportService(s.db, s.importer, s.cfg.MailImportAccountID, exportDir, s.logger)
	imported, failed, err := mail.ImportPending(ctx, s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return err
	}

	s.logger.Info("listener cycle done",
		zap.String("provider", provider),
		zap.Int("fetched", synced.Fetched),
		zap.Int("stored", synced.Stored),
		zap.Int("known", synced.Known),
		zap.Int("imported", imported),
		zap.Int("failed", failed),
	)
	return nil
}
