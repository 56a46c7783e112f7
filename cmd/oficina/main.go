package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"oficina/internal"
	"oficina/internal/config"
	"oficina/internal/connectors"
	"oficina/internal/listener"
	"oficina/internal/logging"
	"oficina/internal/ocr"
	"oficina/internal/pipeline"
	"oficina/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	must(err)
	defer func() { _ = logger.Sync() }()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	switch cmd {
	case "import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		account := fs.String("account", "", "account id that owns the imported records")
		file := fs.String("file", "", "file to import (.csv .xlsx .html .pdf image .eml)")
		contentType := fs.String("content-type", "", "declared content type, used when the extension is missing")
		output := fs.String("output", "", "write the report to this .xlsx or .json path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}

		content, err := os.ReadFile(*file)
		must(err)
		importer := newImporter(cfg, db, logger)
		report, err := importer.Import(ctx, pipeline.ImportRequest{
			AccountID:   *account,
			FileName:    filepath.Base(*file),
			ContentType: *contentType,
			Content:     content,
		})
		if errors.Is(err, pipeline.ErrMissingAccount) {
			must(fmt.Errorf("--account is required: %w", err))
		}
		must(err)

		printReport(report)
		if *output != "" {
			must(pipeline.ExportReport(report, *output))
			fmt.Printf("report written to %s\n", *output)
		}
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.MailListenerLabel, "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := connectors.New(cfg, *provider)
		must(err)
		inbox := connectors.NewInbox(db, cfg.RawMailDir, conn, logger)
		result, err := inbox.Sync(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d known=%d failed=%d\n",
			*provider, result.Fetched, result.Stored, result.Known, result.Failed)
	case "mail:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		account := fs.String("account", cfg.MailImportAccountID, "account id that owns the imported records")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", cfg.MailListenerProcessBatch, "batch size")
		out := fs.String("out", "", "directory for per-message .xlsx reports")
		_ = fs.Parse(os.Args[2:])

		svc := pipeline.NewMailImportService(db, newImporter(cfg, db, logger), *account, *out, logger)
		if strings.TrimSpace(*messageID) != "" {
			res, err := svc.ImportByProviderMessageID(ctx, *provider, *messageID)
			must(err)
			printReport(res.Report)
			return
		}
		imported, failed, err := svc.ImportPending(ctx, *batch, *provider)
		must(err)
		fmt.Printf("mail import done imported=%d failed=%d\n", imported, failed)
	case "mail:listen":
		s := listener.NewService(db, newImporter(cfg, db, logger), cfg, logger)
		must(s.Run(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

func newImporter(cfg config.Config, db *storage.DB, logger *zap.Logger) *pipeline.Importer {
	extractor, err := ocr.New(cfg, logger)
	must(err)
	importer, err := pipeline.NewImporter(db, extractor, pipeline.OptionsFrom(cfg), logger, nil)
	must(err)
	return importer
}

func printReport(report internal.Report) {
	counts := report.Counts()
	fmt.Printf("run=%s file=%s format=%s created=%d updated=%d skipped=%d failed=%d\n",
		report.RunID, report.FileName, report.Format,
		counts[internal.OutcomeCreated], counts[internal.OutcomeUpdated],
		counts[internal.OutcomeSkipped], counts[internal.OutcomeFailed])
	for _, e := range report.Entries {
		line := fmt.Sprintf("  %-8s %s", e.Outcome, e.ExternalOrderNumber)
		if len(e.Messages) > 0 {
			line += "  (" + strings.Join(e.Messages, "; ") + ")"
		}
		fmt.Println(line)
	}
}

func usage() {
	fmt.Println("usage: oficina <command>")
	fmt.Println("commands:")
	fmt.Println("  import --account=ACC --file=orders.csv [--content-type=...] [--output=report.xlsx|report.json]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:import --provider=gmail|imap [--account=ACC] [--messageId=...] [--batch=20] [--out=dir]")
	fmt.Println("  mail:listen")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
