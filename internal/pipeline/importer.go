package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"oficina/internal"
	"oficina/internal/config"
	"oficina/internal/metrics"
)

type Options struct {
	CountryCode         string
	DefaultWarrantyDays int
	CompareFields       []string
}

func OptionsFrom(cfg config.Config) Options {
	return Options{
		CountryCode:         cfg.CountryCode,
		DefaultWarrantyDays: cfg.DefaultWarrantyDays,
		CompareFields:       cfg.CompareFields,
	}
}

type ImportRequest struct {
	AccountID   string `validate:"required"`
	FileName    string
	ContentType string
	Content     []byte `validate:"required,min=1"`
}

// Importer runs one uploaded file through adapter, normalizers, resolver and
// upsert engine. Records are handled one at a time in input order.
type Importer struct {
	store    Store
	ocr      TextExtractor
	resolver *Resolver
	upserter *UpsertEngine
	opts     Options
	logger   *zap.Logger
	metrics  *metrics.Registry
	validate *validator.Validate
}

// NewImporter wires the import core. ocr may be nil when only tabular files
// are expected; m may be nil to run without metrics.
func NewImporter(store Store, ocr TextExtractor, opts Options, logger *zap.Logger, m *metrics.Registry) (*Importer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultWarrantyDays <= 0 {
		opts.DefaultWarrantyDays = 90
	}
	if len(opts.CompareFields) == 0 {
		opts.CompareFields = []string{"issue_description", "service_details", "total_amount"}
	}
	upserter, err := NewUpsertEngine(store, opts.CompareFields)
	if err != nil {
		return nil, err
	}
	return &Importer{
		store:    store,
		ocr:      ocr,
		resolver: NewResolver(store, logger),
		upserter: upserter,
		opts:     opts,
		logger:   logger,
		metrics:  m,
		validate: validator.New(),
	}, nil
}

// Import returns either a report covering every record in the file or a
// single error when the file could not be read at all.
func (i *Importer) Import(ctx context.Context, req ImportRequest) (internal.Report, error) {
	start := time.Now()
	req.AccountID = strings.TrimSpace(req.AccountID)
	if err := i.validateRequest(req); err != nil {
		i.metrics.ObserveRun("unknown", "fatal", time.Since(start))
		return internal.Report{}, err
	}

	report := internal.Report{
		RunID:     uuid.NewString(),
		AccountID: req.AccountID,
		FileName:  req.FileName,
		StartedAt: start.UTC(),
	}
	log := i.logger.With(
		zap.String("run_id", report.RunID),
		zap.String("account_id", req.AccountID),
		zap.String("file", req.FileName),
	)

	format, mime, err := DetectFormat(req.FileName, req.ContentType, req.Content)
	if err != nil {
		log.Error("import rejected", zap.Error(err))
		i.metrics.ObserveRun("unknown", "fatal", time.Since(start))
		return internal.Report{}, err
	}
	report.Format = string(format)

	adapter, err := i.adapterFor(format, mime)
	if err != nil {
		i.metrics.ObserveRun(report.Format, "fatal", time.Since(start))
		return internal.Report{}, err
	}
	records, err := adapter.Records(ctx, req.Content)
	if err != nil {
		log.Error("file could not be read", zap.String("format", report.Format), zap.Error(err))
		i.metrics.ObserveRun(report.Format, "fatal", time.Since(start))
		return internal.Report{}, fmt.Errorf("read %s file: %w", format, err)
	}
	log.Info("import started", zap.String("format", report.Format), zap.Int("records", len(records)))

	entries := make([]internal.ReportEntry, 0, len(records))
	for _, rec := range records {
		entry := i.importRecord(ctx, log, req.AccountID, rec)
		i.metrics.ObserveRecord(string(entry.Outcome))
		entries = append(entries, entry)
	}
	report.Entries = entries
	report.FinishedAt = time.Now().UTC()

	counts := report.Counts()
	log.Info("import finished",
		zap.Int("created", counts[internal.OutcomeCreated]),
		zap.Int("updated", counts[internal.OutcomeUpdated]),
		zap.Int("skipped", counts[internal.OutcomeSkipped]),
		zap.Int("failed", counts[internal.OutcomeFailed]),
		zap.Duration("duration", report.FinishedAt.Sub(start)),
	)
	i.metrics.ObserveRun(report.Format, "ok", time.Since(start))
	return report, nil
}

func (i *Importer) validateRequest(req ImportRequest) error {
	err := i.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch fe.Field() {
			case "AccountID":
				return ErrMissingAccount
			case "Content":
				return ErrEmptyFile
			}
		}
	}
	return err
}

// importRecord is the failure boundary for one record: errors and panics
// become a failed entry and never reach the caller.
func (i *Importer) importRecord(ctx context.Context, log *zap.Logger, accountID string, rec internal.ImportRecord) (entry internal.ReportEntry) {
	values := canonicalValues(rec.Values)
	entry.ExternalOrderNumber = orderNumber(values)
	entry.Messages = append([]string{}, rec.Warnings...)

	if entry.ExternalOrderNumber == "" {
		entry.Outcome = internal.OutcomeFailed
		entry.Messages = append(entry.Messages, fmt.Sprintf("line %d: missing order number", rec.Line))
		log.Warn("record failed", zap.Int("line", rec.Line), zap.String("reason", "missing order number"))
		return entry
	}

	defer func() {
		if p := recover(); p != nil {
			entry.Outcome = internal.OutcomeFailed
			entry.Messages = append(entry.Messages, fmt.Sprintf("unexpected error: %v", p))
			log.Error("record panicked", zap.Int("line", rec.Line), zap.String("order", entry.ExternalOrderNumber), zap.Any("panic", p))
		}
	}()

	outcome, messages, err := i.processRecord(ctx, accountID, rec, values)
	entry.Messages = append(entry.Messages, messages...)
	if err != nil {
		entry.Outcome = internal.OutcomeFailed
		entry.Messages = append(entry.Messages, err.Error())
		log.Warn("record failed", zap.Int("line", rec.Line), zap.String("order", entry.ExternalOrderNumber), zap.Error(err))
		return entry
	}
	entry.Outcome = outcome
	log.Debug("record imported", zap.Int("line", rec.Line), zap.String("order", entry.ExternalOrderNumber), zap.String("outcome", string(outcome)))
	return entry
}

func (i *Importer) processRecord(ctx context.Context, accountID string, rec internal.ImportRecord, values map[string]string) (internal.Outcome, []string, error) {
	fields, err := i.normalizeRecord(rec, values)
	if err != nil {
		return internal.OutcomeFailed, nil, err
	}

	var warnings []string
	customer, err := i.resolver.ResolveCustomer(ctx, accountID, fields.Customer)
	if err != nil {
		return internal.OutcomeFailed, warnings, err
	}
	if customer.Warning != "" {
		warnings = append(warnings, customer.Warning)
	}

	device, err := i.resolver.ResolveDevice(ctx, accountID, customer.ID, fields.Device)
	if err != nil {
		return internal.OutcomeFailed, warnings, err
	}
	if device.Warning != "" {
		warnings = append(warnings, device.Warning)
	}

	supplier := i.resolver.ResolveSupplier(ctx, accountID, fields.Supplier)
	if supplier.Warning != "" {
		warnings = append(warnings, supplier.Warning)
	}

	outcome, messages, err := i.upserter.Upsert(ctx, accountID, fields, Relations{
		CustomerID: customer.ID,
		DeviceID:   device.ID,
		SupplierID: supplier.ID,
	})
	return outcome, append(warnings, messages...), err
}
