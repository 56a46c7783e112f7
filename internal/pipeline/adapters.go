package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"oficina/internal"
	"oficina/internal/normalize"
)

// Adapter turns one uploaded file into work-order records.
type Adapter interface {
	Records(ctx context.Context, content []byte) ([]internal.ImportRecord, error)
}

// TextExtractor is the OCR collaborator used for scanned documents.
type TextExtractor interface {
	ExtractText(ctx context.Context, content []byte, mime string) (string, error)
}

type adapterFactory func(format Format, mime string) (Adapter, error)

func (i *Importer) adapterFor(format Format, mime string) (Adapter, error) {
	switch format {
	case FormatCSV:
		return csvAdapter{}, nil
	case FormatXLSX:
		return xlsxAdapter{}, nil
	case FormatHTML:
		return htmlAdapter{}, nil
	case FormatPDF, FormatImage:
		if i.ocr == nil {
			return nil, fmt.Errorf("%w: no OCR backend configured for %s", ErrUnsupportedFormat, format)
		}
		return documentAdapter{ocr: i.ocr, mime: mime}, nil
	case FormatEmail:
		return emailAdapter{adapters: i.adapterFor, logger: i.logger}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// tabularRecords uses the first row as headers; every following non-blank
// row becomes one record keyed by header text.
func tabularRecords(rows [][]string) []internal.ImportRecord {
	if len(rows) < 2 {
		return nil
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = normalize.Spaces(h)
	}

	var out []internal.ImportRecord
	for i, row := range rows[1:] {
		values := map[string]string{}
		for c, cell := range row {
			if c >= len(headers) || headers[c] == "" {
				continue
			}
			if v := normalize.Spaces(cell); v != "" {
				values[headers[c]] = v
			}
		}
		if len(values) == 0 {
			continue
		}
		out = append(out, internal.ImportRecord{Line: i + 2, Values: values})
	}
	return out
}

type csvAdapter struct{}

func (csvAdapter) Records(_ context.Context, content []byte) ([]internal.ImportRecord, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = sniffDelimiter(content)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, row)
	}
	return tabularRecords(rows), nil
}

// sniffDelimiter picks the most frequent of ; , and tab in the header line.
func sniffDelimiter(content []byte) rune {
	header := content
	if idx := bytes.IndexByte(content, '\n'); idx >= 0 {
		header = content[:idx]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{';', ',', '\t'} {
		if n := bytes.Count(header, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

type xlsxAdapter struct{}

func (xlsxAdapter) Records(_ context.Context, content []byte) ([]internal.ImportRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx has no sheets")
	}
	// Raw values keep dates as serial numbers and amounts unformatted.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return tabularRecords(rows), nil
}

type htmlAdapter struct{}

func (htmlAdapter) Records(_ context.Context, content []byte) ([]internal.ImportRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var rows [][]string
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		trs := table.Find("tr")
		if trs.Length() < 2 {
			return true
		}
		trs.Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, cell.Text())
			})
			rows = append(rows, cells)
		})
		return false
	})
	if len(rows) == 0 {
		return nil, errors.New("html has no table with data rows")
	}
	return tabularRecords(rows), nil
}

type documentAdapter struct {
	ocr  TextExtractor
	mime string
}

// Records yields exactly one record per document.
func (a documentAdapter) Records(ctx context.Context, content []byte) ([]internal.ImportRecord, error) {
	text, err := a.ocr.ExtractText(ctx, content, a.mime)
	if err != nil {
		return nil, fmt.Errorf("%w: ocr: %v", ErrNoExtractableText, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoExtractableText
	}
	return []internal.ImportRecord{ExtractFields(text)}, nil
}

type emailAdapter struct {
	adapters adapterFactory
	logger   *zap.Logger
}

// Records imports every attachment the importer understands. A message
// without usable attachments is read as a single "Label: value" document.
func (a emailAdapter) Records(ctx context.Context, content []byte) ([]internal.ImportRecord, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse email: %w", err)
	}

	var out []internal.ImportRecord
	for _, att := range env.Attachments {
		name := strings.TrimSpace(att.FileName)
		format, mime, err := DetectFormat(name, att.ContentType, att.Content)
		if err != nil || format == FormatEmail {
			a.logger.Debug("skipping attachment", zap.String("attachment", name), zap.String("content_type", att.ContentType))
			continue
		}
		adapter, err := a.adapters(format, mime)
		if err != nil {
			return nil, fmt.Errorf("attachment %q: %w", name, err)
		}
		records, err := adapter.Records(ctx, att.Content)
		if err != nil {
			return nil, fmt.Errorf("attachment %q: %w", name, err)
		}
		for j := range records {
			records[j].Warnings = append(records[j].Warnings, "from attachment "+name)
		}
		out = append(out, records...)
	}
	if len(out) > 0 {
		return out, nil
	}

	body := env.Text
	if strings.TrimSpace(body) == "" && env.HTML != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(env.HTML)); err == nil {
			body = doc.Text()
		}
	}
	rec := ExtractFields(body)
	if _, ok := rec.Values[internal.FieldOrderNumber]; !ok {
		return nil, fmt.Errorf("%w: email %q has no importable attachment or order text", ErrNoExtractableText, env.GetHeader("Subject"))
	}
	return []internal.ImportRecord{rec}, nil
}
