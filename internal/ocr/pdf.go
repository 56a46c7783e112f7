package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	pdf "github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

func (e *Extractor) extractPDF(ctx context.Context, content []byte) (string, string, error) {
	text, err := pdfTextLayer(content)
	if err == nil && len(strings.TrimSpace(text)) >= e.cfg.MinTextChars {
		return text, "pdf-text", nil
	}
	if err != nil {
		e.logger.Debug("pdf text layer unreadable, rasterizing", zap.Error(err))
	}

	text, err = e.pdfToOCR(ctx, content)
	return text, "pdf-ocr", err
}

// pdfTextLayer reads embedded text row by row so "Label: value" lines keep
// their shape.
func pdfTextLayer(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			parts := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			line := strings.TrimSpace(strings.Join(parts, ""))
			if line != "" {
				b.WriteString(line)
				b.WriteByte('\n')
			}
		}
	}
	return b.String(), nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, content []byte) (string, error) {
	dir, err := os.MkdirTemp("", "oficina-pdf-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(in, content, 0o600); err != nil {
		return "", err
	}

	prefix := filepath.Join(dir, "page")
	// pdftoppm -r 300 -png <in.pdf> <dir/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", in, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	pages, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(pages)
	if e.cfg.MaxPages > 0 && len(pages) > e.cfg.MaxPages {
		pages = pages[:e.cfg.MaxPages]
	}
	if len(pages) == 0 {
		return "", errors.New("pdftoppm produced no pages")
	}

	var b strings.Builder
	for _, page := range pages {
		txt, err := e.tesseract(ctx, page)
		if err != nil {
			return "", err
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(txt)
	}
	return b.String(), nil
}
