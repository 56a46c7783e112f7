package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"oficina/internal/config"
)

type Config struct {
	Tesseract    string
	Pdftoppm     string
	Lang         string
	DPI          int
	MaxPages     int
	MinTextChars int
}

func ConfigFrom(cfg config.Config) Config {
	return Config{
		Tesseract:    cfg.OCRTesseract,
		Pdftoppm:     cfg.OCRPdftoppm,
		Lang:         cfg.OCRLang,
		DPI:          cfg.OCRDPI,
		MaxPages:     cfg.OCRMaxPages,
		MinTextChars: cfg.OCRMinTextChars,
	}
}

// Extractor turns PDFs and page images into plain text. PDFs with a usable
// text layer are read directly; everything else goes through tesseract.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *zap.Logger
}

func NewExtractor(cfg Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Lang == "" {
		cfg.Lang = "por"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

func (e *Extractor) ExtractText(ctx context.Context, content []byte, mime string) (string, error) {
	start := time.Now()
	mime = strings.ToLower(strings.TrimSpace(mime))

	var (
		text   string
		method string
		err    error
	)
	switch {
	case mime == "application/pdf":
		text, method, err = e.extractPDF(ctx, content)
	case strings.HasPrefix(mime, "image/"):
		method = "image-ocr"
		text, err = e.extractImage(ctx, content, imageExt(mime))
	default:
		return "", fmt.Errorf("ocr: unsupported mime type %q", mime)
	}
	if err != nil {
		e.logger.Error("ocr extraction failed", zap.String("mime", mime), zap.Error(err))
		return "", err
	}

	e.logger.Debug("ocr extraction done",
		zap.String("mime", mime),
		zap.String("method", method),
		zap.Int("chars", len(text)),
		zap.Duration("duration", time.Since(start)),
	)
	return text, nil
}

func (e *Extractor) extractImage(ctx context.Context, content []byte, ext string) (string, error) {
	dir, err := os.MkdirTemp("", "oficina-ocr-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "page"+ext)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return "", err
	}
	return e.tesseract(ctx, path)
}

func (e *Extractor) tesseract(ctx context.Context, path string) (string, error) {
	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, path, "stdout", "-l", e.cfg.Lang)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return string(out), nil
}

func imageExt(mime string) string {
	switch mime {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/tiff":
		return ".tif"
	case "image/bmp":
		return ".bmp"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// TextExtractor is implemented by both the local extractor and the remote
// client.
type TextExtractor interface {
	ExtractText(ctx context.Context, content []byte, mime string) (string, error)
}

// New picks the OCR backend named by OCR_PROVIDER.
func New(cfg config.Config, logger *zap.Logger) (TextExtractor, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.OCRProvider)) {
	case "", "local":
		return NewExtractor(ConfigFrom(cfg), logger), nil
	case "remote":
		c, err := NewRemoteClient(cfg, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported OCR_PROVIDER: %s", cfg.OCRProvider)
	}
}
