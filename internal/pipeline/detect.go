package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoExtractableText = errors.New("document has no extractable text")
	ErrMissingAccount    = errors.New("missing caller credentials: account id is required")
	ErrEmptyFile         = errors.New("uploaded file is empty")
)

type Format string

const (
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
	FormatHTML  Format = "html"
	FormatPDF   Format = "pdf"
	FormatImage Format = "image"
	FormatEmail Format = "email"
)

var extFormats = map[string]Format{
	".csv":  FormatCSV,
	".tsv":  FormatCSV,
	".txt":  FormatCSV,
	".xlsx": FormatXLSX,
	".xlsm": FormatXLSX,
	".html": FormatHTML,
	".htm":  FormatHTML,
	".pdf":  FormatPDF,
	".png":  FormatImage,
	".jpg":  FormatImage,
	".jpeg": FormatImage,
	".tif":  FormatImage,
	".tiff": FormatImage,
	".bmp":  FormatImage,
	".webp": FormatImage,
	".eml":  FormatEmail,
}

var mimeFormats = map[string]Format{
	"text/csv":                  FormatCSV,
	"text/tab-separated-values": FormatCSV,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": FormatXLSX,
	"text/html":       FormatHTML,
	"application/pdf": FormatPDF,
	"message/rfc822":  FormatEmail,
}

var extMIME = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".bmp":  "image/bmp",
	".webp": "image/webp",
}

// DetectFormat picks the adapter format from the file extension, then the
// declared content type, then the bytes themselves. The returned MIME type is
// what the OCR collaborator receives for documents.
func DetectFormat(fileName, contentType string, content []byte) (Format, string, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(fileName)))
	if f, ok := extFormats[ext]; ok {
		mime := extMIME[ext]
		if f == FormatImage || f == FormatPDF {
			// trust the bytes over the name for what we hand to OCR
			if sniffed := baseMIME(mimetype.Detect(content).String()); formatForMIME(sniffed) == f {
				mime = sniffed
			}
		}
		return f, mime, nil
	}

	if ct := baseMIME(contentType); ct != "" {
		if f := formatForMIME(ct); f != "" {
			return f, ct, nil
		}
	}

	sniffed := mimetype.Detect(content)
	if f := formatForMIME(baseMIME(sniffed.String())); f != "" {
		return f, baseMIME(sniffed.String()), nil
	}
	return "", "", fmt.Errorf("%w: name=%q content-type=%q detected=%q", ErrUnsupportedFormat, fileName, contentType, sniffed.String())
}

func formatForMIME(mime string) Format {
	if f, ok := mimeFormats[mime]; ok {
		return f
	}
	if strings.HasPrefix(mime, "image/") {
		return FormatImage
	}
	return ""
}

func baseMIME(v string) string {
	v = strings.SplitN(v, ";", 2)[0]
	return strings.ToLower(strings.TrimSpace(v))
}
