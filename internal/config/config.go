package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// CompareFieldNames lists the order fields the upsert engine knows how to
// compare when deciding between update and skip.
var CompareFieldNames = []string{
	"issue_description",
	"service_details",
	"total_amount",
	"status",
	"opened_at",
	"closed_at",
	"parts_cost",
	"service_cost",
	"freight_cost",
	"guarantee_terms",
	"warranty_days",
	"notes",
	"technician",
}

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string

	LogLevel    string
	LogFormat   string
	MetricsAddr string

	CountryCode         string
	DefaultWarrantyDays int
	CompareFields       []string

	OCRProvider     string
	OCRTesseract    string
	OCRPdftoppm     string
	OCRLang         string
	OCRDPI          int
	OCRMaxPages     int
	OCRMinTextChars int
	OCRAPIBaseURL   string
	OCRAPIToken     string
	OCRRateLimitRPS int
	OCRTimeoutMs    int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailImportAccountID      string
	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
	MailListenerAutoExport   bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "console"),
		MetricsAddr: getEnv("METRICS_ADDR", ""),

		CountryCode:         getEnv("IMPORT_COUNTRY_CODE", "55"),
		DefaultWarrantyDays: getEnvInt("IMPORT_DEFAULT_WARRANTY_DAYS", 90),
		CompareFields:       getEnvList("IMPORT_COMPARE_FIELDS", []string{"issue_description", "service_details", "total_amount"}),

		OCRProvider:     getEnv("OCR_PROVIDER", "local"),
		OCRTesseract:    getEnv("OCR_TESSERACT_BIN", "tesseract"),
		OCRPdftoppm:     getEnv("OCR_PDFTOPPM_BIN", "pdftoppm"),
		OCRLang:         getEnv("OCR_LANG", "por"),
		OCRDPI:          getEnvInt("OCR_DPI", 300),
		OCRMaxPages:     getEnvInt("OCR_MAX_PAGES", 0),
		OCRMinTextChars: getEnvInt("OCR_MIN_TEXT_CHARS", 20),
		OCRAPIBaseURL:   getEnv("OCR_API_BASE_URL", ""),
		OCRAPIToken:     getEnv("OCR_API_TOKEN", ""),
		OCRRateLimitRPS: getEnvInt("OCR_RATE_LIMIT_RPS", 2),
		OCRTimeoutMs:    getEnvInt("OCR_TIMEOUT_MS", 60000),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailImportAccountID:      getEnv("MAIL_IMPORT_ACCOUNT_ID", ""),
		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "imap"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 60),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
		MailListenerAutoExport:   getEnvBool("MAIL_LISTENER_AUTO_EXPORT", true),
	}

	if err := validateCompareFields(cfg.CompareFields); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func validateCompareFields(fields []string) error {
	if len(fields) == 0 {
		return fmt.Errorf("IMPORT_COMPARE_FIELDS must name at least one field")
	}
	for _, f := range fields {
		known := false
		for _, name := range CompareFieldNames {
			if f == name {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("IMPORT_COMPARE_FIELDS: unknown field %q", f)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := strings.TrimSpace(getEnv(key, ""))
	if value == "" {
		return fallback
	}
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
