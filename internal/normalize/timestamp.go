package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/xuri/excelize/v2"
)

var (
	zonedLayouts = []string{time.RFC3339Nano, time.RFC3339}

	localLayouts = []string{
		// day/month/year
		"2/1/2006 15:04:05",
		"2/1/2006 15:04",
		"2/1/2006",
		"2/1/06 15:04",
		"2/1/06",
		"2.1.2006 15:04",
		"2.1.2006",
		"2-1-2006 15:04",
		"2-1-2006",
		// year-month-day
		"2006-1-2T15:04:05.999999999",
		"2006-1-2T15:04:05",
		"2006-1-2T15:04",
		"2006-1-2 15:04:05",
		"2006-1-2 15:04",
		"2006-1-2",
	}

	reExcelSerial = regexp.MustCompile(`^\d{5}(\.\d+)?$`)
)

// Timestamp normalizes a date or date-time into RFC3339. Values without a zone
// are taken as UTC so the calendar date is preserved. Unparseable input yields
// nil.
func Timestamp(raw string) *string {
	s := Spaces(raw)
	if s == "" {
		return nil
	}

	t, ok := parseTimestamp(s)
	if !ok {
		return nil
	}
	out := t.Format(time.RFC3339)
	return &out
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}

	// spreadsheets read with raw cell values hand dates over as serial numbers
	if reExcelSerial.MatchString(s) {
		serial, err := strconv.ParseFloat(s, 64)
		if err == nil && serial >= 20000 && serial <= 80000 {
			if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return t.UTC(), true
			}
		}
	}

	// slash dates are day-first here, also when the time part needs the fallback
	if strings.ContainsAny(s, "0123456789") {
		if t, err := dateparse.ParseIn(s, time.UTC, dateparse.PreferMonthFirst(false)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
