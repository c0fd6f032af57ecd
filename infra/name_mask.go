package infra

import (
	"fmt"
	"strings"
	"time"
)

// FormatMasks resolves the date placeholders of an object key and appends the
// extension derived from the MIME subtype:
//
//	{DD}    two-digit day
//	{MM}    two-digit month
//	{YY}    two-digit year
//	{YYYY}  four-digit year
//	{MONTH} full month name
//
// "uploads/{YYYY}/{MM}/{DD}/report" with "application/pdf" on 2024-03-07
// becomes "uploads/2024/03/07/report.pdf".
func FormatMasks(text, mimeType string, date time.Time) string {
	replacer := strings.NewReplacer(
		"{DD}", fmt.Sprintf("%02d", date.Day()),
		"{MM}", fmt.Sprintf("%02d", int(date.Month())),
		"{YY}", fmt.Sprintf("%02d", date.Year()%100),
		"{YYYY}", fmt.Sprintf("%04d", date.Year()),
		"{MONTH}", date.Month().String(),
	)
	return replacer.Replace(text) + "." + extensionFor(mimeType)
}

func extensionFor(mimeType string) string {
	subtype := mimeType
	if idx := strings.LastIndex(mimeType, "/"); idx >= 0 {
		subtype = mimeType[idx+1:]
	}
	// "text/plain; charset=utf-8"
	if idx := strings.Index(subtype, ";"); idx >= 0 {
		subtype = subtype[:idx]
	}
	return strings.TrimSpace(subtype)
}
