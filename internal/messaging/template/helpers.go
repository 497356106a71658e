package template

import (
	"fmt"
	"strings"
	texttemplate "text/template"
	"time"
	"unicode"
)

var currencySymbols = map[string]string{
	"GBP": "£",
	"USD": "$",
	"EUR": "€",
	"AUD": "A$",
	"CAD": "C$",
	"JPY": "¥",
}

func defaultHelpers() texttemplate.FuncMap {
	return texttemplate.FuncMap{
		"formatCurrency": formatCurrency,
		"formatDate":     formatDate,
		"upper":          strings.ToUpper,
		"lower":          strings.ToLower,
		"capitalize":     capitalize,
	}
}

// formatCurrency renders integer minor units as a symbol-prefixed two-decimal
// amount, e.g. 4999 + "GBP" -> "£49.99". Unknown currency codes fall back to
// a "CODE " prefix.
func formatCurrency(amount any, currencyCode string) string {
	minor, ok := toInt64(amount)
	if !ok {
		return fmt.Sprintf("%v", amount)
	}

	code := strings.ToUpper(currencyCode)
	prefix, known := currencySymbols[code]
	if !known {
		prefix = code + " "
	}

	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%s%d.%02d", sign, prefix, minor/100, minor%100)
}

// formatDate formats a time value using a named preset: short, long or time.
// Accepts time.Time or an RFC 3339 string.
func formatDate(value any, preset string) string {
	t, ok := toTime(value)
	if !ok {
		return fmt.Sprintf("%v", value)
	}

	switch preset {
	case "long":
		return t.Format("Monday, 2 January 2006")
	case "time":
		return t.Format("15:04")
	default: // short
		return t.Format("2 Jan 2006")
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float32:
		return int64(n), true
	case float64:
		// JSON-decoded variable bags carry numbers as float64.
		return int64(n), true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}
