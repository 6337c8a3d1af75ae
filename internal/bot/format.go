package bot

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// bytesPerGB is the one quota unit factor used everywhere: binary
// gigabytes (1024³), matching the panel's own accounting.
const bytesPerGB = int64(1) << 30

// GigabytesToBytes converts a quota input to bytes. Zero or negative
// means unlimited and maps to 0.
func GigabytesToBytes(gb float64) int64 {
	if gb <= 0 {
		return 0
	}
	return int64(math.Round(gb * float64(bytesPerGB)))
}

// BytesToGigabytes converts a byte count back to gigabytes.
func BytesToGigabytes(bytes int64) float64 {
	return float64(bytes) / float64(bytesPerGB)
}

// FormatTraffic renders a byte count for display.
func FormatTraffic(bytes int64) string {
	return fmt.Sprintf("%.2f GB 📊", BytesToGigabytes(bytes))
}

// ExpireFromDays converts a day count to an absolute unix timestamp.
// Zero days means never and maps to 0.
func ExpireFromDays(days int, now time.Time) int64 {
	if days <= 0 {
		return 0
	}
	return now.Unix() + int64(days)*86400
}

// FormatExpire renders an expiry timestamp as days remaining.
func FormatExpire(expire int64, now time.Time) string {
	if expire == 0 {
		return "بدون انقضا 🕒"
	}
	daysLeft := int(math.Floor(float64(expire-now.Unix()) / 86400))
	if daysLeft < 0 {
		return "منقضی شده ⛔"
	}
	return fmt.Sprintf("%d روز 📅", daysLeft)
}

// ParseQuotaGB parses a quota input in gigabytes. Rejects negatives and
// non-numbers; 0 is valid and means unlimited. ParseFloat also accepts
// "NaN" and "Inf" spellings, which make no sense as a quota.
func ParseQuotaGB(text string) (float64, error) {
	gb, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || gb < 0 || math.IsNaN(gb) || math.IsInf(gb, 0) {
		return 0, fmt.Errorf("invalid quota %q", text)
	}
	return gb, nil
}

// ParseDays parses an expiry input in days. Rejects negatives and
// non-numbers; 0 is valid and means never.
func ParseDays(text string) (int, error) {
	days, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || days < 0 {
		return 0, fmt.Errorf("invalid day count %q", text)
	}
	return days, nil
}

// ValidatePanelURL accepts only http(s) base URLs with no path segment
// beyond the host.
func ValidatePanelURL(raw string) bool {
	var rest string
	switch {
	case strings.HasPrefix(raw, "https://"):
		rest = strings.TrimPrefix(raw, "https://")
	case strings.HasPrefix(raw, "http://"):
		rest = strings.TrimPrefix(raw, "http://")
	default:
		return false
	}
	if rest == "" {
		return false
	}
	host, path, found := strings.Cut(rest, "/")
	if host == "" {
		return false
	}
	return !found || path == ""
}
