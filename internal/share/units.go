package share

import (
	"regexp"
	"strconv"
	"strings"
)

// binaryMultipliers maps display units to byte multipliers. Unknown units
// fall back to 1.
var binaryMultipliers = map[string]float64{
	"B":  1,
	"KB": 1 << 10,
	"MB": 1 << 20,
	"GB": 1 << 30,
	"TB": 1 << 40,
}

var (
	speedPattern = regexp.MustCompile(`(?i)^([\d.]+)\s*([A-Z]*B)/s$`)
	sizePattern  = regexp.MustCompile(`(?i)^([\d.]+)\s*([KMGT]?B|bytes)$`)
)

func multiplier(unit string) float64 {
	if m, ok := binaryMultipliers[strings.ToUpper(unit)]; ok {
		return m
	}
	return 1
}

// ParseSpeed converts a transfer rate such as "1.5 MB/s" into bytes per
// second. ok is false when text is not a rate at all.
func ParseSpeed(text string) (bytesPerSecond float64, ok bool) {
	m := speedPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return n * multiplier(m[2]), true
}

// ParseSize converts a listing size cell such as "13 MB" or "54 bytes" into a
// byte count.
func ParseSize(text string) (int64, bool) {
	m := sizePattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return int64(n * multiplier(m[2])), true
}
