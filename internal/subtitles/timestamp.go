package subtitles

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var msPerHour = decimal.NewFromInt(3_600_000)

// FormatTimestamp renders seconds as HH:MM:SS,mmm. Milliseconds are truncated,
// not rounded, and hours grow past 99 as needed. Negative and non-finite
// input renders as zero.
func FormatTimestamp(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	// NewFromFloat uses the shortest decimal form, so 3725.4567 is exact here.
	ms := decimal.NewFromFloat(seconds).Shift(3).Floor()
	hours := ms.Div(msPerHour).Floor()
	rest := ms.Sub(hours.Mul(msPerHour)).IntPart()
	return fmt.Sprintf("%02d:%02d:%02d,%03d",
		hours.IntPart(), rest/60_000, rest/1000%60, rest%1000)
}

// ParseTimestamp reads HH:MM:SS,mmm (or with a '.' separator) into seconds.
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	clock, frac, _ := strings.Cut(strings.ReplaceAll(value, ".", ","), ",")
	hms := strings.Split(clock, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.ParseUint(hms[0], 10, 32)
	minutes, errM := strconv.ParseUint(hms[1], 10, 8)
	secs, errS := strconv.ParseUint(hms[2], 10, 8)
	if errH != nil || errM != nil || errS != nil || minutes > 59 || secs > 59 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	total := decimal.NewFromInt(int64(hours*3600 + minutes*60 + secs))
	if frac != "" {
		if len(frac) > 3 {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		ms, err := strconv.ParseUint(frac, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		// "5" is half a second, not five milliseconds.
		total = total.Add(decimal.New(int64(ms), -int32(len(frac))))
	}
	f, _ := total.Float64()
	return f, nil
}
