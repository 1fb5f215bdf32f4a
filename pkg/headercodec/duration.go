package headercodec

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-malhttp/pkg/mal"
)

const durationField = "duration"

var (
	durationDatePattern = regexp.MustCompile(`^(-)?P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)D)?(T.*)?$`)
	durationTimePattern = regexp.MustCompile(`^T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)(?:\.(\d+))?S)?$`)
)

// epoch is the zeroed clock durations are measured against, so calendar
// components come out as they would on a calendar starting at 1970-01-01.
var epoch = time.Unix(0, 0).UTC()

// EncodeDuration renders d as [-]P[nY][nM][nD][T[nH][nM][n[.f]S]]. Zero is "P".
func EncodeDuration(d mal.Duration) (string, error) {
	v := float64(d)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", malformed(durationField, strconv.FormatFloat(v, 'g', -1, 64), nil)
	}
	if v == 0 {
		return "P", nil
	}

	// The shortest decimal form keeps the fraction free of binary noise and
	// lets DecodeDuration restore the exact same float.
	digits := strconv.FormatFloat(math.Abs(v), 'f', -1, 64)
	whole, frac, _ := strings.Cut(digits, ".")
	secs, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return "", malformed(durationField, digits, err)
	}

	t := time.Unix(secs, 0).UTC()
	years := t.Year() - epoch.Year()
	months := int(t.Month()) - int(epoch.Month())
	days := t.Day() - epoch.Day()
	hours, minutes, seconds := t.Clock()

	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
	}
	b.WriteByte('P')
	writeUnit(&b, years, 'Y')
	writeUnit(&b, months, 'M')
	writeUnit(&b, days, 'D')
	if hours == 0 && minutes == 0 && seconds == 0 && frac == "" {
		return b.String(), nil
	}
	b.WriteByte('T')
	writeUnit(&b, hours, 'H')
	writeUnit(&b, minutes, 'M')
	if seconds != 0 || frac != "" {
		b.WriteString(strconv.Itoa(seconds))
		if frac != "" {
			b.WriteByte('.')
			b.WriteString(frac)
		}
		b.WriteByte('S')
	}
	return b.String(), nil
}

func writeUnit(b *strings.Builder, n int, unit byte) {
	if n == 0 {
		return
	}
	b.WriteString(strconv.Itoa(n))
	b.WriteByte(unit)
}

// DecodeDuration is the inverse of EncodeDuration.
func DecodeDuration(s string) (mal.Duration, error) {
	dm := durationDatePattern.FindStringSubmatch(s)
	if dm == nil {
		return 0, malformed(durationField, s, nil)
	}
	negative := dm[1] == "-"

	years, err := durationUnit(s, dm[2])
	if err != nil {
		return 0, err
	}
	months, err := durationUnit(s, dm[3])
	if err != nil {
		return 0, err
	}
	days, err := durationUnit(s, dm[4])
	if err != nil {
		return 0, err
	}

	var hours, minutes, seconds int
	var frac string
	if section := dm[5]; section != "" {
		tm := durationTimePattern.FindStringSubmatch(section)
		if tm == nil || section == "T" {
			return 0, malformed(durationField, s, fmt.Errorf("bad time section %q", section))
		}
		if hours, err = durationUnit(s, tm[1]); err != nil {
			return 0, err
		}
		if minutes, err = durationUnit(s, tm[2]); err != nil {
			return 0, err
		}
		if seconds, err = durationUnit(s, tm[3]); err != nil {
			return 0, err
		}
		frac = tm[4]
	}

	total := epoch.AddDate(years, months, days).Unix() +
		int64(hours)*3600 + int64(minutes)*60 + int64(seconds)

	value := float64(total)
	if frac != "" {
		value, err = strconv.ParseFloat(strconv.FormatInt(total, 10)+"."+frac, 64)
		if err != nil {
			return 0, malformed(durationField, s, err)
		}
	}
	if negative {
		value = -value
	}
	return mal.Duration(value), nil
}

func durationUnit(s, digits string) (int, error) {
	if digits == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, malformed(durationField, s, err)
	}
	return n, nil
}
