package headercodec

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/illmade-knight/go-malhttp/pkg/mal"
)

// Times are handled as POSIX seconds plus a sub-second remainder. Calendar fields
// are derived from the seconds count only, so a leap second (ss == 60) on the
// wire is accepted and folds into the following second, as POSIX time does.

var (
	timestampPattern = regexp.MustCompile(`^(\d{4})-(\d{3})T(\d{2}):(\d{2}):(\d{2})\.(\d{3})$`)
	fineTimePattern  = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})T(\d{2}):(\d{2}):(\d{2})\.(\d{9})$`)
)

// EncodeTimestamp renders t as YYYY-DDDThh:mm:ss.fff in UTC. Years outside
// 0000-9999 have no four-digit form and are malformed.
func EncodeTimestamp(t mal.Time) (string, error) {
	sec, ms := splitUnit(int64(t), 1000)
	u := time.Unix(sec, 0).UTC()
	if u.Year() < 0 || u.Year() > 9999 {
		return "", malformed(HeaderTimestamp, strconv.FormatInt(int64(t), 10), fmt.Errorf("year %d does not fit four digits", u.Year()))
	}
	return fmt.Sprintf("%04d-%03dT%02d:%02d:%02d.%03d",
		u.Year(), u.YearDay(), u.Hour(), u.Minute(), u.Second(), ms), nil
}

// DecodeTimestamp is the inverse of EncodeTimestamp.
func DecodeTimestamp(s string) (mal.Time, error) {
	m := timestampPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, malformed(HeaderTimestamp, s, nil)
	}
	year, doy := atoi(m[1]), atoi(m[2])
	if doy < 1 || doy > daysInYear(year) {
		return 0, malformed(HeaderTimestamp, s, fmt.Errorf("day of year %d out of range", doy))
	}
	sec, err := clockSeconds(m[3], m[4], m[5])
	if err != nil {
		return 0, malformed(HeaderTimestamp, s, err)
	}
	day := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy-1)
	total := day.Unix() + sec
	return mal.Time(total*1000 + int64(atoi(m[6]))), nil
}

// EncodeFineTime renders t as YYYY-MM-DDThh:mm:ss.fffffffff in UTC.
func EncodeFineTime(t mal.FineTime) string {
	sec, ns := splitUnit(int64(t), int64(time.Second))
	u := time.Unix(sec, 0).UTC()
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d.%09d",
		u.Year(), int(u.Month()), u.Day(), u.Hour(), u.Minute(), u.Second(), ns)
}

// DecodeFineTime is the inverse of EncodeFineTime.
func DecodeFineTime(s string) (mal.FineTime, error) {
	const field = "finetime"
	m := fineTimePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, malformed(field, s, nil)
	}
	year, month, day := atoi(m[1]), atoi(m[2]), atoi(m[3])
	if month < 1 || month > 12 {
		return 0, malformed(field, s, fmt.Errorf("month %d out of range", month))
	}
	if day < 1 || day > daysInMonth(year, time.Month(month)) {
		return 0, malformed(field, s, fmt.Errorf("day %d out of range", day))
	}
	sec, err := clockSeconds(m[4], m[5], m[6])
	if err != nil {
		return 0, malformed(field, s, err)
	}
	total := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Unix() + sec
	ns, ok := fineNanos(total, int64(atoi(m[7])))
	if !ok {
		return 0, malformed(field, s, fmt.Errorf("%d seconds overflows nanosecond precision", total))
	}
	return mal.FineTime(ns), nil
}

// fineNanos combines seconds and a nanosecond remainder in [0, 1e9), reporting
// false when the result does not fit an int64.
func fineNanos(sec, ns int64) (int64, bool) {
	const perSecond = int64(time.Second)
	if sec >= 0 {
		if sec > (math.MaxInt64-ns)/perSecond {
			return 0, false
		}
		return sec*perSecond + ns, true
	}
	// sec*1e9 alone may underflow where sec*1e9+ns does not, so borrow a second.
	hi := sec + 1
	if hi < math.MinInt64/perSecond {
		return 0, false
	}
	base, rem := hi*perSecond, ns-perSecond
	if base < math.MinInt64-rem {
		return 0, false
	}
	return base + rem, true
}

// splitUnit splits v into whole seconds and a non-negative remainder.
func splitUnit(v, perSecond int64) (int64, int64) {
	sec := v / perSecond
	rem := v % perSecond
	if rem < 0 {
		sec--
		rem += perSecond
	}
	return sec, rem
}

func clockSeconds(hh, mm, ss string) (int64, error) {
	h, m, s := atoi(hh), atoi(mm), atoi(ss)
	if h > 23 || m > 59 || s > 60 {
		return 0, fmt.Errorf("time of day %s:%s:%s out of range", hh, mm, ss)
	}
	return int64(h*3600 + m*60 + s), nil
}

func daysInYear(year int) int {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay()
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// atoi is only used on strings the patterns have already restricted to digits.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
