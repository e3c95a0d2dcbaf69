package oa

import (
	"math"
	"time"
)

const (
	msPerDay = 86_400_000

	// Exclusive limits of a valid OLE date: 0100-01-01 and 10000-01-01.
	minDate = -657435.0
	maxDate = 2958466.0

	// Seconds between 1601-01-01 and 1970-01-01.
	fileTimeEpochDelta     = 11_644_473_600
	fileTimeUnitsPerSecond = 10_000_000
)

// dateBase is day zero of the OLE calendar.
var dateBase = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// DateToTime converts an OLE automation date to UTC. The integral part
// counts days from 1899-12-30; the fractional part is the time of day and is
// always measured forward, also for negative dates. Precision is one
// millisecond.
func DateToTime(d float64) (time.Time, bool) {
	if math.IsNaN(d) || d <= minDate || d >= maxDate {
		return time.Time{}, false
	}
	half := 0.5
	if d < 0 {
		half = -0.5
	}
	ms := int64(d*msPerDay + half)
	if ms < 0 {
		ms -= (ms % msPerDay) * 2
	}
	days := ms / msPerDay
	rem := ms % msPerDay
	if rem < 0 {
		days--
		rem += msPerDay
	}
	return dateBase.AddDate(0, 0, int(days)).Add(time.Duration(rem) * time.Millisecond), true
}

// TimeToDate converts t to an OLE automation date. Sub-millisecond
// precision is truncated. Times outside years 100..9999 are rejected.
func TimeToDate(t time.Time) (float64, bool) {
	t = t.UTC()
	if y := t.Year(); y < 100 || y > 9999 {
		return 0, false
	}
	ms := t.UnixMilli() - dateBase.UnixMilli()
	if ms < 0 {
		if frac := ms % msPerDay; frac != 0 {
			ms -= (msPerDay + frac) * 2
		}
	}
	return float64(ms) / msPerDay, true
}

// FileTimeToTime converts 100ns intervals since 1601-01-01 UTC.
func FileTimeToTime(ft uint64) time.Time {
	secs := int64(ft/fileTimeUnitsPerSecond) - fileTimeEpochDelta
	nsec := int64(ft%fileTimeUnitsPerSecond) * 100
	return time.Unix(secs, nsec).UTC()
}

// TimeToFileTime is the inverse of FileTimeToTime. Times before 1601 or
// beyond the 64-bit range are rejected.
func TimeToFileTime(t time.Time) (uint64, bool) {
	secs := t.Unix() + fileTimeEpochDelta
	if secs < 0 || uint64(secs) > math.MaxUint64/fileTimeUnitsPerSecond-1 {
		return 0, false
	}
	return uint64(secs)*fileTimeUnitsPerSecond + uint64(t.Nanosecond()/100), true
}
