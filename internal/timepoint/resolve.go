package timepoint

import (
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// transitionWindow bounds how far from a wall time the zone offsets that
// could apply to it are sampled. Zone offsets never exceed a day.
const transitionWindow = 24 * 60 * 60

func wallSeconds(d DateComplete, t TimeComplete) int64 {
	return time.Date(d.Year, time.Month(d.Month), d.Day, t.Hour, t.Minute, t.Second, 0, time.UTC).Unix()
}

func offsetAt(unix int64, loc *time.Location) int {
	_, off := time.Unix(unix, 0).In(loc).Zone()
	return off
}

// MakeZonedTime returns the instant at which clocks in loc read the local
// date d and time t. If d is not a valid calendar date it returns
// ErrInvalidDate. If the local time does not exist, as during a DST
// spring-forward, it returns ErrNonexistentLocalTime. If the local time
// is ambiguous, as during a DST fall-back, the earlier instant is chosen
// and a warning is logged.
func MakeZonedTime(d DateComplete, t TimeComplete, loc *time.Location) (time.Time, error) {
	if !d.Valid() {
		return time.Time{}, ErrInvalidDate
	}
	wall := wallSeconds(d, t)

	var candidates []int64
	seen := make(map[int]bool, 3)
	for _, probe := range []int64{wall - transitionWindow, wall, wall + transitionWindow} {
		off := offsetAt(probe, loc)
		if seen[off] {
			continue
		}
		seen[off] = true
		u := wall - int64(off)
		if offsetAt(u, loc) == off {
			candidates = append(candidates, u)
		}
	}

	switch len(candidates) {
	case 0:
		return time.Time{}, ErrNonexistentLocalTime
	case 1:
		return time.Unix(candidates[0], 0).UTC(), nil
	}
	earliest := candidates[0]
	for _, u := range candidates[1:] {
		if u < earliest {
			earliest = u
		}
	}
	log.Warnf("%04d-%02d-%02d %02d:%02d:%02d is ambiguous in time zone %s; choosing the earlier time point",
		d.Year, d.Month, d.Day, t.Hour, t.Minute, t.Second, loc)
	return time.Unix(earliest, 0).UTC(), nil
}

// MakeSysTimeFromOffset returns the instant for local date d and time t
// observed at the given offset from UTC.
func MakeSysTimeFromOffset(d DateComplete, t TimeComplete, off UTCOffset) (time.Time, error) {
	if !d.Valid() {
		return time.Time{}, ErrInvalidDate
	}
	return time.Unix(wallSeconds(d, t)-int64(off)*60, 0).UTC(), nil
}

// MakeSysTimeFromOffsetOrTimeZone resolves d and t with offset if it is
// not blank, and otherwise with loc. A nil loc with a blank offset yields
// ErrMissingTimeZone.
func MakeSysTimeFromOffsetOrTimeZone(d DateComplete, t TimeComplete, offset string, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(offset) != "" {
		off, err := ParseDicomUTCOffset(offset)
		if err != nil {
			return time.Time{}, ErrFailedUtcOffset
		}
		return MakeSysTimeFromOffset(d, t, off)
	}
	if loc == nil {
		return time.Time{}, ErrMissingTimeZone
	}
	return MakeZonedTime(d, t, loc)
}

// MakeSysTimeFromDicomDateAndTime resolves a DICOM Date (DA) and Time (TM)
// pair. The time must carry hour, minute and second.
func MakeSysTimeFromDicomDateAndTime(date, tm, offset string, loc *time.Location) (time.Time, error) {
	d, err := ParseDicomDate(date)
	if err != nil {
		return time.Time{}, err
	}
	tp, err := ParseDicomTime(tm)
	if err != nil {
		return time.Time{}, err
	}
	tc, err := tp.Complete()
	if err != nil {
		return time.Time{}, err
	}
	return MakeSysTimeFromOffsetOrTimeZone(d, tc, offset, loc)
}

// MakeSysTimeFromDicomDateTime resolves a DICOM Date Time (DT) value. A
// UTC offset suffix in dt takes priority over offset and loc.
func MakeSysTimeFromDicomDateTime(dt, offset string, loc *time.Location) (time.Time, error) {
	dp, tp, err := ParseDicomDateTimeExcludingUTC(dt)
	if err != nil {
		return time.Time{}, err
	}
	dc, err := dp.Complete()
	if err != nil {
		return time.Time{}, err
	}
	tc, err := tp.Complete()
	if err != nil {
		return time.Time{}, err
	}
	if i := strings.IndexAny(dt, "+-"); i >= 0 {
		off, err := ParseDicomUTCOffset(dt[i:])
		if err != nil {
			return time.Time{}, ErrFailedUtcOffsetInDateTime
		}
		return MakeSysTimeFromOffset(dc, tc, off)
	}
	return MakeSysTimeFromOffsetOrTimeZone(dc, tc, offset, loc)
}
