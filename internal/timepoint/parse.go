package timepoint

import "strings"

// parseDigits parses the first n bytes of s as an unsigned decimal number.
func parseDigits(s string, n int) (int, bool) {
	if len(s) < n {
		return 0, false
	}
	v := 0
	for i := 0; i < n; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + int(c-'0')
	}
	return v, true
}

func parseHour(s string) (int, bool) {
	v, ok := parseDigits(s, 2)
	return v, ok && v <= 23
}

func parseMinute(s string) (int, bool) {
	v, ok := parseDigits(s, 2)
	return v, ok && v <= 59
}

func parseSecond(s string) (int, bool) {
	v, ok := parseDigits(s, 2)
	return v, ok && v <= 60
}

// ParseDicomDate parses a DICOM Date (DA) value YYYYMMDD. Calendar
// validity is not checked here.
func ParseDicomDate(s string) (DateComplete, error) {
	if len(s) != 8 {
		return DateComplete{}, ErrFailedDate
	}
	y, ok := parseDigits(s, 4)
	if !ok {
		return DateComplete{}, ErrFailedDate
	}
	m, ok := parseDigits(s[4:], 2)
	if !ok {
		return DateComplete{}, ErrFailedDate
	}
	d, ok := parseDigits(s[6:], 2)
	if !ok {
		return DateComplete{}, ErrFailedDate
	}
	return DateComplete{Year: y, Month: m, Day: d}, nil
}

// ParseDicomTime parses a DICOM Time (TM) value HH[MM[SS[.FFFFFF]]].
// The fractional second is ignored, as is anything else after SS, so
// some nonconformant strings are accepted.
func ParseDicomTime(s string) (TimeParsed, error) {
	var t TimeParsed
	h, ok := parseHour(s)
	if !ok {
		return TimeParsed{}, ErrFailedTime
	}
	t.Hour, t.HasHour = h, true
	if !parseClockTail(s[2:], &t) {
		return TimeParsed{}, ErrFailedTime
	}
	return t, nil
}

// parseClockTail parses the optional MM and SS components that follow an
// hour. A dangling single character after a component is rejected.
func parseClockTail(s string, t *TimeParsed) bool {
	if len(s) == 1 {
		return false
	}
	if len(s) >= 2 {
		m, ok := parseMinute(s)
		if !ok {
			return false
		}
		t.Minute, t.HasMinute = m, true
		s = s[2:]
	}
	if len(s) == 1 {
		return false
	}
	if len(s) >= 2 {
		sec, ok := parseSecond(s)
		if !ok {
			return false
		}
		t.Second, t.HasSecond = sec, true
	}
	return true
}

// ParseDicomDateTimeExcludingUTC parses the date and time components of a
// DICOM Date Time (DT) value YYYY[MM[DD[HH[MM[SS[.FFFFFF]]]]]][&ZZXX]. The
// fractional second and any UTC offset suffix are ignored.
func ParseDicomDateTimeExcludingUTC(s string) (DateParsed, TimeParsed, error) {
	if i := strings.IndexAny(s, "+-"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, " ")

	var d DateParsed
	var t TimeParsed
	y, ok := parseDigits(s, 4)
	if !ok {
		return DateParsed{}, TimeParsed{}, ErrFailedDateTimeExcludingUtcOffset
	}
	d.Year = y
	s = s[4:]

	fail := func() (DateParsed, TimeParsed, error) {
		return DateParsed{}, TimeParsed{}, ErrFailedDateTimeExcludingUtcOffset
	}
	if len(s) == 1 {
		return fail()
	}
	if len(s) >= 2 {
		m, ok := parseDigits(s, 2)
		if !ok {
			return fail()
		}
		d.Month, d.HasMonth = m, true
		s = s[2:]
	}
	if len(s) == 1 {
		return fail()
	}
	if len(s) >= 2 {
		day, ok := parseDigits(s, 2)
		if !ok {
			return fail()
		}
		d.Day, d.HasDay = day, true
		s = s[2:]
	}
	if len(s) == 1 {
		return fail()
	}
	if len(s) >= 2 {
		h, ok := parseHour(s)
		if !ok {
			return fail()
		}
		t.Hour, t.HasHour = h, true
		if !parseClockTail(s[2:], &t) {
			return fail()
		}
	}
	return d, t, nil
}

// ParseDicomUTCOffset parses a UTC offset &HHMM where & is '+' or '-'.
// "-0000" is rejected, as is any offset outside [-12:00, +14:00]. Trailing
// space padding is ignored.
func ParseDicomUTCOffset(s string) (UTCOffset, error) {
	s = strings.TrimRight(s, " ")
	if len(s) != 5 {
		return 0, ErrFailedUtcOffset
	}
	sign := 0
	switch s[0] {
	case '+':
		sign = 1
	case '-':
		sign = -1
	default:
		return 0, ErrFailedUtcOffset
	}
	h, ok := parseHour(s[1:])
	if !ok {
		return 0, ErrFailedUtcOffset
	}
	m, ok := parseMinute(s[3:])
	if !ok {
		return 0, ErrFailedUtcOffset
	}
	if sign < 0 && h == 0 && m == 0 {
		return 0, ErrFailedUtcOffset
	}
	off := UTCOffset(sign * (h*60 + m))
	if off < -12*60 || off > 14*60 {
		return 0, ErrFailedUtcOffset
	}
	return off, nil
}
