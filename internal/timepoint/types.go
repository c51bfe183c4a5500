// Package timepoint parses DICOM Date (DA), Time (TM), Date Time (DT) and
// UTC offset values, and resolves calendar dates and clock times to
// absolute instants using either a UTC offset or a time zone.
package timepoint

// DateParsed is a calendar date whose month and day may be missing, as
// allowed in a DICOM Date Time (DT) value.
type DateParsed struct {
	Year     int
	Month    int // [1, 12], valid if HasMonth
	Day      int // [1, 31], valid if HasDay
	HasMonth bool
	HasDay   bool
}

// TimeParsed is a clock time whose components may be missing. DICOM TM
// values always carry the hour; DT values may not.
type TimeParsed struct {
	Hour      int // [0, 23]
	Minute    int // [0, 59]
	Second    int // [0, 60], 60 for a leap second
	HasHour   bool
	HasMinute bool
	HasSecond bool
}

// DateComplete is a calendar date with all components present. It is not
// necessarily a valid date; validity is checked on resolution.
type DateComplete struct {
	Year  int
	Month int
	Day   int
}

// TimeComplete is a clock time with all components present.
type TimeComplete struct {
	Hour   int
	Minute int
	Second int
}

// UTCOffset is a signed offset from UTC in minutes.
type UTCOffset int

// Complete returns d as a DateComplete, or ErrIncompleteDate if the month
// or day is missing.
func (d DateParsed) Complete() (DateComplete, error) {
	if !d.HasMonth || !d.HasDay {
		return DateComplete{}, ErrIncompleteDate
	}
	return DateComplete{Year: d.Year, Month: d.Month, Day: d.Day}, nil
}

// Complete returns t as a TimeComplete, or ErrIncompleteTime if any of
// hour, minute or second is missing.
func (t TimeParsed) Complete() (TimeComplete, error) {
	if !t.HasHour || !t.HasMinute || !t.HasSecond {
		return TimeComplete{}, ErrIncompleteTime
	}
	return TimeComplete{Hour: t.Hour, Minute: t.Minute, Second: t.Second}, nil
}

// Valid reports whether d names a day of the proleptic Gregorian calendar.
func (d DateComplete) Valid() bool {
	if d.Year < 0 || d.Month < 1 || d.Month > 12 || d.Day < 1 {
		return false
	}
	return d.Day <= daysIn(d.Month, d.Year)
}

func daysIn(month, year int) int {
	switch month {
	case 2:
		if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}
