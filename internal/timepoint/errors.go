package timepoint

// Error is a failure to parse or resolve a DICOM date or time.
type Error int

const (
	ErrFailedDate Error = iota + 1
	ErrFailedTime
	ErrFailedUtcOffset
	// ErrFailedTimezoneOffsetFromUtc is ErrFailedUtcOffset when the offset
	// came from the TimezoneOffsetFromUTC attribute.
	ErrFailedTimezoneOffsetFromUtc
	ErrFailedDateTimeExcludingUtcOffset
	ErrFailedUtcOffsetInDateTime
	ErrIncompleteDate
	ErrIncompleteTime
	ErrMissingTimeZone
	ErrInvalidDate
	ErrNonexistentLocalTime
)

// Error returns a stable human-readable description of the error kind.
func (e Error) Error() string {
	switch e {
	case ErrFailedDate:
		return "failed to parse DICOM Date (DA)"
	case ErrFailedTime:
		return "failed to parse DICOM Time (TM)"
	case ErrFailedUtcOffset:
		return "failed to parse UTC offset"
	case ErrFailedTimezoneOffsetFromUtc:
		return "failed to parse DICOM attribute TimezoneOffsetFromUTC"
	case ErrFailedDateTimeExcludingUtcOffset:
		return "failed to parse DICOM Date Time (DT) excluding UTC offset suffix"
	case ErrFailedUtcOffsetInDateTime:
		return "failed to parse UTC offset suffix of DICOM Date Time (DT)"
	case ErrIncompleteDate:
		return "incomplete date"
	case ErrIncompleteTime:
		return "incomplete time"
	case ErrMissingTimeZone:
		return "missing time zone"
	case ErrInvalidDate:
		return "invalid date"
	case ErrNonexistentLocalTime:
		return "nonexistent local time"
	default:
		return "unknown time point error"
	}
}
