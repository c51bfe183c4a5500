package spect

import (
	"errors"
	"fmt"
	"time"

	"github.com/SAMI-Medical-Physics/spider/internal/timepoint"
)

// Instant names the time point of a record being resolved.
type Instant int

const (
	InstantAdministration Instant = iota
	InstantAcquisition
	InstantSeries
)

func (i Instant) String() string {
	switch i {
	case InstantAdministration:
		return "administration"
	case InstantAcquisition:
		return "acquisition"
	case InstantSeries:
		return "series"
	default:
		return "unknown"
	}
}

// InstantError is a failure to resolve one of the time points of a record.
type InstantError struct {
	Instant Instant
	Err     error
}

func (e *InstantError) Error() string {
	return fmt.Sprintf("%s time point: %v", e.Instant, e.Err)
}

func (e *InstantError) Unwrap() error { return e.Err }

// wrapInstant tags err with the instant being resolved. A bad UTC offset
// here can only have come from TimezoneOffsetFromUTC.
func wrapInstant(i Instant, err error) error {
	if errors.Is(err, timepoint.ErrFailedUtcOffset) {
		err = timepoint.ErrFailedTimezoneOffsetFromUtc
	}
	return &InstantError{Instant: i, Err: err}
}

// AdministrationInstant resolves RadiopharmaceuticalStartDateTime. Its own UTC
// offset suffix wins over TimezoneOffsetFromUTC, which wins over loc.
func (r Record) AdministrationInstant(loc *time.Location) (time.Time, error) {
	t, err := timepoint.MakeSysTimeFromDicomDateTime(r.RadiopharmaceuticalStartDateTime, r.TimezoneOffsetFromUTC, loc)
	if err != nil {
		return time.Time{}, wrapInstant(InstantAdministration, err)
	}
	return t, nil
}

// AcquisitionInstant resolves AcquisitionDate and AcquisitionTime.
func (r Record) AcquisitionInstant(loc *time.Location) (time.Time, error) {
	t, err := timepoint.MakeSysTimeFromDicomDateAndTime(r.AcquisitionDate, r.AcquisitionTime, r.TimezoneOffsetFromUTC, loc)
	if err != nil {
		return time.Time{}, wrapInstant(InstantAcquisition, err)
	}
	return t, nil
}

// SeriesInstant resolves SeriesDate and SeriesTime.
func (r Record) SeriesInstant(loc *time.Location) (time.Time, error) {
	t, err := timepoint.MakeSysTimeFromDicomDateAndTime(r.SeriesDate, r.SeriesTime, r.TimezoneOffsetFromUTC, loc)
	if err != nil {
		return time.Time{}, wrapInstant(InstantSeries, err)
	}
	return t, nil
}
