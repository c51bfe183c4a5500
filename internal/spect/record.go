// Package spect holds the DICOM attributes of a SPECT series that Spider
// needs to compute time points and decay factors, reads them from DICOM
// datasets, and serializes them to a line-oriented text form.
package spect

import (
	"fmt"
	"strings"
)

// Record is a snapshot of the DICOM attributes of one SPECT series. An empty
// string means the attribute is absent; so does a nil number.
type Record struct {
	PatientName                      string
	RadiopharmaceuticalStartDateTime string // DT
	AcquisitionDate                  string // DA
	AcquisitionTime                  string // TM
	SeriesDate                       string // DA
	SeriesTime                       string // TM
	FrameReferenceTime               *float64 // milliseconds
	TimezoneOffsetFromUTC            string
	DecayCorrection                  string
	RadionuclideHalfLife             *float64 // seconds
}

// UsesTimeZone reports whether the record relies on a caller-supplied time
// zone: without TimezoneOffsetFromUTC the acquisition and series date and
// times carry no offset.
func (r Record) UsesTimeZone() bool {
	return strings.TrimSpace(r.TimezoneOffsetFromUTC) == ""
}

// String renders r on a single line for diagnostics.
func (r Record) String() string {
	return fmt.Sprintf("Spect{patient_name=%q, radiopharmaceutical_start_date_time=%q, "+
		"acquisition_date=%q, acquisition_time=%q, series_date=%q, series_time=%q, "+
		"frame_reference_time=%s ms, timezone_offset_from_utc=%q, decay_correction=%q, "+
		"radionuclide_half_life=%s s}",
		r.PatientName, r.RadiopharmaceuticalStartDateTime,
		r.AcquisitionDate, r.AcquisitionTime, r.SeriesDate, r.SeriesTime,
		optionalString(r.FrameReferenceTime), r.TimezoneOffsetFromUTC, r.DecayCorrection,
		optionalString(r.RadionuclideHalfLife))
}

func optionalString(v *float64) string {
	if v == nil {
		return "(absent)"
	}
	return formatNumber(*v)
}

// formatNumber renders v with 6 significant figures.
func formatNumber(v float64) string {
	return fmt.Sprintf("%.6g", v)
}
