// Package decay computes the factor that brings a SPECT reconstruction to
// the activity at the start of its acquisition, according to the DICOM
// DecayCorrection attribute of the series.
package decay

import (
	"fmt"
	"math"
	"time"

	"github.com/SAMI-Medical-Physics/spider/internal/spect"
)

// Error is a failure to compute a decay factor.
type Error int

const (
	ErrMissingFrameReferenceTime Error = iota + 1
	ErrMissingHalfLife
	ErrInvalidDecayCorrection
	ErrHalfLifeNonPositive
	ErrUnreachable
)

func (e Error) Error() string {
	switch e {
	case ErrMissingFrameReferenceTime:
		return "missing DICOM attribute FrameReferenceTime"
	case ErrMissingHalfLife:
		return "missing DICOM attribute RadionuclideHalfLife"
	case ErrInvalidDecayCorrection:
		return "invalid DICOM attribute DecayCorrection"
	case ErrHalfLifeNonPositive:
		return "radionuclide half-life is less than or equal to zero"
	case ErrUnreachable:
		return "unreachable"
	default:
		return "unknown decay correction error"
	}
}

// Method is a DICOM DecayCorrection value.
type Method int

const (
	// MethodNone means pixels hold the activity at the frame reference time.
	MethodNone Method = iota + 1
	// MethodStart means pixels are decay corrected to the acquisition start.
	MethodStart
	// MethodAdmin means pixels are decay corrected to the administration.
	MethodAdmin
)

// String returns the DICOM code string, padded to even length.
func (m Method) String() string {
	switch m {
	case MethodNone:
		return "NONE"
	case MethodStart:
		return "START "
	case MethodAdmin:
		return "ADMIN "
	default:
		return "UNKNOWN"
	}
}

// ParseMethod parses a DecayCorrection value. Values must match exactly,
// including the trailing space of "START " and "ADMIN ".
func ParseMethod(s string) (Method, error) {
	switch s {
	case "NONE":
		return MethodNone, nil
	case "START ":
		return MethodStart, nil
	case "ADMIN ":
		return MethodAdmin, nil
	default:
		return 0, fmt.Errorf("%w: %q (valid: \"NONE\", \"START \", \"ADMIN \")", ErrInvalidDecayCorrection, s)
	}
}

// ComputeDecayFactor returns the factor d such that d times the
// reconstruction of r is the activity at the start of its acquisition.
// Date and times without a UTC offset are taken to be in loc.
func ComputeDecayFactor(r spect.Record, loc *time.Location) (float64, error) {
	m, err := ParseMethod(r.DecayCorrection)
	if err != nil {
		return 0, err
	}
	switch m {
	case MethodNone:
		return DecayFactorNone(r, loc)
	case MethodStart:
		return DecayFactorStart(), nil
	case MethodAdmin:
		return DecayFactorAdmin(r, loc)
	}
	return 0, ErrUnreachable
}

func halfLife(r spect.Record) (float64, error) {
	if r.RadionuclideHalfLife == nil {
		return 0, ErrMissingHalfLife
	}
	if *r.RadionuclideHalfLife <= 0 {
		return 0, ErrHalfLifeNonPositive
	}
	return *r.RadionuclideHalfLife, nil
}

// DecayFactorNone undoes the decay between the acquisition start and the
// frame reference time.
func DecayFactorNone(r spect.Record, loc *time.Location) (float64, error) {
	if r.FrameReferenceTime == nil {
		return 0, ErrMissingFrameReferenceTime
	}
	t, err := halfLife(r)
	if err != nil {
		return 0, err
	}
	if _, err := r.AcquisitionInstant(loc); err != nil {
		return 0, err
	}
	frameReference := *r.FrameReferenceTime / 1000
	return math.Exp(math.Ln2 * frameReference / t), nil
}

// DecayFactorStart is 1: the reconstruction already refers to the
// acquisition start.
func DecayFactorStart() float64 {
	return 1.0
}

// DecayFactorAdmin decays the reconstruction forward from the
// administration to the acquisition start.
func DecayFactorAdmin(r spect.Record, loc *time.Location) (float64, error) {
	t, err := halfLife(r)
	if err != nil {
		return 0, err
	}
	administration, err := r.AdministrationInstant(loc)
	if err != nil {
		return 0, err
	}
	acquisition, err := r.AcquisitionInstant(loc)
	if err != nil {
		return 0, err
	}
	delay := acquisition.Sub(administration).Seconds()
	return math.Exp(-math.Ln2 * delay / t), nil
}
