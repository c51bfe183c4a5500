package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/SAMI-Medical-Physics/spider/internal/decay"
	"github.com/SAMI-Medical-Physics/spider/internal/dicom"
	"github.com/SAMI-Medical-Physics/spider/internal/timepoint"
	"github.com/SAMI-Medical-Physics/spider/internal/volume"
	log "github.com/sirupsen/logrus"
)

type phantomOptions struct {
	OutputDir          string
	TimePoints         []float64 // hours
	HalfLife           float64   // seconds
	EffectiveHalfLife  float64   // hours
	Activity           float64
	DecayCorrection    decay.Method
	FrameReferenceTime float64 // milliseconds
	Administration     string
	TimeZone           string
	UTCOffset          bool
	Size               int
	Slices             int
	Spacing            float64
	Workers            int
	Tags               []string
}

func defaultPhantomOptions() phantomOptions {
	return phantomOptions{
		OutputDir:         "phantom",
		TimePoints:        []float64{4, 24, 96, 168},
		HalfLife:          574300, // Lu-177
		EffectiveHalfLife: 48,
		Activity:          1000,
		DecayCorrection:   decay.MethodStart,
		Administration:    "20181105120000",
		TimeZone:          "UTC",
		Size:              32,
		Slices:            16,
		Spacing:           4.8,
	}
}

func (o phantomOptions) validate() error {
	switch {
	case len(o.TimePoints) < 2:
		return errors.New("need at least 2 time points")
	case o.HalfLife <= 0 || o.EffectiveHalfLife <= 0:
		return errors.New("half-lives must be positive")
	case o.Activity <= 0:
		return errors.New("activity must be positive")
	case o.Size < 1 || o.Slices < 1 || o.Spacing <= 0:
		return errors.New("size, slices and spacing must be positive")
	}
	for _, t := range o.TimePoints {
		if t < 0 {
			return fmt.Errorf("time point %g h is before administration", t)
		}
	}
	return nil
}

// storedFactor converts activity at acquisition start to the value stored
// under the decay correction m: the inverse of the factor spider_tia
// applies.
func (o phantomOptions) storedFactor(delay time.Duration) float64 {
	lambda := math.Ln2 / o.HalfLife
	switch o.DecayCorrection {
	case decay.MethodAdmin:
		return math.Exp(lambda * delay.Seconds())
	case decay.MethodNone:
		return math.Exp(-lambda * o.FrameReferenceTime / 1000)
	default:
		return 1
	}
}

// sphere returns the phantom at unit activity: 1 inside a centred sphere
// with a radius of a third of the field of view, 0 elsewhere. The sphere
// always holds the voxels nearest the centre.
func (o phantomOptions) sphere() *volume.Volume {
	g := volume.Geometry{
		Dims:      [3]int{o.Size, o.Size, o.Slices},
		Spacing:   [3]float64{o.Spacing, o.Spacing, o.Spacing},
		QformCode: 1,
		SformCode: 1,
		QFac:      1,
		Srow:      [3][4]float64{{o.Spacing, 0, 0, 0}, {0, o.Spacing, 0, 0}, {0, 0, o.Spacing, 0}},
	}
	v := volume.New(g)
	c := [3]float64{float64(o.Size-1) / 2, float64(o.Size-1) / 2, float64(o.Slices-1) / 2}
	var nearest float64
	for _, n := range []int{o.Size, o.Size, o.Slices} {
		if n%2 == 0 {
			nearest += 0.25
		}
	}
	r := max(float64(min(o.Size, o.Slices))/3, math.Sqrt(nearest))
	for z := 0; z < o.Slices; z++ {
		for y := 0; y < o.Size; y++ {
			for x := 0; x < o.Size; x++ {
				dx, dy, dz := float64(x)-c[0], float64(y)-c[1], float64(z)-c[2]
				if dx*dx+dy*dy+dz*dz <= r*r {
					v.Data[(z*o.Size+y)*o.Size+x] = 1
				}
			}
		}
	}
	return v
}

func makePhantom(ctx context.Context, o phantomOptions) error {
	if err := o.validate(); err != nil {
		return err
	}
	loc, err := time.LoadLocation(o.TimeZone)
	if err != nil {
		return fmt.Errorf("unknown time zone %q", o.TimeZone)
	}
	administration, err := timepoint.MakeSysTimeFromDicomDateTime(o.Administration, "", loc)
	if err != nil {
		return fmt.Errorf("--administration: %w", err)
	}

	unit := o.sphere()
	n := len(o.TimePoints)
	for k, hours := range o.TimePoints {
		if err := ctx.Err(); err != nil {
			return err
		}
		delay := time.Duration(hours * float64(time.Hour)).Round(time.Second)
		acquisition := administration.Add(delay).In(loc)

		activity := o.Activity * math.Exp(-math.Ln2*delay.Hours()/o.EffectiveHalfLife)
		img := volume.New(unit.Geometry)
		scale := float32(activity * o.storedFactor(delay))
		for i, u := range unit.Data {
			img.Data[i] = u * scale
		}

		name := fmt.Sprintf("tp%d", k+1)
		attrs := dicom.SpectAttributes{
			PatientName:                      "Spider^Phantom",
			PatientID:                        "SPIDER-PHANTOM",
			Radiopharmaceutical:              "Phantom",
			RadiopharmaceuticalStartDateTime: administration.In(loc).Format("20060102150405"),
			AcquisitionDate:                  acquisition.Format("20060102"),
			AcquisitionTime:                  acquisition.Format("150405"),
			SeriesDate:                       acquisition.Format("20060102"),
			SeriesTime:                       acquisition.Format("150405"),
			DecayCorrection:                  o.DecayCorrection.String(),
			FrameReferenceTime:               o.FrameReferenceTime,
			RadionuclideHalfLife:             o.HalfLife,
		}
		if o.UTCOffset {
			attrs.RadiopharmaceuticalStartDateTime += administration.In(loc).Format("-0700")
			attrs.TimezoneOffsetFromUTC = acquisition.Format("-0700")
		}

		dir := filepath.Join(o.OutputDir, name)
		if _, err := dicom.WriteSeries(dicom.SeriesOptions{
			OutputDir:  dir,
			Volume:     img,
			Attributes: attrs,
			Overlay:    fmt.Sprintf("Time point %d/%d", k+1, n),
			Overrides:  o.Tags,
			Seed:       fmt.Sprintf("spider-phantom/%s/%s", o.Administration, name),
			Workers:    o.Workers,
		}); err != nil {
			return fmt.Errorf("%s: %w", dir, err)
		}

		path := filepath.Join(o.OutputDir, name+".nii")
		w := &volume.FileWriter{Input: constSource{img}, Path: path, Description: fmt.Sprintf("Spider phantom %s", name)}
		if err := w.Write(ctx); err != nil {
			return err
		}
		log.Infof("Time point %d/%d: %s and %s, acquisition %s, delay %.6g h", k+1, n, dir, path,
			acquisition.Format("2006-01-02 15:04:05 MST"), delay.Hours())
	}
	log.Infof("Expected TIA inside the sphere: %.6g", o.Activity*o.EffectiveHalfLife*3600/math.Ln2)
	return nil
}

type constSource struct{ v *volume.Volume }

func (s constSource) Update(context.Context) (*volume.Volume, error) { return s.v, nil }
