package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/SAMI-Medical-Physics/spider/internal/config"
	"github.com/SAMI-Medical-Physics/spider/internal/decay"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	opts := defaultPhantomOptions()
	opts.Workers = cfg.Pipeline.Workers
	var decayCorrection, configPath string

	cmd := &cobra.Command{
		Use:   programName + " [flags]",
		Short: "Write a synthetic SPECT time series",
		Long: "Writes, for each time point K, a DICOM SPECT series in <output>/tpK and the\n" +
			"same image as <output>/tpK.nii. Voxels inside a sphere hold\n" +
			"activity·exp(-ln2·t/effective-half-life) at acquisition start, stored with\n" +
			"the chosen DecayCorrection, so the expected TIA inside the sphere is\n" +
			"activity·effective-half-life/ln2.",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := decay.ParseMethod(padDecayCorrection(decayCorrection))
			if err != nil {
				return fmt.Errorf("--decay-correction: %w", err)
			}
			opts.DecayCorrection = m
			if err := makePhantom(cmd.Context(), opts); err != nil {
				return err
			}
			if configPath == "" {
				return nil
			}
			return writeConfig(cfg, opts, configPath)
		},
	}
	cmd.SetVersionTemplate("Spider {{.Version}}\n")

	f := cmd.Flags()
	f.StringVarP(&opts.OutputDir, "output", "o", opts.OutputDir, "output directory")
	f.Float64SliceVar(&opts.TimePoints, "time-points", opts.TimePoints, "acquisition start times in hours since administration")
	f.Float64Var(&opts.HalfLife, "half-life", opts.HalfLife, "radionuclide half-life in seconds")
	f.Float64Var(&opts.EffectiveHalfLife, "effective-half-life", opts.EffectiveHalfLife, "effective half-life of the sphere in hours")
	f.Float64Var(&opts.Activity, "activity", opts.Activity, "sphere voxel value at administration")
	f.StringVar(&decayCorrection, "decay-correction", "START", "DecayCorrection written to the series: NONE, START or ADMIN")
	f.Float64Var(&opts.FrameReferenceTime, "frame-reference-time", opts.FrameReferenceTime, "FrameReferenceTime in milliseconds")
	f.StringVar(&opts.Administration, "administration", opts.Administration, "administration date time (DICOM DT, local to --time-zone)")
	f.StringVar(&opts.TimeZone, "time-zone", opts.TimeZone, "IANA time zone of the written dates and times")
	f.BoolVar(&opts.UTCOffset, "utc-offset", opts.UTCOffset, "write TimezoneOffsetFromUTC and a UTC offset suffix on the administration date time")
	f.IntVar(&opts.Size, "size", opts.Size, "voxels along x and y")
	f.IntVar(&opts.Slices, "slices", opts.Slices, "voxels along z")
	f.Float64Var(&opts.Spacing, "spacing", opts.Spacing, "voxel size in mm")
	f.IntVar(&opts.Workers, "workers", opts.Workers, "parallel DICOM writers (0 = CPU cores)")
	f.StringArrayVar(&opts.Tags, "tag", nil, "set a DICOM attribute: 'Name=Value' (repeatable)")
	f.StringVar(&configPath, "write-config", "", "also write a configuration file for spider_tia (use with SPIDER_CONFIG) whose output is <output>/tia.nii")
	return cmd
}

// writeConfig saves cfg with the pipeline pointed at the phantom directory.
func writeConfig(cfg *config.Config, opts phantomOptions, path string) error {
	out := *cfg
	out.Pipeline.Workers = opts.Workers
	out.Pipeline.Output = filepath.Join(opts.OutputDir, "tia.nii")
	if err := out.Validate(); err != nil {
		return err
	}
	if err := config.Save(&out, path); err != nil {
		return err
	}
	log.Infof("Wrote %s", path)
	return nil
}

// padDecayCorrection adds the trailing space DICOM pads the odd-length
// DecayCorrection terms with, so users can type START rather than "START ".
func padDecayCorrection(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s)%2 == 1 {
		s += " "
	}
	return s
}
