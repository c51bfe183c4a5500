// spider_tia computes a time-integrated activity image, tia.nii, from two
// or more quantitative SPECT images of the same subject and the DICOM
// attributes of their series, read from stdin as written by
// spider_dicom_dump.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/SAMI-Medical-Physics/spider/internal/config"
	"github.com/SAMI-Medical-Physics/spider/internal/decay"
	"github.com/SAMI-Medical-Physics/spider/internal/logging"
	"github.com/SAMI-Medical-Physics/spider/internal/spect"
	"github.com/SAMI-Medical-Physics/spider/internal/tia"
	"github.com/SAMI-Medical-Physics/spider/internal/volume"
	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// version is set at build time via -ldflags
var version = "dev"

const programName = "spider_tia"

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}
	closer, err := logging.Setup(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], env{
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		stdinIsTTY: isatty.IsTerminal(os.Stdin.Fd()),
		localZone:  currentZone,
		output:     cfg.Pipeline.Output,
		workers:    cfg.Pipeline.Workers,
	})
	stop()
	_ = closer.Close()
	os.Exit(code)
}

// env is what run needs from the process.
type env struct {
	stdin          io.Reader
	stdout, stderr io.Writer
	stdinIsTTY     bool
	localZone      func() *time.Location
	output         string
	workers        int
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "usage: %s [-fV] [-z time_zone] image1 image2 ... < file\n", programName)
	fmt.Fprintf(w, "       spider_dicom_dump directory1 directory2 ... |\n")
	fmt.Fprintf(w, "           %s image1 image2 ...\n", programName)
}

type arguments struct {
	overwrite      bool
	version        bool
	tzNames        []string
	inputFilenames []string
}

// parseArguments parses options in the style of POSIX getopts: options
// first, then image filenames. "--" ends the options and a lone "-" is an
// image filename.
func parseArguments(args []string) (arguments, error) {
	var out arguments
	fs := pflag.NewFlagSet(programName, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false)
	fs.BoolVarP(&out.overwrite, "overwrite", "f", false, "overwrite the output file")
	fs.BoolVarP(&out.version, "version", "V", false, "print version and exit")
	fs.StringArrayVarP(&out.tzNames, "time-zone", "z", nil, "time zone of DICOM values without a UTC offset (repeatable)")
	if err := rejectLongOptions(args); err != nil {
		return out, err
	}
	if err := fs.Parse(args); err != nil {
		return out, getoptsError(err)
	}
	out.inputFilenames = fs.Args()
	return out, nil
}

// rejectLongOptions fails on a "--name" option before the first operand.
// getopts has no long options and reads one as the option character '-'.
func rejectLongOptions(args []string) error {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--" || a == "-" || !strings.HasPrefix(a, "-"):
			return nil
		case strings.HasPrefix(a, "--"):
			return errors.New("unknown option -- -")
		}
		// A trailing z takes the next argument as its value.
		if j := strings.IndexByte(a[1:], 'z'); j >= 0 && j == len(a)-2 {
			i++
		}
	}
	return nil
}

// getoptsError rewords pflag's errors for single-letter options the way
// getopts reports them.
func getoptsError(err error) error {
	if errors.Is(err, pflag.ErrHelp) {
		return errors.New("unknown option -- h")
	}
	m := pflagShortError.FindStringSubmatch(err.Error())
	switch {
	case m == nil:
		return err
	case m[1] == "flag needs an argument":
		return fmt.Errorf("option requires an argument -- %s", m[2])
	default:
		return fmt.Errorf("unknown option -- %s", m[2])
	}
}

var pflagShortError = regexp.MustCompile(`^(flag needs an argument|unknown shorthand flag): ['"](.)['"]`)

func run(ctx context.Context, args []string, e env) int {
	fail := func(format string, a ...any) int {
		fmt.Fprintf(e.stderr, "%s: %s\n", programName, fmt.Sprintf(format, a...))
		return 1
	}

	if len(args) == 0 {
		usage(e.stderr)
		return 1
	}
	a, err := parseArguments(args)
	if err != nil {
		fail("%v", err)
		usage(e.stderr)
		return 1
	}
	if a.version {
		fmt.Fprintf(e.stdout, "Spider %s\n", version)
		return 0
	}

	if len(a.inputFilenames) < 2 {
		// To fit an exponential.
		return fail("you must specify at least 2 image arguments")
	}
	if len(a.tzNames) > 1 && len(a.tzNames) != len(a.inputFilenames) {
		return fail("when specifying more than one time zone, you must specify the same number of time zones as image arguments")
	}

	if e.stdinIsTTY {
		fmt.Fprintf(e.stderr, "%s: waiting for input on stdin...\n", programName)
	}
	spects, err := spect.ReadSpects(e.stdin)
	if err != nil {
		return fail("%v", err)
	}
	if len(spects) != len(a.inputFilenames) {
		return fail("number of image arguments does not match input on stdin")
	}

	zones, err := resolveZones(a.tzNames, len(spects), e.localZone)
	if err != nil {
		return fail("%v", err)
	}

	output := e.output
	if output == "" {
		output = "tia.nii"
	}
	if !a.overwrite {
		if _, err := os.Stat(output); err == nil {
			return fail("file already exists: %s", output)
		}
	}

	log.Infof("Version %s", version)

	inputs, err := prepareInputs(spects, zones)
	if err != nil {
		return fail("%v", err)
	}

	for i, in := range inputs {
		log.Infof("SPECT %d: administration: %s, acquisition: %s, delay: %.6g h, decay factor: %.6g",
			i+1, formatInstant(in.administration, zones[i]), formatInstant(in.acquisition, zones[i]),
			in.delay.Hours(), in.decayFactor)
	}

	timePoints := make([]time.Duration, len(inputs))
	decayFactors := make([]float64, len(inputs))
	for i, in := range inputs {
		timePoints[i] = in.delay
		decayFactors[i] = in.decayFactor
	}
	filters := tia.PrepareTiaPipeline(a.inputFilenames, timePoints, decayFactors)
	filters.Kernel.Workers = e.workers
	writer := &volume.FileWriter{
		Input:       filters.FinalFilter(),
		Path:        output,
		Description: "Spider " + version + " TIA",
	}

	log.Info("Executing TIA image pipeline")
	if err := writer.Write(ctx); err != nil {
		return fail("%v", err)
	}
	log.Infof("Wrote %s", output)
	return 0
}

// resolveZones returns one time zone per SPECT: the local zone when no name
// is given, the named zone for all when one is given, else one each.
func resolveZones(names []string, n int, local func() *time.Location) ([]*time.Location, error) {
	zones := make([]*time.Location, n)
	switch len(names) {
	case 0:
		loc := local()
		for i := range zones {
			zones[i] = loc
		}
	case 1:
		loc, err := loadZone(names[0])
		if err != nil {
			return nil, err
		}
		for i := range zones {
			zones[i] = loc
		}
	default:
		for i, name := range names {
			loc, err := loadZone(name)
			if err != nil {
				return nil, err
			}
			zones[i] = loc
		}
	}
	return zones, nil
}

func loadZone(name string) (*time.Location, error) {
	// time.LoadLocation maps "" and "UTC" to UTC and "Local" to the local
	// zone; only IANA names are accepted here.
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("unknown time zone %q", name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q", name)
	}
	return loc, nil
}

type input struct {
	administration time.Time
	acquisition    time.Time
	delay          time.Duration
	decayFactor    float64
}

// prepareInputs resolves the administration and acquisition instants and
// the decay factor of each SPECT. Delays are measured from the first
// SPECT's administration.
func prepareInputs(spects []spect.Record, zones []*time.Location) ([]input, error) {
	inputs := make([]input, len(spects))
	for i, r := range spects {
		log.Infof("SPECT %d: %s", i+1, r)
		if r.UsesTimeZone() {
			log.Warnf("SPECT %d: assuming Dates (DA), Times (TM), and Date Times (DT) without a UTC offset suffix are in time zone %s", i+1, zones[i])
		}

		var err error
		if inputs[i].administration, err = r.AdministrationInstant(zones[i]); err != nil {
			return nil, fmt.Errorf("SPECT %d: %w", i+1, err)
		}
		if inputs[i].acquisition, err = r.AcquisitionInstant(zones[i]); err != nil {
			return nil, fmt.Errorf("SPECT %d: %w", i+1, err)
		}
		if inputs[i].decayFactor, err = decay.ComputeDecayFactor(r, zones[i]); err != nil {
			return nil, fmt.Errorf("SPECT %d: %w", i+1, err)
		}
	}

	administration := inputs[0].administration
	for _, in := range inputs[1:] {
		if !in.administration.Equal(administration) {
			log.Warn("administration date time differs for two or more SPECTs")
			break
		}
	}
	for i := range inputs {
		inputs[i].delay = inputs[i].acquisition.Sub(administration)
	}
	return inputs, nil
}

func formatInstant(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02 15:04:05 MST")
}
