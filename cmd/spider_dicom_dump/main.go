// spider_dicom_dump reads the DICOM attributes Spider needs from one SPECT
// series directory per argument and writes them to stdout for spider_tia.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/SAMI-Medical-Physics/spider/internal/config"
	"github.com/SAMI-Medical-Physics/spider/internal/dicom"
	"github.com/SAMI-Medical-Physics/spider/internal/logging"
	"github.com/SAMI-Medical-Physics/spider/internal/spect"
	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// version is set at build time via -ldflags
var version = "dev"

const programName = "spider_dicom_dump"

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
	code := run(os.Args[1:], os.Stdout, os.Stderr, isatty.IsTerminal(os.Stdout.Fd()))
	_ = closer.Close()
	os.Exit(code)
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "usage: %s directory ...\n", programName)
}

func run(args []string, stdout, stderr io.Writer, stdoutIsTTY bool) int {
	fs := pflag.NewFlagSet(programName, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	showVersion := fs.BoolP("version", "V", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", programName, err)
		usage(stderr)
		return 1
	}
	if *showVersion {
		fmt.Fprintf(stdout, "Spider %s\n", version)
		return 0
	}

	dirs := fs.Args()
	if len(dirs) == 0 {
		usage(stderr)
		return 1
	}
	if stdoutIsTTY {
		log.Info("try piping this program's stdout to another Spider program")
	}
	log.Infof("Version %s", version)

	records := make([]spect.Record, 0, len(dirs))
	for i, dir := range dirs {
		path, ds, err := dicom.FindFirstDICOM(dir)
		if err != nil {
			var openErr *dicom.OpenDirError
			if errors.As(err, &openErr) {
				fmt.Fprintf(stderr, "%s: Cannot open directory '%s': %v\n", programName, dir, openErr.Err)
			} else {
				fmt.Fprintf(stderr, "%s: Failed to read a DICOM file in directory '%s'\n", programName, dir)
			}
			return 1
		}
		log.Infof("SPECT %d: reading DICOM attributes in %q...", i+1, path)
		r := spect.ReadDicomSpect(ds)
		log.Infof("SPECT %d: %s", i+1, r)
		records = append(records, r)
	}

	if err := spect.WriteSpects(stdout, records); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", programName, err)
		return 1
	}
	return 0
}
