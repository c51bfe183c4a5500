// spider_make_phantom writes a synthetic SPECT time series: for each time
// point a DICOM series directory, for spider_dicom_dump, and the matching
// NIfTI image, for spider_tia.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/SAMI-Medical-Physics/spider/internal/config"
	"github.com/SAMI-Medical-Physics/spider/internal/logging"
)

// version is set at build time via -ldflags
var version = "dev"

const programName = "spider_make_phantom"

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
	err = newRootCmd(cfg).ExecuteContext(ctx)
	stop()
	_ = closer.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}
}
