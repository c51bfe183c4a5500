package tia

import (
	"fmt"
	"time"

	"github.com/SAMI-Medical-Physics/spider/internal/volume"
)

// Filters are the stages of a TIA pipeline. Element i of each slice
// belongs to input image i.
type Filters struct {
	Readers []*volume.FileReader
	// Scalers[i] is nil when image i needs no decay correction.
	Scalers []*volume.ScaleFilter
	Compose *volume.ComposeFilter
	Fit     *ExpFit
	Kernel  *volume.MapFilter
}

// FinalFilter returns the stage producing the TIA volume.
func (f *Filters) FinalFilter() volume.Source {
	return f.Kernel
}

// PrepareTiaPipeline builds, without running, a pipeline that reads each
// input image, multiplies it by its decay factor and fits the series
// voxel by voxel. timePoints[i] is the delay from administration to the
// acquisition of inputFilenames[i].
//
// It panics unless all arguments have the same length of at least 2.
func PrepareTiaPipeline(inputFilenames []string, timePoints []time.Duration, decayFactors []float64) *Filters {
	n := len(inputFilenames)
	if len(timePoints) != n || len(decayFactors) != n {
		panic(fmt.Sprintf("tia: %d input filenames, %d time points and %d decay factors", n, len(timePoints), len(decayFactors)))
	}
	if n < 2 {
		panic(fmt.Sprintf("tia: need at least 2 images, got %d", n))
	}

	f := &Filters{
		Readers: make([]*volume.FileReader, n),
		Scalers: make([]*volume.ScaleFilter, n),
		Compose: &volume.ComposeFilter{Inputs: make([]volume.Source, n)},
		Fit:     NewExpFit(timePoints),
	}
	for i, name := range inputFilenames {
		f.Readers[i] = volume.NewFileReader(name)
		f.Compose.Inputs[i] = f.Readers[i]
		if decayFactors[i] != 1.0 {
			f.Scalers[i] = &volume.ScaleFilter{Input: f.Readers[i], Factor: decayFactors[i]}
			f.Compose.Inputs[i] = f.Scalers[i]
		}
	}
	f.Kernel = &volume.MapFilter{Input: f.Compose, Func: f.Fit.Evaluate}
	return f
}
