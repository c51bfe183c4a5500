package volume

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// ScaleFilter multiplies every voxel of its input by Factor.
type ScaleFilter struct {
	Input  Source
	Factor float64
}

func (f *ScaleFilter) Update(ctx context.Context) (*Volume, error) {
	in, err := f.Input.Update(ctx)
	if err != nil {
		return nil, err
	}
	out := New(in.Geometry)
	for i, v := range in.Data {
		out.Data[i] = float32(float64(v) * f.Factor)
	}
	return out, nil
}

// ComposeFilter stacks N scalar volumes on the same grid into an N-component
// vector volume. Component i comes from Inputs[i].
type ComposeFilter struct {
	Inputs []Source
}

func (f *ComposeFilter) Update(ctx context.Context) (*VectorVolume, error) {
	if len(f.Inputs) == 0 {
		return nil, fmt.Errorf("compose: no inputs")
	}
	n := len(f.Inputs)
	var out *VectorVolume
	for c, src := range f.Inputs {
		in, err := src.Update(ctx)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = &VectorVolume{Geometry: in.Geometry, Components: n, Data: make([]float32, in.Len()*n)}
		} else if !out.SameGrid(in.Geometry) {
			return nil, fmt.Errorf("compose: input %d grid %v does not match input 0 grid %v", c, in.Geometry, out.Geometry)
		}
		for i, v := range in.Data {
			out.Data[i*n+c] = v
		}
	}
	return out, nil
}

// PixelFunc maps the components of one voxel to an output value. It must be
// safe for concurrent use.
type PixelFunc func(pixel []float32) float32

// MapFilter applies Func to every voxel of its vector input, splitting the
// volume into z slices processed by a pool of workers.
type MapFilter struct {
	Input VectorSource
	Func  PixelFunc

	// Workers defaults to runtime.NumCPU().
	Workers int
	// Clock times the stage for debug logging. Defaults to the real clock.
	Clock clockwork.Clock
}

func (f *MapFilter) Update(ctx context.Context) (*Volume, error) {
	in, err := f.Input.Update(ctx)
	if err != nil {
		return nil, err
	}

	clock := f.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	start := clock.Now()

	out := New(in.Geometry)
	slices := in.Dims[2]
	sliceLen := in.Dims[0] * in.Dims[1]

	numWorkers := f.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > slices {
		numWorkers = slices
	}

	taskChan := make(chan int, slices)
	resultChan := make(chan struct {
		index int
		err   error
	}, slices)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for z := range taskChan {
				if err := ctx.Err(); err != nil {
					resultChan <- struct {
						index int
						err   error
					}{z, err}
					continue
				}
				for i := z * sliceLen; i < (z+1)*sliceLen; i++ {
					out.Data[i] = f.Func(in.Pixel(i))
				}
				resultChan <- struct {
					index int
					err   error
				}{z, nil}
			}
		}()
	}

	for z := 0; z < slices; z++ {
		taskChan <- z
	}
	close(taskChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var firstErr error
	for result := range resultChan {
		if result.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("slice %d: %w", result.index, result.err)
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	log.WithFields(log.Fields{
		"voxels":  out.Len(),
		"workers": numWorkers,
		"elapsed": clock.Since(start),
	}).Debug("mapped voxels")
	return out, nil
}
