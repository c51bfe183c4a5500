package tia

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/SAMI-Medical-Physics/spider/internal/nifti"
	"github.com/SAMI-Medical-Physics/spider/internal/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConstant(t *testing.T, path string, v float32) {
	t.Helper()
	img := &nifti.Image{Header: nifti.NewHeader([3]int{4, 3, 2}, [3]float32{4.8, 4.8, 4.8})}
	img.Data = make([]float32, 24)
	for i := range img.Data {
		img.Data[i] = v
	}
	require.NoError(t, nifti.WriteFile(path, img))
}

func runPipeline(t *testing.T, files []string, tp []time.Duration, d []float64) *volume.Volume {
	t.Helper()
	v, err := PrepareTiaPipeline(files, tp, d).FinalFilter().Update(context.Background())
	require.NoError(t, err)
	return v
}

func TestPipelineNoDecay(t *testing.T) {
	dir := t.TempDir()
	files := []string{filepath.Join(dir, "a.nii"), filepath.Join(dir, "b.nii.gz")}
	writeConstant(t, files[0], 10)
	writeConstant(t, files[1], 5)

	f := PrepareTiaPipeline(files, hours(6, 12), []float64{1, 1})
	assert.Nil(t, f.Scalers[0])
	assert.Nil(t, f.Scalers[1])

	v, err := f.FinalFilter().Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [3]int{4, 3, 2}, v.Dims)
	for _, x := range v.Data {
		assert.InEpsilon(t, 20*6*3600/math.Ln2, float64(x), 1e-6)
	}
}

func TestPipelineDecay(t *testing.T) {
	dir := t.TempDir()
	factors := []float64{2, 0.5}
	files := []string{filepath.Join(dir, "a.nii"), filepath.Join(dir, "b.nii")}
	writeConstant(t, files[0], float32(10/factors[0]))
	writeConstant(t, files[1], float32(5/factors[1]))

	f := PrepareTiaPipeline(files, hours(6, 12), factors)
	require.NotNil(t, f.Scalers[0])
	require.NotNil(t, f.Scalers[1])

	v, err := f.FinalFilter().Update(context.Background())
	require.NoError(t, err)
	for _, x := range v.Data {
		assert.InEpsilon(t, 20*6*3600/math.Ln2, float64(x), 1e-6)
	}

	// Only the channel that needs correction gets a scaler.
	mixed := PrepareTiaPipeline(files, hours(6, 12), []float64{1, 0.5})
	assert.Nil(t, mixed.Scalers[0])
	assert.NotNil(t, mixed.Scalers[1])
	assert.Same(t, mixed.Readers[0], mixed.Compose.Inputs[0])
}

func TestPipelineMissingInput(t *testing.T) {
	dir := t.TempDir()
	files := []string{filepath.Join(dir, "a.nii"), filepath.Join(dir, "missing.nii")}
	writeConstant(t, files[0], 1)
	_, err := PrepareTiaPipeline(files, hours(1, 2), []float64{1, 1}).FinalFilter().Update(context.Background())
	assert.Error(t, err)
}

func TestPipelineArity(t *testing.T) {
	assert.Panics(t, func() { PrepareTiaPipeline([]string{"a.nii"}, hours(1), []float64{1}) })
	assert.Panics(t, func() { PrepareTiaPipeline([]string{"a.nii", "b.nii"}, hours(1), []float64{1, 1}) })
	assert.Panics(t, func() { PrepareTiaPipeline([]string{"a.nii", "b.nii"}, hours(1, 2), []float64{1}) })
	assert.NotPanics(t, func() { PrepareTiaPipeline([]string{"a.nii", "b.nii"}, hours(1, 2), []float64{1, 1}) })
}
