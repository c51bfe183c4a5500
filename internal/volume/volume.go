// Package volume is a small pull-based filter framework for 3-D images.
//
// A pipeline is a graph of Sources. Calling Update on the last filter pulls
// data through its inputs; nothing is computed until then.
package volume

import (
	"context"
	"fmt"
	"math"

	"github.com/SAMI-Medical-Physics/spider/internal/nifti"
)

// Geometry is the sampling grid of a volume plus the orientation carried
// from input to output files.
type Geometry struct {
	Dims    [3]int
	Spacing [3]float64

	QformCode int16
	SformCode int16
	Quatern   [3]float64
	QOffset   [3]float64
	QFac      float64
	Srow      [3][4]float64
	Units     uint8
}

// Len returns the number of voxels.
func (g Geometry) Len() int {
	return g.Dims[0] * g.Dims[1] * g.Dims[2]
}

// SameGrid reports whether g and o sample the same points in space.
func (g Geometry) SameGrid(o Geometry) bool {
	if g.Dims != o.Dims {
		return false
	}
	for i := range 3 {
		if !near(g.Spacing[i], o.Spacing[i]) || !near(g.QOffset[i], o.QOffset[i]) {
			return false
		}
	}
	return true
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= 1e-4*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%dx%d @ %gx%gx%g mm", g.Dims[0], g.Dims[1], g.Dims[2], g.Spacing[0], g.Spacing[1], g.Spacing[2])
}

// GeometryFromHeader extracts the grid and orientation of a NIfTI header.
func GeometryFromHeader(h nifti.Header) Geometry {
	g := Geometry{
		Dims:      [3]int{int(h.Dim[1]), int(h.Dim[2]), int(h.Dim[3])},
		QformCode: h.QformCode,
		SformCode: h.SformCode,
		Quatern:   [3]float64{float64(h.QuaternB), float64(h.QuaternC), float64(h.QuaternD)},
		QOffset:   [3]float64{float64(h.QoffsetX), float64(h.QoffsetY), float64(h.QoffsetZ)},
		QFac:      float64(h.Pixdim[0]),
		Units:     h.XYZTUnits,
	}
	for i := range 3 {
		g.Spacing[i] = float64(h.Pixdim[i+1])
	}
	for j := range 4 {
		g.Srow[0][j] = float64(h.SrowX[j])
		g.Srow[1][j] = float64(h.SrowY[j])
		g.Srow[2][j] = float64(h.SrowZ[j])
	}
	return g
}

// Header returns a float32 NIfTI header describing g.
func (g Geometry) Header() nifti.Header {
	h := nifti.NewHeader(g.Dims, [3]float32{float32(g.Spacing[0]), float32(g.Spacing[1]), float32(g.Spacing[2])})
	h.QformCode = g.QformCode
	h.SformCode = g.SformCode
	h.QuaternB, h.QuaternC, h.QuaternD = float32(g.Quatern[0]), float32(g.Quatern[1]), float32(g.Quatern[2])
	h.QoffsetX, h.QoffsetY, h.QoffsetZ = float32(g.QOffset[0]), float32(g.QOffset[1]), float32(g.QOffset[2])
	h.Pixdim[0] = float32(g.QFac)
	if h.Pixdim[0] == 0 {
		h.Pixdim[0] = 1
	}
	for j := range 4 {
		h.SrowX[j] = float32(g.Srow[0][j])
		h.SrowY[j] = float32(g.Srow[1][j])
		h.SrowZ[j] = float32(g.Srow[2][j])
	}
	if g.Units != 0 {
		h.XYZTUnits = g.Units
	}
	return h
}

// Volume is a scalar image stored x fastest.
type Volume struct {
	Geometry
	Data []float32
}

// New returns a zero-filled volume.
func New(g Geometry) *Volume {
	return &Volume{Geometry: g, Data: make([]float32, g.Len())}
}

// VectorVolume stores Components values per voxel, voxel-major:
// component c of voxel i is Data[i*Components+c].
type VectorVolume struct {
	Geometry
	Components int
	Data       []float32
}

// Pixel returns the components of voxel i. The slice aliases Data.
func (v *VectorVolume) Pixel(i int) []float32 {
	return v.Data[i*v.Components : (i+1)*v.Components]
}

// Source produces a scalar volume on demand.
type Source interface {
	Update(ctx context.Context) (*Volume, error)
}

// VectorSource produces a vector volume on demand.
type VectorSource interface {
	Update(ctx context.Context) (*VectorVolume, error)
}
