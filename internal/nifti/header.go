// Package nifti reads and writes single-file NIfTI-1 images (.nii and
// .nii.gz) holding one 3-D volume.
package nifti

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/itchio/headway/counter"
	"github.com/lunixbochs/struc"
)

const (
	headerSize = 348
	// dataOffset leaves room for the 4 byte extension flag after the header.
	dataOffset = 352
)

// NIfTI-1 datatype codes.
const (
	DTUint8   int16 = 2
	DTInt16   int16 = 4
	DTInt32   int16 = 8
	DTFloat32 int16 = 16
	DTFloat64 int16 = 64
	DTInt8    int16 = 256
	DTUint16  int16 = 512
	DTUint32  int16 = 768
)

// NIfTI-1 xform codes and units.
const (
	XformUnknown     int16 = 0
	XformScannerAnat int16 = 1
	UnitsMM          uint8 = 2
	UnitsSec         uint8 = 8
)

var magicSingleFile = [4]byte{'n', '+', '1', 0}

// Header is the 348 byte NIfTI-1 header.
type Header struct {
	SizeofHdr      int32
	DataTypeUnused [10]byte
	DbName         [18]byte
	Extents        int32
	SessionError   int16
	Regular        uint8
	DimInfo        uint8

	Dim        [8]int16
	IntentP1   float32
	IntentP2   float32
	IntentP3   float32
	IntentCode int16
	Datatype   int16
	Bitpix     int16
	SliceStart int16
	Pixdim     [8]float32
	VoxOffset  float32
	SclSlope   float32
	SclInter   float32
	SliceEnd   int16
	SliceCode  uint8
	XYZTUnits  uint8
	CalMax     float32
	CalMin     float32
	SliceDur   float32
	Toffset    float32
	Glmax      int32
	Glmin      int32

	Descrip [80]byte
	AuxFile [24]byte

	QformCode int16
	SformCode int16
	QuaternB  float32
	QuaternC  float32
	QuaternD  float32
	QoffsetX  float32
	QoffsetY  float32
	QoffsetZ  float32
	SrowX     [4]float32
	SrowY     [4]float32
	SrowZ     [4]float32

	IntentName [16]byte
	Magic      [4]byte
}

// NewHeader returns a header for a float32 volume of the given size and
// voxel spacing in millimetres, with an identity orientation.
func NewHeader(dims [3]int, spacing [3]float32) Header {
	h := Header{
		SizeofHdr: headerSize,
		Dim:       [8]int16{3, int16(dims[0]), int16(dims[1]), int16(dims[2]), 1, 1, 1, 1},
		Pixdim:    [8]float32{1, spacing[0], spacing[1], spacing[2], 0, 0, 0, 0},
		Datatype:  DTFloat32,
		Bitpix:    32,
		VoxOffset: dataOffset,
		SclSlope:  1,
		XYZTUnits: UnitsMM | UnitsSec,
		QformCode: XformScannerAnat,
		SformCode: XformScannerAnat,
		SrowX:     [4]float32{spacing[0], 0, 0, 0},
		SrowY:     [4]float32{0, spacing[1], 0, 0},
		SrowZ:     [4]float32{0, 0, spacing[2], 0},
		Magic:     magicSingleFile,
	}
	return h
}

// SetDescription stores s, truncated to 79 bytes, in the descrip field.
func (h *Header) SetDescription(s string) {
	h.Descrip = [80]byte{}
	copy(h.Descrip[:79], s)
}

// WriteTo writes the header in little-endian byte order.
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	cw := counter.NewWriter(w)

	if err := struc.PackWithOptions(cw, h, &struc.Options{Order: binary.LittleEndian}); err != nil {
		return cw.Count(), fmt.Errorf("could not pack header: %w", err)
	}

	return cw.Count(), nil
}

// byteOrder infers the byte order of a raw header from sizeof_hdr.
func byteOrder(raw []byte) (binary.ByteOrder, error) {
	switch {
	case binary.LittleEndian.Uint32(raw[:4]) == headerSize:
		return binary.LittleEndian, nil
	case binary.BigEndian.Uint32(raw[:4]) == headerSize:
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("not a NIfTI-1 header: sizeof_hdr is not %d in either byte order", headerSize)
	}
}

func bytesPerVoxel(datatype int16) (int, error) {
	switch datatype {
	case DTUint8, DTInt8:
		return 1, nil
	case DTInt16, DTUint16:
		return 2, nil
	case DTInt32, DTUint32, DTFloat32:
		return 4, nil
	case DTFloat64:
		return 8, nil
	default:
		return 0, fmt.Errorf("unsupported NIfTI datatype %d", datatype)
	}
}
