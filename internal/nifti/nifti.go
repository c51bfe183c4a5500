package nifti

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/itchio/headway/counter"
	"github.com/klauspost/compress/gzip"
	"github.com/lunixbochs/struc"
	log "github.com/sirupsen/logrus"
)

// Image is a NIfTI-1 header and its voxels, scaled by scl_slope and
// scl_inter, in x-fastest order.
type Image struct {
	Header Header
	Data   []float32
}

// Dims returns the number of voxels along x, y and z.
func (img *Image) Dims() [3]int {
	return [3]int{int(img.Header.Dim[1]), int(img.Header.Dim[2]), int(img.Header.Dim[3])}
}

// Supported reports whether path names a file this package can read and
// write.
func Supported(path string) bool {
	p := strings.ToLower(path)
	return strings.HasSuffix(p, ".nii") || strings.HasSuffix(p, ".nii.gz")
}

func isGzip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// Read decodes a single-file NIfTI-1 image of either byte order.
func Read(r io.Reader) (*Image, error) {
	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	order, err := byteOrder(raw)
	if err != nil {
		return nil, err
	}
	var h Header
	if err := struc.UnpackWithOptions(bytes.NewReader(raw), &h, &struc.Options{Order: order}); err != nil {
		return nil, fmt.Errorf("unpack header: %w", err)
	}
	if h.Magic != magicSingleFile {
		return nil, fmt.Errorf("unsupported NIfTI magic %q (want single-file \"n+1\")", strings.TrimRight(string(h.Magic[:]), "\x00"))
	}

	ndim := int(h.Dim[0])
	if ndim < 1 || ndim > 7 {
		return nil, fmt.Errorf("invalid NIfTI dim[0] %d", ndim)
	}
	for i := 1; i <= 7; i++ {
		if i > ndim || h.Dim[i] <= 0 {
			if i <= 3 && i <= ndim {
				return nil, fmt.Errorf("invalid NIfTI dim[%d] %d", i, h.Dim[i])
			}
			h.Dim[i] = 1
		}
		if i > 3 && h.Dim[i] > 1 {
			return nil, fmt.Errorf("only 3-D images are supported, dim[%d] is %d", i, h.Dim[i])
		}
	}
	h.Dim[0] = 3

	size, err := bytesPerVoxel(h.Datatype)
	if err != nil {
		return nil, err
	}

	offset := int64(h.VoxOffset)
	if offset < dataOffset {
		offset = dataOffset
	}
	if _, err := io.CopyN(io.Discard, r, offset-headerSize); err != nil {
		return nil, fmt.Errorf("skip to voxel data: %w", err)
	}

	img := &Image{Header: h}
	dims := img.Dims()
	n := dims[0] * dims[1] * dims[2]
	buf := make([]byte, n*size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read voxel data: %w", err)
	}
	img.Data = decode(buf, n, h.Datatype, order)

	if slope := h.SclSlope; slope != 0 && !(slope == 1 && h.SclInter == 0) {
		inter := h.SclInter
		for i, v := range img.Data {
			img.Data[i] = v*slope + inter
		}
	}
	img.Header.SclSlope, img.Header.SclInter = 1, 0

	log.WithFields(log.Fields{
		"byteOrder": order,
		"datatype":  h.Datatype,
		"dims":      dims,
	}).Debug("read NIfTI image")

	return img, nil
}

func decode(buf []byte, n int, datatype int16, order binary.ByteOrder) []float32 {
	out := make([]float32, n)
	for i := range out {
		switch datatype {
		case DTUint8:
			out[i] = float32(buf[i])
		case DTInt8:
			out[i] = float32(int8(buf[i]))
		case DTInt16:
			out[i] = float32(int16(order.Uint16(buf[2*i:])))
		case DTUint16:
			out[i] = float32(order.Uint16(buf[2*i:]))
		case DTInt32:
			out[i] = float32(int32(order.Uint32(buf[4*i:])))
		case DTUint32:
			out[i] = float32(order.Uint32(buf[4*i:]))
		case DTFloat32:
			out[i] = math.Float32frombits(order.Uint32(buf[4*i:]))
		case DTFloat64:
			out[i] = float32(math.Float64frombits(order.Uint64(buf[8*i:])))
		}
	}
	return out
}

// ReadFile reads a .nii or .nii.gz file.
func ReadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = bufio.NewReader(f)
	if isGzip(path) {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	img, err := Read(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Write encodes img as a little-endian float32 single-file NIfTI-1 image.
func Write(w io.Writer, img *Image) (int64, error) {
	dims := img.Dims()
	if n := dims[0] * dims[1] * dims[2]; n != len(img.Data) {
		return 0, fmt.Errorf("image has %d voxels, header says %d", len(img.Data), n)
	}

	h := img.Header
	h.SizeofHdr = headerSize
	h.Dim[0] = 3
	h.Datatype = DTFloat32
	h.Bitpix = 32
	h.VoxOffset = dataOffset
	h.SclSlope, h.SclInter = 1, 0
	h.Magic = magicSingleFile

	cw := counter.NewWriter(w)
	if _, err := h.WriteTo(cw); err != nil {
		return cw.Count(), err
	}
	// No extensions.
	if _, err := cw.Write(make([]byte, dataOffset-headerSize)); err != nil {
		return cw.Count(), fmt.Errorf("write extension flag: %w", err)
	}
	if err := binary.Write(cw, binary.LittleEndian, img.Data); err != nil {
		return cw.Count(), fmt.Errorf("write voxel data: %w", err)
	}
	return cw.Count(), nil
}

// WriteFile writes img to path, gzip-compressed if path ends in .gz. A
// partially written file is removed.
func WriteFile(path string, img *Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	bw := bufio.NewWriter(f)
	var n int64
	if isGzip(path) {
		gz := gzip.NewWriter(bw)
		if n, err = Write(gz, img); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err = gz.Close(); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	} else if n, err = Write(bw, img); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	log.WithFields(log.Fields{
		"path":  path,
		"bytes": n,
	}).Debug("wrote NIfTI image")
	return nil
}
