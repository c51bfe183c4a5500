package nifti

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/lunixbochs/struc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage() *Image {
	img := &Image{Header: NewHeader([3]int{3, 2, 2}, [3]float32{4.5, 4.5, 2})}
	img.Data = make([]float32, 12)
	for i := range img.Data {
		img.Data[i] = float32(i) * 1.5
	}
	return img
}

func TestWriteRead(t *testing.T) {
	img := testImage()

	var buf bytes.Buffer
	n, err := Write(&buf, img)
	require.NoError(t, err)
	assert.Equal(t, int64(dataOffset+4*12), n)
	assert.Equal(t, int(n), buf.Len())

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, [3]int{3, 2, 2}, got.Dims())
	assert.Equal(t, img.Data, got.Data)
	assert.Equal(t, float32(4.5), got.Header.Pixdim[1])
	assert.Equal(t, float32(2), got.Header.Pixdim[3])
	assert.Equal(t, XformScannerAnat, got.Header.QformCode)
}

func TestHeaderWriteToSize(t *testing.T) {
	h := NewHeader([3]int{1, 1, 1}, [3]float32{1, 1, 1})
	var buf bytes.Buffer
	n, err := h.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(headerSize), n)
	assert.Equal(t, []byte("n+1\x00"), buf.Bytes()[344:348])
}

func TestReadBigEndianScaledInt16(t *testing.T) {
	h := NewHeader([3]int{2, 2, 1}, [3]float32{1, 1, 1})
	h.Datatype = DTInt16
	h.Bitpix = 16
	h.SclSlope = 0.5
	h.SclInter = 10

	var buf bytes.Buffer
	require.NoError(t, struc.PackWithOptions(&buf, &h, &struc.Options{Order: binary.BigEndian}))
	buf.Write(make([]byte, 4))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, []int16{0, 2, -4, 100}))

	img, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, []float32{10, 11, 8, 60}, img.Data)
	assert.Equal(t, float32(1), img.Header.SclSlope)
	assert.Equal(t, float32(0), img.Header.SclInter)
}

func TestReadRejects(t *testing.T) {
	t.Run("magic", func(t *testing.T) {
		h := NewHeader([3]int{1, 1, 1}, [3]float32{1, 1, 1})
		h.Magic = [4]byte{'n', 'i', '1', 0}
		var buf bytes.Buffer
		_, err := h.WriteTo(&buf)
		require.NoError(t, err)
		buf.Write(make([]byte, 8))
		_, err = Read(&buf)
		assert.ErrorContains(t, err, "magic")
	})

	t.Run("four dimensional", func(t *testing.T) {
		h := NewHeader([3]int{1, 1, 1}, [3]float32{1, 1, 1})
		h.Dim[0] = 4
		h.Dim[4] = 2
		var buf bytes.Buffer
		_, err := h.WriteTo(&buf)
		require.NoError(t, err)
		buf.Write(make([]byte, 12))
		_, err = Read(&buf)
		assert.ErrorContains(t, err, "only 3-D")
	})

	t.Run("datatype", func(t *testing.T) {
		h := NewHeader([3]int{1, 1, 1}, [3]float32{1, 1, 1})
		h.Datatype = 32 // complex64
		var buf bytes.Buffer
		_, err := h.WriteTo(&buf)
		require.NoError(t, err)
		buf.Write(make([]byte, 12))
		_, err = Read(&buf)
		assert.ErrorContains(t, err, "unsupported NIfTI datatype 32")
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := Read(bytes.NewReader(make([]byte, 100)))
		assert.Error(t, err)
	})
}

func TestWriteFileGzip(t *testing.T) {
	dir := t.TempDir()
	img := testImage()

	for _, name := range []string{"a.nii", "b.nii.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, WriteFile(path, img))

			got, err := ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, img.Data, got.Data)
		})
	}

	raw, err := os.ReadFile(filepath.Join(dir, "b.nii.gz"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2])
}

func TestWriteFileRemovesPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.nii")
	img := testImage()
	img.Data = img.Data[:5]

	err := WriteFile(path, img)
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("tia.nii"))
	assert.True(t, Supported("/x/TIA.NII.GZ"))
	assert.False(t, Supported("tia.mha"))
	assert.False(t, Supported("tia.nii.bz2"))
}
