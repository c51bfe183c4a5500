package volume

import (
	"context"
	"fmt"

	"github.com/SAMI-Medical-Physics/spider/internal/nifti"
	log "github.com/sirupsen/logrus"
)

// FileReader reads a volume from a NIfTI file. The format is inferred from
// the file name.
type FileReader struct {
	Path string
}

// NewFileReader returns a reader bound to path.
func NewFileReader(path string) *FileReader {
	return &FileReader{Path: path}
}

func (r *FileReader) Update(ctx context.Context) (*Volume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !nifti.Supported(r.Path) {
		return nil, fmt.Errorf("%s: unsupported image format (want .nii or .nii.gz)", r.Path)
	}
	img, err := nifti.ReadFile(r.Path)
	if err != nil {
		return nil, err
	}
	v := &Volume{Geometry: GeometryFromHeader(img.Header), Data: img.Data}
	log.WithFields(log.Fields{"path": r.Path, "geometry": v.Geometry}).Debug("read volume")
	return v, nil
}

// FileWriter pulls its input and writes it to a NIfTI file.
type FileWriter struct {
	Input       Source
	Path        string
	Description string
}

// Write executes the pipeline feeding w and writes the result.
func (w *FileWriter) Write(ctx context.Context) error {
	if !nifti.Supported(w.Path) {
		return fmt.Errorf("%s: unsupported image format (want .nii or .nii.gz)", w.Path)
	}
	v, err := w.Input.Update(ctx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	img := &nifti.Image{Header: v.Geometry.Header(), Data: v.Data}
	img.Header.SetDescription(w.Description)
	return nifti.WriteFile(w.Path, img)
}
