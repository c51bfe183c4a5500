package dicom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// ErrNoDICOMFile is returned by FindFirstDICOM when no file in the
// directory parses as DICOM.
var ErrNoDICOMFile = errors.New("no readable DICOM file")

// OpenDirError reports a directory that could not be listed.
type OpenDirError struct {
	Dir string
	Err error
}

func (e *OpenDirError) Error() string { return fmt.Sprintf("open directory %s: %v", e.Dir, e.Err) }

func (e *OpenDirError) Unwrap() error { return e.Err }

// FindFirstDICOM returns the first regular file of dir, in name order, that
// parses as DICOM, together with its dataset without pixel data.
// Subdirectories are not searched.
func FindFirstDICOM(dir string) (string, dicom.Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", dicom.Dataset{}, &OpenDirError{Dir: dir, Err: err}
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
		if err == nil && hasDataElements(ds.Elements) && (hasTransferSyntax(ds.Elements) || hasDICMMagic(path)) {
			return path, ds, nil
		}
		log.WithFields(log.Fields{"path": path, "error": err}).Debug("strict DICOM parse failed")

		if ds, err = parseDICOMTolerant(path); err == nil {
			log.WithField("path", path).Debug("read DICOM file with tolerant parser")
			return path, ds, nil
		}
		log.WithFields(log.Fields{"path": path, "error": err}).Debug("skipping file")
	}
	return "", dicom.Dataset{}, fmt.Errorf("%s: %w", dir, ErrNoDICOMFile)
}

// parseDICOMTolerant parses a DICOM file element-by-element, keeping the
// elements read before the first malformed one.
//
// Files without the "DICM" magic after the preamble are rejected: without
// it the parser reads arbitrary bytes as elements.
func parseDICOMTolerant(path string) (dicom.Dataset, error) {
	if !hasDICMMagic(path) {
		return dicom.Dataset{}, errors.New("no DICM magic after the preamble")
	}
	f, err := os.Open(path)
	if err != nil {
		return dicom.Dataset{}, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return dicom.Dataset{}, err
	}

	p, err := dicom.NewParser(f, info.Size(), nil, dicom.SkipPixelData())
	if err != nil {
		return dicom.Dataset{}, err
	}

	var elements []*dicom.Element
	for {
		elem, err := p.Next()
		if err != nil {
			break
		}
		elements = append(elements, elem)
	}

	if !hasDataElements(elements) {
		return dicom.Dataset{}, fmt.Errorf("no data elements parsed")
	}

	meta := p.GetMetadata()
	return dicom.Dataset{Elements: append(meta.Elements, elements...)}, nil
}

const preambleLength = 128

func hasDICMMagic(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, preambleLength+4)
	if _, err := io.ReadFull(f, buf); err != nil {
		return false
	}
	return bytes.Equal(buf[preambleLength:], []byte("DICM"))
}

func hasTransferSyntax(elements []*dicom.Element) bool {
	for _, e := range elements {
		if e.Tag == tag.TransferSyntaxUID {
			return true
		}
	}
	return false
}

// hasDataElements reports whether elements hold anything beyond group
// length and File Meta Information elements.
func hasDataElements(elements []*dicom.Element) bool {
	for _, e := range elements {
		if e.Tag.Group > 0x0002 {
			return true
		}
	}
	return false
}
