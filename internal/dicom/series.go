package dicom

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/SAMI-Medical-Physics/spider/internal/util"
	"github.com/SAMI-Medical-Physics/spider/internal/volume"
	log "github.com/sirupsen/logrus"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

const (
	explicitVRLittleEndian = "1.2.840.10008.1.2.1"
	nmImageStorage         = "1.2.840.10008.5.1.4.1.1.20"
)

// SpectAttributes are the timing and decay attributes written to every
// instance of a series. Empty strings are written as empty values; use
// SeriesOptions.Overrides to change any of them afterwards.
type SpectAttributes struct {
	PatientName         string
	PatientID           string
	Radiopharmaceutical string

	RadiopharmaceuticalStartDateTime string
	AcquisitionDate                  string
	AcquisitionTime                  string
	SeriesDate                       string
	SeriesTime                       string
	TimezoneOffsetFromUTC            string
	DecayCorrection                  string

	// FrameReferenceTime in milliseconds.
	FrameReferenceTime float64
	// RadionuclideHalfLife in seconds.
	RadionuclideHalfLife float64
}

// SeriesOptions configures WriteSeries.
type SeriesOptions struct {
	OutputDir  string
	Volume     *volume.Volume
	Attributes SpectAttributes

	// Overlay is burnt into every slice; empty for none.
	Overlay string
	// Overrides are "Name=Value" attribute assignments applied last.
	Overrides []string
	// Seed makes UIDs reproducible. Defaults to OutputDir.
	Seed string

	Workers          int
	ProgressCallback func(current, total int)
}

type sliceTask struct {
	index    int
	filePath string
	metadata []*dicom.Element
	pixels   []float32
}

// WriteSeries writes one NM image file per z slice of opts.Volume into
// opts.OutputDir, which is created if needed, and returns the file paths in
// slice order.
func WriteSeries(opts SeriesOptions) ([]string, error) {
	v := opts.Volume
	if v == nil || v.Len() == 0 {
		return nil, fmt.Errorf("write series: empty volume")
	}
	seed := opts.Seed
	if seed == "" {
		seed = opts.OutputDir
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	shared, item, err := seriesElements(opts, seed)
	if err != nil {
		return nil, err
	}
	shared = append(shared, mustNewElement(util.RadiopharmaceuticalInformationSequence.Tag, [][]*dicom.Element{item}))

	width, height, slices := v.Dims[0], v.Dims[1], v.Dims[2]
	sliceLen := width * height

	// One rescale slope for the whole series keeps slices comparable.
	var maxValue float32
	for _, x := range v.Data {
		maxValue = max(maxValue, x)
	}
	slope := 1.0
	if maxValue > 0 {
		slope = float64(maxValue) / math.MaxUint16
	}
	shared = append(shared,
		mustNewElement(tag.RescaleSlope, []string{floatToDS(slope)}),
		mustNewElement(tag.RescaleIntercept, []string{"0"}),
	)

	tasks := make([]sliceTask, slices)
	for z := range tasks {
		sopInstanceUID := GenerateDeterministicUID(fmt.Sprintf("%s_instance_%d", seed, z))
		position := []string{"0", "0", floatToDS(float64(z) * v.Spacing[2])}
		metadata := append([]*dicom.Element(nil), shared...)
		metadata = append(metadata,
			mustNewElement(tag.MediaStorageSOPInstanceUID, []string{sopInstanceUID}),
			mustNewElement(tag.SOPInstanceUID, []string{sopInstanceUID}),
			mustNewElement(tag.InstanceNumber, []string{intToIS(z + 1)}),
			mustNewElement(tag.ImagePositionPatient, position),
			mustNewElement(tag.SliceLocation, []string{position[2]}),
		)
		tasks[z] = sliceTask{
			index:    z,
			filePath: filepath.Join(opts.OutputDir, fmt.Sprintf("IM%04d.dcm", z+1)),
			metadata: metadata,
			pixels:   v.Data[z*sliceLen : (z+1)*sliceLen],
		}
	}

	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(tasks) {
		numWorkers = len(tasks)
	}

	taskChan := make(chan sliceTask, len(tasks))
	resultChan := make(chan struct {
		index int
		err   error
	}, len(tasks))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskChan {
				err := writeSlice(task, width, height, slope, opts.Overlay)
				resultChan <- struct {
					index int
					err   error
				}{task.index, err}
			}
		}()
	}

	for _, task := range tasks {
		taskChan <- task
	}
	close(taskChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	completed := 0
	var firstErr error
	for result := range resultChan {
		if result.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("write slice %d: %w", result.index, result.err)
		}
		completed++
		if opts.ProgressCallback != nil {
			opts.ProgressCallback(completed, len(tasks))
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	paths := make([]string, len(tasks))
	for i, task := range tasks {
		paths[i] = task.filePath
	}
	log.WithFields(log.Fields{
		"dir":     opts.OutputDir,
		"files":   len(paths),
		"workers": numWorkers,
	}).Debug("wrote DICOM series")
	return paths, nil
}

// seriesElements returns the attributes shared by all instances of the
// series and the RadiopharmaceuticalInformationSequence item, with
// overrides applied.
func seriesElements(opts SeriesOptions, seed string) ([]*dicom.Element, []*dicom.Element, error) {
	a := opts.Attributes
	v := opts.Volume
	studyUID := GenerateDeterministicUID(seed + "_study")
	seriesUID := GenerateDeterministicUID(seed + "_series")
	frameOfReferenceUID := GenerateDeterministicUID(seed + "_frame")

	shared := []*dicom.Element{
		mustNewElement(tag.MediaStorageSOPClassUID, []string{nmImageStorage}),
		mustNewElement(tag.TransferSyntaxUID, []string{explicitVRLittleEndian}),
		mustNewElement(tag.SOPClassUID, []string{nmImageStorage}),
		mustNewElement(tag.Modality, []string{"NM"}),
		mustNewElement(tag.StudyInstanceUID, []string{studyUID}),
		mustNewElement(tag.SeriesInstanceUID, []string{seriesUID}),
		mustNewElement(tag.FrameOfReferenceUID, []string{frameOfReferenceUID}),
		mustNewElement(tag.SeriesNumber, []string{"1"}),
		mustNewElement(tag.SeriesDescription, []string{"SPECT phantom"}),
		mustNewElement(tag.Manufacturer, []string{"Spider"}),
		mustNewElement(util.PatientName.Tag, []string{a.PatientName}),
		mustNewElement(tag.PatientID, []string{a.PatientID}),
		mustNewElement(tag.StudyDate, []string{a.SeriesDate}),
		mustNewElement(tag.StudyTime, []string{a.SeriesTime}),
		mustNewElement(util.SeriesDate.Tag, []string{a.SeriesDate}),
		mustNewElement(util.SeriesTime.Tag, []string{a.SeriesTime}),
		mustNewElement(util.AcquisitionDate.Tag, []string{a.AcquisitionDate}),
		mustNewElement(util.AcquisitionTime.Tag, []string{a.AcquisitionTime}),
		mustNewElement(util.FrameReferenceTime.Tag, []string{floatToDS(a.FrameReferenceTime)}),
		mustNewElement(util.DecayCorrection.Tag, []string{a.DecayCorrection}),
		mustNewElement(tag.PixelSpacing, []string{floatToDS(v.Spacing[1]), floatToDS(v.Spacing[0])}),
		mustNewElement(tag.SliceThickness, []string{floatToDS(v.Spacing[2])}),
		mustNewElement(tag.ImageOrientationPatient, []string{"1", "0", "0", "0", "1", "0"}),
		mustNewElement(tag.Rows, []int{v.Dims[1]}),
		mustNewElement(tag.Columns, []int{v.Dims[0]}),
		mustNewElement(tag.BitsAllocated, []int{16}),
		mustNewElement(tag.BitsStored, []int{16}),
		mustNewElement(tag.HighBit, []int{15}),
		mustNewElement(tag.PixelRepresentation, []int{0}),
		mustNewElement(tag.SamplesPerPixel, []int{1}),
		mustNewElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
	}
	if a.TimezoneOffsetFromUTC != "" {
		shared = append(shared, mustNewElement(util.TimezoneOffsetFromUTC.Tag, []string{a.TimezoneOffsetFromUTC}))
	}

	item := []*dicom.Element{
		mustNewElement(util.Radiopharmaceutical.Tag, []string{a.Radiopharmaceutical}),
		mustNewElement(util.RadionuclideHalfLife.Tag, []string{floatToDS(a.RadionuclideHalfLife)}),
		mustNewElement(util.RadiopharmaceuticalStartDateTime.Tag, []string{a.RadiopharmaceuticalStartDateTime}),
	}

	for _, o := range opts.Overrides {
		info, value, err := util.ParseTagOverride(o)
		if err != nil {
			return nil, nil, err
		}
		elem, err := dicom.NewElement(info.Tag, []string{value})
		if err != nil {
			return nil, nil, fmt.Errorf("override %s: %w", info.Name, err)
		}
		if info.Scope == util.ScopeRadiopharmaceutical {
			item = setElement(item, elem)
		} else {
			shared = setElement(shared, elem)
		}
	}
	sortElements(item)
	return shared, item, nil
}

// writeSlice quantizes a slice to uint16 with the series rescale slope and
// writes it with its metadata.
func writeSlice(task sliceTask, width, height int, slope float64, overlay string) error {
	nativeFrame := frame.NewNativeFrame[uint16](16, height, width, width*height, 1)
	for i, x := range task.pixels {
		stored := math.Round(float64(x) / slope)
		nativeFrame.RawData[i] = uint16(math.Max(0, math.Min(math.MaxUint16, stored)))
	}
	if overlay != "" {
		drawTextOnFrame16(nativeFrame, width, height, overlay, math.MaxUint16)
	}

	pixelDataInfo := dicom.PixelDataInfo{
		Frames: []*frame.Frame{
			{
				Encapsulated: false,
				NativeData:   nativeFrame,
			},
		},
	}

	elements := make([]*dicom.Element, len(task.metadata)+1)
	copy(elements, task.metadata)
	elements[len(task.metadata)] = mustNewElement(tag.PixelData, pixelDataInfo)
	sortElements(elements)

	return writeDatasetToFile(task.filePath, dicom.Dataset{Elements: elements})
}
