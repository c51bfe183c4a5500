package spect

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/SAMI-Medical-Physics/spider/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/suyashkumar/dicom"
	"golang.org/x/text/encoding/charmap"
)

// ReadDicomSpect fills a Record from the attributes of ds. A missing
// attribute leaves its field absent and logs a warning.
func ReadDicomSpect(ds dicom.Dataset) Record {
	r := Record{
		PatientName:           readString(ds, util.PatientName),
		AcquisitionDate:       readString(ds, util.AcquisitionDate),
		AcquisitionTime:       readString(ds, util.AcquisitionTime),
		SeriesDate:            readString(ds, util.SeriesDate),
		SeriesTime:            readString(ds, util.SeriesTime),
		FrameReferenceTime:    readNumber(ds, util.FrameReferenceTime),
		TimezoneOffsetFromUTC: readString(ds, util.TimezoneOffsetFromUTC),
		DecayCorrection:       readString(ds, util.DecayCorrection),
	}
	if item, ok := radiopharmaceuticalItem(ds); ok {
		r.RadiopharmaceuticalStartDateTime = readString(item, util.RadiopharmaceuticalStartDateTime)
		r.RadionuclideHalfLife = readNumber(item, util.RadionuclideHalfLife)
	}
	return r
}

// radiopharmaceuticalItem returns the first item of
// RadiopharmaceuticalInformationSequence as a dataset.
func radiopharmaceuticalItem(ds dicom.Dataset) (dicom.Dataset, bool) {
	info := util.RadiopharmaceuticalInformationSequence
	elem, err := ds.FindElementByTag(info.Tag)
	if err != nil || elem == nil {
		log.Warnf("missing DICOM attribute: %s", info.Name)
		return dicom.Dataset{}, false
	}
	items, ok := elem.Value.GetValue().([]*dicom.SequenceItemValue)
	if !ok || len(items) == 0 {
		log.Warnf("DICOM attribute %s is present but either empty or not encoded as SQ", info.Name)
		return dicom.Dataset{}, false
	}
	elements, ok := items[0].GetValue().([]*dicom.Element)
	if !ok {
		log.Warnf("DICOM attribute %s is present but either empty or not encoded as SQ", info.Name)
		return dicom.Dataset{}, false
	}
	return dicom.Dataset{Elements: elements}, true
}

func findElement(ds dicom.Dataset, info util.TagInfo) (*dicom.Element, bool) {
	elem, err := ds.FindElementByTag(info.Tag)
	if err != nil || elem == nil {
		log.Warnf("missing DICOM attribute: %s", info.Name)
		return nil, false
	}
	return elem, true
}

// readString returns the value of a string attribute as it appears on the
// wire: multiple values joined by backslashes and odd lengths padded with a
// trailing space. Bytes that are not UTF-8 are decoded as ISO-8859-1.
func readString(ds dicom.Dataset, info util.TagInfo) string {
	elem, ok := findElement(ds, info)
	if !ok {
		return ""
	}
	var s string
	switch v := elem.Value.GetValue().(type) {
	case []string:
		s = strings.Join(v, `\`)
	case []int:
		parts := make([]string, len(v))
		for i, n := range v {
			parts[i] = strconv.Itoa(n)
		}
		s = strings.Join(parts, `\`)
	case []float64:
		parts := make([]string, len(v))
		for i, f := range v {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		s = strings.Join(parts, `\`)
	default:
		log.Warnf("DICOM attribute %s is not a string", info.Name)
		return ""
	}
	if len(s)%2 == 1 {
		s += " "
	}
	if !utf8.ValidString(s) {
		decoded, err := charmap.ISO8859_1.NewDecoder().String(s)
		if err == nil {
			s = decoded
		}
	}
	return s
}

// readNumber returns the first value of a numeric attribute such as a
// Decimal String (DS).
func readNumber(ds dicom.Dataset, info util.TagInfo) *float64 {
	elem, ok := findElement(ds, info)
	if !ok {
		return nil
	}
	var v float64
	switch vals := elem.Value.GetValue().(type) {
	case []string:
		if len(vals) == 0 {
			log.Warnf("DICOM attribute %s is empty", info.Name)
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(vals[0]), 64)
		if err != nil {
			log.Warnf("failed to parse DICOM attribute %s: %q", info.Name, vals[0])
			return nil
		}
		v = f
	case []float64:
		if len(vals) == 0 {
			log.Warnf("DICOM attribute %s is empty", info.Name)
			return nil
		}
		v = vals[0]
	case []int:
		if len(vals) == 0 {
			log.Warnf("DICOM attribute %s is empty", info.Name)
			return nil
		}
		v = float64(vals[0])
	default:
		log.Warnf("DICOM attribute %s is not numeric", info.Name)
		return nil
	}
	return &v
}
