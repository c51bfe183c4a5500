// Package util provides the registry of DICOM attributes Spider reads from
// and writes to SPECT series.
package util

import (
	"fmt"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// TagScope tells where in a dataset an attribute lives.
type TagScope int

const (
	// ScopeDataset indicates attributes of the top-level dataset.
	ScopeDataset TagScope = iota
	// ScopeRadiopharmaceutical indicates attributes of the first item of
	// RadiopharmaceuticalInformationSequence.
	ScopeRadiopharmaceutical
)

// String returns the string representation of a TagScope.
func (s TagScope) String() string {
	switch s {
	case ScopeDataset:
		return "Dataset"
	case ScopeRadiopharmaceutical:
		return "RadiopharmaceuticalInformationSequence"
	default:
		return "Unknown"
	}
}

// TagInfo contains information about a DICOM attribute, including its scope.
type TagInfo struct {
	Name  string
	Tag   tag.Tag
	Scope TagScope
}

// Attributes read into a SPECT record.
var (
	PatientName           = TagInfo{Name: "PatientName", Tag: tag.Tag{Group: 0x0010, Element: 0x0010}, Scope: ScopeDataset}
	AcquisitionDate       = TagInfo{Name: "AcquisitionDate", Tag: tag.Tag{Group: 0x0008, Element: 0x0022}, Scope: ScopeDataset}
	AcquisitionTime       = TagInfo{Name: "AcquisitionTime", Tag: tag.Tag{Group: 0x0008, Element: 0x0032}, Scope: ScopeDataset}
	SeriesDate            = TagInfo{Name: "SeriesDate", Tag: tag.Tag{Group: 0x0008, Element: 0x0021}, Scope: ScopeDataset}
	SeriesTime            = TagInfo{Name: "SeriesTime", Tag: tag.Tag{Group: 0x0008, Element: 0x0031}, Scope: ScopeDataset}
	FrameReferenceTime    = TagInfo{Name: "FrameReferenceTime", Tag: tag.Tag{Group: 0x0054, Element: 0x1300}, Scope: ScopeDataset}
	TimezoneOffsetFromUTC = TagInfo{Name: "TimezoneOffsetFromUTC", Tag: tag.Tag{Group: 0x0008, Element: 0x0201}, Scope: ScopeDataset}
	DecayCorrection       = TagInfo{Name: "DecayCorrection", Tag: tag.Tag{Group: 0x0054, Element: 0x1102}, Scope: ScopeDataset}

	RadiopharmaceuticalInformationSequence = TagInfo{Name: "RadiopharmaceuticalInformationSequence", Tag: tag.Tag{Group: 0x0054, Element: 0x0016}, Scope: ScopeDataset}

	RadiopharmaceuticalStartDateTime = TagInfo{Name: "RadiopharmaceuticalStartDateTime", Tag: tag.Tag{Group: 0x0018, Element: 0x1078}, Scope: ScopeRadiopharmaceutical}
	RadionuclideHalfLife             = TagInfo{Name: "RadionuclideHalfLife", Tag: tag.Tag{Group: 0x0018, Element: 0x1075}, Scope: ScopeRadiopharmaceutical}
	Radiopharmaceutical              = TagInfo{Name: "Radiopharmaceutical", Tag: tag.Tag{Group: 0x0018, Element: 0x0031}, Scope: ScopeRadiopharmaceutical}
)

// registered lists every attribute known by name, in lookup order.
var registered = []TagInfo{
	PatientName,
	RadiopharmaceuticalStartDateTime,
	AcquisitionDate,
	AcquisitionTime,
	SeriesDate,
	SeriesTime,
	FrameReferenceTime,
	TimezoneOffsetFromUTC,
	DecayCorrection,
	RadionuclideHalfLife,
	RadiopharmaceuticalInformationSequence,

	// Descriptive attributes of generated series.
	{Name: "PatientID", Tag: tag.PatientID, Scope: ScopeDataset},
	{Name: "StudyDescription", Tag: tag.StudyDescription, Scope: ScopeDataset},
	{Name: "SeriesDescription", Tag: tag.SeriesDescription, Scope: ScopeDataset},
	{Name: "InstitutionName", Tag: tag.InstitutionName, Scope: ScopeDataset},
	{Name: "Manufacturer", Tag: tag.Manufacturer, Scope: ScopeDataset},
	{Name: "ManufacturerModelName", Tag: tag.ManufacturerModelName, Scope: ScopeDataset},
	Radiopharmaceutical,
}

// tagRegistry maps lowercase attribute names to their TagInfo.
var tagRegistry = func() map[string]TagInfo {
	m := make(map[string]TagInfo, len(registered))
	for _, info := range registered {
		m[strings.ToLower(info.Name)] = info
	}
	return m
}()

// Registered returns every attribute known by name.
func Registered() []TagInfo {
	return append([]TagInfo(nil), registered...)
}

// GetTagByName returns TagInfo for a given attribute name.
// The lookup is case-insensitive. If the attribute is not found, an error is
// returned with a suggestion for the closest matching name (using
// Levenshtein distance).
func GetTagByName(name string) (TagInfo, error) {
	normalizedName := strings.ToLower(strings.TrimSpace(name))

	if info, ok := tagRegistry[normalizedName]; ok {
		return info, nil
	}

	suggestion := findClosestTagName(normalizedName)
	if suggestion != "" {
		return TagInfo{}, fmt.Errorf("unknown tag %q, did you mean %q?", name, suggestion)
	}

	return TagInfo{}, fmt.Errorf("unknown tag %q", name)
}

// ParseTagOverride parses a "Name=Value" attribute override. The value may
// be empty, which writes the attribute with an empty value.
func ParseTagOverride(s string) (TagInfo, string, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return TagInfo{}, "", fmt.Errorf("invalid tag override %q (want Name=Value)", s)
	}
	info, err := GetTagByName(name)
	if err != nil {
		return TagInfo{}, "", err
	}
	if info == RadiopharmaceuticalInformationSequence {
		return TagInfo{}, "", fmt.Errorf("tag %s is a sequence and cannot be overridden", info.Name)
	}
	return info, value, nil
}

// findClosestTagName finds the closest matching name using Levenshtein distance.
// Returns empty string if no close match is found (distance > 5).
func findClosestTagName(input string) string {
	const maxDistance = 5
	bestDistance := maxDistance + 1
	var bestMatch string

	for _, info := range registered {
		distance := levenshteinDistance(input, strings.ToLower(info.Name))
		if distance < bestDistance {
			bestDistance = distance
			bestMatch = info.Name
		}
	}

	if bestDistance <= maxDistance {
		return bestMatch
	}
	return ""
}

// levenshteinDistance calculates the Levenshtein distance between two strings.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Two rows are enough: row i only depends on row i-1.
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
