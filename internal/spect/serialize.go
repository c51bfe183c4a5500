package spect

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const header = "This file was created by Spider.\n" +
	"If you edit it by hand, you could mess it up.\n"

// field binds one line of the serialization to a Record field. Exactly one
// of str and num is set.
type field struct {
	label string
	str   func(*Record) *string
	num   func(*Record) **float64
}

// fields lists the serialized fields in file order.
var fields = []field{
	{label: "patient name", str: func(r *Record) *string { return &r.PatientName }},
	{label: "radiopharmaceutical start date time", str: func(r *Record) *string { return &r.RadiopharmaceuticalStartDateTime }},
	{label: "acquisition date", str: func(r *Record) *string { return &r.AcquisitionDate }},
	{label: "acquisition time", str: func(r *Record) *string { return &r.AcquisitionTime }},
	{label: "series date", str: func(r *Record) *string { return &r.SeriesDate }},
	{label: "series time", str: func(r *Record) *string { return &r.SeriesTime }},
	{label: "frame reference time", num: func(r *Record) **float64 { return &r.FrameReferenceTime }},
	{label: "timezone offset from UTC", str: func(r *Record) *string { return &r.TimezoneOffsetFromUTC }},
	{label: "decay correction", str: func(r *Record) *string { return &r.DecayCorrection }},
	{label: "radionuclide half-life", num: func(r *Record) **float64 { return &r.RadionuclideHalfLife }},
}

// firstLine returns s up to, and not including, the first newline.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// WriteSpects writes records to w in the form read by ReadSpects. A string
// containing a newline is truncated at the newline with a warning.
func WriteSpects(w io.Writer, records []Record) error {
	for i := range records {
		for _, f := range fields {
			if f.str == nil {
				continue
			}
			if v := *f.str(&records[i]); firstLine(v) != v {
				log.Warnf("SPECT %d: %s: contains a newline; discarding characters after and including the first newline", i+1, f.label)
			}
		}
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range records {
		bw.WriteByte('\n')
		for _, f := range fields {
			var line string
			if f.str != nil {
				line = firstLine(*f.str(&records[i]))
			} else if v := *f.num(&records[i]); v != nil {
				line = formatNumber(*v)
			}
			bw.WriteString(line)
			bw.WriteByte('\n')
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write SPECTs: %w", err)
	}
	return nil
}

// lineReader reads lines the way std::getline does: a final line without a
// newline is still a line, and only a read at end of input fails.
type lineReader struct {
	r   *bufio.Reader
	err error
}

func (lr *lineReader) next() (string, bool) {
	if lr.err != nil {
		return "", false
	}
	line, err := lr.r.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			lr.err = err
			return "", false
		}
		lr.err = io.EOF
		return line, line != ""
	}
	return strings.TrimSuffix(line, "\n"), true
}

// ReadSpects reads records written by WriteSpects. A record cut short by
// the end of input is kept with its remaining fields absent. An empty
// numeric line is absent; one that fails to parse is absent with a warning.
func ReadSpects(r io.Reader) ([]Record, error) {
	lr := &lineReader{r: bufio.NewReader(r)}
	lr.next()
	if _, ok := lr.next(); !ok {
		return nil, readErr(lr)
	}

	var records []Record
	for {
		// Blank separator.
		if _, ok := lr.next(); !ok {
			break
		}
		records = append(records, Record{})
		rec := &records[len(records)-1]
		complete := true
		for _, f := range fields {
			line, ok := lr.next()
			if !ok {
				complete = false
				break
			}
			if f.str != nil {
				*f.str(rec) = line
				continue
			}
			*f.num(rec) = parseNumber(line, len(records), f.label)
		}
		if !complete {
			break
		}
	}
	return records, readErr(lr)
}

func readErr(lr *lineReader) error {
	if lr.err == nil || errors.Is(lr.err, io.EOF) {
		return nil
	}
	return fmt.Errorf("read SPECTs: %w", lr.err)
}

func parseNumber(line string, index int, label string) *float64 {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil {
		log.Warnf("SPECT %d: failed to parse %s: %q", index, label, line)
		return nil
	}
	return &v
}
