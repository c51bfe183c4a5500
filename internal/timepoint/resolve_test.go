package timepoint

import (
	"errors"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func mustLoadLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

func TestMakeSysTimeFromOffset(t *testing.T) {
	tests := []struct {
		off  UTCOffset
		want time.Time
	}{
		{570, time.Date(2025, 1, 1, 14, 30, 0, 0, time.UTC)},
		{-570, time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)},
		{0, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		got, err := MakeSysTimeFromOffset(DateComplete{2025, 1, 2}, TimeComplete{}, tc.off)
		if err != nil {
			t.Fatalf("MakeSysTimeFromOffset(offset %d) returned error: %v", tc.off, err)
		}
		if !got.Equal(tc.want) {
			t.Errorf("MakeSysTimeFromOffset(offset %d) = %v, want %v", tc.off, got, tc.want)
		}
	}
}

func TestInvalidDate(t *testing.T) {
	utc := time.UTC
	for _, d := range []DateComplete{{2023, 2, 29}, {1900, 2, 29}, {2024, 4, 31}, {2024, 0, 1}, {2024, 13, 1}, {2024, 1, 0}} {
		if _, err := MakeZonedTime(d, TimeComplete{}, utc); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("MakeZonedTime(%+v) error = %v, want %v", d, err, ErrInvalidDate)
		}
		if _, err := MakeSysTimeFromOffset(d, TimeComplete{}, 0); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("MakeSysTimeFromOffset(%+v) error = %v, want %v", d, err, ErrInvalidDate)
		}
	}
	for _, d := range []DateComplete{{2024, 2, 29}, {2000, 2, 29}, {2024, 12, 31}} {
		if _, err := MakeZonedTime(d, TimeComplete{}, utc); err != nil {
			t.Errorf("MakeZonedTime(%+v) returned error: %v", d, err)
		}
	}
}

func TestMakeZonedTime_RoundTrip(t *testing.T) {
	tokyo := mustLoadLocation(t, "Asia/Tokyo")
	got, err := MakeZonedTime(DateComplete{2024, 6, 1}, TimeComplete{12, 0, 0}, tokyo)
	if err != nil {
		t.Fatalf("MakeZonedTime returned error: %v", err)
	}
	if want := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("MakeZonedTime = %v, want %v", got, want)
	}
	local := got.In(tokyo)
	if local.Hour() != 12 || local.Minute() != 0 || local.Day() != 1 {
		t.Errorf("round trip gave %v", local)
	}
}

func TestMakeZonedTime_FallBackChoosesEarlier(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	adelaide := mustLoadLocation(t, "Australia/Adelaide")
	got, err := MakeZonedTime(DateComplete{2024, 4, 7}, TimeComplete{2, 45, 0}, adelaide)
	if err != nil {
		t.Fatalf("MakeZonedTime returned error: %v", err)
	}
	if want := time.Date(2024, 4, 6, 16, 15, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("MakeZonedTime = %v, want %v", got, want)
	}

	// From the earlier 02:45 it takes 2h15m to reach 04:00.
	four, err := MakeZonedTime(DateComplete{2024, 4, 7}, TimeComplete{4, 0, 0}, adelaide)
	if err != nil {
		t.Fatalf("MakeZonedTime returned error: %v", err)
	}
	if d := four.Sub(got); d != 2*time.Hour+15*time.Minute {
		t.Errorf("04:00 - 02:45 = %v, want 2h15m", d)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel {
		t.Fatalf("expected a warning, got %v", entry)
	}
	if !strings.Contains(entry.Message, "earlier") {
		t.Errorf("warning %q should mention the earlier time point", entry.Message)
	}
}

func TestMakeZonedTime_SpringForwardFails(t *testing.T) {
	tests := []struct {
		zone string
		d    DateComplete
		tm   TimeComplete
	}{
		{"Australia/Adelaide", DateComplete{2024, 10, 6}, TimeComplete{2, 45, 0}},
		{"Europe/Berlin", DateComplete{2025, 3, 30}, TimeComplete{2, 20, 0}},
	}
	for _, tc := range tests {
		t.Run(tc.zone, func(t *testing.T) {
			_, err := MakeZonedTime(tc.d, tc.tm, mustLoadLocation(t, tc.zone))
			if !errors.Is(err, ErrNonexistentLocalTime) {
				t.Errorf("MakeZonedTime error = %v, want %v", err, ErrNonexistentLocalTime)
			}
		})
	}
}

func TestMakeSysTimeFromOffsetOrTimeZone(t *testing.T) {
	d := DateComplete{2025, 1, 2}
	tm := TimeComplete{}
	adelaide := mustLoadLocation(t, "Australia/Adelaide")

	got, err := MakeSysTimeFromOffsetOrTimeZone(d, tm, "+0930", nil)
	if err != nil {
		t.Fatalf("offset: %v", err)
	}
	if want := time.Date(2025, 1, 1, 14, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("offset: got %v, want %v", got, want)
	}

	// Summer in Adelaide is +10:30.
	got, err = MakeSysTimeFromOffsetOrTimeZone(d, tm, "", adelaide)
	if err != nil {
		t.Fatalf("zone: %v", err)
	}
	if want := time.Date(2025, 1, 1, 13, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("zone: got %v, want %v", got, want)
	}

	if _, err := MakeSysTimeFromOffsetOrTimeZone(d, tm, "", nil); !errors.Is(err, ErrMissingTimeZone) {
		t.Errorf("no zone: error = %v, want %v", err, ErrMissingTimeZone)
	}
	if _, err := MakeSysTimeFromOffsetOrTimeZone(d, tm, "-0000", adelaide); !errors.Is(err, ErrFailedUtcOffset) {
		t.Errorf("bad offset: error = %v, want %v", err, ErrFailedUtcOffset)
	}
}

func TestMakeSysTimeFromDicomDateAndTime(t *testing.T) {
	vancouver := mustLoadLocation(t, "America/Vancouver")
	got, err := MakeSysTimeFromDicomDateAndTime("20181105", "122601", "", vancouver)
	if err != nil {
		t.Fatalf("MakeSysTimeFromDicomDateAndTime returned error: %v", err)
	}
	if want := time.Date(2018, 11, 5, 20, 26, 1, 0, time.UTC); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	tests := []struct {
		date, tm, offset string
		want             error
	}{
		{"2018110", "122601", "", ErrFailedDate},
		{"20181105", "12260", "", ErrFailedTime},
		{"20181105", "1226", "", ErrIncompleteTime},
		{"20181105", "122601", "+2500", ErrFailedUtcOffset},
		{"20181131", "122601", "", ErrInvalidDate},
	}
	for _, tc := range tests {
		_, err := MakeSysTimeFromDicomDateAndTime(tc.date, tc.tm, tc.offset, vancouver)
		if !errors.Is(err, tc.want) {
			t.Errorf("MakeSysTimeFromDicomDateAndTime(%q, %q, %q) error = %v, want %v", tc.date, tc.tm, tc.offset, err, tc.want)
		}
	}
}

func TestMakeSysTimeFromDicomDateTime(t *testing.T) {
	vancouver := mustLoadLocation(t, "America/Vancouver")

	got, err := MakeSysTimeFromDicomDateTime("20181105120000.000000 ", "", vancouver)
	if err != nil {
		t.Fatalf("zone: %v", err)
	}
	if want := time.Date(2018, 11, 5, 20, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("zone: got %v, want %v", got, want)
	}

	// The suffix wins over the sibling offset and the zone.
	got, err = MakeSysTimeFromDicomDateTime("20181105120000-0700", "+0930", vancouver)
	if err != nil {
		t.Fatalf("suffix: %v", err)
	}
	if want := time.Date(2018, 11, 5, 19, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("suffix: got %v, want %v", got, want)
	}

	got, err = MakeSysTimeFromDicomDateTime("20181105120000", "+0930", vancouver)
	if err != nil {
		t.Fatalf("offset: %v", err)
	}
	if want := time.Date(2018, 11, 5, 2, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("offset: got %v, want %v", got, want)
	}

	tests := []struct {
		dt   string
		want error
	}{
		{"201", ErrFailedDateTimeExcludingUtcOffset},
		{"2018", ErrIncompleteDate},
		{"2018110512", ErrIncompleteTime},
		{"20181105120000+1500", ErrFailedUtcOffsetInDateTime},
		{"20181105120000-0000", ErrFailedUtcOffsetInDateTime},
	}
	for _, tc := range tests {
		_, err := MakeSysTimeFromDicomDateTime(tc.dt, "", vancouver)
		if !errors.Is(err, tc.want) {
			t.Errorf("MakeSysTimeFromDicomDateTime(%q) error = %v, want %v", tc.dt, err, tc.want)
		}
	}

	if _, err := MakeSysTimeFromDicomDateTime("20181105120000", "", nil); !errors.Is(err, ErrMissingTimeZone) {
		t.Errorf("no zone: error = %v, want %v", err, ErrMissingTimeZone)
	}
}
