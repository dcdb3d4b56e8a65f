package calendar

import (
	"errors"
	"testing"
	"time"
)

func mustTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func mustMinutes(t *testing.T, hhmm string) int {
	t.Helper()
	m, err := MinutesSinceMidnight(hhmm)
	if err != nil {
		t.Fatalf("MinutesSinceMidnight(%q): %v", hhmm, err)
	}
	return m
}

//
// MinutesSinceMidnight
//

func TestMinutesSinceMidnight_Valid(t *testing.T) {
	cases := map[string]int{
		"00:00": 0,
		"09:30": 570,
		"23:59": 1439,
		"12:05": 725,
	}
	for in, want := range cases {
		got, err := MinutesSinceMidnight(in)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: expected %d, got %d", in, want, got)
		}
	}
}

func TestMinutesSinceMidnight_InvalidFormat(t *testing.T) {
	for _, in := range []string{"", "9:30", "09:3", "24:00", "12:60", "ab:cd", "09-30", "09:30:00", " 9:30"} {
		_, err := MinutesSinceMidnight(in)
		if !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("%q: expected ErrInvalidFormat, got %v", in, err)
		}
	}
}

func TestFormatClock_WrapsPastMidnight(t *testing.T) {
	if got := FormatClock(1500); got != "01:00" {
		t.Fatalf("expected 01:00, got %s", got)
	}
	if got := FormatClock(570); got != "09:30" {
		t.Fatalf("expected 09:30, got %s", got)
	}
}

//
// IntervalsOverlap
//

func TestIntervalsOverlap_TouchingIsNotOverlap(t *testing.T) {
	a0, a1 := mustMinutes(t, "09:00"), mustMinutes(t, "10:00")
	b0, b1 := mustMinutes(t, "10:00"), mustMinutes(t, "11:00")

	if IntervalsOverlap(a0, a1, b0, b1) {
		t.Fatalf("touching intervals must not overlap")
	}
}

func TestIntervalsOverlap_Cases(t *testing.T) {
	type iv struct{ open, close string }
	cases := []struct {
		name string
		a, b iv
		want bool
	}{
		{"partial", iv{"09:00", "11:00"}, iv{"10:00", "12:00"}, true},
		{"containment", iv{"09:00", "17:00"}, iv{"12:00", "13:00"}, true},
		{"identical", iv{"09:00", "10:00"}, iv{"09:00", "10:00"}, true},
		{"disjoint", iv{"09:00", "10:00"}, iv{"11:00", "12:00"}, false},
		{"overnight vs late evening", iv{"22:00", "02:00"}, iv{"23:00", "23:30"}, true},
		{"overnight vs evening before open", iv{"22:00", "02:00"}, iv{"18:00", "22:00"}, false},
		{"two overnight", iv{"22:00", "02:00"}, iv{"23:00", "01:00"}, true},
	}

	for _, tc := range cases {
		a0, a1 := mustMinutes(t, tc.a.open), mustMinutes(t, tc.a.close)
		b0, b1 := mustMinutes(t, tc.b.open), mustMinutes(t, tc.b.close)
		if got := IntervalsOverlap(a0, a1, b0, b1); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestIntervalsOverlap_Symmetric(t *testing.T) {
	for a0 := 0; a0 < MinutesPerDay; a0 += 90 {
		for a1 := 0; a1 < MinutesPerDay; a1 += 150 {
			for b0 := 0; b0 < MinutesPerDay; b0 += 120 {
				for b1 := 0; b1 < MinutesPerDay; b1 += 210 {
					if IntervalsOverlap(a0, a1, b0, b1) != IntervalsOverlap(b0, b1, a0, a1) {
						t.Fatalf("asymmetric result for [%d,%d) vs [%d,%d)", a0, a1, b0, b1)
					}
				}
			}
		}
	}
}

//
// InstantWithinInterval
//

func TestInstantWithinInterval_Overnight(t *testing.T) {
	ok, err := InstantWithinInterval(mustTime(t, 2025, 1, 1, 1, 0), "22:00", "02:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected 01:00 to be within 22:00-02:00")
	}

	ok, err = InstantWithinInterval(mustTime(t, 2025, 1, 1, 21, 0), "22:00", "02:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected 21:00 to be outside 22:00-02:00")
	}
}

func TestInstantWithinInterval_HalfOpen(t *testing.T) {
	in, _ := InstantWithinInterval(mustTime(t, 2025, 1, 1, 10, 0), "10:00", "22:00")
	if !in {
		t.Fatalf("open boundary must be inclusive")
	}
	in, _ = InstantWithinInterval(mustTime(t, 2025, 1, 1, 22, 0), "10:00", "22:00")
	if in {
		t.Fatalf("close boundary must be exclusive")
	}
}

func TestInOpeningDayPart(t *testing.T) {
	tests := []struct {
		at          time.Time
		open, close string
		want        bool
	}{
		{mustTime(t, 2025, 1, 1, 1, 0), "22:00", "02:00", false},
		{mustTime(t, 2025, 1, 1, 22, 0), "22:00", "02:00", true},
		{mustTime(t, 2025, 1, 1, 23, 59), "22:00", "02:00", true},
		{mustTime(t, 2025, 1, 1, 10, 0), "10:00", "22:00", true},
		{mustTime(t, 2025, 1, 1, 22, 0), "10:00", "22:00", false},
	}
	for _, tt := range tests {
		got, err := InOpeningDayPart(tt.at, tt.open, tt.close)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.want {
			t.Fatalf("InOpeningDayPart(%s, %s-%s) = %v, want %v", tt.at.Format("15:04"), tt.open, tt.close, got, tt.want)
		}
	}
	if _, err := InOpeningDayPart(mustTime(t, 2025, 1, 1, 1, 0), "9:00", "22:00"); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestInOvernightTail(t *testing.T) {
	tail, _ := InOvernightTail(mustTime(t, 2025, 1, 1, 1, 30), "22:00", "02:00")
	if !tail {
		t.Fatalf("01:30 must be in the tail of 22:00-02:00")
	}
	tail, _ = InOvernightTail(mustTime(t, 2025, 1, 1, 23, 0), "22:00", "02:00")
	if tail {
		t.Fatalf("23:00 is before midnight, not in the tail")
	}
	tail, _ = InOvernightTail(mustTime(t, 2025, 1, 1, 1, 30), "10:00", "22:00")
	if tail {
		t.Fatalf("same-day interval has no tail")
	}
}

//
// Validation
//

func TestValidateOrderedTimes(t *testing.T) {
	if err := ValidateOrderedTimes("10:00", "22:00"); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	if err := ValidateOrderedTimes("22:00", "02:00"); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange for close before open, got %v", err)
	}
	if err := ValidateOrderedTimes("10:00", "10:00"); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange for empty interval, got %v", err)
	}
	if err := ValidateOrderedTimes("1000", "22:00"); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestValidateOvernightTimes(t *testing.T) {
	if err := ValidateOvernightTimes("22:00", "02:00"); err != nil {
		t.Fatalf("expected valid overnight interval, got %v", err)
	}
	if err := ValidateOvernightTimes("10:00", "22:00"); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}
}

//
// Day arithmetic and ranges
//

func TestAtClock_SpillsIntoNextDay(t *testing.T) {
	day := mustTime(t, 2025, 1, 1, 0, 0)
	got := AtClock(day, 25*60)
	if !got.Equal(mustTime(t, 2025, 1, 2, 1, 0)) {
		t.Fatalf("expected next day 01:00, got %v", got)
	}
}

func TestDayStart_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	// 22:30 UTC уже следующий день в UTC+3
	got := DayStart(mustTime(t, 2025, 1, 1, 22, 30), loc)
	want := time.Date(2025, 1, 2, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestOccupancy_Overlaps(t *testing.T) {
	at := mustTime(t, 2025, 1, 1, 19, 0)
	cand := Occupancy(at, 90*time.Minute, 15*time.Minute)

	if !cand.Start.Equal(mustTime(t, 2025, 1, 1, 18, 45)) || !cand.End.Equal(mustTime(t, 2025, 1, 1, 20, 45)) {
		t.Fatalf("unexpected window %v", cand)
	}

	existing := []TimeRange{
		{Start: mustTime(t, 2025, 1, 1, 17, 0), End: mustTime(t, 2025, 1, 1, 18, 45)}, // касание
		{Start: mustTime(t, 2025, 1, 1, 20, 0), End: mustTime(t, 2025, 1, 1, 21, 30)},
	}
	ok, conflicts := HasOverlap(cand, existing)
	if !ok || len(conflicts) != 1 {
		t.Fatalf("expected exactly one conflict, got %v", conflicts)
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	p := Paginate(items, 2, 2)
	if len(p.Items) != 2 || p.Items[0] != 3 || !p.HasNext || !p.HasPrev || p.Total != 5 {
		t.Fatalf("unexpected page %+v", p)
	}

	p = Paginate(items, 10, 2)
	if len(p.Items) != 0 || p.HasNext {
		t.Fatalf("expected empty tail page, got %+v", p)
	}

	p = Paginate(items, 0, 0)
	if p.Page != 1 || p.PageSize != DefaultPageSize || len(p.Items) != 5 {
		t.Fatalf("expected defaults, got %+v", p)
	}
}
