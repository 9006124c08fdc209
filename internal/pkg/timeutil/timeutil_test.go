package timeutil

import (
	"testing"
	"time"
)

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		n    int
		want time.Time
	}{
		{"plain", time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC), 3, time.Date(2024, 6, 10, 8, 30, 0, 0, time.UTC)},
		{"clamp to leap february", time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC), 1, time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)},
		{"clamp to february", time.Date(2023, 1, 31, 12, 0, 0, 0, time.UTC), 1, time.Date(2023, 2, 28, 12, 0, 0, 0, time.UTC)},
		{"year rollover", time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC), 3, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)},
		{"twelve months", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), 12, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AddMonths(tt.in, tt.n); !got.Equal(tt.want) {
				t.Errorf("AddMonths(%v, %d) = %v, want %v", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestSameCalendarDay(t *testing.T) {
	hcm := time.FixedZone("ICT", 7*3600)
	a := time.Date(2024, 5, 1, 16, 0, 0, 0, time.UTC) // 23:00 in ICT
	b := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC) // 01:00 next day in ICT

	if !SameCalendarDay(a, b, time.UTC) {
		t.Error("expected same UTC day")
	}
	if SameCalendarDay(a, b, hcm) {
		t.Error("expected different days in ICT")
	}
}

func TestStartOfNextDay(t *testing.T) {
	got := StartOfNextDay(time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC), time.UTC)
	want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("StartOfNextDay = %v, want %v", got, want)
	}
}

func TestWholeDaysUntil(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if got := WholeDaysUntil(now, now.Add(-time.Hour)); got != 0 {
		t.Errorf("past target = %d, want 0", got)
	}
	if got := WholeDaysUntil(now, now.Add(36*time.Hour)); got != 1 {
		t.Errorf("36h = %d, want 1", got)
	}
	if got := WholeDaysUntil(now, now.AddDate(0, 0, 30)); got != 30 {
		t.Errorf("30 days = %d, want 30", got)
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-07-04")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if !got.Equal(time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseDate = %v", got)
	}

	got, err = ParseDate("2024-07-04T15:04:05Z")
	if err != nil {
		t.Fatalf("ParseDate RFC3339: %v", err)
	}
	if !got.Equal(time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseDate RFC3339 = %v", got)
	}

	if _, err := ParseDate("04/07/2024"); err == nil {
		t.Error("expected error for bad layout")
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"09:00", 540, false},
		{"23:59", 1439, false},
		{"00:00", 0, false},
		{"9:00", 0, true},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestIntervalOverlaps(t *testing.T) {
	mustParse := func(s, e string) Interval {
		i, err := ParseInterval(s, e)
		if err != nil {
			t.Fatalf("ParseInterval(%s, %s): %v", s, e, err)
		}
		return i
	}

	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"partial overlap", mustParse("09:00", "10:00"), mustParse("09:30", "10:30"), true},
		{"touching", mustParse("09:00", "10:00"), mustParse("10:00", "11:00"), false},
		{"contained", mustParse("09:00", "12:00"), mustParse("10:00", "11:00"), true},
		{"identical", mustParse("09:00", "10:00"), mustParse("09:00", "10:00"), true},
		{"disjoint", mustParse("08:00", "09:00"), mustParse("13:00", "14:00"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("Overlaps (swapped) = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := ParseInterval("10:00", "09:00"); err == nil {
		t.Error("expected error for inverted interval")
	}
}
