package week

import (
	"testing"
	"time"
)

func TestCompute_KnownWeek(t *testing.T) {
	// Wednesday 2025-08-13 12:00 UTC is 17:30 IST; its Monday is 2025-08-11.
	now := time.Date(2025, 8, 13, 12, 0, 0, 0, time.UTC)
	w, err := Compute(now, "")
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if w.ID != "20250811" {
		t.Errorf("ID = %q; want 20250811", w.ID)
	}
	if w.DayDates[0] != "2025-08-11" || w.DayDates[6] != "2025-08-17" {
		t.Errorf("unexpected day dates: %v", w.DayDates)
	}
	if w.Headers[0] != "11/Aug/25" || w.Headers[6] != "17/Aug/25" {
		t.Errorf("unexpected headers: %v", w.Headers)
	}
}

func TestCompute_SundayBelongsToPrecedingMonday(t *testing.T) {
	// Sunday 2025-08-17 10:00 UTC is 15:30 IST, still within the 08-11 week.
	now := time.Date(2025, 8, 17, 10, 0, 0, 0, time.UTC)
	w, err := Compute(now, "")
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if w.ID != "20250811" {
		t.Errorf("ID = %q; want 20250811", w.ID)
	}
}

func TestCompute_ShiftedCalendarCrossesMidnight(t *testing.T) {
	// 19:30 UTC Sunday is already 01:00 Monday in the +5:30 calendar, so the
	// instant falls into the next week.
	now := time.Date(2025, 8, 17, 19, 30, 0, 0, time.UTC)
	w, err := Compute(now, "")
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if w.ID != "20250818" {
		t.Errorf("ID = %q; want 20250818", w.ID)
	}
}

func TestCompute_Override(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		override string
		wantID   string
	}{
		{"2025-08-11", "20250811"}, // Monday maps to itself
		{"2025-08-13", "20250811"}, // mid-week
		{"2025-08-17", "20250811"}, // Sunday
		{"2025-08-18", "20250818"}, // next Monday
	}
	for _, tt := range tests {
		w, err := Compute(now, tt.override)
		if err != nil {
			t.Fatalf("Compute(%q) failed: %v", tt.override, err)
		}
		if w.ID != tt.wantID {
			t.Errorf("Compute(%q).ID = %q; want %q", tt.override, w.ID, tt.wantID)
		}
	}
}

func TestCompute_OverrideRoundTrip(t *testing.T) {
	now := time.Date(2025, 8, 13, 12, 0, 0, 0, time.UTC)
	first, err := Compute(now, "")
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	second, err := Compute(now, first.DayDates[0])
	if err != nil {
		t.Fatalf("Compute with override failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("round trip changed week: %q vs %q", first.ID, second.ID)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	now := time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)
	a, _ := Compute(now, "")
	b, _ := Compute(now, "")
	if a != b {
		t.Errorf("Compute is not deterministic: %+v vs %+v", a, b)
	}
}

func TestCompute_BadOverride(t *testing.T) {
	if _, err := Compute(time.Now(), "13-08-2025"); err == nil {
		t.Error("expected error for malformed override date")
	}
}

func TestValidID(t *testing.T) {
	if !ValidID("20250811") {
		t.Error("20250811 should be valid")
	}
	if ValidID("2025-08-11") || ValidID("20251301") {
		t.Error("malformed ids accepted")
	}
}

func TestStartOf(t *testing.T) {
	start, err := StartOf("20250811")
	if err != nil {
		t.Fatalf("StartOf failed: %v", err)
	}
	if start.Weekday() != time.Monday {
		t.Errorf("start is %v; want Monday", start.Weekday())
	}
	if _, err := StartOf("nope"); err == nil {
		t.Error("expected error for bad id")
	}
}
