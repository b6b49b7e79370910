package quota_test

import (
	"testing"
	"time"

	"github.com/texlify/texlify/domain/quota"
)

var (
	jan1 = time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	jan2 = time.Date(2024, 1, 2, 0, 1, 0, 0, time.UTC)
)

func TestEffective_SameDay(t *testing.T) {
	d := quota.Daily{Count: 30, Day: "2024-01-01"}

	if got := quota.Effective(d, jan1); got != 30 {
		t.Errorf("effective = %d, want 30", got)
	}
}

func TestEffective_MidnightRollover(t *testing.T) {
	// Stale counter from yesterday reads as zero without any reset call.
	d := quota.Daily{Count: 30, Day: "2024-01-01"}

	if got := quota.Effective(d, jan2); got != 0 {
		t.Errorf("effective = %d, want 0 after rollover", got)
	}
}

func TestEffective_ZeroValue(t *testing.T) {
	if got := quota.Effective(quota.Daily{}, jan1); got != 0 {
		t.Errorf("effective = %d, want 0", got)
	}
}

func TestRollover_SameDayIncrements(t *testing.T) {
	d := quota.Daily{Count: 4, Day: "2024-01-01"}

	d = quota.Rollover(d, jan1)

	if d.Count != 5 || d.Day != "2024-01-01" {
		t.Errorf("rollover = %+v, want count 5 on 2024-01-01", d)
	}
}

func TestRollover_NewDayAdoptsAndSetsOne(t *testing.T) {
	d := quota.Daily{Count: 60, Day: "2024-01-01"}

	d = quota.Rollover(d, jan2)

	if d.Count != 1 || d.Day != "2024-01-02" {
		t.Errorf("rollover = %+v, want count 1 on 2024-01-02", d)
	}
}

func TestCheck_UnderLimit(t *testing.T) {
	result := quota.Check(9, 10)

	if !result.Allowed {
		t.Error("expected allow under limit")
	}
}

func TestCheck_AtLimit(t *testing.T) {
	result := quota.Check(10, 10)

	if result.Allowed {
		t.Error("expected deny at limit")
	}
	if result.Used != 10 || result.Limit != 10 {
		t.Errorf("result = %+v, want used 10 limit 10", result)
	}
}

func TestCheck_Unlimited(t *testing.T) {
	result := quota.Check(1_000_000, quota.Unlimited)

	if !result.Allowed {
		t.Error("unlimited tier must always pass")
	}
}

func TestDayStart(t *testing.T) {
	at := time.Date(2024, 3, 7, 18, 42, 11, 500, time.UTC)
	want := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)

	if got := quota.DayStart(at); !got.Equal(want) {
		t.Errorf("dayStart = %v, want %v", got, want)
	}
}

func TestDay_UsesUTC(t *testing.T) {
	// 23:30 in UTC-5 is already the next UTC day.
	loc := time.FixedZone("EST", -5*3600)
	at := time.Date(2024, 1, 1, 23, 30, 0, 0, loc)

	if got := quota.Day(at); got != "2024-01-02" {
		t.Errorf("day = %q, want 2024-01-02", got)
	}
}
