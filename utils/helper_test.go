package utils

import (
	"testing"
	"time"
)

func TestFiscalPeriodLabel(t *testing.T) {
	cases := []struct {
		date time.Time
		want string
	}{
		{time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), "2025-26"},
		{time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), "2025-26"},
		{time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), "2026-27"},
		{time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), "2024-25"},
		{time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC), "2099-00"},
	}
	for _, c := range cases {
		if got := FiscalPeriodLabel(c.date); got != c.want {
			t.Errorf("FiscalPeriodLabel(%s) = %q, want %q", c.date.Format("2006-01-02"), got, c.want)
		}
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	want := []int{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("UniqueSlice = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("UniqueSlice = %v, want %v (order must be preserved)", got, want)
		}
	}
}

func TestDereferencePtr(t *testing.T) {
	v := 42
	if DereferencePtr(&v) != 42 {
		t.Error("DereferencePtr should return the pointed value")
	}
	if DereferencePtr[int](nil, 7) != 7 {
		t.Error("DereferencePtr should fall back to the default")
	}
	if DereferencePtr[string](nil) != "" {
		t.Error("DereferencePtr should zero-value without a default")
	}
}
