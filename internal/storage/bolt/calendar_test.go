package bolt_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dealmatch/groupbuy/services/api/internal/clock"
	"github.com/dealmatch/groupbuy/services/api/internal/storage/bolt"
)

func openStore(t *testing.T, path string) *bolt.CalendarStore {
	t.Helper()
	s, err := bolt.Open(path)
	if err != nil {
		t.Fatalf("failed to open calendar: %v", err)
	}
	return s
}

func TestCalendarStore_AddListRemove(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "calendar.db"))
	t.Cleanup(func() { s.Close() })

	newYear := clock.Date{Year: 2025, Month: time.January, Day: 1}
	chuseok := clock.Date{Year: 2025, Month: time.October, Day: 6}
	nextYear := clock.Date{Year: 2026, Month: time.January, Day: 1}

	for _, h := range []clock.Holiday{{Date: chuseok, Name: "chuseok"}, {Date: newYear, Name: "new year"}, {Date: nextYear, Name: "new year"}} {
		if err := s.AddHoliday(h.Date, h.Name); err != nil {
			t.Fatalf("add %s: %v", h.Date, err)
		}
	}
	if err := s.AddHoliday(chuseok, "chuseok day 1"); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	got, err := s.ListHolidays(2025)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 holidays in 2025, got %d", len(got))
	}
	if got[0].Date != newYear || got[1].Date != chuseok || got[1].Name != "chuseok day 1" {
		t.Fatalf("unexpected holidays %+v", got)
	}
	if !s.IsHoliday(chuseok) {
		t.Fatal("expected chuseok to be a holiday")
	}

	if err := s.RemoveHoliday(chuseok); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.RemoveHoliday(chuseok); err != nil {
		t.Fatalf("remove twice: %v", err)
	}
	if s.IsHoliday(chuseok) {
		t.Fatal("expected chuseok removed")
	}
	if _, err := s.ListHolidays(0); err == nil {
		t.Fatal("expected error for year 0")
	}
}

func TestCalendarStore_ReloadsFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.db")
	d := clock.Date{Year: 2025, Month: time.March, Day: 3}

	s := openStore(t, path)
	if err := s.AddHoliday(d, "substitute holiday"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openStore(t, path)
	t.Cleanup(func() { reopened.Close() })
	if !reopened.IsHoliday(d) {
		t.Fatal("expected holiday to survive reopen")
	}
}

func TestCalendarStore_DrivesWorkingTime(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "calendar.db"))
	t.Cleanup(func() { s.Close() })

	kst := time.FixedZone("KST", 9*60*60)
	monday := clock.Date{Year: 2025, Month: time.March, Day: 3}
	if err := s.AddHoliday(monday, "substitute holiday"); err != nil {
		t.Fatalf("add: %v", err)
	}

	h := clock.DefaultWorkingHours()
	h.Location = kst
	h.Calendar = s
	wt, err := clock.NewWorkingTime(h)
	if err != nil {
		t.Fatalf("working time: %v", err)
	}

	start := time.Date(2025, time.March, 3, 10, 0, 0, 0, kst)
	got := wt.AddWorkingMinutes(start, 5)
	want := time.Date(2025, time.March, 4, 9, 5, 0, 0, kst)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got.In(kst))
	}
}
