package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := map[string]TimeOfDay{
		"00:00": 0,
		"09:30": 570,
		"23:59": 1439,
		"24:00": 1440,
		" 7:05": 425,
	}
	for input, want := range cases {
		got, err := ParseTimeOfDay(input)
		if err != nil {
			t.Fatalf("ParseTimeOfDay(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseTimeOfDay(%q) = %d, want %d", input, got, want)
		}
	}

	for _, input := range []string{"", "25:00", "9am", "12:60"} {
		if _, err := ParseTimeOfDay(input); err == nil {
			t.Fatalf("expected %q to be rejected", input)
		}
	}
}

func TestTimeOfDayJSONUsesClockFormat(t *testing.T) {
	payload, err := json.Marshal(struct {
		Start TimeOfDay `json:"start"`
	}{Start: NewTimeOfDay(9, 5)})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(payload) != `{"start":"09:05"}` {
		t.Fatalf("unexpected payload %s", payload)
	}

	var decoded struct {
		Start TimeOfDay `json:"start"`
	}
	if err := json.Unmarshal([]byte(`{"start":"18:45"}`), &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Start != NewTimeOfDay(18, 45) {
		t.Fatalf("expected 18:45, got %s", decoded.Start)
	}
}

func TestTimeOfDayOnKeepsCalendarDay(t *testing.T) {
	date := time.Date(2030, 3, 15, 0, 0, 0, 0, time.UTC)
	got := NewTimeOfDay(24, 0).On(date, time.UTC)
	want := time.Date(2030, 3, 16, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
