package onboarding

import (
	"strings"
	"testing"
)

const validDefaults = `habits:
  - name: "Morning run"
    description: "Run before work"
    target_frequency: 5
    check_in_time: "07:30"
    follow_up_delay_minutes: 90
  - name: "Practice a language"
    target_frequency: 4
    check_in_time: "anytime"
`

func TestParseDefaults(t *testing.T) {
	habits, err := ParseDefaults([]byte(validDefaults))
	if err != nil {
		t.Fatalf("ParseDefaults: %v", err)
	}
	if len(habits) != 2 {
		t.Fatalf("habits = %d, want 2", len(habits))
	}
	if habits[0].Name != "Morning run" || habits[0].TargetFrequency != 5 {
		t.Errorf("first habit = %+v", habits[0])
	}
	if habits[0].FollowUpDelayMinutes == nil || *habits[0].FollowUpDelayMinutes != 90 {
		t.Errorf("first habit delay = %v, want 90", habits[0].FollowUpDelayMinutes)
	}
	if habits[1].CheckInTime != "anytime" {
		t.Errorf("check_in_time = %q, want anytime", habits[1].CheckInTime)
	}
	if habits[1].FollowUpDelayMinutes != nil {
		t.Errorf("omitted delay = %v, want nil", *habits[1].FollowUpDelayMinutes)
	}
}

func TestParseDefaultsRejectsBadFiles(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing habits key", "something_else: true\n", "habits list"},
		{"missing name", "habits:\n  - target_frequency: 3\n    check_in_time: \"08:00\"\n", "missing name"},
		{"target too high", "habits:\n  - name: x\n    target_frequency: 8\n    check_in_time: \"08:00\"\n", "target_frequency"},
		{"missing check-in time", "habits:\n  - name: x\n    target_frequency: 3\n", "check_in_time"},
		{"bad check-in time", "habits:\n  - name: x\n    target_frequency: 3\n    check_in_time: \"25:00\"\n", "check_in_time"},
		{"negative delay", "habits:\n  - name: x\n    target_frequency: 3\n    check_in_time: \"08:00\"\n    follow_up_delay_minutes: -5\n", "follow_up_delay_minutes"},
	}
	for _, tc := range cases {
		_, err := ParseDefaults([]byte(tc.yaml))
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.wantErr) {
			t.Errorf("%s: err = %v, want mention of %q", tc.name, err, tc.wantErr)
		}
	}
}
