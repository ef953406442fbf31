package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidateCheckInTime accepts "anytime" or a 24h "HH:MM" string.
func ValidateCheckInTime(s string) error {
	if s == CheckInAnytime {
		return nil
	}
	if _, _, err := ParseCheckInTime(s); err != nil {
		return err
	}
	return nil
}

// ParseCheckInTime returns the hour and minute of an "HH:MM" string.
// "anytime" maps to 10:00.
func ParseCheckInTime(s string) (hour, minute int, err error) {
	if s == CheckInAnytime {
		return 10, 0, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: check_in_time must be HH:MM or %q", ErrValidation, CheckInAnytime)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: check_in_time hour must be 0-23", ErrValidation)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: check_in_time minute must be 0-59", ErrValidation)
	}
	return hour, minute, nil
}
