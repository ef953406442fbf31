package onboarding

import (
	"fmt"
	"os"

	"habitloop/internal/model"

	"gopkg.in/yaml.v3"
)

// DefaultHabit is one entry in the default habits file. A missing
// follow_up_delay_minutes means the registry default.
type DefaultHabit struct {
	Name                 string `yaml:"name"`
	Description          string `yaml:"description"`
	TargetFrequency      int    `yaml:"target_frequency"`
	CheckInTime          string `yaml:"check_in_time"`
	FollowUpDelayMinutes *int   `yaml:"follow_up_delay_minutes"`
}

type defaultsFile struct {
	Habits []DefaultHabit `yaml:"habits"`
}

// LoadDefaults reads and validates the default habit definitions.
func LoadDefaults(path string) ([]DefaultHabit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read default habits file: %w", err)
	}
	return ParseDefaults(data)
}

// ParseDefaults validates the raw yaml content of a defaults file.
func ParseDefaults(data []byte) ([]DefaultHabit, error) {
	var file defaultsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid default habits yaml: %w", err)
	}
	if file.Habits == nil {
		return nil, fmt.Errorf("default habits file must contain a habits list")
	}

	for i, h := range file.Habits {
		if err := validateDefault(h, i); err != nil {
			return nil, err
		}
	}
	return file.Habits, nil
}

func validateDefault(h DefaultHabit, index int) error {
	if h.Name == "" {
		return fmt.Errorf("habit at index %d missing name", index)
	}
	if h.TargetFrequency < 1 || h.TargetFrequency > 7 {
		return fmt.Errorf("habit at index %d has invalid target_frequency (must be between 1 and 7)", index)
	}
	if h.CheckInTime == "" {
		return fmt.Errorf("habit at index %d missing check_in_time", index)
	}
	if err := model.ValidateCheckInTime(h.CheckInTime); err != nil {
		return fmt.Errorf("habit at index %d has invalid check_in_time: %w", index, err)
	}
	if h.FollowUpDelayMinutes != nil && *h.FollowUpDelayMinutes < 0 {
		return fmt.Errorf("habit at index %d has invalid follow_up_delay_minutes (must be non-negative)", index)
	}
	return nil
}
