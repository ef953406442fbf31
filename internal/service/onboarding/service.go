package onboarding

import (
	"context"

	"habitloop/internal/model"
	"habitloop/internal/scheduler"
	"habitloop/internal/service/habits"

	"go.uber.org/zap"
)

// ClaimStore is the persisted first-time-setup claim.
type ClaimStore interface {
	TryClaim(ctx context.Context, ownerID string) (bool, error)
	SetHabitsCreated(ctx context.Context, ownerID string, count int) error
	Release(ctx context.Context, ownerID string) error
}

// HabitCreator creates habits during bootstrap.
type HabitCreator interface {
	Create(ctx context.Context, ownerID string, in habits.CreateInput) (*model.Habit, error)
}

// TriggerSetup schedules the triggers a fresh owner needs.
type TriggerSetup interface {
	CreateCheckinTrigger(ctx context.Context, habit *model.Habit) (string, error)
	CreateWeeklyProgressionTrigger(ctx context.Context, ownerID string) (string, error)
}

// CreatedHabit is one bootstrap result entry.
type CreatedHabit struct {
	ID                   int64  `json:"id"`
	Name                 string `json:"name"`
	TargetFrequency      int    `json:"target_frequency"`
	CurrentFrequency     int    `json:"current_frequency"`
	CheckInTime          string `json:"check_in_time"`
	ProgressionStartDate string `json:"progression_start_date"`
}

// SetupError records one failed bootstrap step without aborting the rest.
type SetupError struct {
	HabitName string `json:"habit_name,omitempty"`
	HabitID   int64  `json:"habit_id,omitempty"`
	Error     string `json:"error"`
}

// SetupResult summarises a bootstrap run.
type SetupResult struct {
	OwnerID         string         `json:"owner_id"`
	AlreadySetUp    bool           `json:"already_set_up"`
	HabitsCreated   int            `json:"habits_created"`
	Habits          []CreatedHabit `json:"habits"`
	TriggersCreated int            `json:"triggers_created"`
	Errors          []SetupError   `json:"errors,omitempty"`
}

// Service bootstraps a new owner: default habits at their starting
// frequencies, a check-in trigger per habit, and the weekly
// progression trigger.
type Service struct {
	claims       ClaimStore
	habits       HabitCreator
	triggers     TriggerSetup
	defaultsPath string
	logger       *zap.Logger
}

func NewService(claims ClaimStore, habitCreator HabitCreator, triggers TriggerSetup, defaultsPath string, logger *zap.Logger) *Service {
	return &Service{
		claims:       claims,
		habits:       habitCreator,
		triggers:     triggers,
		defaultsPath: defaultsPath,
		logger:       logger,
	}
}

var _ TriggerSetup = (*scheduler.Triggers)(nil)

// EnsureSetup runs first-time setup exactly once per owner. A second
// call, or a concurrent call on another replica, reports AlreadySetUp.
// Partial failures are collected; setup succeeds if any habit landed.
func (s *Service) EnsureSetup(ctx context.Context, ownerID string) (*SetupResult, error) {
	claimed, err := s.claims.TryClaim(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return &SetupResult{OwnerID: ownerID, AlreadySetUp: true}, nil
	}

	defaults, err := LoadDefaults(s.defaultsPath)
	if err != nil {
		s.logger.Error("Failed to load default habits", zap.Error(err))
		if relErr := s.claims.Release(ctx, ownerID); relErr != nil {
			s.logger.Error("Failed to release onboarding claim", zap.Error(relErr))
		}
		return nil, err
	}

	s.logger.Info("Starting onboarding",
		zap.String("owner_id", ownerID),
		zap.Int("goals", len(defaults)),
	)

	result := &SetupResult{OwnerID: ownerID}
	for _, def := range defaults {
		habit, err := s.habits.Create(ctx, ownerID, habits.CreateInput{
			Name:                 def.Name,
			Description:          def.Description,
			TargetFrequency:      def.TargetFrequency,
			CheckInTime:          def.CheckInTime,
			FollowUpDelayMinutes: def.FollowUpDelayMinutes,
		})
		if err != nil {
			s.logger.Error("Failed to create default habit",
				zap.String("name", def.Name),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, SetupError{
				HabitName: def.Name,
				Error:     err.Error(),
			})
			continue
		}

		result.Habits = append(result.Habits, CreatedHabit{
			ID:                   habit.ID,
			Name:                 habit.Name,
			TargetFrequency:      habit.TargetFrequency,
			CurrentFrequency:     habit.CurrentFrequency,
			CheckInTime:          habit.CheckInTime,
			ProgressionStartDate: habit.ProgressionStartDate.Format(model.DateLayout),
		})

		if _, err := s.triggers.CreateCheckinTrigger(ctx, habit); err != nil {
			s.logger.Error("Failed to create check-in trigger",
				zap.Int64("habit_id", habit.ID),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, SetupError{
				HabitID: habit.ID,
				Error:   "trigger creation failed: " + err.Error(),
			})
			continue
		}
		result.TriggersCreated++
	}
	result.HabitsCreated = len(result.Habits)

	if _, err := s.triggers.CreateWeeklyProgressionTrigger(ctx, ownerID); err != nil {
		s.logger.Error("Failed to create weekly progression trigger", zap.Error(err))
		result.Errors = append(result.Errors, SetupError{
			Error: "weekly progression trigger failed: " + err.Error(),
		})
	} else {
		result.TriggersCreated++
	}

	if result.HabitsCreated == 0 {
		// Nothing landed, release the claim so a retry can start over.
		if err := s.claims.Release(ctx, ownerID); err != nil {
			s.logger.Error("Failed to release onboarding claim", zap.Error(err))
		}
		return result, nil
	}

	if err := s.claims.SetHabitsCreated(ctx, ownerID, result.HabitsCreated); err != nil {
		s.logger.Warn("Failed to record onboarding count", zap.Error(err))
	}

	s.logger.Info("Onboarding complete",
		zap.String("owner_id", ownerID),
		zap.Int("habits_created", result.HabitsCreated),
		zap.Int("triggers_created", result.TriggersCreated),
	)
	return result, nil
}
