package habits

import (
	"context"
	"fmt"
	"math"
	"time"

	mqcontracts "habitloop/contracts/mq"
	"habitloop/internal/events"
	"habitloop/internal/model"
	"habitloop/pkg/mq"

	"go.uber.org/zap"
)

// startingFraction of the target frequency a new habit begins at, so the
// owner builds momentum before progression ramps up.
const startingFraction = 0.45

// Store is the persistence surface the registry needs.
type Store interface {
	Insert(ctx context.Context, h *model.Habit) (int64, error)
	GetByID(ctx context.Context, habitID int64, ownerID string) (*model.Habit, error)
	ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]model.Habit, error)
	Update(ctx context.Context, habitID int64, ownerID string, patch model.HabitUpdate) (bool, error)
	Deactivate(ctx context.Context, habitID int64, ownerID string) (bool, error)
}

// defaultFollowUpDelayMinutes applies when a habit does not say how long
// to wait before the follow-up nudge.
const defaultFollowUpDelayMinutes = 60

type CreateInput struct {
	Name            string
	Description     string
	TargetFrequency int
	CheckInTime     string
	// nil means the default delay; an explicit zero disables the wait.
	FollowUpDelayMinutes *int
}

type Service struct {
	store  Store
	events events.Sink
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, sink events.Sink, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		events: sink,
		logger: logger,
		now:    time.Now,
	}
}

// StartingFrequency is where a new habit begins: just under half the
// target, never below one per week.
func StartingFrequency(targetFrequency int) int {
	start := int(math.Round(float64(targetFrequency) * startingFraction))
	if start < 1 {
		return 1
	}
	return start
}

func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*model.Habit, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", model.ErrValidation)
	}
	if in.TargetFrequency < 1 || in.TargetFrequency > 7 {
		return nil, fmt.Errorf("%w: target_frequency must be between 1 and 7", model.ErrValidation)
	}
	if in.CheckInTime == "" {
		in.CheckInTime = model.CheckInAnytime
	}
	if err := model.ValidateCheckInTime(in.CheckInTime); err != nil {
		return nil, err
	}
	delay := defaultFollowUpDelayMinutes
	if in.FollowUpDelayMinutes != nil {
		if *in.FollowUpDelayMinutes < 0 {
			return nil, fmt.Errorf("%w: follow_up_delay_minutes must be non-negative", model.ErrValidation)
		}
		delay = *in.FollowUpDelayMinutes
	}

	habit := &model.Habit{
		OwnerID:              ownerID,
		Name:                 in.Name,
		Description:          in.Description,
		TargetFrequency:      in.TargetFrequency,
		CurrentFrequency:     StartingFrequency(in.TargetFrequency),
		CheckInTime:          in.CheckInTime,
		FollowUpDelayMinutes: delay,
		ProgressionStartDate: model.DateOf(s.now()),
		Active:               true,
	}

	if _, err := s.store.Insert(ctx, habit); err != nil {
		return nil, fmt.Errorf("failed to create habit: %w", err)
	}

	s.logger.Info("Habit created",
		zap.Int64("habit_id", habit.ID),
		zap.String("owner_id", ownerID),
		zap.String("name", habit.Name),
		zap.Int("target_frequency", habit.TargetFrequency),
		zap.Int("starting_frequency", habit.CurrentFrequency),
	)

	if err := s.events.Emit(ctx, "habit", habit.ID, mq.HabitCreated, mqcontracts.HabitCreatedPayload{
		HabitID:          habit.ID,
		OwnerID:          ownerID,
		Name:             habit.Name,
		TargetFrequency:  habit.TargetFrequency,
		CurrentFrequency: habit.CurrentFrequency,
		CheckInTime:      habit.CheckInTime,
		// the worker picks this event up and schedules the check-in
		SchedulingPending: true,
	}); err != nil {
		s.logger.Warn("Failed to emit habit.created event", zap.Error(err))
	}

	return habit, nil
}

func (s *Service) Get(ctx context.Context, habitID int64, ownerID string) (*model.Habit, error) {
	return s.store.GetByID(ctx, habitID, ownerID)
}

func (s *Service) List(ctx context.Context, ownerID string, activeOnly bool) ([]model.Habit, error) {
	return s.store.ListByOwner(ctx, ownerID, activeOnly)
}

// Update applies a partial patch. An empty patch reports false without
// touching the store. A change to current_frequency re-stamps
// progression_start_date unless the caller set one explicitly.
func (s *Service) Update(ctx context.Context, habitID int64, ownerID string, patch model.HabitUpdate) (bool, error) {
	if patch.Empty() {
		return false, nil
	}
	if patch.TargetFrequency != nil && (*patch.TargetFrequency < 1 || *patch.TargetFrequency > 7) {
		return false, fmt.Errorf("%w: target_frequency must be between 1 and 7", model.ErrValidation)
	}
	if patch.CurrentFrequency != nil && *patch.CurrentFrequency < 1 {
		return false, fmt.Errorf("%w: current_frequency must be at least 1", model.ErrValidation)
	}
	if patch.CheckInTime != nil {
		if err := model.ValidateCheckInTime(*patch.CheckInTime); err != nil {
			return false, err
		}
	}
	if patch.FollowUpDelayMinutes != nil && *patch.FollowUpDelayMinutes < 0 {
		return false, fmt.Errorf("%w: follow_up_delay_minutes must be non-negative", model.ErrValidation)
	}

	if patch.CurrentFrequency != nil && patch.ProgressionStartDate == nil {
		today := model.DateOf(s.now())
		patch.ProgressionStartDate = &today
	}

	return s.store.Update(ctx, habitID, ownerID, patch)
}

// Deactivate soft-deletes; habit rows are never removed.
func (s *Service) Deactivate(ctx context.Context, habitID int64, ownerID string) (bool, error) {
	ok, err := s.store.Deactivate(ctx, habitID, ownerID)
	if err != nil || !ok {
		return ok, err
	}

	if err := s.events.Emit(ctx, "habit", habitID, mq.HabitDeactivated, mqcontracts.HabitDeactivatedPayload{
		HabitID: habitID,
		OwnerID: ownerID,
	}); err != nil {
		s.logger.Warn("Failed to emit habit.deactivated event", zap.Error(err))
	}
	return true, nil
}

// WithClock overrides the service clock; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
